// Package memory implements process-local versions of the cache interfaces,
// used when Redis is not configured.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

type lockEntry struct {
	token     uint64
	expiresAt time.Time
}

// LockManager implements domain.LockManager with a mutex-guarded map. Locks
// expire after their TTL like their Redis counterparts.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	seq   uint64
	now   func() time.Time
}

// NewLockManager returns an empty in-process LockManager.
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

// Acquire takes the lock for key if it is free or expired. It returns
// domain.ErrLockHeld otherwise.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.now()
	if cur, ok := lm.locks[key]; ok && now.Before(cur.expiresAt) {
		return nil, domain.ErrLockHeld
	}

	lm.seq++
	token := lm.seq
	lm.locks[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if cur, ok := lm.locks[key]; ok && cur.token == token {
				delete(lm.locks, key)
			}
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)

// AcquireWait polls lm until the lock for key is obtained or ctx is done.
func AcquireWait(ctx context.Context, lm domain.LockManager, key string, ttl, poll time.Duration) (func(), error) {
	for {
		unlock, err := lm.Acquire(ctx, key, ttl)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, err
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
