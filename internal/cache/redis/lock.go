package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

// releaseLua deletes the lock only while it still carries the holder's token.
// A holder whose TTL lapsed cannot release the lock a later holder took.
var releaseLua = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// releaseTimeout bounds the release call, which runs after the caller's
// context may already be gone.
const releaseTimeout = 5 * time.Second

// LockManager implements domain.LockManager with SET NX PX and a
// token-checked release.
type LockManager struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewLockManager creates a LockManager on c.
func NewLockManager(c *Client, logger *slog.Logger) *LockManager {
	return &LockManager{
		rdb:    c.rdb,
		logger: logger.With(slog.String("component", "redis_lock")),
	}
}

// Acquire takes the lock for name for at most ttl. It returns
// domain.ErrLockHeld when another holder has it. The returned release func
// is idempotent.
func (lm *LockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	k := key("lock", name)
	token := uuid.NewString()

	ok, err := lm.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() { lm.release(k, token) })
	}, nil
}

func (lm *LockManager) release(k, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	deleted, err := releaseLua.Run(ctx, lm.rdb, []string{k}, token).Int64()
	switch {
	case err != nil:
		// The lock still expires on its TTL.
		lm.logger.Warn("release lock failed",
			slog.String("key", k),
			slog.String("error", err.Error()),
		)
	case deleted == 0:
		lm.logger.Warn("lock expired before release", slog.String("key", k))
	}
}

var _ domain.LockManager = (*LockManager)(nil)
