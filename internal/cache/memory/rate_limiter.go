package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

// RateLimiter is a sliding-window limiter kept in process memory. Keys with
// no hits inside their window are dropped, so the map only holds clients seen
// recently.
type RateLimiter struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter returns an empty in-process RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		hits: make(map[string][]time.Time),
		now:  time.Now,
	}
}

// Allow reports whether one more request for key fits in the window and
// records it when it does.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-window)

	if now.Sub(rl.lastSweep) >= window {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	kept := prune(rl.hits[key], cutoff)
	if len(kept) >= limit {
		rl.hits[key] = kept
		return false, nil
	}
	rl.hits[key] = append(kept, now)
	return true, nil
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.hits)
}

// sweep drops every key whose hits all fall before cutoff.
func (rl *RateLimiter) sweep(cutoff time.Time) {
	for k, ts := range rl.hits {
		if kept := prune(ts, cutoff); len(kept) == 0 {
			delete(rl.hits, k)
		} else {
			rl.hits[k] = kept
		}
	}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
