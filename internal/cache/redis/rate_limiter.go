package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowSrc string

var slidingWindow = redis.NewScript(slidingWindowSrc)

// Admission is one sliding-window decision.
type Admission struct {
	Allowed bool
	// InWindow counts admitted requests in the window, this one included
	// when Allowed.
	InWindow int64
}

// RateLimiter implements domain.RateLimiter on a Redis sorted set per client
// key, so every replica draws from the same budget.
type RateLimiter struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRateLimiter creates a RateLimiter on c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.rdb, now: time.Now}
}

// Allow admits one request for clientKey when the window has room.
func (rl *RateLimiter) Allow(ctx context.Context, clientKey string, limit int, window time.Duration) (bool, error) {
	adm, err := rl.Admit(ctx, clientKey, limit, window)
	if err != nil {
		return false, err
	}
	return adm.Allowed, nil
}

// Admit is Allow with the window count. A limit of zero or less admits
// nothing and does not touch Redis.
func (rl *RateLimiter) Admit(ctx context.Context, clientKey string, limit int, window time.Duration) (Admission, error) {
	if limit <= 0 {
		return Admission{}, nil
	}

	res, err := slidingWindow.Run(ctx, rl.rdb,
		[]string{key("ratelimit", clientKey)},
		rl.now().UnixMicro(), window.Microseconds(), limit,
	).Int64Slice()
	if err != nil {
		return Admission{}, fmt.Errorf("redis: admit %s: %w", clientKey, err)
	}
	if len(res) != 2 {
		return Admission{}, fmt.Errorf("redis: admit %s: script returned %d values", clientKey, len(res))
	}
	return Admission{Allowed: res[0] == 1, InWindow: res[1]}, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
