package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cryptarena/arenad/internal/domain"
)

// rateLua increments a counter key and sets its expiry on first touch, so a
// window starts with the first request rather than drifting per call.
const rateLua = `
local n = redis.call('INCR', KEYS[1])
if n == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`

// RateLimiter implements domain.RateLimiter with fixed windows in Redis.
type RateLimiter struct {
	rdb    *redis.Client
	rateSc *redis.Script
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		rateSc: redis.NewScript(rateLua),
	}
}

// Allow reports whether another request under key fits within limit requests
// per window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := rl.rateSc.Run(ctx, rl.rdb, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return n <= int64(limit), nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
