package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest oracle prices per symbol.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// RateLimiter bounds request rates per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locks so only one sampler instance drives
// an arena's price writes at a time.
type LockManager interface {
	// Acquire returns an unlock function on success, or ErrLockHeld when the
	// lock is already taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
