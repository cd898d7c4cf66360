// Package cache holds the short-lived quote cache. Quotes are deterministic
// for a given catalog state, so a small TTL keeps repeat lookups off the
// database without risking stale prices for long.
package cache

import (
	"context"
	"errors"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

var ErrCacheMiss = errors.New("cache miss")

// QuoteCache stores computed price breakdowns by quote key.
type QuoteCache interface {
	Get(ctx context.Context, key string) (*model.PriceBreakdown, error)
	Set(ctx context.Context, key string, breakdown *model.PriceBreakdown) error
}
