// Package quotestore persists market quotes keyed by asset id with age-aware reads.
package quotestore

import (
	"context"
	"time"

	"github.com/rustyeddy/riskgate/market"
)

// DefaultMaxAge is the staleness bound used when callers do not pass one.
const DefaultMaxAge = 24 * time.Hour

// Store holds at most one quote per asset id. Writes are full replacements.
type Store interface {
	// Get returns the quote for assetID unless it is absent or older than maxAge.
	Get(ctx context.Context, assetID string, maxAge time.Duration) (market.Quote, bool, error)
	// Put replaces the stored quote and stamps LastUpdated with the write time.
	Put(ctx context.Context, q market.Quote) (market.Quote, error)
	// GetAll returns every stored quote regardless of age.
	GetAll(ctx context.Context) (map[string]market.Quote, error)
	Delete(ctx context.Context, assetID string) (bool, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Option configures a store backend.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for write stamps and age checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// fresh reports whether q is within maxAge at now. Age is computed per read.
func fresh(q market.Quote, now time.Time, maxAge time.Duration) bool {
	return q.Age(now) <= maxAge
}
