package provider

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited gates every Snapshot call on a shared limiter.
type RateLimited struct {
	Source
	Limiter *rate.Limiter
}

// NewRateLimited limits src to maxPerMinute calls with the given burst.
// A non-positive maxPerMinute returns src unchanged.
func NewRateLimited(src Source, maxPerMinute, burst int) Source {
	if maxPerMinute <= 0 {
		return src
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		Source:  src,
		Limiter: rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60), burst),
	}
}

func (r *RateLimited) Snapshot(ctx context.Context, symbol string) (Snapshot, error) {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return Snapshot{}, err
		}
	}
	return r.Source.Snapshot(ctx, symbol)
}
