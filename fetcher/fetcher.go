// Package fetcher obtains current quotes for tickers, serving fresh cached
// quotes from the store and falling back to the provider on a miss.
package fetcher

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rustyeddy/riskgate/market"
	"github.com/rustyeddy/riskgate/metrics"
	"github.com/rustyeddy/riskgate/quotestore"
)

const (
	// DefaultConcurrency bounds parallel provider calls in a batch.
	DefaultConcurrency = 8
	// DefaultTimeout bounds one shared fetch.
	DefaultTimeout = 30 * time.Second
)

// QuoteProvider produces a complete quote for one symbol. provider.Client
// is the production implementation.
type QuoteProvider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (market.Quote, error)
}

type Fetcher struct {
	store       quotestore.Store
	provider    QuoteProvider
	maxAge      time.Duration
	concurrency int
	timeout     time.Duration
	metrics     *metrics.Metrics

	sf singleflight.Group
}

type Option func(*Fetcher)

// WithMaxAge sets the staleness bound for cache hits.
func WithMaxAge(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.maxAge = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithTimeout bounds a fetch shared by concurrent callers. It is not tied
// to any one caller's context.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

func New(store quotestore.Store, provider QuoteProvider, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:       store,
		provider:    provider,
		maxAge:      quotestore.DefaultMaxAge,
		concurrency: DefaultConcurrency,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) MaxAge() time.Duration { return f.maxAge }

// FetchSingle returns a quote for ticker. Unless forceRefresh is set, a
// stored quote no older than the max age is returned without contacting
// the provider. A fetched quote is written to the store before returning.
func (f *Fetcher) FetchSingle(ctx context.Context, ticker string, forceRefresh bool) (market.Quote, error) {
	q, _, err := f.Resolve(ctx, ticker, forceRefresh)
	return q, err
}

type resolved struct {
	quote  market.Quote
	cached bool
}

// Resolve is FetchSingle that also reports whether the quote came from
// the store rather than the provider. Concurrent callers for one asset
// share a single fetch; each stops waiting when its own ctx is done
// without failing the others.
func (f *Fetcher) Resolve(ctx context.Context, ticker string, forceRefresh bool) (market.Quote, bool, error) {
	id, err := market.NormalizeAssetID(ticker)
	if err != nil {
		return market.Quote{}, false, err
	}

	key := id
	if forceRefresh {
		key += "|refresh"
	}
	ch := f.sf.DoChan(key, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = market.Provider(id, fmt.Errorf("panic: %v", r))
			}
		}()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()
		return f.fetch(sctx, id, forceRefresh)
	})

	select {
	case <-ctx.Done():
		return market.Quote{}, false, market.Provider(id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return market.Quote{}, false, res.Err
		}
		r := res.Val.(resolved)
		return r.quote, r.cached, nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, id string, forceRefresh bool) (resolved, error) {
	if !forceRefresh {
		q, ok, err := f.store.Get(ctx, id, f.maxAge)
		switch {
		case err != nil:
			log.WithError(err).WithField("asset_id", id).Warn("quote store read failed, fetching from provider")
		case ok:
			f.metrics.CacheLookup(true)
			log.WithField("asset_id", id).Debug("using cached market data")
			return resolved{quote: q, cached: true}, nil
		default:
			f.metrics.CacheLookup(false)
		}
	}

	start := time.Now()
	q, err := f.provider.Quote(ctx, id)
	f.metrics.ProviderFetch(f.provider.Name(), err, time.Since(start))
	if err != nil {
		if !market.IsKind(err, market.ProviderFailure) {
			err = market.Provider(id, err)
		}
		log.WithError(err).WithField("asset_id", id).Warn("failed to fetch market data")
		return resolved{}, err
	}
	q.AssetID = id

	saved, err := f.store.Put(ctx, q)
	if err != nil {
		if market.IsKind(err, market.ValidationFailure) {
			// The provider handed back something unusable.
			return resolved{}, market.Provider(id, err)
		}
		if !market.IsKind(err, market.StoreFailure) {
			err = market.Store(id, err)
		}
		return resolved{}, err
	}

	log.WithFields(log.Fields{
		"asset_id": id,
		"spot":     saved.Spot,
		"vol":      saved.Volatility,
		"source":   saved.Source,
	}).Info("fetched market data")
	return resolved{quote: saved}, nil
}

// FetchMultiple fetches every ticker independently and in parallel. One
// ticker's failure never affects another's. Tickers that normalize to the
// same asset id are fetched once; outcomes follow first-occurrence order.
func (f *Fetcher) FetchMultiple(ctx context.Context, tickers []string, forceRefresh bool) BatchResult {
	type unit struct {
		ticker string
		err    error
	}

	seen := make(map[string]bool, len(tickers))
	units := make([]unit, 0, len(tickers))
	for _, raw := range tickers {
		id, err := market.NormalizeAssetID(raw)
		if err != nil {
			units = append(units, unit{ticker: raw, err: err})
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		units = append(units, unit{ticker: id})
	}

	outcomes := make([]Outcome, len(units))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, u := range units {
		if u.err != nil {
			outcomes[i] = Outcome{Ticker: u.ticker, Err: u.err}
			continue
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = Outcome{Ticker: u.ticker, Err: market.Provider(u.ticker, fmt.Errorf("panic: %v", r))}
				}
			}()
			q, ferr := f.FetchSingle(ctx, u.ticker, forceRefresh)
			if ferr != nil {
				outcomes[i] = Outcome{Ticker: u.ticker, Err: ferr}
				return nil
			}
			outcomes[i] = Outcome{Ticker: u.ticker, Quote: &q}
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Outcomes: outcomes}
	log.WithFields(log.Fields{
		"requested":  len(tickers),
		"unique":     res.Total(),
		"successful": len(res.Successful()),
		"failed":     len(res.Failed()),
	}).Info("batch fetch complete")
	return res
}
