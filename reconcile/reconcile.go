// Package reconcile merges caller-supplied, cached and freshly fetched
// market data into a complete quote per asset for one request.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/riskgate/market"
	"github.com/rustyeddy/riskgate/metrics"
)

// Mode selects how a caller's partial quote combines with stored data.
type Mode int

const (
	// ObjectLevel uses any non-empty caller quote verbatim. Portfolio risk.
	ObjectLevel Mode = iota + 1
	// FieldLevel fills each missing caller field from the cache or provider.
	// Single-instrument pricing.
	FieldLevel
)

func (m Mode) String() string {
	switch m {
	case ObjectLevel:
		return "object"
	case FieldLevel:
		return "field"
	default:
		return "unknown"
	}
}

// Origin records where an asset's final quote came from.
type Origin string

const (
	CallerSupplied Origin = "caller_supplied"
	CacheHit       Origin = "cache_hit"
	LiveFetched    Origin = "live_fetched"
	Merged         Origin = "merged"
)

// Resolver is the cache-or-fetch step. fetcher.Fetcher implements it.
type Resolver interface {
	Resolve(ctx context.Context, ticker string, forceRefresh bool) (market.Quote, bool, error)
}

type Request struct {
	// Universe is the set of asset ids the request needs quotes for.
	Universe []string
	// Supplied holds the caller's quotes keyed by asset id.
	Supplied map[string]market.QuoteInput
}

type Result struct {
	Quotes map[string]market.Quote
	// AutoResolved lists, sorted, the assets that needed stored or fetched data.
	AutoResolved []string
	Origins      map[string]Origin
}

// UnresolvedError names every asset no quote could be produced for.
type UnresolvedError struct {
	Assets []string
	Causes map[string]error
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("market data unavailable for: %s", strings.Join(e.Assets, ", "))
}

type Reconciler struct {
	resolver    Resolver
	concurrency int
	metrics     *metrics.Metrics
}

type Option func(*Reconciler)

func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func New(resolver Resolver, opts ...Option) *Reconciler {
	r := &Reconciler{resolver: resolver, concurrency: 8}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type assetResult struct {
	id     string
	quote  market.Quote
	origin Origin
	err    error
}

// Reconcile produces a complete quote for every asset in req.Universe, or
// an *UnresolvedError naming each asset that could not be resolved. All
// assets are attempted before deciding; a partial map is never returned.
func (r *Reconciler) Reconcile(ctx context.Context, mode Mode, req Request) (res Result, err error) {
	defer func() { r.metrics.Reconciliation(mode.String(), err) }()

	if mode != ObjectLevel && mode != FieldLevel {
		return Result{}, fmt.Errorf("unknown reconciliation mode %d", mode)
	}

	supplied := make(map[string]market.QuoteInput, len(req.Supplied))
	keys := make(map[string]string, len(req.Supplied))
	for k, v := range req.Supplied {
		id, nerr := market.NormalizeAssetID(k)
		if nerr != nil {
			return Result{}, nerr
		}
		if prev, dup := keys[id]; dup {
			a, b := prev, k
			if b < a {
				a, b = b, a
			}
			return Result{}, market.Validation(id, fmt.Errorf("market data keys %q and %q name the same asset", a, b))
		}
		keys[id] = k
		supplied[id] = v
	}

	var ids []string
	seen := make(map[string]bool, len(req.Universe))
	for _, a := range req.Universe {
		id, nerr := market.NormalizeAssetID(a)
		if nerr != nil {
			return Result{}, nerr
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	results := make([]assetResult, len(ids))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		in := supplied[id]
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					results[i] = assetResult{id: id, err: market.Provider(id, fmt.Errorf("panic: %v", p))}
				}
			}()
			if mode == ObjectLevel {
				results[i] = r.objectLevel(ctx, id, in)
			} else {
				results[i] = r.fieldLevel(ctx, id, in)
			}
			return nil
		})
	}
	_ = g.Wait()

	res = Result{
		Quotes:       make(map[string]market.Quote, len(ids)),
		AutoResolved: []string{},
		Origins:      make(map[string]Origin, len(ids)),
	}
	var unresolved *UnresolvedError
	for _, ar := range results {
		if ar.err != nil {
			if unresolved == nil {
				unresolved = &UnresolvedError{Causes: map[string]error{}}
			}
			unresolved.Assets = append(unresolved.Assets, ar.id)
			unresolved.Causes[ar.id] = ar.err
			continue
		}
		res.Quotes[ar.id] = ar.quote
		res.Origins[ar.id] = ar.origin
		if ar.origin != CallerSupplied {
			res.AutoResolved = append(res.AutoResolved, ar.id)
		}
	}
	if unresolved != nil {
		sort.Strings(unresolved.Assets)
		log.WithFields(log.Fields{
			"mode":   mode.String(),
			"assets": unresolved.Assets,
		}).Warn("market data reconciliation failed")
		return Result{}, unresolved
	}

	sort.Strings(res.AutoResolved)
	if len(res.AutoResolved) > 0 {
		log.WithFields(log.Fields{
			"mode":          mode.String(),
			"auto_resolved": res.AutoResolved,
		}).Info("auto-resolved market data")
	}
	return res, nil
}

func (r *Reconciler) objectLevel(ctx context.Context, id string, in market.QuoteInput) assetResult {
	if !in.IsEmpty() {
		return assetResult{id: id, quote: in.Verbatim(id), origin: CallerSupplied}
	}
	q, cached, err := r.resolver.Resolve(ctx, id, false)
	if err != nil {
		return assetResult{id: id, err: err}
	}
	return assetResult{id: id, quote: q, origin: fetchedOrigin(cached)}
}

func (r *Reconciler) fieldLevel(ctx context.Context, id string, in market.QuoteInput) assetResult {
	if in.IsComplete() {
		return assetResult{id: id, quote: in.Verbatim(id), origin: CallerSupplied}
	}

	base, cached, err := r.resolver.Resolve(ctx, id, false)
	if err != nil {
		// Dividend alone never blocks; it defaults to zero.
		if in.Spot != nil && in.Volatility != nil && in.RiskFreeRate != nil {
			log.WithError(err).WithField("asset_id", id).Debug("dividend unavailable, defaulting to 0")
			return assetResult{id: id, quote: in.Verbatim(id), origin: CallerSupplied}
		}
		return assetResult{id: id, err: err}
	}

	if in.IsEmpty() {
		return assetResult{id: id, quote: base, origin: fetchedOrigin(cached)}
	}
	q := in.Overlay(base)
	q.AssetID = id
	return assetResult{id: id, quote: q, origin: Merged}
}

func fetchedOrigin(cached bool) Origin {
	if cached {
		return CacheHit
	}
	return LiveFetched
}
