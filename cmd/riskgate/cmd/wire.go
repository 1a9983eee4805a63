package cmd

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/riskgate/api"
	"github.com/rustyeddy/riskgate/config"
	"github.com/rustyeddy/riskgate/engine"
	"github.com/rustyeddy/riskgate/fetcher"
	"github.com/rustyeddy/riskgate/internal/httpx"
	"github.com/rustyeddy/riskgate/metrics"
	"github.com/rustyeddy/riskgate/provider"
	"github.com/rustyeddy/riskgate/quotestore"
	"github.com/rustyeddy/riskgate/reconcile"
)

// app holds the process-scoped components built from a Config.
type app struct {
	cfg        *config.Config
	store      quotestore.Store
	client     *provider.Client
	fetcher    *fetcher.Fetcher
	reconciler *reconcile.Reconciler
	engine     engine.Engine
	metrics    *metrics.Metrics
}

func openStore(cfg *config.Config) (quotestore.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return quotestore.NewSQLite(cfg.Store.DBPath)
	case "redis":
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		return quotestore.NewRedis(rc, cfg.Store.RedisKey), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newSource(cfg *config.Config, hc *httpx.Client) (provider.Source, error) {
	if hc == nil {
		hc = httpx.New(config.MustDuration(cfg.Provider.Timeout))
	}

	var src provider.Source
	switch cfg.Provider.Name {
	case provider.YahooName:
		src = provider.NewYahooSource(cfg.Provider.BaseURL, hc)
	case provider.PolygonName:
		src = provider.NewPolygonSource(cfg.Provider.APIKey, hc.HTTP, config.MustDuration(cfg.Provider.Lookback))
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
	return provider.NewRateLimited(src, cfg.Provider.RequestsPerMinute, cfg.Provider.Burst), nil
}

// buildApp wires every component. The caller closes a.store.
func buildApp(cfg *config.Config) (*app, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	hc := httpx.New(config.MustDuration(cfg.Provider.Timeout))
	src, err := newSource(cfg, hc)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	m := metrics.New()
	client := provider.NewClient(src, provider.ClientConfig{
		RateSymbol:        cfg.Provider.RateSymbol,
		DefaultRate:       cfg.Provider.DefaultRate,
		DefaultVolatility: cfg.Provider.DefaultVolatility,
		Timeout:           config.MustDuration(cfg.Provider.Timeout),
	})
	f := fetcher.New(store, client,
		fetcher.WithMaxAge(config.MustDuration(cfg.Store.MaxAge)),
		fetcher.WithConcurrency(cfg.Fetcher.Concurrency),
		fetcher.WithTimeout(config.MustDuration(cfg.Fetcher.Timeout)),
		fetcher.WithMetrics(m),
	)

	a := &app{
		cfg:        cfg,
		store:      store,
		client:     client,
		fetcher:    f,
		reconciler: reconcile.New(f, reconcile.WithConcurrency(cfg.Fetcher.Concurrency), reconcile.WithMetrics(m)),
		metrics:    m,
	}
	if cfg.Engine.URL != "" {
		a.engine = engine.NewRemote(cfg.Engine.URL, httpx.New(config.MustDuration(cfg.Engine.Timeout)))
	} else {
		log.Warn("engine.url not set, risk endpoints disabled")
	}
	return a, nil
}

func (a *app) handler() http.Handler {
	return api.New(api.Options{
		Store:        a.store,
		Fetcher:      a.fetcher,
		Reconciler:   a.reconciler,
		Engine:       a.engine,
		Metrics:      a.metrics,
		MaxBatch:     a.cfg.Server.MaxBatch,
		StoreBackend: a.cfg.Store.Backend,
		ProviderName: a.client.Name(),
	}).Handler()
}
