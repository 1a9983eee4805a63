// Package metrics provides Prometheus collectors for the market data layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "riskgate"

// Cache lookup results.
const (
	Hit  = "hit"
	Miss = "miss"
)

// Outcome labels for provider calls and reconciliations.
const (
	OK    = "ok"
	Error = "error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups    *prometheus.CounterVec
	providerFetches *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Quote store lookups by result",
			},
			[]string{"result"},
		),
		providerFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_fetches_total",
				Help:      "Provider quote fetches by source and result",
			},
			[]string{"source", "result"},
		),
		reconciliations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliations_total",
				Help:      "Market data reconciliations by mode and result",
			},
			[]string{"mode", "result"},
		),
		fetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of provider quote fetches",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
	}
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := Miss
	if hit {
		result = Hit
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ProviderFetch records one provider call and how long it took.
func (m *Metrics) ProviderFetch(source string, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.providerFetches.WithLabelValues(source, outcome(err)).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(took.Seconds())
}

func (m *Metrics) Reconciliation(mode string, err error) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(mode, outcome(err)).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return Error
	}
	return OK
}
