// Package api exposes the market data layer and the risk endpoints over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rustyeddy/riskgate/engine"
	"github.com/rustyeddy/riskgate/fetcher"
	"github.com/rustyeddy/riskgate/metrics"
	"github.com/rustyeddy/riskgate/quotestore"
	"github.com/rustyeddy/riskgate/reconcile"
)

// DefaultMaxBatch is the largest ticker list /update_market_data accepts.
const DefaultMaxBatch = 50

// Options carries the process-scoped collaborators. Engine may be nil, in
// which case the risk endpoints answer 503.
type Options struct {
	Store        quotestore.Store
	Fetcher      *fetcher.Fetcher
	Reconciler   *reconcile.Reconciler
	Engine       engine.Engine
	Metrics      *metrics.Metrics
	MaxBatch     int
	StoreBackend string
	ProviderName string
}

type Server struct {
	store        quotestore.Store
	fetcher      *fetcher.Fetcher
	reconciler   *reconcile.Reconciler
	engine       engine.Engine
	metrics      *metrics.Metrics
	maxBatch     int
	storeBackend string
	providerName string
	now          func() time.Time
}

func New(o Options) *Server {
	if o.MaxBatch <= 0 {
		o.MaxBatch = DefaultMaxBatch
	}
	return &Server{
		store:        o.Store,
		fetcher:      o.Fetcher,
		reconciler:   o.Reconciler,
		engine:       o.Engine,
		metrics:      o.Metrics,
		maxBatch:     o.MaxBatch,
		storeBackend: o.StoreBackend,
		providerName: o.ProviderName,
		now:          time.Now,
	}
}

// Router returns the routes without middleware.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/update_market_data", s.handleUpdateMarketData).Methods(http.MethodPost)
	router.HandleFunc("/get_cached_market_data", s.handleGetCachedMarketData).Methods(http.MethodGet)
	router.HandleFunc("/clear_market_data_cache", s.handleClearMarketDataCache).Methods(http.MethodDelete, http.MethodPost)
	router.HandleFunc("/market_data/{asset_id}", s.handleDeleteMarketData).Methods(http.MethodDelete)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/calculate_risk", s.handleCalculateRisk).Methods(http.MethodPost)
	router.HandleFunc("/price", s.handlePrice).Methods(http.MethodPost)
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return router
}

// Handler returns the full middleware chain around Router.
func (s *Server) Handler() http.Handler {
	return withRequestID(accessLog(recoverPanic(withJSONHeaders(limitBody(s.Router())))))
}
