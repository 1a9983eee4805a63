package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/riskgate/fetcher"
	"github.com/rustyeddy/riskgate/market"
)

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

type cachedQuery struct {
	AssetID string `schema:"asset_id"`
}

// anyAge makes a store read ignore staleness.
const anyAge = time.Duration(math.MaxInt64)

type updateRequest struct {
	Tickers      json.RawMessage `json:"tickers"`
	ForceRefresh bool            `json:"force_refresh"`
}

type updateSummary struct {
	TotalRequested int `json:"total_requested"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
}

type updateResponse struct {
	Success   bool                    `json:"success"`
	Updated   map[string]market.Quote `json:"updated"`
	Failed    []fetcher.Failure       `json:"failed"`
	Summary   updateSummary           `json:"summary"`
	Timestamp time.Time               `json:"timestamp"`
}

type messageResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// parseTickers requires a JSON array of 1..max strings.
func parseTickers(raw json.RawMessage, max int) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("tickers list is required")
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.New("tickers must be a list")
	}
	if len(items) == 0 {
		return nil, errors.New("tickers list cannot be empty")
	}
	if len(items) > max {
		return nil, fmt.Errorf("maximum %d tickers per request", max)
	}
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("tickers[%d] must be a string", i)
		}
		out[i] = s
	}
	return out, nil
}

func (s *Server) handleUpdateMarketData(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	tickers, err := parseTickers(req.Tickers, s.maxBatch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.WithFields(log.Fields{
		"request_id":    RequestID(r.Context()),
		"tickers":       len(tickers),
		"force_refresh": req.ForceRefresh,
	}).Info("updating market data")

	res := s.fetcher.FetchMultiple(r.Context(), tickers, req.ForceRefresh)
	updated := res.Successful()
	failed := res.Failed()

	resp := updateResponse{
		Success: len(failed) == 0,
		Updated: updated,
		Failed:  failed,
		Summary: updateSummary{
			TotalRequested: res.Total(),
			Successful:     len(updated),
			Failed:         len(failed),
		},
		Timestamp: s.now().UTC(),
	}

	status := http.StatusOK
	if len(failed) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleGetCachedMarketData(w http.ResponseWriter, r *http.Request) {
	var q cachedQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}
	raw := q.AssetID
	if raw == "" {
		all, err := s.store.GetAll(r.Context())
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, all)
		return
	}

	assetID, err := market.NormalizeAssetID(raw)
	if err != nil {
		writeFailure(w, err)
		return
	}
	quote, ok, err := s.store.Get(r.Context(), assetID, anyAge)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No cached data for %s", assetID))
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleClearMarketDataCache(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	log.WithField("request_id", RequestID(r.Context())).Info("market data cache cleared")
	writeJSON(w, http.StatusOK, messageResponse{
		Success:   true,
		Message:   "Market data cache cleared",
		Timestamp: s.now().UTC(),
	})
}

func (s *Server) handleDeleteMarketData(w http.ResponseWriter, r *http.Request) {
	assetID, err := market.NormalizeAssetID(mux.Vars(r)["asset_id"])
	if err != nil {
		writeFailure(w, err)
		return
	}
	ok, err := s.store.Delete(r.Context(), assetID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No cached data for %s", assetID))
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Success:   true,
		Message:   fmt.Sprintf("Removed cached data for %s", assetID),
		Timestamp: s.now().UTC(),
	})
}

type healthFeatures struct {
	MarketDataFetch bool   `json:"market_data_fetch"`
	RiskEngine      bool   `json:"risk_engine"`
	StoreBackend    string `json:"store_backend"`
	Provider        string `json:"provider"`
}

type healthResponse struct {
	Status    string         `json:"status"`
	CacheSize int            `json:"cache_size"`
	Features  healthFeatures `json:"features"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "healthy",
		Features: healthFeatures{
			MarketDataFetch: s.fetcher != nil,
			RiskEngine:      s.engine != nil,
			StoreBackend:    s.storeBackend,
			Provider:        s.providerName,
		},
		Timestamp: s.now().UTC(),
	}

	n, err := s.store.Count(r.Context())
	if err == nil {
		err = s.store.Ping(r.Context())
	}
	if err != nil {
		resp.Status = "degraded"
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	resp.CacheSize = n
	writeJSON(w, http.StatusOK, resp)
}
