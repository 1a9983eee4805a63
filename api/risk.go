package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/riskgate/engine"
	"github.com/rustyeddy/riskgate/market"
	"github.com/rustyeddy/riskgate/reconcile"
)

type riskRequest struct {
	Portfolio     []engine.Position             `json:"portfolio"`
	MarketData    map[string]market.QuoteInput `json:"market_data"`
	VaRParameters *engine.VaRParams             `json:"var_parameters"`
}

type riskResponse struct {
	engine.RiskResult
	PortfolioSize int      `json:"portfolio_size"`
	AutoResolved  []string `json:"market_data_auto_resolved"`
}

// priceRequest is one instrument plus optional caller market data fields.
type priceRequest struct {
	engine.Instrument
	market.QuoteInput
}

type priceResponse struct {
	engine.Greeks
	MarketData   market.Quote `json:"market_data"`
	AutoResolved []string     `json:"market_data_auto_resolved"`
}

var errEngineUnavailable = errors.New("risk engine not configured")

func (s *Server) handleCalculateRisk(w http.ResponseWriter, r *http.Request) {
	var req riskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Portfolio) == 0 {
		writeError(w, http.StatusBadRequest, "portfolio cannot be empty")
		return
	}
	for i := range req.Portfolio {
		if err := req.Portfolio[i].Normalize(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("portfolio[%d]: %v", i, err))
			return
		}
	}
	vp := engine.DefaultVaRParams()
	if req.VaRParameters != nil {
		vp = req.VaRParameters.WithDefaults()
	}
	if err := vp.Validate(); err != nil {
		writeFailure(w, err)
		return
	}
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineUnavailable.Error())
		return
	}

	res, err := s.reconciler.Reconcile(r.Context(), reconcile.ObjectLevel, reconcile.Request{
		Universe: engine.Universe(req.Portfolio),
		Supplied: req.MarketData,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	rr, err := s.engine.PortfolioRisk(r.Context(), req.Portfolio, res.Quotes, vp)
	if err != nil {
		log.WithError(err).WithField("request_id", RequestID(r.Context())).Warn("portfolio risk failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, riskResponse{
		RiskResult:    rr,
		PortfolioSize: len(req.Portfolio),
		AutoResolved:  res.AutoResolved,
	})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Instrument.Normalize(); err != nil {
		writeFailure(w, err)
		return
	}
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineUnavailable.Error())
		return
	}

	id := req.Instrument.AssetID
	res, err := s.reconciler.Reconcile(r.Context(), reconcile.FieldLevel, reconcile.Request{
		Universe: []string{id},
		Supplied: map[string]market.QuoteInput{id: req.QuoteInput},
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	q := res.Quotes[id]
	g, err := s.engine.Price(r.Context(), req.Instrument, q)
	if err != nil {
		log.WithError(err).WithField("request_id", RequestID(r.Context())).Warn("pricing failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		Greeks:       g,
		MarketData:   q,
		AutoResolved: res.AutoResolved,
	})
}
