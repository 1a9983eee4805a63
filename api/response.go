package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/riskgate/market"
	"github.com/rustyeddy/riskgate/reconcile"
)

type errorResponse struct {
	Error            string   `json:"error"`
	UnresolvedAssets []string `json:"unresolved_assets,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeFailure maps a market data error to its HTTP status.
func writeFailure(w http.ResponseWriter, err error) {
	var ue *reconcile.UnresolvedError
	if errors.As(err, &ue) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:            "Market data unavailable for: " + strings.Join(ue.Assets, ", "),
			UnresolvedAssets: ue.Assets,
		})
		return
	}

	switch market.KindOf(err) {
	case market.ValidationFailure:
		writeError(w, http.StatusBadRequest, err.Error())
	case market.ProviderFailure:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
