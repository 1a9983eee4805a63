package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rustyeddy/riskgate/market"
)

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Remote talks to an engine sidecar that accepts JSON on /price and
// /portfolio_risk.
type Remote struct {
	baseURL    string
	httpClient HTTPClient
}

func NewRemote(baseURL string, hc HTTPClient) *Remote {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Remote{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

type priceRequest struct {
	Instrument Instrument   `json:"instrument"`
	MarketData market.Quote `json:"market_data"`
}

type riskRequest struct {
	Portfolio     []Position              `json:"portfolio"`
	MarketData    map[string]market.Quote `json:"market_data"`
	VaRParameters VaRParams               `json:"var_parameters"`
}

func (r *Remote) Price(ctx context.Context, inst Instrument, q market.Quote) (Greeks, error) {
	var g Greeks
	err := r.post(ctx, "/price", priceRequest{Instrument: inst, MarketData: q}, &g)
	return g, err
}

func (r *Remote) PortfolioRisk(ctx context.Context, ps []Position, quotes map[string]market.Quote, vp VaRParams) (RiskResult, error) {
	var rr RiskResult
	err := r.post(ctx, "/portfolio_risk", riskRequest{Portfolio: ps, MarketData: quotes, VaRParameters: vp}, &rr)
	return rr, err
}

func (r *Remote) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("engine error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
