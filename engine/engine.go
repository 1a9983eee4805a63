// Package engine defines the contract with the external option pricing and
// portfolio risk engine, plus a JSON-over-HTTP adapter for it.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustyeddy/riskgate/market"
)

type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

type ExerciseStyle string

const (
	European ExerciseStyle = "european"
	American ExerciseStyle = "american"
)

// Instrument is a vanilla option on one underlying.
type Instrument struct {
	Type    OptionType    `json:"type"`
	Strike  float64       `json:"strike"`
	Expiry  float64       `json:"expiry"` // years to expiry
	AssetID string        `json:"asset_id"`
	Style   ExerciseStyle `json:"style,omitempty"`
}

// Normalize lower-cases the type and style, upper-cases the asset id and
// checks the instrument is priceable.
func (i *Instrument) Normalize() error {
	i.Type = OptionType(strings.ToLower(strings.TrimSpace(string(i.Type))))
	i.Style = ExerciseStyle(strings.ToLower(strings.TrimSpace(string(i.Style))))
	if i.Style == "" {
		i.Style = European
	}

	id, err := market.NormalizeAssetID(i.AssetID)
	if err != nil {
		return market.Validation("", fmt.Errorf("asset_id is required"))
	}
	i.AssetID = id

	switch {
	case i.Type != Call && i.Type != Put:
		return market.Validation(id, fmt.Errorf("type must be call or put, got %q", i.Type))
	case i.Style != European && i.Style != American:
		return market.Validation(id, fmt.Errorf("style must be european or american, got %q", i.Style))
	case i.Strike <= 0:
		return market.Validation(id, fmt.Errorf("strike must be positive"))
	case i.Expiry <= 0:
		return market.Validation(id, fmt.Errorf("expiry must be positive"))
	}
	return nil
}

// Position is a signed quantity of an instrument.
type Position struct {
	Instrument
	Quantity float64 `json:"quantity"`
}

// Universe returns the distinct asset ids referenced by ps, in order.
func Universe(ps []Position) []string {
	seen := make(map[string]bool, len(ps))
	var out []string
	for _, p := range ps {
		if !seen[p.AssetID] {
			seen[p.AssetID] = true
			out = append(out, p.AssetID)
		}
	}
	return out
}

// VaRParams controls the Monte Carlo value-at-risk run.
type VaRParams struct {
	Simulations int     `json:"simulations"`
	Confidence  float64 `json:"confidence"`
	TimeHorizon float64 `json:"time_horizon"` // years
	Seed        *uint64 `json:"seed,omitempty"`
}

// DefaultVaRParams is a one-day 95% VaR over 10,000 paths.
func DefaultVaRParams() VaRParams {
	return VaRParams{Simulations: 10000, Confidence: 0.95, TimeHorizon: 1.0 / 252.0}
}

// WithDefaults fills zero fields from DefaultVaRParams.
func (p VaRParams) WithDefaults() VaRParams {
	d := DefaultVaRParams()
	if p.Simulations <= 0 {
		p.Simulations = d.Simulations
	}
	if p.Confidence <= 0 {
		p.Confidence = d.Confidence
	}
	if p.TimeHorizon <= 0 {
		p.TimeHorizon = d.TimeHorizon
	}
	return p
}

func (p VaRParams) Validate() error {
	if p.Confidence <= 0 || p.Confidence >= 1 {
		return market.Validation("", fmt.Errorf("confidence must be between 0 and 1"))
	}
	if p.Simulations > 1_000_000 {
		return market.Validation("", fmt.Errorf("simulations must not exceed 1000000"))
	}
	return nil
}

type Greeks struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
}

type RiskResult struct {
	TotalPV       float64 `json:"total_pv"`
	TotalDelta    float64 `json:"total_delta"`
	TotalGamma    float64 `json:"total_gamma"`
	TotalVega     float64 `json:"total_vega"`
	TotalTheta    float64 `json:"total_theta"`
	ValueAtRisk95 float64 `json:"value_at_risk_95"`
}

// Engine prices instruments and portfolios against complete quotes.
type Engine interface {
	Price(ctx context.Context, inst Instrument, q market.Quote) (Greeks, error)
	PortfolioRisk(ctx context.Context, ps []Position, quotes map[string]market.Quote, vp VaRParams) (RiskResult, error)
}
