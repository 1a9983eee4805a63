package market

import (
	"fmt"
	"strings"
	"time"
)

// Provenance tags recorded in Quote.Source.
const (
	SourceCaller = "caller-supplied"
	SourceManual = "manual"
)

// Quote is a market-data snapshot for one asset.
type Quote struct {
	AssetID       string    `json:"asset_id"`
	Spot          float64   `json:"spot"`
	Volatility    float64   `json:"vol"`
	RiskFreeRate  float64   `json:"rate"`
	DividendYield float64   `json:"dividend"`
	LastUpdated   time.Time `json:"last_updated"`
	Source        string    `json:"source"`
}

// Validate reports whether q can be stored.
func (q Quote) Validate() error {
	if q.AssetID == "" {
		return Validation("", fmt.Errorf("asset_id is required"))
	}
	if q.Spot <= 0 {
		return Validation(q.AssetID, fmt.Errorf("spot must be positive, got %v", q.Spot))
	}
	if q.Volatility < 0 {
		return Validation(q.AssetID, fmt.Errorf("volatility must be non-negative, got %v", q.Volatility))
	}
	if q.DividendYield < 0 {
		return Validation(q.AssetID, fmt.Errorf("dividend yield must be non-negative, got %v", q.DividendYield))
	}
	return nil
}

// Age returns how long ago q was written, measured at now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.LastUpdated)
}

// QuoteInput is a caller-supplied quote in which any field may be missing.
type QuoteInput struct {
	Spot          *float64 `json:"spot,omitempty"`
	Volatility    *float64 `json:"vol,omitempty"`
	RiskFreeRate  *float64 `json:"rate,omitempty"`
	DividendYield *float64 `json:"dividend,omitempty"`
}

// IsEmpty is true when the caller set no field at all.
func (in QuoteInput) IsEmpty() bool {
	return in.Spot == nil && in.Volatility == nil && in.RiskFreeRate == nil && in.DividendYield == nil
}

// IsComplete is true when every field is set.
func (in QuoteInput) IsComplete() bool {
	return in.Spot != nil && in.Volatility != nil && in.RiskFreeRate != nil && in.DividendYield != nil
}

// Verbatim converts in to a Quote without consulting any other source.
// Missing fields are left at zero.
func (in QuoteInput) Verbatim(assetID string) Quote {
	q := Quote{AssetID: assetID, Source: SourceCaller}
	if in.Spot != nil {
		q.Spot = *in.Spot
	}
	if in.Volatility != nil {
		q.Volatility = *in.Volatility
	}
	if in.RiskFreeRate != nil {
		q.RiskFreeRate = *in.RiskFreeRate
	}
	if in.DividendYield != nil {
		q.DividendYield = *in.DividendYield
	}
	return q
}

// Overlay returns base with every field set in in replacing base's value.
// When any field is replaced the source becomes "<base source>+caller-supplied".
func (in QuoteInput) Overlay(base Quote) Quote {
	out := base
	if !in.IsEmpty() {
		out.Source = mergedSource(base.Source)
	}
	if in.Spot != nil {
		out.Spot = *in.Spot
	}
	if in.Volatility != nil {
		out.Volatility = *in.Volatility
	}
	if in.RiskFreeRate != nil {
		out.RiskFreeRate = *in.RiskFreeRate
	}
	if in.DividendYield != nil {
		out.DividendYield = *in.DividendYield
	}
	return out
}

func mergedSource(base string) string {
	if base == "" {
		return SourceCaller
	}
	return base + "+" + SourceCaller
}

// NormalizeAssetID trims and upper-cases id. An empty result is a validation failure.
func NormalizeAssetID(id string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(id))
	if n == "" {
		return "", Validation("", fmt.Errorf("ticker symbol cannot be empty"))
	}
	return n, nil
}

// Float returns a pointer to v. Handy for building QuoteInput values.
func Float(v float64) *float64 {
	return &v
}
