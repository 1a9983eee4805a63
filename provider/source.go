// Package provider turns raw market-data provider responses into quotes.
package provider

import (
	"context"
	"net/http"

	"github.com/rustyeddy/riskgate/market"
)

// Snapshot is the raw data a provider returns for one symbol. Any field may
// be missing; Client decides how to fill the gaps.
type Snapshot struct {
	Symbol string
	// Price is the live/current price, if the provider reported one.
	Price *float64
	// Daily holds trailing daily bars, oldest first.
	Daily []market.Candle
	// DividendYield is the annual yield as a decimal, if known.
	DividendYield *float64
}

// LastClose returns the most recent positive daily close.
func (s Snapshot) LastClose() (float64, bool) {
	for i := len(s.Daily) - 1; i >= 0; i-- {
		if s.Daily[i].Close > 0 {
			return s.Daily[i].Close, true
		}
	}
	return 0, false
}

// Source is an external market-data provider.
//
//go:generate mockgen -package=provider -destination=mock_source_test.go -source=source.go Source
type Source interface {
	Name() string
	Snapshot(ctx context.Context, symbol string) (Snapshot, error)
}

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
