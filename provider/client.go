package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/rustyeddy/riskgate/market"
)

const (
	// DefaultRiskFreeRate approximates the US 10-year Treasury yield.
	DefaultRiskFreeRate = 0.045
	// DefaultRateSymbol is the 10-year Treasury yield index on Yahoo, quoted in percent.
	DefaultRateSymbol = "^TNX"
	// DefaultRateTimeout bounds one reference-rate lookup.
	DefaultRateTimeout = 10 * time.Second
)

type ClientConfig struct {
	// RateSymbol is the reference instrument for the risk-free rate. Empty
	// disables the lookup and DefaultRate is always used.
	RateSymbol        string
	DefaultRate       float64
	DefaultVolatility float64
	// Timeout bounds a rate lookup shared by concurrent quotes.
	Timeout time.Duration
}

// Client derives complete quotes from a Source. Spot price is the only
// field whose absence fails a fetch; everything else degrades to defaults.
type Client struct {
	src Source
	cfg ClientConfig

	// coalesces concurrent reference-rate lookups
	sf singleflight.Group
}

func NewClient(src Source, cfg ClientConfig) *Client {
	if cfg.DefaultRate == 0 {
		cfg.DefaultRate = DefaultRiskFreeRate
	}
	if cfg.DefaultVolatility <= 0 {
		cfg.DefaultVolatility = DefaultVolatility
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRateTimeout
	}
	return &Client{src: src, cfg: cfg}
}

func (c *Client) Name() string { return c.src.Name() }

// Quote fetches symbol from the source and applies the fallback rules.
// The returned error is always a market.ProviderFailure.
func (c *Client) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	snap, err := c.src.Snapshot(ctx, symbol)
	if err != nil {
		return market.Quote{}, market.Provider(symbol, fmt.Errorf("failed to fetch data: %w", err))
	}

	spot, err := spotPrice(symbol, snap)
	if err != nil {
		return market.Quote{}, market.Provider(symbol, err)
	}

	vol := HistoricalVolatility(market.Closes(snap.Daily), c.cfg.DefaultVolatility)
	if len(snap.Daily) < MinObservations {
		log.WithFields(log.Fields{"symbol": symbol, "observations": len(snap.Daily)}).
			Warn("insufficient historical data, using default volatility")
	}

	q := market.Quote{
		AssetID:       symbol,
		Spot:          spot,
		Volatility:    vol,
		RiskFreeRate:  c.RiskFreeRate(ctx),
		DividendYield: dividendYield(snap),
		Source:        strings.ToLower(c.src.Name()),
	}
	return q, nil
}

// RiskFreeRate reads the reference instrument's latest level and converts
// it from percent to a decimal. Any failure yields the configured default.
func (c *Client) RiskFreeRate(ctx context.Context) float64 {
	if c.cfg.RateSymbol == "" {
		return c.cfg.DefaultRate
	}

	ch := c.sf.DoChan(c.cfg.RateSymbol, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		snap, err := c.src.Snapshot(sctx, c.cfg.RateSymbol)
		if err != nil {
			return nil, err
		}
		level, err := spotPrice(c.cfg.RateSymbol, snap)
		if err != nil {
			return nil, err
		}
		return level / 100.0, nil
	})

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(float64)
		}
		err = res.Err
	}
	log.WithError(err).WithField("symbol", c.cfg.RateSymbol).Debug("risk-free rate lookup failed, using default")
	return c.cfg.DefaultRate
}

func spotPrice(symbol string, snap Snapshot) (float64, error) {
	if snap.Price != nil && *snap.Price > 0 {
		return *snap.Price, nil
	}
	if last, ok := snap.LastClose(); ok {
		return last, nil
	}
	return 0, fmt.Errorf("no price data available for %s", symbol)
}

func dividendYield(snap Snapshot) float64 {
	if snap.DividendYield == nil || *snap.DividendYield < 0 {
		return 0
	}
	return *snap.DividendYield
}
