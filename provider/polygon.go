package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/riskgate/market"
)

const PolygonName = "polygon"

// PolygonSource reads daily aggregates and the last trade from Polygon.
// Polygon reports no dividend yield here, so Client falls back to zero.
type PolygonSource struct {
	Client   *polygon.Client
	Lookback time.Duration
	now      func() time.Time
}

func NewPolygonSource(apiKey string, hc *http.Client, lookback time.Duration) *PolygonSource {
	if lookback <= 0 {
		lookback = 365 * 24 * time.Hour
	}
	var c *polygon.Client
	if hc != nil {
		c = polygon.NewWithClient(apiKey, hc)
	} else {
		c = polygon.New(apiKey)
	}
	return &PolygonSource{Client: c, Lookback: lookback, now: time.Now}
}

func (p *PolygonSource) Name() string { return PolygonName }

func (p *PolygonSource) Snapshot(ctx context.Context, symbol string) (Snapshot, error) {
	if symbol == "" {
		return Snapshot{}, fmt.Errorf("symbol is required")
	}

	to := p.now().UTC()
	from := to.Add(-p.Lookback)

	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithOrder(models.Asc).WithAdjusted(true)

	iter := p.Client.ListAggs(ctx, params)

	var aggs []models.Agg
	for iter.Next() {
		aggs = append(aggs, iter.Item())
	}
	if err := iter.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("list aggs: %w", err)
	}

	snap := Snapshot{Symbol: symbol, Daily: candlesFromAggs(aggs)}

	trade, err := p.Client.GetLastTrade(ctx, &models.GetLastTradeParams{Ticker: symbol})
	if err != nil {
		log.WithError(err).WithField("symbol", symbol).Debug("polygon last trade unavailable")
	} else if trade.Results.Price > 0 {
		price := trade.Results.Price
		snap.Price = &price
	}

	return snap, nil
}

func candlesFromAggs(aggs []models.Agg) []market.Candle {
	out := make([]market.Candle, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, market.Candle{
			Open:   a.Open,
			High:   a.High,
			Low:    a.Low,
			Close:  a.Close,
			Time:   time.Time(a.Timestamp).UTC(),
			Volume: a.Volume,
		})
	}
	return out
}
