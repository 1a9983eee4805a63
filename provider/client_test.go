package provider

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rustyeddy/riskgate/market"
)

func daily(closes []float64) []market.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Close: c, Time: start.AddDate(0, 0, i)}
	}
	return out
}

func newMockClient(t *testing.T, cfg ClientConfig) (*Client, *MockSource) {
	t.Helper()

	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().Name().Return("Yahoo").AnyTimes()
	return NewClient(src, cfg), src
}

func TestClientQuote_LivePrice(t *testing.T) {
	t.Parallel()

	c, src := newMockClient(t, ClientConfig{RateSymbol: DefaultRateSymbol})

	closes := series(60, func(i int) float64 { return 100 + 2*math.Sin(float64(i)) })
	src.EXPECT().Snapshot(gomock.Any(), "AAPL").Return(Snapshot{
		Symbol:        "AAPL",
		Price:         market.Float(175.5),
		Daily:         daily(closes),
		DividendYield: market.Float(0.005),
	}, nil)
	src.EXPECT().Snapshot(gomock.Any(), DefaultRateSymbol).Return(Snapshot{
		Symbol: DefaultRateSymbol,
		Price:  market.Float(4.25),
	}, nil)

	q, err := c.Quote(t.Context(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", q.AssetID)
	assert.Equal(t, 175.5, q.Spot)
	assert.InDelta(t, HistoricalVolatility(closes, DefaultVolatility), q.Volatility, 1e-12)
	assert.InDelta(t, 0.0425, q.RiskFreeRate, 1e-12)
	assert.Equal(t, 0.005, q.DividendYield)
	assert.Equal(t, "yahoo", q.Source)
}

func TestClientQuote_FallsBackToLastClose(t *testing.T) {
	t.Parallel()

	c, src := newMockClient(t, ClientConfig{})
	src.EXPECT().Snapshot(gomock.Any(), "MSFT").Return(Snapshot{
		Symbol: "MSFT",
		Daily:  daily([]float64{370, 372, 0}),
	}, nil)

	q, err := c.Quote(t.Context(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 372.0, q.Spot)
	assert.Equal(t, DefaultVolatility, q.Volatility, "fewer than 30 observations")
	assert.Equal(t, DefaultRiskFreeRate, q.RiskFreeRate, "no rate symbol configured")
	assert.Equal(t, 0.0, q.DividendYield, "missing dividend defaults to zero")
}

func TestClientQuote_NoPriceIsProviderFailure(t *testing.T) {
	t.Parallel()

	c, src := newMockClient(t, ClientConfig{})
	src.EXPECT().Snapshot(gomock.Any(), "INVALID_XYZ").Return(Snapshot{Symbol: "INVALID_XYZ"}, nil)

	_, err := c.Quote(t.Context(), "INVALID_XYZ")
	require.Error(t, err)
	assert.True(t, market.IsKind(err, market.ProviderFailure))
	assert.Contains(t, err.Error(), "no price data available for INVALID_XYZ")
}

func TestClientQuote_SourceErrorIsProviderFailure(t *testing.T) {
	t.Parallel()

	c, src := newMockClient(t, ClientConfig{})
	src.EXPECT().Snapshot(gomock.Any(), "AAPL").Return(Snapshot{}, errors.New("connection reset"))

	_, err := c.Quote(t.Context(), "AAPL")
	require.Error(t, err)
	assert.True(t, market.IsKind(err, market.ProviderFailure))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestClientQuote_RateFailureUsesDefault(t *testing.T) {
	t.Parallel()

	c, src := newMockClient(t, ClientConfig{RateSymbol: DefaultRateSymbol, DefaultRate: 0.03})
	src.EXPECT().Snapshot(gomock.Any(), "AAPL").Return(Snapshot{Price: market.Float(100)}, nil)
	src.EXPECT().Snapshot(gomock.Any(), DefaultRateSymbol).Return(Snapshot{}, errors.New("boom"))

	q, err := c.Quote(t.Context(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 0.03, q.RiskFreeRate)
}

func TestClientQuote_RateFromLastClose(t *testing.T) {
	t.Parallel()

	c, src := newMockClient(t, ClientConfig{RateSymbol: DefaultRateSymbol})
	src.EXPECT().Snapshot(gomock.Any(), "AAPL").Return(Snapshot{Price: market.Float(100)}, nil)
	src.EXPECT().Snapshot(gomock.Any(), DefaultRateSymbol).Return(Snapshot{Daily: daily([]float64{4.0, 4.5})}, nil)

	q, err := c.Quote(t.Context(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 0.045, q.RiskFreeRate, 1e-12)
}

func TestClientQuote_NegativeDividendFloored(t *testing.T) {
	t.Parallel()

	c, src := newMockClient(t, ClientConfig{})
	src.EXPECT().Snapshot(gomock.Any(), "AAPL").Return(Snapshot{
		Price:         market.Float(100),
		DividendYield: market.Float(-0.01),
	}, nil)

	q, err := c.Quote(t.Context(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 0.0, q.DividendYield)
}

func TestRiskFreeRate_CancelledCallerDoesNotFailOthers(t *testing.T) {
	t.Parallel()

	c, src := newMockClient(t, ClientConfig{RateSymbol: DefaultRateSymbol})
	started := make(chan struct{})
	release := make(chan struct{})
	src.EXPECT().Snapshot(gomock.Any(), DefaultRateSymbol).DoAndReturn(
		func(ctx context.Context, _ string) (Snapshot, error) {
			close(started)
			select {
			case <-ctx.Done():
				return Snapshot{}, ctx.Err()
			case <-release:
			}
			return Snapshot{Price: market.Float(4.25)}, nil
		})

	ctxA, cancelA := context.WithCancel(context.Background())
	rateA := make(chan float64, 1)
	go func() { rateA <- c.RiskFreeRate(ctxA) }()
	<-started

	rateB := make(chan float64, 1)
	go func() { rateB <- c.RiskFreeRate(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.Equal(t, DefaultRiskFreeRate, <-rateA)

	close(release)
	assert.InDelta(t, 0.0425, <-rateB, 1e-12)
}
