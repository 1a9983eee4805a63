package quotestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/riskgate/market"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func aapl() market.Quote {
	return market.Quote{
		AssetID:       "AAPL",
		Spot:          175.50,
		Volatility:    0.28,
		RiskFreeRate:  0.045,
		DividendYield: 0.005,
		Source:        "yahoo",
	}
}

// runStoreSuite exercises the Store contract against any backend.
func runStoreSuite(t *testing.T, newStore func(t *testing.T, clock *testClock) Store) {
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		written, err := s.Put(ctx, aapl())
		require.NoError(t, err)
		assert.True(t, written.LastUpdated.Equal(clock.Now()))

		got, ok, err := s.Get(ctx, "AAPL", DefaultMaxAge)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "AAPL", got.AssetID)
		assert.InDelta(t, 175.50, got.Spot, 1e-9)
		assert.InDelta(t, 0.28, got.Volatility, 1e-9)
		assert.InDelta(t, 0.045, got.RiskFreeRate, 1e-9)
		assert.InDelta(t, 0.005, got.DividendYield, 1e-9)
		assert.Equal(t, "yahoo", got.Source)
		assert.True(t, got.LastUpdated.Equal(clock.Now()))
	})

	t.Run("miss when absent", func(t *testing.T) {
		s := newStore(t, newTestClock())
		_, ok, err := s.Get(ctx, "NOPE", DefaultMaxAge)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("idempotent overwrite", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		_, err := s.Put(ctx, aapl())
		require.NoError(t, err)

		clock.Advance(time.Minute)
		next := market.Quote{AssetID: "AAPL", Spot: 180.00, Volatility: 0.30, RiskFreeRate: 0.05, Source: "polygon"}
		_, err = s.Put(ctx, next)
		require.NoError(t, err)

		got, ok, err := s.Get(ctx, "AAPL", DefaultMaxAge)
		require.NoError(t, err)
		require.True(t, ok)
		assert.InDelta(t, 180.00, got.Spot, 1e-9)
		assert.InDelta(t, 0.30, got.Volatility, 1e-9)
		assert.InDelta(t, 0.05, got.RiskFreeRate, 1e-9)
		assert.InDelta(t, 0.0, got.DividendYield, 1e-9)
		assert.Equal(t, "polygon", got.Source)
		assert.True(t, got.LastUpdated.Equal(clock.Now()))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("age monotonicity", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		_, err := s.Put(ctx, aapl())
		require.NoError(t, err)

		_, ok, err := s.Get(ctx, "AAPL", 0)
		require.NoError(t, err)
		assert.True(t, ok, "zero elapsed time is within max age 0")

		clock.Advance(time.Nanosecond)
		_, ok, err = s.Get(ctx, "AAPL", 0)
		require.NoError(t, err)
		assert.False(t, ok, "any elapsed time is older than max age 0")

		clock.Advance(time.Hour - time.Nanosecond)
		_, ok, err = s.Get(ctx, "AAPL", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		clock.Advance(time.Second)
		_, ok, err = s.Get(ctx, "AAPL", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Contains(t, all, "AAPL", "GetAll ignores age")
	})

	t.Run("rejects malformed quote", func(t *testing.T) {
		s := newStore(t, newTestClock())
		_, err := s.Put(ctx, market.Quote{AssetID: "AAPL"})
		require.Error(t, err)
		assert.True(t, market.IsKind(err, market.ValidationFailure))
	})

	t.Run("get all", func(t *testing.T) {
		s := newStore(t, newTestClock())
		_, err := s.Put(ctx, aapl())
		require.NoError(t, err)
		_, err = s.Put(ctx, market.Quote{AssetID: "GOOGL", Spot: 140, Volatility: 0.3, RiskFreeRate: 0.045})
		require.NoError(t, err)

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Contains(t, all, "AAPL")
		assert.Contains(t, all, "GOOGL")
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t, newTestClock())
		_, err := s.Put(ctx, aapl())
		require.NoError(t, err)

		ok, err := s.Delete(ctx, "AAPL")
		require.NoError(t, err)
		assert.True(t, ok)

		_, found, err := s.Get(ctx, "AAPL", DefaultMaxAge)
		require.NoError(t, err)
		assert.False(t, found)

		ok, err = s.Delete(ctx, "AAPL")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		s := newStore(t, newTestClock())
		require.NoError(t, s.Clear(ctx), "clearing an empty store succeeds")

		_, err := s.Put(ctx, aapl())
		require.NoError(t, err)
		require.NoError(t, s.Clear(ctx))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		require.NoError(t, s.Clear(ctx))
		require.NoError(t, s.Ping(ctx))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := newStore(t, newTestClock())

		var wg sync.WaitGroup
		for i := 1; i <= 16; i++ {
			wg.Add(1)
			go func(spot float64) {
				defer wg.Done()
				q := aapl()
				q.Spot = spot
				_, err := s.Put(ctx, q)
				assert.NoError(t, err)
			}(float64(i))
		}
		wg.Wait()

		got, ok, err := s.Get(ctx, "AAPL", DefaultMaxAge)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, got.Spot >= 1 && got.Spot <= 16)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
