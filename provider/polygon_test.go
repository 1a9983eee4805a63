package provider

import (
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandlesFromAggs(t *testing.T) {
	ts := time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC)
	aggs := []models.Agg{
		{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100, Timestamp: models.Millis(ts)},
		{Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 200, Timestamp: models.Millis(ts.AddDate(0, 0, 1))},
	}

	cs := candlesFromAggs(aggs)
	require.Len(t, cs, 2)
	assert.Equal(t, 1.5, cs[0].Close)
	assert.True(t, cs[0].Time.Equal(ts))
	assert.Equal(t, 200.0, cs[1].Volume)
}

func TestNewPolygonSourceDefaults(t *testing.T) {
	p := NewPolygonSource("key", nil, 0)
	assert.Equal(t, PolygonName, p.Name())
	assert.Equal(t, 365*24*time.Hour, p.Lookback)
	assert.NotNil(t, p.Client)

	_, err := p.Snapshot(t.Context(), "")
	assert.Error(t, err)
}
