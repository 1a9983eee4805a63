package provider

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const aaplChart = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "currency": "USD", "regularMarketPrice": 175.5},
      "timestamp": [1704153600, 1704240000, 1704326400],
      "events": {"dividends": {
        "1707494400": {"amount": 0.24, "date": 1707494400},
        "1715347200": {"amount": 0.25, "date": 1715347200}
      }},
      "indicators": {"quote": [{
        "open":   [170.0, 171.0, 172.0],
        "high":   [171.0, 172.0, 173.0],
        "low":    [169.0, 170.0, 171.0],
        "close":  [170.5, null, 172.5],
        "volume": [1000, 2000, 3000]
      }]}
    }],
    "error": null
  }
}`

func TestYahooSnapshot_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "div", r.URL.Query().Get("events"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(aaplChart))
	}))
	defer server.Close()

	y := NewYahooSource(server.URL, server.Client())
	snap, err := y.Snapshot(t.Context(), "AAPL")
	require.NoError(t, err)

	require.NotNil(t, snap.Price)
	assert.Equal(t, 175.5, *snap.Price)

	require.Len(t, snap.Daily, 2, "null closes are skipped")
	assert.Equal(t, 170.5, snap.Daily[0].Close)
	assert.Equal(t, 172.5, snap.Daily[1].Close)
	assert.Equal(t, int64(1704326400), snap.Daily[1].Unix())

	require.NotNil(t, snap.DividendYield)
	assert.InDelta(t, 0.49/175.5, *snap.DividendYield, 1e-12)
}

func TestYahooSnapshot_UnknownSymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer server.Close()

	y := NewYahooSource(server.URL, server.Client())
	_, err := y.Snapshot(t.Context(), "INVALID_XYZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol may be delisted")
}

func TestYahooSnapshot_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("Too Many Requests"))
	}))
	defer server.Close()

	y := NewYahooSource(server.URL, server.Client())
	_, err := y.Snapshot(t.Context(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestYahooSnapshot_EscapesIndexSymbol(t *testing.T) {
	ctrl := gomock.NewController(t)
	hc := NewMockHTTPClient(ctrl)

	hc.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			assert.True(t, strings.HasPrefix(req.URL.String(), "http://yahoo.test/v8/finance/chart/%5ETNX"), req.URL.String())

			buffer := &bytes.Buffer{}
			require.NoError(t, json.NewEncoder(buffer).Encode(map[string]any{
				"chart": map[string]any{
					"result": []any{map[string]any{"meta": map[string]any{"regularMarketPrice": 4.25}}},
				},
			}))
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(buffer)}, nil
		}).
		Times(1)

	y := NewYahooSource("http://yahoo.test/", hc)
	snap, err := y.Snapshot(t.Context(), DefaultRateSymbol)
	require.NoError(t, err)
	require.NotNil(t, snap.Price)
	assert.Equal(t, 4.25, *snap.Price)
	assert.Nil(t, snap.DividendYield)
}
