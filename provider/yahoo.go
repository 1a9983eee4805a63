package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rustyeddy/riskgate/market"
)

const (
	// YahooURL is the public Yahoo Finance query host.
	YahooURL = "https://query1.finance.yahoo.com"
	// YahooName is the provenance tag for quotes built from Yahoo data.
	YahooName = "yahoo"
)

// YahooSource reads the v8 chart endpoint: one request returns the live
// price, a year of daily closes and the dividend events in that year.
type YahooSource struct {
	baseURL    string
	httpClient HTTPClient
	rangeParam string
}

func NewYahooSource(baseURL string, hc HTTPClient) *YahooSource {
	if baseURL == "" {
		baseURL = YahooURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &YahooSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		rangeParam: "1y",
	}
}

func (y *YahooSource) Name() string { return YahooName }

type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

type chartDividend struct {
	Amount float64 `json:"amount"`
	Date   int64   `json:"date"`
}

type chartResult struct {
	Meta struct {
		Symbol             string   `json:"symbol"`
		Currency           string   `json:"currency"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]chartDividend `json:"dividends"`
	} `json:"events"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

// Snapshot fetches the chart for symbol.
func (y *YahooSource) Snapshot(ctx context.Context, symbol string) (Snapshot, error) {
	if symbol == "" {
		return Snapshot{}, fmt.Errorf("symbol is required")
	}

	params := url.Values{}
	params.Set("range", y.rangeParam)
	params.Set("interval", "1d")
	params.Set("events", "div")

	apiURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read response: %w", err)
	}

	var cr chartResponse
	decodeErr := json.Unmarshal(body, &cr)

	if cr.Chart.Error != nil {
		return Snapshot{}, fmt.Errorf("yahoo %s: %s", cr.Chart.Error.Code, cr.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if decodeErr != nil {
		return Snapshot{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	if len(cr.Chart.Result) == 0 {
		return Snapshot{}, fmt.Errorf("no chart data for %s", symbol)
	}

	return snapshotFromChart(symbol, cr.Chart.Result[0]), nil
}

func snapshotFromChart(symbol string, r chartResult) Snapshot {
	snap := Snapshot{Symbol: symbol}
	if r.Meta.RegularMarketPrice != nil && *r.Meta.RegularMarketPrice > 0 {
		p := *r.Meta.RegularMarketPrice
		snap.Price = &p
	}

	if len(r.Indicators.Quote) > 0 {
		q := r.Indicators.Quote[0]
		for i, ts := range r.Timestamp {
			c := at(q.Close, i)
			if c <= 0 {
				continue
			}
			snap.Daily = append(snap.Daily, market.Candle{
				Open:   at(q.Open, i),
				High:   at(q.High, i),
				Low:    at(q.Low, i),
				Close:  c,
				Time:   time.Unix(ts, 0).UTC(),
				Volume: at(q.Volume, i),
			})
		}
	}

	// Trailing-year cash dividends over the reference price.
	ref := 0.0
	if snap.Price != nil {
		ref = *snap.Price
	} else if last, ok := snap.LastClose(); ok {
		ref = last
	}
	if ref > 0 && len(r.Events.Dividends) > 0 {
		total := 0.0
		for _, d := range r.Events.Dividends {
			total += d.Amount
		}
		dy := total / ref
		snap.DividendYield = &dy
	}
	return snap
}

func at(xs []*float64, i int) float64 {
	if i < len(xs) && xs[i] != nil {
		return *xs[i]
	}
	return 0
}
