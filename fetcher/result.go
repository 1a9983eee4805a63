package fetcher

import "github.com/rustyeddy/riskgate/market"

// Outcome is the result for one ticker: exactly one of Quote and Err is set.
type Outcome struct {
	Ticker string
	Quote  *market.Quote
	Err    error
}

func (o Outcome) OK() bool { return o.Err == nil && o.Quote != nil }

// Failure is the caller-facing record of a failed ticker.
type Failure struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

// BatchResult holds one outcome per distinct requested ticker.
type BatchResult struct {
	Outcomes []Outcome
}

// Successful returns the fetched quotes keyed by asset id.
func (b BatchResult) Successful() map[string]market.Quote {
	out := make(map[string]market.Quote)
	for _, o := range b.Outcomes {
		if o.OK() {
			out[o.Ticker] = *o.Quote
		}
	}
	return out
}

func (b BatchResult) Failed() []Failure {
	out := []Failure{}
	for _, o := range b.Outcomes {
		if !o.OK() {
			msg := "unknown error"
			if o.Err != nil {
				msg = o.Err.Error()
			}
			out = append(out, Failure{Ticker: o.Ticker, Error: msg})
		}
	}
	return out
}

func (b BatchResult) Total() int { return len(b.Outcomes) }
