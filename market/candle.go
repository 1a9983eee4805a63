package market

import "time"

// Candle represents OHLC (Open, High, Low, Close) daily bar data.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	time.Time
	Volume float64
}

// Closes returns the close prices of cs in order, skipping non-positive values.
func Closes(cs []Candle) []float64 {
	out := make([]float64, 0, len(cs))
	for _, c := range cs {
		if c.Close > 0 {
			out = append(out, c.Close)
		}
	}
	return out
}
