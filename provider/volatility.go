package provider

import (
	"math"

	"github.com/montanaflynn/stats"
)

const (
	TradingDaysPerYear = 252
	// MinObservations is the fewest daily closes a volatility estimate uses.
	MinObservations = 30

	DefaultVolatility = 0.25
	MinVolatility     = 0.01
	MaxVolatility     = 2.0
)

// HistoricalVolatility is the annualized sample standard deviation of the
// daily percentage returns in closes. It returns fallback when there are
// fewer than MinObservations closes or the estimate cannot be computed.
// The result is clamped to [MinVolatility, MaxVolatility].
func HistoricalVolatility(closes []float64, fallback float64) float64 {
	if len(closes) < MinObservations {
		return ClampVolatility(fallback)
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, (closes[i]-prev)/prev)
	}
	if len(returns) < 2 {
		return ClampVolatility(fallback)
	}

	sd, err := stats.StandardDeviationSample(returns)
	if err != nil || math.IsNaN(sd) || math.IsInf(sd, 0) {
		return ClampVolatility(fallback)
	}
	return AnnualizedClamp(sd)
}

// AnnualizedClamp scales a daily standard deviation to a year and clamps it.
func AnnualizedClamp(dailyStdev float64) float64 {
	return ClampVolatility(dailyStdev * math.Sqrt(TradingDaysPerYear))
}

func ClampVolatility(v float64) float64 {
	return math.Max(MinVolatility, math.Min(MaxVolatility, v))
}
