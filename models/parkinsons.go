package models

import (
	"math"

	"github.com/earnvol/dboundary/marketdata"
)

// CalculateParkinsonsVolatilities estimates annualized volatility per
// standard window from daily high-low ranges. Parkinson's estimator assumes
// driftless continuous trading, so it reads low when overnight gaps carry
// real variance; pair it with Yang-Zhang when that matters.
func CalculateParkinsonsVolatilities(bars []marketdata.Bar) map[string]float64 {
	return byPeriod(bars, func(window []marketdata.Bar) float64 {
		daily := parkinsonNumber(window)
		return daily * math.Sqrt(tradingDaysPerYear)
	})
}

// parkinsonNumber is the per-day volatility sqrt(sum(ln(H/L)^2) / (4 n ln2)).
func parkinsonNumber(bars []marketdata.Bar) float64 {
	n := len(bars)
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		logRange := math.Log(b.High / b.Low)
		sum += logRange * logRange
	}
	return math.Sqrt(sum / (4 * float64(n) * math.Ln2))
}
