package models

import (
	"math"

	"github.com/earnvol/dboundary/marketdata"
)

// CalculateRogersSatchellVolatility estimates annualized volatility per
// standard window with the Rogers-Satchell estimator, which is exact under
// geometric Brownian motion with any drift.
func CalculateRogersSatchellVolatility(bars []marketdata.Bar) map[string]float64 {
	return byPeriod(bars, func(window []marketdata.Bar) float64 {
		variance := rogersSatchellVariance(window)
		if variance <= 0 {
			return 0
		}
		return math.Sqrt(variance * tradingDaysPerYear)
	})
}

// rogersSatchellVariance is the mean daily Rogers-Satchell term
// ln(H/C)ln(H/O) + ln(L/C)ln(L/O).
func rogersSatchellVariance(bars []marketdata.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += math.Log(b.High/b.Close)*math.Log(b.High/b.Open) +
			math.Log(b.Low/b.Close)*math.Log(b.Low/b.Open)
	}
	return sum / float64(len(bars))
}
