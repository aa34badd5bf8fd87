package models

import (
	"math"

	"github.com/earnvol/dboundary/marketdata"
)

// CalculateGarmanKlassVolatilities estimates annualized volatility per
// standard window with the Garman-Klass estimator, combining the high-low
// range with the open-close move.
func CalculateGarmanKlassVolatilities(bars []marketdata.Bar) map[string]float64 {
	return byPeriod(bars, func(window []marketdata.Bar) float64 {
		variance := garmanKlassVariance(window)
		if variance <= 0 {
			return 0
		}
		return math.Sqrt(variance * tradingDaysPerYear)
	})
}

// garmanKlassVariance is the mean daily term
// 0.5 ln(H/L)^2 - (2 ln2 - 1) ln(C/O)^2.
func garmanKlassVariance(bars []marketdata.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		hl := math.Log(b.High / b.Low)
		co := math.Log(b.Close / b.Open)
		sum += 0.5*hl*hl - (2*math.Ln2-1)*co*co
	}
	return sum / float64(len(bars))
}
