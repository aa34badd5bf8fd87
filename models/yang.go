package models

import (
	"math"

	"github.com/earnvol/dboundary/marketdata"
)

// CalculateYangZhangVolatility estimates annualized volatility per standard
// window with the Yang-Zhang estimator: overnight variance plus a weighted
// mix of open-to-close and Rogers-Satchell variance, which keeps it
// drift-independent and robust to opening jumps.
func CalculateYangZhangVolatility(bars []marketdata.Bar) map[string]float64 {
	return byPeriod(bars, yangZhang)
}

func yangZhang(bars []marketdata.Bar) float64 {
	n := len(bars)
	if n < 2 {
		return 0
	}
	k := 0.34 / (1.34 + float64(n+1)/float64(n-1))
	variance := overnightVariance(bars) + k*openCloseVariance(bars) + (1-k)*rogersSatchellVariance(bars)
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance * tradingDaysPerYear)
}

// overnightVariance is the sample variance of close-to-open log returns.
func overnightVariance(bars []marketdata.Bar) float64 {
	n := len(bars)
	if n < 2 {
		return 0
	}
	returns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		returns = append(returns, math.Log(bars[i].Open/bars[i-1].Close))
	}
	return sampleVariance(returns)
}

// openCloseVariance is the sample variance of open-to-close log returns.
func openCloseVariance(bars []marketdata.Bar) float64 {
	returns := make([]float64, len(bars))
	for i, b := range bars {
		returns[i] = math.Log(b.Close / b.Open)
	}
	return sampleVariance(returns)
}

func sampleVariance(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	return variance / float64(n-1)
}
