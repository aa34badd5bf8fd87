package models

import "github.com/earnvol/dboundary/marketdata"

const tradingDaysPerYear = 252

// periodWindows are the trailing windows every realized-volatility estimator
// reports, in trading days.
var periodWindows = []struct {
	name string
	days int
}{
	{"1w", 5},
	{"1m", 21},
	{"3m", 63},
	{"6m", 126},
}

// lastBars returns the trailing window of days bars, or nil when the history
// is too short.
func lastBars(bars []marketdata.Bar, days int) []marketdata.Bar {
	if len(bars) < days {
		return nil
	}
	return bars[len(bars)-days:]
}

// byPeriod evaluates one estimator over every standard window. Windows the
// history cannot fill, and degenerate zero estimates, are left out of the
// result.
func byPeriod(bars []marketdata.Bar, estimate func([]marketdata.Bar) float64) map[string]float64 {
	results := make(map[string]float64)
	for _, period := range periodWindows {
		window := lastBars(bars, period.days)
		if window == nil {
			continue
		}
		if vol := estimate(window); vol != 0 {
			results[period.name] = vol
		}
	}
	return results
}
