// Package marketdata defines the snapshot input format: a spot quote,
// curve levels, and the daily bar history used for realized-volatility
// estimation. Snapshots are plain JSON files prepared upstream; this
// package never fetches anything.
package marketdata

import (
	"fmt"
	"math"
)

// Bar is one daily OHLCV record.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int     `json:"volume"`
}

// Snapshot is the full market state for one underlying at one instant.
type Snapshot struct {
	Symbol        string  `json:"symbol"`
	Spot          float64 `json:"spot"`
	RiskFreeRate  float64 `json:"risk_free_rate"`
	DividendYield float64 `json:"dividend_yield"`
	Bars          []Bar   `json:"bars"`
}

// Validate checks the snapshot for values the pricing layer cannot use.
func (s *Snapshot) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("snapshot has no symbol")
	}
	if !(s.Spot > 0) {
		return fmt.Errorf("snapshot %s: spot must be positive, got %g", s.Symbol, s.Spot)
	}
	if math.IsNaN(s.RiskFreeRate) || math.IsInf(s.RiskFreeRate, 0) {
		return fmt.Errorf("snapshot %s: risk-free rate is not finite", s.Symbol)
	}
	if math.IsNaN(s.DividendYield) || math.IsInf(s.DividendYield, 0) {
		return fmt.Errorf("snapshot %s: dividend yield is not finite", s.Symbol)
	}
	for i, b := range s.Bars {
		if !(b.Open > 0) || !(b.High > 0) || !(b.Low > 0) || !(b.Close > 0) {
			return fmt.Errorf("snapshot %s: bar %d (%s) has non-positive prices", s.Symbol, i, b.Date)
		}
		if b.High < b.Low {
			return fmt.Errorf("snapshot %s: bar %d (%s) has high below low", s.Symbol, i, b.Date)
		}
	}
	return nil
}

// Closes returns the close series in bar order.
func (s *Snapshot) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}
