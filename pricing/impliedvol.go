package pricing

import (
	"math"

	"github.com/earnvol/dboundary/numerics"
)

// Implied volatility search bracket and tolerance.
const (
	ivLowerBound = 1e-4
	ivUpperBound = 5.0
	ivTolerance  = 1e-8
)

// SolveImpliedVolatility inverts a pricing function for the volatility that
// reproduces targetPrice. price must be monotone in volatility over the
// bracket, which holds for European and American values alike. A target
// outside the attainable range surfaces as a BracketingError.
func SolveImpliedVolatility(price func(vol float64) float64, targetPrice, lowerVol, upperVol, tolerance float64) (float64, error) {
	return numerics.Brent(func(v float64) float64 {
		return price(v) - targetPrice
	}, lowerVol, upperVol, tolerance, numerics.DefaultBrentIterations)
}

// CalculateImpliedVolatility recovers the volatility that reproduces a
// quoted European price for the option's terms. The ImpliedVolatility field
// of the parameters is ignored.
func (e *Engine) CalculateImpliedVolatility(marketPrice float64, p OptionParameters) (float64, error) {
	pp := p
	pp.ImpliedVolatility = 0
	if err := pp.Validate(); err != nil {
		return 0, err
	}
	if !(marketPrice > 0) || math.IsInf(marketPrice, 0) {
		return 0, &ArgumentError{Field: "market_price", Value: marketPrice, Reason: "must be positive and finite"}
	}
	return SolveImpliedVolatility(func(vol float64) float64 {
		pp.ImpliedVolatility = vol
		return EuropeanPrice(pp)
	}, marketPrice, ivLowerBound, ivUpperBound, ivTolerance)
}
