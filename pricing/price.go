package pricing

import (
	"math"

	"github.com/earnvol/dboundary/numerics"
)

// Price values an American option against a previously solved exercise
// boundary: the European value plus the early-exercise premium integral
// along the frontier. The boundary must come from the same strike,
// maturity, rates and volatility; spot is free, which is what makes cached
// frontiers reusable across spot bumps.
func Price(p OptionParameters, boundary ExerciseBoundary) (float64, error) {
	return priceWithRule(p, boundary, numerics.NewGaussLegendre(DefaultConfig().QuadratureOrder))
}

func priceWithRule(p OptionParameters, boundary ExerciseBoundary, rule *numerics.GaussLegendre) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if boundary == nil {
		return 0, &ArgumentError{Field: "boundary", Value: 0, Reason: "must not be nil"}
	}
	times := boundary.Times()
	horizon := times[len(times)-1]
	if math.Abs(horizon-p.Maturity) > 1e-9*math.Max(1, p.Maturity) {
		return 0, &ArgumentError{Field: "boundary", Value: horizon, Reason: "grid horizon differs from option maturity"}
	}
	if p.ImpliedVolatility < 1e-8 {
		return math.Max(EuropeanPrice(p), p.intrinsic()), nil
	}

	if p.Type == Call {
		// evaluate the rate-swapped dual put; its frontier is the
		// strike-square inversion of the call frontier, rescaled by the
		// dual strike (the call's spot)
		dual := p.dualPut()
		scale := p.Spot * p.Strike
		switch v := boundary.(type) {
		case *SingleBoundary:
			if v.NoEarlyExercise {
				return EuropeanPrice(p), nil
			}
			dx := gridStep(v.T)
			at := func(xi float64) float64 { return scale / interpSqrt(v.Values, dx, xi) }
			return putPremiumValue(dual, at, nil, rule), nil
		case *DoubleBoundary:
			dx := gridStep(v.T)
			upperAt := func(xi float64) float64 { return scale / interpSqrt(v.Lower, dx, xi) }
			lowerAt := func(xi float64) float64 { return scale / interpSqrt(v.Upper, dx, xi) }
			return putPremiumValue(dual, upperAt, lowerAt, rule), nil
		}
		return 0, &ArgumentError{Field: "boundary", Value: 0, Reason: "unknown boundary variant"}
	}

	switch v := boundary.(type) {
	case *SingleBoundary:
		if v.NoEarlyExercise {
			return EuropeanPrice(p), nil
		}
		dx := gridStep(v.T)
		at := func(xi float64) float64 { return interpSqrt(v.Values, dx, xi) }
		return putPremiumValue(p, at, nil, rule), nil
	case *DoubleBoundary:
		dx := gridStep(v.T)
		upperAt := func(xi float64) float64 { return interpSqrt(v.Upper, dx, xi) }
		lowerAt := func(xi float64) float64 { return interpSqrt(v.Lower, dx, xi) }
		return putPremiumValue(p, upperAt, lowerAt, rule), nil
	}
	return 0, &ArgumentError{Field: "boundary", Value: 0, Reason: "unknown boundary variant"}
}

// putPremiumValue evaluates the put premium representation at the option's
// spot: discounted interest earned on the strike minus dividends forgone on
// the spot, weighted by the probability of sitting in the exercise region.
// lowerAt is nil outside the band regime. The elapsed-time integral runs
// over u = w^2, matching the solver's treatment near expiry.
func putPremiumValue(p OptionParameters, upperAt, lowerAt func(float64) float64, rule *numerics.GaussLegendre) float64 {
	tau, r, q, vol := p.Maturity, p.RiskFreeRate, p.DividendYield, p.ImpliedVolatility
	s, k := p.Spot, p.Strike

	prem := rule.Integrate(func(w float64) float64 {
		u := w * w
		xi := tau - u
		if xi < 0 {
			xi = 0
		}
		d1, d2 := d1d2(s, upperAt(xi), u, r, q, vol)
		n2 := stdNormal.CDF(-d2)
		n1 := stdNormal.CDF(-d1)
		if lowerAt != nil {
			l1, l2 := d1d2(s, lowerAt(xi), u, r, q, vol)
			n2 -= stdNormal.CDF(-l2)
			n1 -= stdNormal.CDF(-l1)
		}
		return 2 * w * (r*k*math.Exp(-r*u)*n2 - q*s*math.Exp(-q*u)*n1)
	}, 0, math.Sqrt(tau))

	euro := EuropeanPrice(p)
	v := euro + prem
	if v < euro {
		v = euro
	}
	if intr := p.intrinsic(); v < intr {
		v = intr
	}
	return v
}
