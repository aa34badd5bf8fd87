package pricing

import (
	"math"

	"go.uber.org/zap"
)

// Finite-difference bump sizes. Delta and gamma use a relative spot bump on
// a five-point stencil; vega, rho and theta re-evaluate with their own
// parameter bumped.
const (
	spotBumpRel  = 0.005
	volBumpFloor = 1e-4
	volBumpRel   = 0.01
	rateBump     = 1e-4
	thetaBumpMax = 1.0 / 365
)

// fillGreeks computes the five greeks of value against the supplied pricing
// function. Each greek fails independently: an error or a non-finite result
// becomes the 0.0 sentinel with a warning, and the others are unaffected.
func (e *Engine) fillGreeks(out *OptionPricing, p OptionParameters, value func(OptionParameters) (float64, error), base float64) {
	h := spotBumpRel * p.Spot
	vm2, vm, vp, vp2, spotErr := e.spotStencil(p, value, h)
	out.Delta = e.greekOrZero("delta", p, spotErr, (vm2-8*vm+8*vp-vp2)/(12*h))
	out.Gamma = e.greekOrZero("gamma", p, spotErr, (-vm2+16*vm-30*base+16*vp-vp2)/(12*h*h))
	out.Vega = e.vega(p, value)
	out.Rho = e.rho(p, value)
	out.Theta = e.theta(p, value, base)
}

// spotStencil evaluates value at spot -2h, -h, +h, +2h. The frontier does
// not move with spot, so all four evaluations share one cached boundary.
func (e *Engine) spotStencil(p OptionParameters, value func(OptionParameters) (float64, error), h float64) (vm2, vm, vp, vp2 float64, err error) {
	bump := func(s float64) (float64, error) {
		pp := p
		pp.Spot = s
		return value(pp)
	}
	if vm2, err = bump(p.Spot - 2*h); err != nil {
		return
	}
	if vm, err = bump(p.Spot - h); err != nil {
		return
	}
	if vp, err = bump(p.Spot + h); err != nil {
		return
	}
	vp2, err = bump(p.Spot + 2*h)
	return
}

func (e *Engine) vega(p OptionParameters, value func(OptionParameters) (float64, error)) float64 {
	hv := math.Max(volBumpFloor, volBumpRel*p.ImpliedVolatility)
	up := p
	up.ImpliedVolatility += hv
	vUp, errUp := value(up)
	if p.ImpliedVolatility <= hv {
		// downward bump would cross zero volatility
		base, errBase := value(p)
		err := errUp
		if err == nil {
			err = errBase
		}
		return e.greekOrZero("vega", p, err, (vUp-base)/hv)
	}
	dn := p
	dn.ImpliedVolatility -= hv
	vDn, errDn := value(dn)
	err := errUp
	if err == nil {
		err = errDn
	}
	return e.greekOrZero("vega", p, err, (vUp-vDn)/(2*hv))
}

func (e *Engine) rho(p OptionParameters, value func(OptionParameters) (float64, error)) float64 {
	up, dn := p, p
	up.RiskFreeRate += rateBump
	dn.RiskFreeRate -= rateBump
	vUp, errUp := value(up)
	vDn, errDn := value(dn)
	err := errUp
	if err == nil {
		err = errDn
	}
	return e.greekOrZero("rho", p, err, (vUp-vDn)/(2*rateBump))
}

// theta is the calendar decay -dV/dtau per year. The downward bump switches
// to one-sided when it would cross the near-expiry cutoff, so the difference
// never straddles the pricing switch.
func (e *Engine) theta(p OptionParameters, value func(OptionParameters) (float64, error), base float64) float64 {
	ht := math.Min(thetaBumpMax, p.Maturity/4)
	up := p
	up.Maturity += ht
	vUp, errUp := value(up)
	if p.Maturity-ht < nearExpiryYears && p.Maturity >= nearExpiryYears {
		return e.greekOrZero("theta", p, errUp, -(vUp-base)/ht)
	}
	dn := p
	dn.Maturity -= ht
	vDn, errDn := value(dn)
	err := errUp
	if err == nil {
		err = errDn
	}
	return e.greekOrZero("theta", p, err, -(vUp-vDn)/(2*ht))
}

// greekOrZero downgrades a failed or non-finite greek to the documented 0.0
// sentinel. The price and the remaining greeks are unaffected.
func (e *Engine) greekOrZero(name string, p OptionParameters, err error, v float64) float64 {
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		e.log.Warn("greek computation failed, reporting zero",
			zap.String("greek", name),
			zap.Float64("strike", p.Strike),
			zap.Float64("maturity", p.Maturity),
			zap.Error(err))
		return 0
	}
	return v
}
