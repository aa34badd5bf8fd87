package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// d1d2 returns the Black-Scholes moneyness terms for the ratio s/k over
// horizon tau. Callers guarantee vol > 0 and tau > 0.
func d1d2(s, k, tau, r, q, vol float64) (float64, float64) {
	sigRoot := vol * math.Sqrt(tau)
	d1 := (math.Log(s/k) + (r-q+0.5*vol*vol)*tau) / sigRoot
	return d1, d1 - sigRoot
}

// EuropeanPrice values a European option under continuous dividend yield.
// Zero volatility or maturity collapses to the discounted forward payoff.
func EuropeanPrice(p OptionParameters) float64 {
	tau, r, q, vol := p.Maturity, p.RiskFreeRate, p.DividendYield, p.ImpliedVolatility

	if tau <= 0 || vol <= 0 {
		fwd := p.Spot*math.Exp(-q*tau) - p.Strike*math.Exp(-r*tau)
		if p.Type == Call {
			return math.Max(fwd, 0)
		}
		return math.Max(-fwd, 0)
	}

	d1, d2 := d1d2(p.Spot, p.Strike, tau, r, q, vol)
	dfQ := math.Exp(-q * tau)
	dfR := math.Exp(-r * tau)
	if p.Type == Call {
		return p.Spot*dfQ*stdNormal.CDF(d1) - p.Strike*dfR*stdNormal.CDF(d2)
	}
	return p.Strike*dfR*stdNormal.CDF(-d2) - p.Spot*dfQ*stdNormal.CDF(-d1)
}

// EuropeanGreeks returns the closed-form Black-Scholes greeks. Used directly
// for regimes without early exercise and as the reference in tests.
func EuropeanGreeks(p OptionParameters) OptionPricing {
	tau, r, q, vol := p.Maturity, p.RiskFreeRate, p.DividendYield, p.ImpliedVolatility
	out := OptionPricing{Price: EuropeanPrice(p)}
	if tau <= 0 || vol <= 0 {
		return out
	}

	d1, d2 := d1d2(p.Spot, p.Strike, tau, r, q, vol)
	dfQ := math.Exp(-q * tau)
	dfR := math.Exp(-r * tau)
	pdf := stdNormal.Prob(d1)
	sqrtTau := math.Sqrt(tau)

	out.Gamma = dfQ * pdf / (p.Spot * vol * sqrtTau)
	out.Vega = p.Spot * dfQ * pdf * sqrtTau
	if p.Type == Call {
		out.Delta = dfQ * stdNormal.CDF(d1)
		out.Theta = -p.Spot*dfQ*pdf*vol/(2*sqrtTau) -
			r*p.Strike*dfR*stdNormal.CDF(d2) + q*p.Spot*dfQ*stdNormal.CDF(d1)
		out.Rho = p.Strike * tau * dfR * stdNormal.CDF(d2)
	} else {
		out.Delta = -dfQ * stdNormal.CDF(-d1)
		out.Theta = -p.Spot*dfQ*pdf*vol/(2*sqrtTau) +
			r*p.Strike*dfR*stdNormal.CDF(-d2) - q*p.Spot*dfQ*stdNormal.CDF(-d1)
		out.Rho = -p.Strike * tau * dfR * stdNormal.CDF(-d2)
	}
	return out
}
