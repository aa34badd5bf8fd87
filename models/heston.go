// Package models carries the auxiliary market models around the boundary
// pricer: the Heston stochastic-volatility pricer used for cross-checks and
// surface calibration, and the realized-volatility estimators over daily
// bars.
package models

import (
	"fmt"
	"math"
	"math/cmplx"
	"runtime"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/optimize"

	"github.com/earnvol/dboundary/numerics"
	"github.com/earnvol/dboundary/pricing"
)

// Probability integrals start here instead of 0; the integrand's removable
// singularity at the origin would otherwise evaluate as 0/0.
const hestonIntegralOffset = 1e-8

// Implied-volatility inversion bracket, matching the engine's defaults.
const (
	hestonIVLower = 1e-4
	hestonIVUpper = 5.0
)

// HestonParameters is a calibrated parameter set of the Heston (1993)
// square-root variance model. Immutable once calibrated; methods take value
// receivers so a set shared across goroutines is never mutated.
type HestonParameters struct {
	Kappa         float64 // mean-reversion speed of variance
	Theta         float64 // long-run variance level
	SigmaV        float64 // volatility of variance
	Rho           float64 // spot-variance correlation
	V0            float64 // initial variance
	RiskFreeRate  float64
	DividendYield float64
}

// Validate rejects parameter sets outside the model's admissible domain.
func (h HestonParameters) Validate() error {
	switch {
	case !(h.Kappa > 0) || math.IsInf(h.Kappa, 0):
		return &pricing.ArgumentError{Field: "kappa", Value: h.Kappa, Reason: "must be positive and finite"}
	case !(h.Theta > 0) || math.IsInf(h.Theta, 0):
		return &pricing.ArgumentError{Field: "theta", Value: h.Theta, Reason: "must be positive and finite"}
	case !(h.SigmaV > 0) || math.IsInf(h.SigmaV, 0):
		return &pricing.ArgumentError{Field: "sigma_v", Value: h.SigmaV, Reason: "must be positive and finite"}
	case !(h.Rho > -1 && h.Rho < 1):
		return &pricing.ArgumentError{Field: "rho", Value: h.Rho, Reason: "must lie strictly inside (-1, 1)"}
	case !(h.V0 > 0) || math.IsInf(h.V0, 0):
		return &pricing.ArgumentError{Field: "v0", Value: h.V0, Reason: "must be positive and finite"}
	case math.IsNaN(h.RiskFreeRate) || math.IsInf(h.RiskFreeRate, 0):
		return &pricing.ArgumentError{Field: "risk_free_rate", Value: h.RiskFreeRate, Reason: "must be finite"}
	case math.IsNaN(h.DividendYield) || math.IsInf(h.DividendYield, 0):
		return &pricing.ArgumentError{Field: "dividend_yield", Value: h.DividendYield, Reason: "must be finite"}
	}
	return nil
}

// charFn evaluates the Heston characteristic function component f_j without
// the e^{i*phi*ln(S)} spot factor, which the integrand supplies. C and D are
// written in exp(-d*tau) so nothing grows with maturity, and the complex
// root d is kept on the Re(d) >= 0 branch: the opposite branch breaks the
// analytic continuity of the complex logarithm once d*tau gets large and
// the computed probabilities come out garbage.
func (h HestonParameters) charFn(j int, phi, tau float64) complex128 {
	var uj, bj float64
	if j == 1 {
		uj = 0.5
		bj = h.Kappa - h.Rho*h.SigmaV
	} else {
		uj = -0.5
		bj = h.Kappa
	}
	sigma2 := h.SigmaV * h.SigmaV
	iu := complex(0, phi)

	beta := complex(bj, 0) - complex(h.Rho*h.SigmaV, 0)*iu
	d := cmplx.Sqrt(beta*beta - complex(sigma2, 0)*complex(-phi*phi, 2*uj*phi))
	if real(d) < 0 {
		d = -d
	}
	g := (beta - d) / (beta + d)

	expDT := cmplx.Exp(-d * complex(tau, 0))
	c := complex((h.RiskFreeRate-h.DividendYield)*tau, 0)*iu +
		complex(h.Kappa*h.Theta/sigma2, 0)*((beta-d)*complex(tau, 0)-2*cmplx.Log((1-g*expDT)/(1-g)))
	dv := (beta - d) / complex(sigma2, 0) * (1 - expDT) / (1 - g*expDT)
	return cmplx.Exp(c + dv*complex(h.V0, 0))
}

// probability evaluates P_j = 1/2 + (1/pi) Int_0^inf Re(e^{i phi ln(S/K)}
// f_j(phi) / (i phi)) dphi on the shared improper-integral core.
func (h HestonParameters) probability(j int, logSK, tau float64) (float64, error) {
	integrand := func(phi float64) float64 {
		v := cmplx.Exp(complex(0, phi*logSK)) * h.charFn(j, phi, tau) / complex(0, phi)
		return real(v)
	}
	integral, _, err := numerics.IntegrateToInfinity(integrand, hestonIntegralOffset, 1e-9, 1e-7)
	if err != nil {
		return 0, fmt.Errorf("heston P%d integral: %w", j, err)
	}
	return 0.5 + integral/math.Pi, nil
}

// ComputePrice values a European option semi-analytically under the model.
// Calls come from the two probability integrals directly, puts through
// put-call parity.
func (h HestonParameters) ComputePrice(spot, strike, maturity float64, isCall bool) (float64, error) {
	if err := h.Validate(); err != nil {
		return 0, err
	}
	switch {
	case !(spot > 0) || math.IsInf(spot, 0):
		return 0, &pricing.ArgumentError{Field: "spot", Value: spot, Reason: "must be positive and finite"}
	case !(strike > 0) || math.IsInf(strike, 0):
		return 0, &pricing.ArgumentError{Field: "strike", Value: strike, Reason: "must be positive and finite"}
	case !(maturity > 0) || math.IsInf(maturity, 0):
		return 0, &pricing.ArgumentError{Field: "maturity", Value: maturity, Reason: "must be positive and finite"}
	}

	logSK := math.Log(spot / strike)
	p1, err := h.probability(1, logSK, maturity)
	if err != nil {
		return 0, err
	}
	p2, err := h.probability(2, logSK, maturity)
	if err != nil {
		return 0, err
	}

	dfQ := math.Exp(-h.DividendYield * maturity)
	dfR := math.Exp(-h.RiskFreeRate * maturity)
	call := spot*dfQ*p1 - strike*dfR*p2
	if isCall {
		return math.Max(call, 0), nil
	}
	return math.Max(call-spot*dfQ+strike*dfR, 0), nil
}

// ComputeImpliedVolatility prices the option under the model and inverts
// Black-Scholes for the volatility that reproduces that price.
func (h HestonParameters) ComputeImpliedVolatility(spot, strike, maturity float64, isCall bool) (float64, error) {
	price, err := h.ComputePrice(spot, strike, maturity, isCall)
	if err != nil {
		return 0, err
	}
	typ := pricing.Put
	if isCall {
		typ = pricing.Call
	}
	p := pricing.OptionParameters{
		Spot: spot, Strike: strike, Maturity: maturity,
		RiskFreeRate: h.RiskFreeRate, DividendYield: h.DividendYield, Type: typ,
	}
	return pricing.SolveImpliedVolatility(func(vol float64) float64 {
		p.ImpliedVolatility = vol
		return pricing.EuropeanPrice(p)
	}, price, hestonIVLower, hestonIVUpper, 1e-8)
}

// CalibrationQuote is one observed option price the model is fitted to.
type CalibrationQuote struct {
	Strike   float64
	Maturity float64
	Price    float64
	IsCall   bool
}

// transformed maps the five model parameters onto an unconstrained search
// space: log for the positive ones, atanh for the correlation.
func (h HestonParameters) transformed() []float64 {
	return []float64{
		math.Log(h.Kappa),
		math.Log(h.Theta),
		math.Log(h.SigmaV),
		math.Atanh(h.Rho),
		math.Log(h.V0),
	}
}

func (h HestonParameters) fromTransformed(x []float64) HestonParameters {
	out := h
	out.Kappa = math.Exp(x[0])
	out.Theta = math.Exp(x[1])
	out.SigmaV = math.Exp(x[2])
	out.Rho = math.Tanh(x[3])
	out.V0 = math.Exp(x[4])
	return out
}

// Calibrate fits kappa, theta, sigmaV, rho and v0 to the quoted prices by
// Nelder-Mead least squares; the rate and dividend stay fixed. The receiver
// supplies the starting point, and candidates are searched through the
// transformed coordinates so every iterate stays admissible. The returned
// set is a new value; the receiver is unchanged.
func (h HestonParameters) Calibrate(spot float64, quotes []CalibrationQuote) (HestonParameters, error) {
	if err := h.Validate(); err != nil {
		return h, err
	}
	if len(quotes) == 0 {
		return h, &pricing.ArgumentError{Field: "quotes", Value: 0, Reason: "need at least one quote"}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			cand := h.fromTransformed(x)
			mse := 0.0
			for _, q := range quotes {
				price, err := cand.ComputePrice(spot, q.Strike, q.Maturity, q.IsCall)
				if err != nil {
					return math.Inf(1)
				}
				diff := price - q.Price
				mse += diff * diff
			}
			return mse / float64(len(quotes))
		},
	}

	result, err := optimize.Minimize(problem, h.transformed(), nil, &optimize.NelderMead{})
	if err != nil {
		return h, fmt.Errorf("heston calibration: %w", err)
	}
	return h.fromTransformed(result.X), nil
}

var rngPool = sync.Pool{
	New: func() interface{} {
		return rand.New(rand.NewSource(uint64(rand.Int63())))
	},
}

// SimulatePrice draws one terminal spot by full-truncation Euler: the
// variance state may go negative between steps but only its positive part
// ever enters a drift or diffusion term.
func (h HestonParameters) SimulatePrice(spot, maturity float64, steps int, rng *rand.Rand) float64 {
	dt := maturity / float64(steps)
	sqrtDt := math.Sqrt(dt)
	drift := h.RiskFreeRate - h.DividendYield

	s, v := spot, h.V0
	for i := 0; i < steps; i++ {
		z1 := rng.NormFloat64()
		z2 := h.Rho*z1 + math.Sqrt(1-h.Rho*h.Rho)*rng.NormFloat64()

		vp := math.Max(v, 0)
		volStep := math.Sqrt(vp) * sqrtDt
		s *= math.Exp((drift-0.5*vp)*dt + volStep*z1)
		v += h.Kappa*(h.Theta-vp)*dt + h.SigmaV*volStep*z2
	}
	return s
}

// SimulatePricesBatch fans numSimulations terminal spots out over
// GOMAXPROCS workers, each drawing from its own pooled generator.
func (h HestonParameters) SimulatePricesBatch(spot, maturity float64, steps, numSimulations int) []float64 {
	results := make([]float64, numSimulations)
	workers := runtime.GOMAXPROCS(0)
	if workers > numSimulations {
		workers = numSimulations
	}
	chunk := (numSimulations + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= numSimulations {
			break
		}
		end := start + chunk
		if end > numSimulations {
			end = numSimulations
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			rng := rngPool.Get().(*rand.Rand)
			defer rngPool.Put(rng)
			for i := start; i < end; i++ {
				results[i] = h.SimulatePrice(spot, maturity, steps, rng)
			}
		}(start, end)
	}
	wg.Wait()
	return results
}

// MonteCarloPrice cross-checks the characteristic-function price by
// simulation: the discounted average payoff over one batch.
func (h HestonParameters) MonteCarloPrice(spot, strike, maturity float64, isCall bool, steps, paths int) float64 {
	prices := h.SimulatePricesBatch(spot, maturity, steps, paths)
	sum := 0.0
	for _, s := range prices {
		if isCall {
			sum += math.Max(s-strike, 0)
		} else {
			sum += math.Max(strike-s, 0)
		}
	}
	return math.Exp(-h.RiskFreeRate*maturity) * sum / float64(len(prices))
}
