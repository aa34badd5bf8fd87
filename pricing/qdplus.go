package pricing

import (
	"math"

	"github.com/earnvol/dboundary/numerics"
)

// Pricing switches to the quadratic approximation when maturity falls below
// this cutoff (about three trading days); the premium integral is
// ill-conditioned at very short horizons.
const nearExpiryYears = 3.0 / 252.0

// Collocation points with less time to expiry than this are pinned to their
// seed value instead of iterated.
const minPointTau = 1e-5

// Frontier sentinel for regimes without early exercise, in put space. The
// premium kernel evaluates to zero against it.
const noExerciseScale = 1e-12

// exerciseRegime classifies the early-exercise structure from the signs of
// the carry flows r*K and q*S over the payoff region.
type exerciseRegime int

const (
	regimeNone exerciseRegime = iota
	regimeSingle
	regimeDouble
)

// classifyRegime works on put-form rates; calls are classified through
// their rate-swapped dual. Exercising a put early earns r*K - q*S, so a
// single frontier needs r > 0 (or r = 0 with q < 0), and an exercise band
// bounded away from zero appears only when q < r < 0.
func classifyRegime(r, q float64) exerciseRegime {
	switch {
	case r > 0:
		return regimeSingle
	case r == 0:
		if q < 0 {
			return regimeSingle
		}
		return regimeNone
	default:
		if q < r {
			return regimeDouble
		}
		return regimeNone
	}
}

// putBoundaryAtExpiry is the tau -> 0+ frontier limit of a single-regime put.
func putBoundaryAtExpiry(strike, r, q float64) float64 {
	if q > 0 && r < q {
		return strike * (r / q)
	}
	return strike
}

// putBandAtExpiry is the tau -> 0+ band limit in the double regime
// (q < r < 0): exercise pays while r*K - q*S > 0, i.e. above (r/q)*K.
func putBandAtExpiry(strike, r, q float64) (lower, upper float64) {
	return strike * (r / q), strike
}

// quadraticRoots solves the characteristic quadratic
// lambda^2 + (beta-1)*lambda - k = 0 with beta = 2(r-q)/vol^2 and
// k = 2r / (vol^2 (1 - e^{-r tau})). k is positive for either sign of r,
// so the roots straddle zero.
func quadraticRoots(r, q, vol, tau float64) (neg, pos float64) {
	v2 := vol * vol
	beta := 2 * (r - q) / v2
	k := 2 / (v2 * tau) // r -> 0 limit
	if math.Abs(r) > 1e-12 {
		k = 2 * r / (v2 * (1 - math.Exp(-r*tau)))
	}
	root := math.Sqrt((beta-1)*(beta-1) + 4*k)
	return 0.5 * (-(beta - 1) - root), 0.5 * (-(beta - 1) + root)
}

// putMatching is the value-matching residual for a put frontier candidate b
// under exponent lambda. Its zero is the approximate frontier: there the
// quadratic premium pastes smoothly onto intrinsic.
func putMatching(b, strike, r, q, vol, tau, lambda float64) float64 {
	d1, _ := d1d2(b, strike, tau, r, q, vol)
	euro := EuropeanPrice(OptionParameters{
		Spot: b, Strike: strike, Maturity: tau,
		RiskFreeRate: r, DividendYield: q, ImpliedVolatility: vol, Type: Put,
	})
	return b - strike + euro - (1-math.Exp(-q*tau)*stdNormal.CDF(-d1))*b/lambda
}

// premiumCoeff is the smooth-pasting coefficient at frontier b:
// A = -(b/lambda) (1 - e^{-q tau} N(-d1(b/K))). At a solved frontier it
// equals intrinsic minus European there, hence non-negative.
func premiumCoeff(b, strike, r, q, vol, tau, lambda float64) float64 {
	d1, _ := d1d2(b, strike, tau, r, q, vol)
	return -(b / lambda) * (1 - math.Exp(-q*tau)*stdNormal.CDF(-d1))
}

// scanRoot walks from one end of the interval to the other in fixed steps,
// brackets the first sign change of f and polishes it with Brent. NaN
// evaluations are skipped. ok is false when no crossing exists.
func scanRoot(f func(float64) float64, from, to float64, steps int) (root float64, ok bool) {
	var prevX, prevF float64
	havePrev := false
	for i := 0; i <= steps; i++ {
		x := from + (to-from)*float64(i)/float64(steps)
		fx := f(x)
		if math.IsNaN(fx) {
			continue
		}
		if fx == 0 {
			return x, true
		}
		if havePrev && (prevF < 0) != (fx < 0) {
			lo, hi := prevX, x
			if lo > hi {
				lo, hi = hi, lo
			}
			r, err := numerics.Brent(f, lo, hi, 1e-10, 60)
			if err != nil {
				if _, bracket := err.(*numerics.BracketingError); bracket {
					return 0, false
				}
				// non-convergence still carries the best estimate
			}
			return r, true
		}
		prevX, prevF, havePrev = x, fx, true
	}
	return 0, false
}

// qdPlusPutSingleSeed evaluates the quadratic frontier at every collocation
// time for a single-regime put. times[0] must be 0 and maps to the exact
// expiry limit. A point whose matching equation has no root inherits the
// previous value.
func qdPlusPutSingleSeed(strike, r, q, vol float64, times []float64) []float64 {
	vals := make([]float64, len(times))
	b0 := putBoundaryAtExpiry(strike, r, q)
	vals[0] = b0
	floor := 1e-6 * strike
	for i := 1; i < len(times); i++ {
		tau := times[i]
		lamNeg, _ := quadraticRoots(r, q, vol, tau)
		f := func(b float64) float64 { return putMatching(b, strike, r, q, vol, tau, lamNeg) }
		if root, ok := scanRoot(f, b0, floor, 24); ok {
			vals[i] = root
		} else {
			vals[i] = vals[i-1]
		}
	}
	return vals
}

// qdPlusPutBandSeed evaluates both quadratic frontiers in the double regime.
// The negative root pins the upper frontier (continuation above the band),
// the positive root the lower one. Horizons where the matching equations
// lose their roots have a closed band; both legs collapse onto one level so
// the band kernel integrates to zero there.
func qdPlusPutBandSeed(strike, r, q, vol float64, times []float64) (lower, upper []float64) {
	n := len(times)
	lower = make([]float64, n)
	upper = make([]float64, n)
	l0, u0 := putBandAtExpiry(strike, r, q)
	lower[0], upper[0] = l0, u0
	for i := 1; i < n; i++ {
		tau := times[i]
		lamNeg, lamPos := quadraticRoots(r, q, vol, tau)
		fu := func(b float64) float64 { return putMatching(b, strike, r, q, vol, tau, lamNeg) }
		fl := func(b float64) float64 { return putMatching(b, strike, r, q, vol, tau, lamPos) }
		u, okU := scanRoot(fu, u0, l0, 24)
		l, okL := scanRoot(fl, l0, u0, 24)
		if !okU || !okL || l > u {
			mid := math.Sqrt(l0 * u0)
			if okU && okL {
				mid = math.Sqrt(l * u)
			}
			l, u = mid, mid
		}
		lower[i], upper[i] = l, u
	}
	return lower, upper
}

// putSeedBoundary builds the starting boundary for put-form parameters on
// the given grid.
func putSeedBoundary(p OptionParameters, times []float64) ExerciseBoundary {
	r, q, vol := p.RiskFreeRate, p.DividendYield, p.ImpliedVolatility
	switch classifyRegime(r, q) {
	case regimeSingle:
		return &SingleBoundary{T: times, Values: qdPlusPutSingleSeed(p.Strike, r, q, vol, times)}
	case regimeDouble:
		l, u := qdPlusPutBandSeed(p.Strike, r, q, vol, times)
		return &DoubleBoundary{T: times, Lower: l, Upper: u}
	default:
		vals := make([]float64, len(times))
		for i := range vals {
			vals[i] = p.Strike * noExerciseScale
		}
		return &SingleBoundary{T: times, Values: vals, NoEarlyExercise: true}
	}
}

// invertToCallSpace maps a put-form boundary into call space through the
// strike: the call frontier is strike^2 over the rate-swapped put frontier.
// Inversion exchanges a band's legs and carries sentinels to the far side.
func invertToCallSpace(b ExerciseBoundary, strike float64) ExerciseBoundary {
	k2 := strike * strike
	switch v := b.(type) {
	case *SingleBoundary:
		out := &SingleBoundary{T: v.T, Values: make([]float64, len(v.Values)), NoEarlyExercise: v.NoEarlyExercise}
		for i, x := range v.Values {
			out.Values[i] = k2 / x
		}
		return out
	case *DoubleBoundary:
		out := &DoubleBoundary{T: v.T, Upper: make([]float64, len(v.Upper)), Lower: make([]float64, len(v.Lower))}
		for i := range v.Upper {
			out.Upper[i] = k2 / v.Lower[i]
			out.Lower[i] = k2 / v.Upper[i]
		}
		return out
	}
	return b
}

// dualPutFrontier swaps the rates and keeps the strike; frontiers do not
// depend on spot. Combined with invertToCallSpace it yields the call
// frontier from the put machinery.
func (p OptionParameters) dualPutFrontier() OptionParameters {
	d := p
	d.Type = Put
	d.RiskFreeRate, d.DividendYield = p.DividendYield, p.RiskFreeRate
	return d
}

// CalculateInitialBoundaries evaluates the quadratic approximation on the
// collocation grid and wraps it in the matching boundary variant. It is a
// pure function of the inputs: the solver's starting guess and its
// per-point fallback, never an iteration on the frontier as a whole.
func CalculateInitialBoundaries(p OptionParameters, collocationTimes []float64) (ExerciseBoundary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(collocationTimes) < 2 || collocationTimes[0] != 0 {
		return nil, &ArgumentError{
			Field: "collocation_times", Value: float64(len(collocationTimes)),
			Reason: "need an ascending grid starting at 0",
		}
	}
	if p.Type == Call {
		seed := putSeedBoundary(p.dualPutFrontier(), collocationTimes)
		return invertToCallSpace(seed, p.Strike), nil
	}
	return putSeedBoundary(p, collocationTimes), nil
}

// QDPlusPrice approximates the American value in closed form from the
// quadratic frontier at the option's own maturity. It is the pricing path
// below the near-expiry cutoff.
func QDPlusPrice(p OptionParameters) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if p.Type == Call {
		return qdPlusPutValue(p.dualPut()), nil
	}
	return qdPlusPutValue(p), nil
}

func qdPlusPutValue(p OptionParameters) float64 {
	tau, r, q, vol := p.Maturity, p.RiskFreeRate, p.DividendYield, p.ImpliedVolatility
	euro := EuropeanPrice(p)
	intr := p.intrinsic()
	if vol <= 0 || tau <= 0 {
		return math.Max(euro, intr)
	}

	switch classifyRegime(r, q) {
	case regimeSingle:
		lamNeg, _ := quadraticRoots(r, q, vol, tau)
		b0 := putBoundaryAtExpiry(p.Strike, r, q)
		f := func(b float64) float64 { return putMatching(b, p.Strike, r, q, vol, tau, lamNeg) }
		bStar, ok := scanRoot(f, b0, 1e-6*p.Strike, 24)
		if !ok {
			return math.Max(euro, intr)
		}
		if p.Spot <= bStar {
			return intr
		}
		prem := premiumCoeff(bStar, p.Strike, r, q, vol, tau, lamNeg) * math.Pow(p.Spot/bStar, lamNeg)
		return math.Max(euro+math.Max(prem, 0), intr)

	case regimeDouble:
		lamNeg, lamPos := quadraticRoots(r, q, vol, tau)
		l0, u0 := putBandAtExpiry(p.Strike, r, q)
		fu := func(b float64) float64 { return putMatching(b, p.Strike, r, q, vol, tau, lamNeg) }
		fl := func(b float64) float64 { return putMatching(b, p.Strike, r, q, vol, tau, lamPos) }
		u, okU := scanRoot(fu, u0, l0, 24)
		l, okL := scanRoot(fl, l0, u0, 24)
		if !okU || !okL || l > u {
			return math.Max(euro, intr)
		}
		switch {
		case p.Spot >= l && p.Spot <= u:
			return intr
		case p.Spot > u:
			prem := premiumCoeff(u, p.Strike, r, q, vol, tau, lamNeg) * math.Pow(p.Spot/u, lamNeg)
			return math.Max(euro+math.Max(prem, 0), intr)
		default:
			prem := premiumCoeff(l, p.Strike, r, q, vol, tau, lamPos) * math.Pow(p.Spot/l, lamPos)
			return math.Max(euro+math.Max(prem, 0), intr)
		}

	default:
		return math.Max(euro, intr)
	}
}
