package pricing

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/earnvol/dboundary/numerics"
)

// SolveStatus tracks the boundary solve lifecycle.
type SolveStatus int

const (
	StatusInitializing SolveStatus = iota
	StatusIterating
	StatusConverged
	StatusMaxIterationsExceeded
	StatusNumericallyUnstable
)

func (s SolveStatus) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusIterating:
		return "iterating"
	case StatusConverged:
		return "converged"
	case StatusMaxIterationsExceeded:
		return "max_iterations_exceeded"
	case StatusNumericallyUnstable:
		return "numerically_unstable"
	default:
		return "unknown"
	}
}

// Config controls the boundary solve. Zero fields take defaults.
type Config struct {
	// CollocationPoints is the number of grid intervals; the frontier is
	// sampled at CollocationPoints+1 times including expiry.
	CollocationPoints int
	// QuadratureOrder is the fixed Gauss-Legendre order used for the
	// kernel integrals at every collocation point.
	QuadratureOrder int
	MaxIterations   int
	// Tolerance is the largest strike-relative frontier change between
	// consecutive sweeps that still counts as converged.
	Tolerance float64
	// ShouldStop, when non-nil, is polled between sweeps for cooperative
	// cancellation. A stopped solve reports its current iterate and a
	// non-convergence error.
	ShouldStop func() bool
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{CollocationPoints: 24, QuadratureOrder: 16, MaxIterations: 100, Tolerance: 1e-7}
}

func (c Config) withDefaults() Config {
	if c.CollocationPoints <= 0 {
		c.CollocationPoints = 24
	}
	if c.QuadratureOrder < 2 {
		c.QuadratureOrder = 16
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 100
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-7
	}
	return c
}

// SolveResult carries the converged (or best-effort) boundary and how the
// solve ended. UnstablePoints counts collocation points that fell back to
// the quadratic seed during the final sweep.
type SolveResult struct {
	Boundary       ExerciseBoundary
	Status         SolveStatus
	Iterations     int
	Residual       float64
	UnstablePoints int
}

// BoundarySolver iterates the early-exercise integral representation to a
// fixed point. The solver itself is stateless between calls; every Solve
// sizes its own buffers once and reuses them across sweeps, so one solver
// may serve concurrent goroutines.
type BoundarySolver struct {
	cfg  Config
	rule *numerics.GaussLegendre
	log  *zap.Logger
}

// NewBoundarySolver builds a solver. A nil logger disables logging.
func NewBoundarySolver(cfg Config, log *zap.Logger) *BoundarySolver {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &BoundarySolver{cfg: cfg, rule: numerics.NewGaussLegendre(cfg.QuadratureOrder), log: log}
}

// Solve computes the exercise boundary for the given option, starting from
// the quadratic approximation.
func (s *BoundarySolver) Solve(p OptionParameters) (SolveResult, error) {
	if err := p.Validate(); err != nil {
		return SolveResult{}, err
	}
	return s.solve(p, nil)
}

// SolveFrom restarts the iteration from an earlier boundary, typically a
// converged one after a small parameter change. The seed is resampled onto
// the new grid; it must carry the solver's collocation count and the
// variant matching the option's exercise regime, otherwise the quadratic
// seed is used instead.
func (s *BoundarySolver) SolveFrom(p OptionParameters, seed ExerciseBoundary) (SolveResult, error) {
	if err := p.Validate(); err != nil {
		return SolveResult{}, err
	}
	if seed != nil && len(seed.Times()) != s.cfg.CollocationPoints+1 {
		return SolveResult{}, &ArgumentError{
			Field: "seed", Value: float64(len(seed.Times())),
			Reason: "collocation count differs from solver config",
		}
	}
	return s.solve(p, seed)
}

// solve normalizes to put space. Calls are solved through the rate-swapped
// dual put and the frontier mapped back by strike-square inversion; the
// inversion is an involution, so a call-space seed passes through it too.
func (s *BoundarySolver) solve(p OptionParameters, seed ExerciseBoundary) (SolveResult, error) {
	if p.Type == Call {
		if seed != nil {
			seed = invertToCallSpace(seed, p.Strike)
		}
		res, err := s.solvePut(p.dualPutFrontier(), seed)
		if res.Boundary != nil {
			res.Boundary = invertToCallSpace(res.Boundary, p.Strike)
		}
		return res, err
	}
	return s.solvePut(p, seed)
}

func (s *BoundarySolver) solvePut(p OptionParameters, seed ExerciseBoundary) (SolveResult, error) {
	times := collocationGrid(p.Maturity, s.cfg.CollocationPoints)
	r, q := p.RiskFreeRate, p.DividendYield
	regime := classifyRegime(r, q)

	if regime == regimeNone {
		return SolveResult{Boundary: putSeedBoundary(p, times), Status: StatusConverged}, nil
	}
	if p.ImpliedVolatility < 1e-8 {
		// no diffusion: the frontier sits at its expiry limit everywhere
		s.log.Warn("boundary solve skipped for zero volatility",
			zap.Float64("strike", p.Strike), zap.Float64("maturity", p.Maturity))
		return SolveResult{Boundary: flatPutBoundary(p, times, regime), Status: StatusNumericallyUnstable}, nil
	}

	st := newPutSolveState(p, times, regime == regimeDouble, seed, s.rule)
	status := StatusIterating
	var (
		resid    float64
		iters    int
		unstable int
	)

	for iters < s.cfg.MaxIterations {
		if s.cfg.ShouldStop != nil && s.cfg.ShouldStop() {
			s.log.Warn("boundary solve stopped", zap.Int("iterations", iters))
			return SolveResult{
					Boundary: st.boundary(), Status: StatusMaxIterationsExceeded,
					Iterations: iters, Residual: resid, UnstablePoints: unstable,
				}, &numerics.NonConvergenceError{
					Op: "kim boundary solve (stopped)", Iterations: iters, Best: resid, Residual: resid,
				}
		}
		unstable = st.sweep()
		resid = st.residual()
		st.swap()
		iters++
		if resid < s.cfg.Tolerance {
			status = StatusConverged
			break
		}
	}

	if unstable > 0 {
		s.log.Warn("collocation points fell back to quadratic seed",
			zap.Ints("points", st.unstableIdx),
			zap.Float64("strike", p.Strike), zap.Float64("maturity", p.Maturity))
	}

	res := SolveResult{
		Boundary:       st.boundary(),
		Status:         status,
		Iterations:     iters,
		Residual:       resid,
		UnstablePoints: unstable,
	}
	if status != StatusConverged {
		res.Status = StatusMaxIterationsExceeded
		return res, &numerics.NonConvergenceError{
			Op: "kim boundary solve", Iterations: iters, Best: resid, Residual: resid,
		}
	}
	s.log.Debug("boundary solve converged",
		zap.Int("iterations", iters), zap.Float64("residual", resid))
	return res, nil
}

// flatPutBoundary pins the frontier at its expiry limit for degenerate
// inputs the iteration cannot handle.
func flatPutBoundary(p OptionParameters, times []float64, regime exerciseRegime) ExerciseBoundary {
	n := len(times)
	if regime == regimeDouble {
		l0, u0 := putBandAtExpiry(p.Strike, p.RiskFreeRate, p.DividendYield)
		lower := make([]float64, n)
		upper := make([]float64, n)
		for i := range lower {
			lower[i], upper[i] = l0, u0
		}
		return &DoubleBoundary{T: times, Lower: lower, Upper: upper}
	}
	b0 := putBoundaryAtExpiry(p.Strike, p.RiskFreeRate, p.DividendYield)
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = b0
	}
	return &SingleBoundary{T: times, Values: vals}
}

// putSolveState holds one solve's working set: the current and next frontier
// curves, the quadratic seed kept for per-point fallback, a scratch vector
// for the convergence check and the indices that fell back during the latest
// sweep. All buffers are sized once.
type putSolveState struct {
	strike, r, q, vol float64
	times             []float64
	dx                float64
	double            bool
	rule              *numerics.GaussLegendre

	upper, upperNew      []float64
	lower, lowerNew      []float64
	seedUpper, seedLower []float64
	diffs                []float64
	unstableIdx          []int
}

func newPutSolveState(p OptionParameters, times []float64, double bool, seed ExerciseBoundary, rule *numerics.GaussLegendre) *putSolveState {
	st := &putSolveState{
		strike: p.Strike,
		r:      p.RiskFreeRate,
		q:      p.DividendYield,
		vol:    p.ImpliedVolatility,
		times:  times,
		dx:     gridStep(times),
		double: double,
		rule:   rule,
	}

	n := len(times)
	st.upper = make([]float64, n)
	st.upperNew = make([]float64, n)
	st.diffs = make([]float64, n)
	st.unstableIdx = make([]int, 0, n)
	if double {
		st.lower = make([]float64, n)
		st.lowerNew = make([]float64, n)
	}

	st.seedFrom(p, seed)
	copy(st.upper, st.seedUpper)
	if double {
		copy(st.lower, st.seedLower)
	}
	return st
}

// seedFrom fills the starting curves: a resampled caller-provided boundary
// when its variant matches the regime, else the quadratic approximation.
func (st *putSolveState) seedFrom(p OptionParameters, seed ExerciseBoundary) {
	n := len(st.times)
	st.seedUpper = make([]float64, n)
	if st.double {
		st.seedLower = make([]float64, n)
	}

	if st.double {
		if db, ok := seed.(*DoubleBoundary); ok {
			sdx := gridStep(db.T)
			for i, tau := range st.times {
				st.seedUpper[i] = interpSqrt(db.Upper, sdx, tau)
				st.seedLower[i] = interpSqrt(db.Lower, sdx, tau)
			}
			return
		}
		lower, upper := qdPlusPutBandSeed(st.strike, st.r, st.q, st.vol, st.times)
		copy(st.seedLower, lower)
		copy(st.seedUpper, upper)
		return
	}

	if sb, ok := seed.(*SingleBoundary); ok && !sb.NoEarlyExercise {
		sdx := gridStep(sb.T)
		for i, tau := range st.times {
			st.seedUpper[i] = interpSqrt(sb.Values, sdx, tau)
		}
		return
	}
	copy(st.seedUpper, qdPlusPutSingleSeed(st.strike, st.r, st.q, st.vol, st.times))
}

// sweep applies one fixed-point pass over all collocation points, writing
// into the New buffers and reading kernel values from the previous curves.
// It returns the number of points that fell back to the seed; their indices
// stay in unstableIdx until the next sweep.
func (st *putSolveState) sweep() int {
	st.unstableIdx = st.unstableIdx[:0]
	st.upperNew[0] = st.upper[0]
	if st.double {
		st.lowerNew[0] = st.lower[0]
	}
	for i := 1; i < len(st.times); i++ {
		tau := st.times[i]
		if tau < minPointTau {
			st.upperNew[i] = st.seedUpper[i]
			if st.double {
				st.lowerNew[i] = st.seedLower[i]
			}
			continue
		}
		if st.double {
			u, okU := st.update(st.upper[i], tau)
			l, okL := st.update(st.lower[i], tau)
			if !okU {
				u = st.seedUpper[i]
			}
			if !okL {
				l = st.seedLower[i]
			}
			if !okU || !okL {
				st.unstableIdx = append(st.unstableIdx, i)
			}
			if l > u {
				m := math.Sqrt(l * u)
				l, u = m, m
			}
			st.upperNew[i], st.lowerNew[i] = u, l
		} else {
			b, ok := st.update(st.upper[i], tau)
			if !ok {
				b = st.seedUpper[i]
				st.unstableIdx = append(st.unstableIdx, i)
			}
			st.upperNew[i] = b
		}
	}
	return len(st.unstableIdx)
}

// update applies the fixed-point map at frontier candidate b and horizon
// tau. The elapsed-time kernel integrals run over u = w^2 so the fixed rule
// resolves the square-root behavior near expiry. In the double regime the
// kernels are band differences, upper leg minus lower leg.
func (st *putSolveState) update(b, tau float64) (float64, bool) {
	d1K, d2K := d1d2(b, st.strike, tau, st.r, st.q, st.vol)
	ir, iq := st.rule.Integrate2(func(w float64) (float64, float64) {
		u := w * w
		xi := tau - u
		if xi < 0 {
			xi = 0
		}
		ub := interpSqrt(st.upper, st.dx, xi)
		du1, du2 := d1d2(b, ub, u, st.r, st.q, st.vol)
		n2 := stdNormal.CDF(-du2)
		n1 := stdNormal.CDF(-du1)
		if st.double {
			lb := interpSqrt(st.lower, st.dx, xi)
			dl1, dl2 := d1d2(b, lb, u, st.r, st.q, st.vol)
			n2 -= stdNormal.CDF(-dl2)
			n1 -= stdNormal.CDF(-dl1)
		}
		g := 2 * w
		return g * math.Exp(-st.r*u) * n2, g * math.Exp(-st.q*u) * n1
	}, 0, math.Sqrt(tau))

	num := 1 - math.Exp(-st.r*tau)*stdNormal.CDF(-d2K) - st.r*ir
	den := 1 - math.Exp(-st.q*tau)*stdNormal.CDF(-d1K) - st.q*iq
	if math.Abs(den) < 1e-14 {
		return 0, false
	}
	next := st.strike * num / den
	if math.IsNaN(next) || math.IsInf(next, 0) || next <= 0 {
		return 0, false
	}
	return next, true
}

// residual is the largest strike-relative change of the latest sweep.
func (st *putSolveState) residual() float64 {
	st.diffs[0] = 0
	for i := 1; i < len(st.times); i++ {
		d := math.Abs(st.upperNew[i] - st.upper[i])
		if st.double {
			if dl := math.Abs(st.lowerNew[i] - st.lower[i]); dl > d {
				d = dl
			}
		}
		st.diffs[i] = d / st.strike
	}
	return floats.Max(st.diffs)
}

func (st *putSolveState) swap() {
	st.upper, st.upperNew = st.upperNew, st.upper
	if st.double {
		st.lower, st.lowerNew = st.lowerNew, st.lower
	}
}

// boundary copies the current curves into an immutable result.
func (st *putSolveState) boundary() ExerciseBoundary {
	if st.double {
		return &DoubleBoundary{
			T:     st.times,
			Upper: append([]float64(nil), st.upper...),
			Lower: append([]float64(nil), st.lower...),
		}
	}
	return &SingleBoundary{T: st.times, Values: append([]float64(nil), st.upper...)}
}
