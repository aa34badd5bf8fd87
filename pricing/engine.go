package pricing

import (
	"sync"

	"go.uber.org/zap"

	"github.com/earnvol/dboundary/numerics"
)

// Engine composes the quadratic seed, the boundary solver and the premium
// integral into option and spread pricing. Solved frontiers are cached under
// everything except spot, so the spot bumps behind delta and gamma reuse the
// cached frontier; that reuse is exact because the frontier never depends on
// spot. One Engine may serve concurrent goroutines.
type Engine struct {
	solver *BoundarySolver
	rule   *numerics.GaussLegendre
	log    *zap.Logger

	mu    sync.RWMutex
	cache map[boundaryKey]ExerciseBoundary
}

type boundaryKey struct {
	strike   float64
	maturity float64
	vol      float64
	rate     float64
	dividend float64
	typ      OptionType
}

// NewEngine builds an engine. A nil logger disables logging.
func NewEngine(cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		solver: NewBoundarySolver(cfg, log),
		rule:   numerics.NewGaussLegendre(cfg.QuadratureOrder),
		log:    log,
		cache:  make(map[boundaryKey]ExerciseBoundary),
	}
}

// Solver exposes the underlying boundary solver for direct frontier work.
func (e *Engine) Solver() *BoundarySolver { return e.solver }

// ClearBoundaryCache drops every cached frontier. Call it between
// evaluation contexts, e.g. when rolling to the next backtest date.
func (e *Engine) ClearBoundaryCache() {
	e.mu.Lock()
	e.cache = make(map[boundaryKey]ExerciseBoundary)
	e.mu.Unlock()
}

// boundaryFor returns the cached frontier for the option's non-spot
// parameters, solving and caching on miss. Solve failures propagate: a
// price without a trusted frontier is worse than no price.
func (e *Engine) boundaryFor(p OptionParameters) (ExerciseBoundary, error) {
	key := boundaryKey{
		strike:   p.Strike,
		maturity: p.Maturity,
		vol:      p.ImpliedVolatility,
		rate:     p.RiskFreeRate,
		dividend: p.DividendYield,
		typ:      p.Type,
	}
	e.mu.RLock()
	b, ok := e.cache[key]
	e.mu.RUnlock()
	if ok {
		return b, nil
	}

	res, err := e.solver.Solve(p)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[key] = res.Boundary
	e.mu.Unlock()
	return res.Boundary, nil
}

// PriceOption values one American option and its greeks. Maturities under
// the near-expiry cutoff are priced by the quadratic approximation, which
// keeps the result deterministic for given inputs; everything else goes
// through the solved frontier and the premium integral. Greek failures
// degrade to a 0.0 sentinel with a logged warning, price failures do not.
func (e *Engine) PriceOption(p OptionParameters) (OptionPricing, error) {
	if err := p.Validate(); err != nil {
		return OptionPricing{}, err
	}
	if p.Maturity < nearExpiryYears || p.ImpliedVolatility < 1e-8 {
		return e.priceNearExpiry(p)
	}

	b, err := e.boundaryFor(p)
	if err != nil {
		return OptionPricing{}, err
	}
	price, err := priceWithRule(p, b, e.rule)
	if err != nil {
		return OptionPricing{}, err
	}

	out := OptionPricing{Price: price}
	e.fillGreeks(&out, p, e.boundaryValue, price)
	return out, nil
}

// boundaryValue is the full pricing path as a plain value function for
// finite differences. Spot bumps hit the boundary cache; any other bump
// solves (and caches) its own frontier.
func (e *Engine) boundaryValue(p OptionParameters) (float64, error) {
	b, err := e.boundaryFor(p)
	if err != nil {
		return 0, err
	}
	return priceWithRule(p, b, e.rule)
}

// priceNearExpiry prices below the cutoff on the quadratic approximation,
// with greeks differenced on the same function.
func (e *Engine) priceNearExpiry(p OptionParameters) (OptionPricing, error) {
	price, err := QDPlusPrice(p)
	if err != nil {
		return OptionPricing{}, err
	}
	out := OptionPricing{Price: price}
	e.fillGreeks(&out, p, QDPlusPrice, price)
	return out, nil
}
