package pricing

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/earnvol/dboundary/numerics"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxIterations = 200
	return NewEngine(cfg, zaptest.NewLogger(t))
}

func TestPriceOptionAmericanPut(t *testing.T) {
	e := testEngine(t)
	p := OptionParameters{
		Spot: 100, Strike: 100, Maturity: 1,
		RiskFreeRate: 0.05, ImpliedVolatility: 0.2, Type: Put,
	}
	out, err := e.PriceOption(p)
	require.NoError(t, err)

	euro := EuropeanPrice(p)
	premium := out.Price - euro
	assert.Greater(t, premium, 0.2, "early exercise on an ATM put with r>0 is worth real money")
	assert.Less(t, premium, 1.2)
	assert.GreaterOrEqual(t, out.Price, p.intrinsic())

	assert.Less(t, out.Delta, 0.0)
	assert.Greater(t, out.Delta, -1.0)
	assert.Greater(t, out.Gamma, 0.0)
	assert.Greater(t, out.Vega, 0.0)
	assert.Less(t, out.Theta, 0.0)
	assert.Less(t, out.Rho, 0.0)
}

func TestPriceOptionZeroDividendCallIsEuropean(t *testing.T) {
	e := testEngine(t)
	p := OptionParameters{
		Spot: 100, Strike: 100, Maturity: 1,
		RiskFreeRate: 0.05, ImpliedVolatility: 0.2, Type: Call,
	}
	out, err := e.PriceOption(p)
	require.NoError(t, err)

	ref := EuropeanGreeks(p)
	assert.InDelta(t, ref.Price, out.Price, 1e-9)
	assert.InDelta(t, ref.Delta, out.Delta, 1e-3)
	assert.InDelta(t, ref.Gamma, out.Gamma, 1e-4)
	assert.InDelta(t, ref.Vega, out.Vega, 0.05)
	assert.InDelta(t, ref.Theta, out.Theta, 0.05)
	assert.InDelta(t, ref.Rho, out.Rho, 0.05)
}

func TestPriceOptionLongerMaturityWorthMore(t *testing.T) {
	e := testEngine(t)
	p := OptionParameters{
		Spot: 100, Strike: 100, Maturity: 0.5,
		RiskFreeRate: 0.05, ImpliedVolatility: 0.2, Type: Put,
	}
	short, err := e.PriceOption(p)
	require.NoError(t, err)

	p.Maturity = 1
	long, err := e.PriceOption(p)
	require.NoError(t, err)
	assert.Greater(t, long.Price, short.Price, "American value never shrinks with maturity")
}

func TestPriceOptionConcreteScenario(t *testing.T) {
	// 3-month ATM call, r=5%, q=2%, vol=30%
	e := testEngine(t)
	p := OptionParameters{
		Spot: 100, Strike: 100, Maturity: 0.25,
		RiskFreeRate: 0.05, DividendYield: 0.02, ImpliedVolatility: 0.3, Type: Call,
	}
	out, err := e.PriceOption(p)
	require.NoError(t, err)

	euro := EuropeanPrice(p)
	assert.GreaterOrEqual(t, out.Price, euro-1e-9)
	assert.Less(t, out.Price-euro, 0.25, "with modest dividends the exercise premium stays small")

	res, err := e.Solver().Solve(p)
	require.NoError(t, err)
	sb, ok := res.Boundary.(*SingleBoundary)
	require.True(t, ok)
	for i, v := range sb.Values {
		assert.Greater(t, v, 2*p.Strike, "frontier stays far above strike, point %d", i)
	}
}

func TestPriceOptionDoubleBoundaryRegime(t *testing.T) {
	e := testEngine(t)
	p := OptionParameters{
		Spot: 70, Strike: 100, Maturity: 0.25,
		RiskFreeRate: -0.02, DividendYield: -0.06, ImpliedVolatility: 0.15, Type: Put,
	}
	out, err := e.PriceOption(p)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.Price, p.intrinsic()-1e-9)
	assert.GreaterOrEqual(t, out.Price, EuropeanPrice(p)-1e-9)
}

func TestPriceOptionNearExpiry(t *testing.T) {
	e := testEngine(t)
	p := OptionParameters{
		Spot: 100, Strike: 100, Maturity: 0.005, // about a day, below the cutoff
		RiskFreeRate: 0.05, ImpliedVolatility: 0.2, Type: Put,
	}
	first, err := e.PriceOption(p)
	require.NoError(t, err)
	second, err := e.PriceOption(p)
	require.NoError(t, err)
	assert.Equal(t, first, second, "near-expiry pricing is deterministic")

	assert.GreaterOrEqual(t, first.Price, p.intrinsic())
	assert.GreaterOrEqual(t, first.Price, EuropeanPrice(p)-1e-9)
	assert.Less(t, first.Theta, 0.0)
}

func TestPriceOptionValidation(t *testing.T) {
	e := testEngine(t)
	var argErr *ArgumentError

	_, err := e.PriceOption(OptionParameters{Spot: 0, Strike: 100, Maturity: 1, ImpliedVolatility: 0.2, Type: Put})
	assert.ErrorAs(t, err, &argErr)

	_, err = e.PriceOption(OptionParameters{Spot: 100, Strike: 100, Maturity: 1, ImpliedVolatility: 0.2, Type: OptionType(9)})
	assert.ErrorAs(t, err, &argErr)
}

func TestClearBoundaryCacheKeepsResults(t *testing.T) {
	e := testEngine(t)
	p := OptionParameters{
		Spot: 100, Strike: 100, Maturity: 1,
		RiskFreeRate: 0.05, ImpliedVolatility: 0.2, Type: Put,
	}
	before, err := e.PriceOption(p)
	require.NoError(t, err)

	e.ClearBoundaryCache()
	after, err := e.PriceOption(p)
	require.NoError(t, err)
	assert.InDelta(t, before.Price, after.Price, 1e-12, "cache is an optimization, not an input")
	assert.InDelta(t, before.Delta, after.Delta, 1e-12)
}

func TestEngineConcurrentUse(t *testing.T) {
	e := testEngine(t)
	base := OptionParameters{
		Spot: 100, Strike: 100, Maturity: 0.5,
		RiskFreeRate: 0.05, ImpliedVolatility: 0.2, Type: Put,
	}

	const workers = 8
	prices := make([]float64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := base
			p.Spot = 90 + float64(i%4)*5 // some spots collide, same frontier
			out, err := e.PriceOption(p)
			prices[i], errs[i] = out.Price, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, math.IsNaN(prices[i]), "worker %d", i)
		assert.Greater(t, prices[i], 0.0, "worker %d", i)
	}
	// workers with the same spot must agree exactly
	assert.Equal(t, prices[0], prices[4])
	assert.Equal(t, prices[1], prices[5])
}

func TestCalculateImpliedVolatilityRoundTrip(t *testing.T) {
	e := testEngine(t)
	p := OptionParameters{
		Spot: 100, Strike: 105, Maturity: 0.5,
		RiskFreeRate: 0.03, DividendYield: 0.01, Type: Call,
	}
	p.ImpliedVolatility = 0.23
	quote := EuropeanPrice(p)

	iv, err := e.CalculateImpliedVolatility(quote, p)
	require.NoError(t, err)
	assert.InDelta(t, 0.23, iv, 1e-6)
}

func TestCalculateImpliedVolatilityBracketing(t *testing.T) {
	e := testEngine(t)
	p := OptionParameters{
		Spot: 100, Strike: 100, Maturity: 0.5,
		RiskFreeRate: 0.03, Type: Call,
	}

	var bErr *numerics.BracketingError
	_, err := e.CalculateImpliedVolatility(500, p) // no volatility reaches this
	assert.ErrorAs(t, err, &bErr)

	_, err = e.CalculateImpliedVolatility(1e-9, p) // below the vol floor price
	assert.ErrorAs(t, err, &bErr)

	var argErr *ArgumentError
	_, err = e.CalculateImpliedVolatility(-1, p)
	assert.ErrorAs(t, err, &argErr)
}

func TestSolveImpliedVolatilityGeneric(t *testing.T) {
	p := OptionParameters{
		Spot: 100, Strike: 95, Maturity: 1,
		RiskFreeRate: 0.05, ImpliedVolatility: 0.4, Type: Put,
	}
	target := EuropeanPrice(p)
	iv, err := SolveImpliedVolatility(func(vol float64) float64 {
		pp := p
		pp.ImpliedVolatility = vol
		return EuropeanPrice(pp)
	}, target, 1e-4, 5, 1e-10)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, iv, 1e-8)
}

func TestPriceCalendarSpread(t *testing.T) {
	e := testEngine(t)
	sp := CalendarSpreadParameters{
		Spot: 100, Strike: 100,
		FrontMaturity: 0.08, BackMaturity: 0.25,
		RiskFreeRate: 0.05, FrontVol: 0.2, BackVol: 0.2,
		Type: Put,
	}
	out, err := e.PriceCalendarSpread(sp)
	require.NoError(t, err)

	assert.Greater(t, out.NetDebit, 0.0, "longer leg costs more at equal vols")
	assert.InDelta(t, out.Back.Price-out.Front.Price, out.NetDebit, 1e-12)
	assert.InDelta(t, out.Back.Delta-out.Front.Delta, out.NetDelta, 1e-12)
	assert.Greater(t, out.NetTheta, 0.0, "ATM front decays faster than back")
}

func TestPriceCalendarSpreadValidation(t *testing.T) {
	e := testEngine(t)
	var argErr *ArgumentError

	sp := CalendarSpreadParameters{
		Spot: 100, Strike: 100,
		FrontMaturity: 0.25, BackMaturity: 0.25,
		RiskFreeRate: 0.05, FrontVol: 0.2, BackVol: 0.2,
		Type: Put,
	}
	_, err := e.PriceCalendarSpread(sp)
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "back_maturity", argErr.Field)

	sp.BackMaturity = 0.5
	sp.FrontVol = -1
	_, err = e.PriceCalendarSpread(sp)
	assert.ErrorAs(t, err, &argErr)
}

func TestPriceAgainstForeignBoundaryRejected(t *testing.T) {
	p := OptionParameters{
		Spot: 100, Strike: 100, Maturity: 1,
		RiskFreeRate: 0.05, ImpliedVolatility: 0.2, Type: Put,
	}
	b := &SingleBoundary{T: collocationGrid(0.5, 4), Values: []float64{100, 99, 98, 97, 96}}
	var argErr *ArgumentError
	_, err := Price(p, b)
	assert.ErrorAs(t, err, &argErr, "boundary horizon must match option maturity")

	_, err = Price(p, nil)
	assert.ErrorAs(t, err, &argErr)
}
