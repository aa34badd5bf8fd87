package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earnvol/dboundary/pricing"
)

func testHestonParams() HestonParameters {
	return HestonParameters{
		Kappa: 2.0, Theta: 0.04, SigmaV: 0.4, Rho: -0.6, V0: 0.05,
		RiskFreeRate: 0.03, DividendYield: 0.01,
	}
}

func TestHestonPriceConvergesToBlackScholes(t *testing.T) {
	// vanishing vol-of-vol with v0 = theta pins the variance path at theta,
	// so the model collapses to Black-Scholes at vol sqrt(theta)
	h := HestonParameters{
		Kappa: 1.5, Theta: 0.04, SigmaV: 1e-3, Rho: -0.5, V0: 0.04,
		RiskFreeRate: 0.05, DividendYield: 0.02,
	}
	bs := pricing.OptionParameters{
		Spot: 100, Strike: 100, Maturity: 0.5,
		RiskFreeRate: 0.05, DividendYield: 0.02, ImpliedVolatility: 0.2,
	}

	t.Run("call", func(t *testing.T) {
		got, err := h.ComputePrice(100, 100, 0.5, true)
		require.NoError(t, err)
		bs.Type = pricing.Call
		assert.InDelta(t, pricing.EuropeanPrice(bs), got, 1e-3)
	})

	t.Run("put", func(t *testing.T) {
		got, err := h.ComputePrice(100, 100, 0.5, false)
		require.NoError(t, err)
		bs.Type = pricing.Put
		assert.InDelta(t, pricing.EuropeanPrice(bs), got, 1e-3)
	})
}

func TestHestonPriceArbitrageBounds(t *testing.T) {
	h := testHestonParams()
	for _, strike := range []float64{50, 80, 100, 120, 200} {
		for _, tau := range []float64{0.1, 1, 5, 15} {
			call, err := h.ComputePrice(100, strike, tau, true)
			require.NoError(t, err, "K=%v tau=%v", strike, tau)

			dfQ := math.Exp(-h.DividendYield * tau)
			dfR := math.Exp(-h.RiskFreeRate * tau)
			lower := math.Max(100*dfQ-strike*dfR, 0)
			assert.GreaterOrEqual(t, call, lower-1e-8, "K=%v tau=%v", strike, tau)
			assert.LessOrEqual(t, call, 100*dfQ+1e-8, "K=%v tau=%v", strike, tau)
		}
	}
}

func TestHestonPriceMonotoneInStrike(t *testing.T) {
	h := testHestonParams()
	prevCall := math.Inf(1)
	prevPut := -1.0
	for _, strike := range []float64{80, 90, 100, 110, 120} {
		call, err := h.ComputePrice(100, strike, 1, true)
		require.NoError(t, err)
		put, err := h.ComputePrice(100, strike, 1, false)
		require.NoError(t, err)

		assert.Less(t, call, prevCall, "calls fall with strike, K=%v", strike)
		assert.Greater(t, put, prevPut, "puts rise with strike, K=%v", strike)
		prevCall, prevPut = call, put
	}
}

func TestHestonNegativeCorrelationSkew(t *testing.T) {
	// rho < 0 fattens the left tail: downside strikes carry more implied vol
	h := testHestonParams()
	ivLow, err := h.ComputeImpliedVolatility(100, 85, 0.5, false)
	require.NoError(t, err)
	ivHigh, err := h.ComputeImpliedVolatility(100, 115, 0.5, true)
	require.NoError(t, err)
	assert.Greater(t, ivLow, ivHigh)
}

func TestHestonImpliedVolatilityRoundTrip(t *testing.T) {
	h := testHestonParams()
	price, err := h.ComputePrice(100, 105, 0.75, true)
	require.NoError(t, err)

	iv, err := h.ComputeImpliedVolatility(100, 105, 0.75, true)
	require.NoError(t, err)
	assert.Greater(t, iv, 0.0)

	bs := pricing.OptionParameters{
		Spot: 100, Strike: 105, Maturity: 0.75,
		RiskFreeRate: h.RiskFreeRate, DividendYield: h.DividendYield,
		ImpliedVolatility: iv, Type: pricing.Call,
	}
	assert.InDelta(t, price, pricing.EuropeanPrice(bs), 1e-6)
}

func TestHestonMonteCarloAgreesWithCharacteristicFunction(t *testing.T) {
	if testing.Short() {
		t.Skip("simulation batch")
	}
	h := testHestonParams()
	cf, err := h.ComputePrice(100, 100, 0.5, true)
	require.NoError(t, err)

	mc := h.MonteCarloPrice(100, 100, 0.5, true, 64, 40000)
	assert.InDelta(t, cf, mc, 0.35, "cf %v vs mc %v", cf, mc)
}

func TestHestonSimulatePricesBatch(t *testing.T) {
	h := testHestonParams()
	prices := h.SimulatePricesBatch(100, 0.25, 32, 1000)
	require.Len(t, prices, 1000)
	for i, s := range prices {
		require.Greater(t, s, 0.0, "path %d", i)
		require.False(t, math.IsNaN(s), "path %d", i)
	}

	// drift check: discounted forward is a martingale
	sum := 0.0
	for _, s := range prices {
		sum += s
	}
	forward := 100 * math.Exp((h.RiskFreeRate-h.DividendYield)*0.25)
	assert.InDelta(t, forward, sum/1000, 2.5)
}

func TestHestonCalibrateReproducesQuotes(t *testing.T) {
	if testing.Short() {
		t.Skip("optimizer run")
	}
	truth := HestonParameters{
		Kappa: 1.8, Theta: 0.05, SigmaV: 0.5, Rho: -0.5, V0: 0.06,
		RiskFreeRate: 0.03, DividendYield: 0.01,
	}
	quotes := make([]CalibrationQuote, 0, 4)
	for _, strike := range []float64{90, 100, 110, 120} {
		price, err := truth.ComputePrice(100, strike, 0.5, true)
		require.NoError(t, err)
		quotes = append(quotes, CalibrationQuote{Strike: strike, Maturity: 0.5, Price: price, IsCall: true})
	}

	start := truth
	start.Kappa, start.Theta, start.SigmaV, start.Rho, start.V0 = 1.2, 0.07, 0.35, -0.3, 0.04
	fitted, err := start.Calibrate(100, quotes)
	require.NoError(t, err)
	require.NoError(t, fitted.Validate(), "transforms must keep the fit admissible")

	for _, q := range quotes {
		price, err := fitted.ComputePrice(100, q.Strike, q.Maturity, q.IsCall)
		require.NoError(t, err)
		assert.InDelta(t, q.Price, price, 0.05, "strike %v", q.Strike)
	}
}

func TestHestonCalibrateValidation(t *testing.T) {
	var argErr *pricing.ArgumentError

	h := testHestonParams()
	_, err := h.Calibrate(100, nil)
	assert.ErrorAs(t, err, &argErr)

	bad := h
	bad.Kappa = 0
	_, err = bad.Calibrate(100, []CalibrationQuote{{Strike: 100, Maturity: 0.5, Price: 5, IsCall: true}})
	assert.ErrorAs(t, err, &argErr)
}

func TestHestonValidate(t *testing.T) {
	good := testHestonParams()
	require.NoError(t, good.Validate())

	cases := []struct {
		name   string
		mutate func(*HestonParameters)
		field  string
	}{
		{"zero_kappa", func(h *HestonParameters) { h.Kappa = 0 }, "kappa"},
		{"negative_theta", func(h *HestonParameters) { h.Theta = -0.01 }, "theta"},
		{"zero_sigma_v", func(h *HestonParameters) { h.SigmaV = 0 }, "sigma_v"},
		{"rho_at_one", func(h *HestonParameters) { h.Rho = 1 }, "rho"},
		{"rho_nan", func(h *HestonParameters) { h.Rho = math.NaN() }, "rho"},
		{"zero_v0", func(h *HestonParameters) { h.V0 = 0 }, "v0"},
		{"inf_rate", func(h *HestonParameters) { h.RiskFreeRate = math.Inf(1) }, "risk_free_rate"},
		{"nan_div", func(h *HestonParameters) { h.DividendYield = math.NaN() }, "dividend_yield"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := good
			tc.mutate(&h)
			err := h.Validate()
			var argErr *pricing.ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, tc.field, argErr.Field)
		})
	}
}

func TestHestonComputePriceValidation(t *testing.T) {
	h := testHestonParams()
	var argErr *pricing.ArgumentError

	_, err := h.ComputePrice(0, 100, 1, true)
	assert.ErrorAs(t, err, &argErr)

	_, err = h.ComputePrice(100, -5, 1, true)
	assert.ErrorAs(t, err, &argErr)

	_, err = h.ComputePrice(100, 100, 0, true)
	assert.ErrorAs(t, err, &argErr)
}
