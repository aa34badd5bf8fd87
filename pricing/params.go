// Package pricing values American options under continuously compounded
// rates and dividend yields of either sign. Exercise boundaries come from a
// fixed-point solve of the early-exercise integral representation, seeded by
// a quadratic (Barone-Adesi/Whaley family) approximation, and option values
// follow from the early-exercise premium integral on top of Black-Scholes.
package pricing

import "math"

// OptionType distinguishes calls from puts.
type OptionType int

const (
	Call OptionType = iota
	Put
)

func (t OptionType) String() string {
	switch t {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return "unknown"
	}
}

// OptionParameters describes a single American option pricing request.
// Maturity is in years. RiskFreeRate and DividendYield are continuously
// compounded and may be negative.
type OptionParameters struct {
	Spot              float64    `json:"spot"`
	Strike            float64    `json:"strike"`
	Maturity          float64    `json:"maturity"`
	RiskFreeRate      float64    `json:"risk_free_rate"`
	DividendYield     float64    `json:"dividend_yield"`
	ImpliedVolatility float64    `json:"implied_volatility"`
	Type              OptionType `json:"type"`
}

// Validate rejects inputs the solver cannot price. Negative rates and
// dividend yields are legal; non-positive spot, strike or maturity and
// negative or non-finite volatility are not.
func (p OptionParameters) Validate() error {
	switch {
	case !(p.Spot > 0) || math.IsInf(p.Spot, 0):
		return &ArgumentError{Field: "spot", Value: p.Spot, Reason: "must be positive and finite"}
	case !(p.Strike > 0) || math.IsInf(p.Strike, 0):
		return &ArgumentError{Field: "strike", Value: p.Strike, Reason: "must be positive and finite"}
	case !(p.Maturity > 0) || math.IsInf(p.Maturity, 0):
		return &ArgumentError{Field: "maturity", Value: p.Maturity, Reason: "must be positive and finite"}
	case !(p.ImpliedVolatility >= 0) || math.IsInf(p.ImpliedVolatility, 0):
		return &ArgumentError{Field: "implied_volatility", Value: p.ImpliedVolatility, Reason: "must be non-negative and finite"}
	case math.IsNaN(p.RiskFreeRate) || math.IsInf(p.RiskFreeRate, 0):
		return &ArgumentError{Field: "risk_free_rate", Value: p.RiskFreeRate, Reason: "must be finite"}
	case math.IsNaN(p.DividendYield) || math.IsInf(p.DividendYield, 0):
		return &ArgumentError{Field: "dividend_yield", Value: p.DividendYield, Reason: "must be finite"}
	case p.Type != Call && p.Type != Put:
		return &ArgumentError{Field: "type", Value: float64(p.Type), Reason: "must be Call or Put"}
	}
	return nil
}

// intrinsic is the immediate exercise value at the current spot.
func (p OptionParameters) intrinsic() float64 {
	if p.Type == Call {
		return math.Max(p.Spot-p.Strike, 0)
	}
	return math.Max(p.Strike-p.Spot, 0)
}

// dualPut maps a call onto the equivalent put by exchanging spot with strike
// and rate with dividend yield. American and European values coincide under
// this exchange, which keeps every boundary computation in put form where
// the cumulative normal arguments stay well conditioned.
func (p OptionParameters) dualPut() OptionParameters {
	return OptionParameters{
		Spot:              p.Strike,
		Strike:            p.Spot,
		Maturity:          p.Maturity,
		RiskFreeRate:      p.DividendYield,
		DividendYield:     p.RiskFreeRate,
		ImpliedVolatility: p.ImpliedVolatility,
		Type:              Put,
	}
}

// OptionPricing is the engine output for one option: fair value plus the
// five standard greeks. Greeks are raw derivatives, per unit of volatility
// and rate and per year of calendar time. A greek that could not be
// computed is reported as 0.0 with a logged warning; the price itself is
// never silently degraded.
type OptionPricing struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// CalendarSpreadParameters describes a same-strike two-leg calendar spread:
// short the front expiry, long the back expiry.
type CalendarSpreadParameters struct {
	Spot          float64    `json:"spot"`
	Strike        float64    `json:"strike"`
	FrontMaturity float64    `json:"front_maturity"`
	BackMaturity  float64    `json:"back_maturity"`
	RiskFreeRate  float64    `json:"risk_free_rate"`
	DividendYield float64    `json:"dividend_yield"`
	FrontVol      float64    `json:"front_vol"`
	BackVol       float64    `json:"back_vol"`
	Type          OptionType `json:"type"`
}

func (sp CalendarSpreadParameters) front() OptionParameters {
	return OptionParameters{
		Spot:              sp.Spot,
		Strike:            sp.Strike,
		Maturity:          sp.FrontMaturity,
		RiskFreeRate:      sp.RiskFreeRate,
		DividendYield:     sp.DividendYield,
		ImpliedVolatility: sp.FrontVol,
		Type:              sp.Type,
	}
}

func (sp CalendarSpreadParameters) back() OptionParameters {
	return OptionParameters{
		Spot:              sp.Spot,
		Strike:            sp.Strike,
		Maturity:          sp.BackMaturity,
		RiskFreeRate:      sp.RiskFreeRate,
		DividendYield:     sp.DividendYield,
		ImpliedVolatility: sp.BackVol,
		Type:              sp.Type,
	}
}

// SpreadPricing aggregates both legs of a calendar spread. Net figures are
// long-calendar convention: back leg minus front leg.
type SpreadPricing struct {
	Front    OptionPricing `json:"front"`
	Back     OptionPricing `json:"back"`
	NetDebit float64       `json:"net_debit"`
	NetDelta float64       `json:"net_delta"`
	NetGamma float64       `json:"net_gamma"`
	NetVega  float64       `json:"net_vega"`
	NetTheta float64       `json:"net_theta"`
	NetRho   float64       `json:"net_rho"`
}
