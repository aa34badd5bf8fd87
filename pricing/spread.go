package pricing

// PriceCalendarSpread prices a same-strike calendar spread leg by leg and
// nets the results in long-calendar convention: long the back expiry, short
// the front. Both legs are full American valuations; the legs share the
// engine's boundary cache where their parameters overlap.
func (e *Engine) PriceCalendarSpread(sp CalendarSpreadParameters) (SpreadPricing, error) {
	front := sp.front()
	if err := front.Validate(); err != nil {
		return SpreadPricing{}, err
	}
	back := sp.back()
	if err := back.Validate(); err != nil {
		return SpreadPricing{}, err
	}
	if sp.BackMaturity <= sp.FrontMaturity {
		return SpreadPricing{}, &ArgumentError{
			Field: "back_maturity", Value: sp.BackMaturity,
			Reason: "must exceed front maturity",
		}
	}

	fp, err := e.PriceOption(front)
	if err != nil {
		return SpreadPricing{}, err
	}
	bp, err := e.PriceOption(back)
	if err != nil {
		return SpreadPricing{}, err
	}

	return SpreadPricing{
		Front:    fp,
		Back:     bp,
		NetDebit: bp.Price - fp.Price,
		NetDelta: bp.Delta - fp.Delta,
		NetGamma: bp.Gamma - fp.Gamma,
		NetVega:  bp.Vega - fp.Vega,
		NetTheta: bp.Theta - fp.Theta,
		NetRho:   bp.Rho - fp.Rho,
	}, nil
}
