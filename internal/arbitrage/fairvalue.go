package arbitrage

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// pricePlaces is the number of decimals fair values are rounded to.
const pricePlaces = 2

// FairValueModel converts a futures quote into the equivalent fair bid/ask of
// the instrument tracking it, using a continuous cost-of-carry discount.
//
//	fair = round_half_even(exp(-r*t) * fut * m + offset -/+ buffer, 2)
type FairValueModel struct {
	params   domain.FairValueParams
	discount decimal.Decimal
}

// NewFairValueModel precomputes the discount factor exp(-r*t).
func NewFairValueModel(p domain.FairValueParams) *FairValueModel {
	return &FairValueModel{
		params:   p,
		discount: decimal.NewFromFloat(math.Exp(-p.Rate * p.TimeFraction)),
	}
}

// Discount returns exp(-r*t).
func (m *FairValueModel) Discount() decimal.Decimal { return m.discount }

// Fair returns the instrument fair bid and ask implied by the futures top of
// book. The buffer widens the fair spread on both sides.
func (m *FairValueModel) Fair(future domain.TopOfBook) domain.TopOfBook {
	return domain.TopOfBook{
		Bid: m.scale(future.Bid).Sub(m.params.Buffer).RoundBank(pricePlaces),
		Ask: m.scale(future.Ask).Add(m.params.Buffer).RoundBank(pricePlaces),
	}
}

func (m *FairValueModel) scale(price decimal.Decimal) decimal.Decimal {
	return price.Mul(m.discount).Mul(m.params.Multiplier).Add(m.params.Offset)
}
