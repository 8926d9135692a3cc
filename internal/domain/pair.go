package domain

import "github.com/shopspring/decimal"

// PairKind tags how the two books of a pair are compared.
type PairKind string

const (
	// PairKindDualListing compares the two books directly.
	PairKindDualListing PairKind = "dual_listing"
	// PairKindETFFuture compares the primary book against a fair value
	// derived from the secondary (future) book.
	PairKindETFFuture PairKind = "etf_future"
)

// QuotingStyle selects how passive quotes are priced.
type QuotingStyle string

const (
	// QuotingInside improves both legs by one tick inside their spread.
	QuotingInside QuotingStyle = "inside"
	// QuotingAskAnchored prices both legs off the ask side and only improves
	// the leg that rests on the ask overlap.
	QuotingAskAnchored QuotingStyle = "ask_anchored"
)

// FairValueParams are the cost-of-carry coefficients for ETF/future pairs.
type FairValueParams struct {
	Rate         float64         `json:"rate"`
	TimeFraction float64         `json:"time_fraction"`
	Multiplier   decimal.Decimal `json:"multiplier"`
	Offset       decimal.Decimal `json:"offset"`
	Buffer       decimal.Decimal `json:"buffer"`
}

// Sizing holds per-leg lot sizes. The bonus is added to a leg whose trade
// reduces the current inventory.
type Sizing struct {
	Base         int `json:"base"`
	ActiveBonus  int `json:"active_bonus"`
	PassiveBonus int `json:"passive_bonus"`
}

// PairConfig is the static description of one arbitrage pair.
type PairConfig struct {
	Name            string           `json:"name"`
	Primary         string           `json:"primary"`
	Secondary       string           `json:"secondary"`
	Kind            PairKind         `json:"kind"`
	Model           *FairValueParams `json:"model,omitempty"`
	Sizing          Sizing           `json:"sizing"`
	Quoting         QuotingStyle     `json:"quoting"`
	ActiveOrderType OrderType        `json:"active_order_type"`
}

// Instruments returns the primary and secondary identifiers.
func (p PairConfig) Instruments() []string {
	return []string{p.Primary, p.Secondary}
}

// Contains reports whether instrumentID is one of the pair's legs.
func (p PairConfig) Contains(instrumentID string) bool {
	return p.Primary == instrumentID || p.Secondary == instrumentID
}

// NeedsModel reports whether the secondary book must be transformed before
// comparison.
func (p PairConfig) NeedsModel() bool {
	return p.Kind == PairKindETFFuture && p.Model != nil
}
