package domain

import "github.com/shopspring/decimal"

// OpportunityKind classifies a pair's spread relationship.
type OpportunityKind string

const (
	OpportunityNone    OpportunityKind = "none"
	OpportunityActive  OpportunityKind = "active"
	OpportunityPassive OpportunityKind = "passive"
)

// Direction identifies which way a pair is traded. A buys the primary and
// sells the secondary; B does the reverse for active opportunities. For
// passive opportunities A sells the primary and B buys it.
type Direction string

const (
	DirectionA Direction = "A"
	DirectionB Direction = "B"
)

// Leg is one side of an opportunity before sizing.
type Leg struct {
	InstrumentID string          `json:"instrument_id"`
	Side         Side            `json:"side"`
	Price        decimal.Decimal `json:"price"`
}

// Opportunity is a classified pair state. Primary and Secondary are unset
// when Kind is OpportunityNone.
type Opportunity struct {
	Kind      OpportunityKind `json:"kind"`
	Direction Direction       `json:"direction,omitempty"`
	Primary   Leg             `json:"primary"`
	Secondary Leg             `json:"secondary"`
}

// Tradable reports whether the opportunity yields orders.
func (o Opportunity) Tradable() bool {
	return o.Kind == OpportunityActive || o.Kind == OpportunityPassive
}
