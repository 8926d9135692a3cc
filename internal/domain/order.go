package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the book side an order rests on or takes from.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Valid reports whether s is one of the two book sides.
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// Opposite returns the other side of the book. An invalid side is returned
// unchanged.
func (s Side) Opposite() Side {
	switch s {
	case SideBid:
		return SideAsk
	case SideAsk:
		return SideBid
	default:
		return s
	}
}

// ParseSide converts a wire string into a Side.
func ParseSide(v string) (Side, error) {
	s := Side(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, v)
	}
	return s, nil
}

// OrderType is the execution style of an outbound order.
type OrderType string

const (
	OrderTypeIOC   OrderType = "ioc"   // immediate-or-cancel
	OrderTypeLimit OrderType = "limit" // rests until cancelled
)

// Valid reports whether t is a supported execution style.
func (t OrderType) Valid() bool {
	return t == OrderTypeIOC || t == OrderTypeLimit
}

// Order is an outbound order intent. It is handed to the exchange and not
// tracked afterwards.
type Order struct {
	InstrumentID string          `json:"instrument_id"`
	Side         Side            `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Volume       int             `json:"volume"`
	Type         OrderType       `json:"order_type"`
}

func (o Order) String() string {
	return fmt.Sprintf("%s %d %s @ %s (%s)", o.Side, o.Volume, o.InstrumentID, o.Price.StringFixed(2), o.Type)
}

// OutstandingOrder is one of our own resting orders as reported by the
// exchange.
type OutstandingOrder struct {
	OrderID      string          `json:"order_id"`
	InstrumentID string          `json:"instrument_id"`
	Side         Side            `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Volume       int             `json:"volume"`
}

// InsertResult is the exchange acknowledgement of an InsertOrder call.
type InsertResult struct {
	OrderID string `json:"order_id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
