package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+volume entry in a book.
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume int             `json:"volume"`
}

// Book is the last known price book of an instrument. Bids are ordered best
// (highest) first, asks best (lowest) first. A Book with no levels on either
// side is treated as empty.
type Book struct {
	InstrumentID string       `json:"instrument_id"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
	Timestamp    time.Time    `json:"timestamp"`
}

// BestBid returns the top bid level, if any.
func (b Book) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level, if any.
func (b Book) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// Best returns the top level on the given side.
func (b Book) Best(side Side) (PriceLevel, bool) {
	if side == SideBid {
		return b.BestBid()
	}
	return b.BestAsk()
}

// TwoSided reports whether the book has both a best bid and a best ask.
func (b Book) TwoSided() bool {
	return len(b.Bids) > 0 && len(b.Asks) > 0
}

// Empty reports whether the book has no levels at all.
func (b Book) Empty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}

// TopOfBook is the best bid and ask of a two-sided book.
type TopOfBook struct {
	Bid decimal.Decimal `json:"bid"`
	Ask decimal.Decimal `json:"ask"`
}

// Top returns the best bid/ask pair. ok is false unless the book is two-sided.
func (b Book) Top() (TopOfBook, bool) {
	if !b.TwoSided() {
		return TopOfBook{}, false
	}
	return TopOfBook{Bid: b.Bids[0].Price, Ask: b.Asks[0].Price}, true
}
