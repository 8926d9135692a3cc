// Package arbitrage holds the decision core of the pair engine: the position
// ledger, the self-trade guard, the fair-value model, the opportunity
// classifier, the order sizer and the per-pair Evaluate function tying them
// together. Nothing in this package performs I/O.
package arbitrage

import (
	"fmt"
	"sort"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// Ledger is a read-only view over a positions snapshot with a single
// per-instrument position limit. Instruments missing from the snapshot are
// treated as flat.
type Ledger struct {
	positions map[string]int
	limit     int
}

// NewLedger wraps positions. The map is not copied and must not be mutated
// while the ledger is in use.
func NewLedger(positions map[string]int, limit int) *Ledger {
	if positions == nil {
		positions = map[string]int{}
	}
	return &Ledger{positions: positions, limit: limit}
}

// Limit returns the absolute position limit.
func (l *Ledger) Limit() int { return l.limit }

// Position returns the current net position of an instrument.
func (l *Ledger) Position(instrumentID string) int {
	return l.positions[instrumentID]
}

// WouldBreach reports whether trading volume lots on side would take the
// instrument beyond the limit. Landing exactly on the limit is allowed.
func (l *Ledger) WouldBreach(instrumentID string, volume int, side domain.Side) (bool, error) {
	pos := l.positions[instrumentID]
	switch side {
	case domain.SideBid:
		return pos+volume > l.limit, nil
	case domain.SideAsk:
		return pos-volume < -l.limit, nil
	default:
		return false, fmt.Errorf("arbitrage: would breach %s: %w: %q", instrumentID, domain.ErrInvalidSide, side)
	}
}

// AmountToUnwind returns the side and volume that must be traded to get
// back inside the limit after trading volume lots on side. A non-positive
// volume means no unwind is needed.
func (l *Ledger) AmountToUnwind(instrumentID string, volume int, side domain.Side) (domain.Side, int, error) {
	pos := l.positions[instrumentID]
	switch side {
	case domain.SideBid:
		return domain.SideAsk, (pos + volume) - l.limit, nil
	case domain.SideAsk:
		return domain.SideBid, (-l.limit) - (pos - volume), nil
	default:
		return "", 0, fmt.Errorf("arbitrage: amount to unwind %s: %w: %q", instrumentID, domain.ErrInvalidSide, side)
	}
}

// NearLimit returns, in sorted order, the instruments whose absolute
// position is at or beyond threshold.
func (l *Ledger) NearLimit(threshold int) []string {
	var ids []string
	for id, pos := range l.positions {
		if pos >= threshold || pos <= -threshold {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// DeRiskOrder builds the IOC unwind order for a near-limit instrument: a long
// position sells at the best bid, a short position buys at the best ask. ok
// is false when the position is flat or the book has nothing on the unwind
// side.
func (l *Ledger) DeRiskOrder(instrumentID string, book domain.Book, size int) (domain.Order, bool) {
	pos := l.positions[instrumentID]
	var side domain.Side
	switch {
	case pos > 0:
		side = domain.SideAsk
	case pos < 0:
		side = domain.SideBid
	default:
		return domain.Order{}, false
	}

	// Selling hits the bids, buying lifts the asks.
	level, ok := book.Best(side.Opposite())
	if !ok {
		return domain.Order{}, false
	}
	return domain.Order{
		InstrumentID: instrumentID,
		Side:         side,
		Price:        level.Price,
		Volume:       size,
		Type:         domain.OrderTypeIOC,
	}, true
}
