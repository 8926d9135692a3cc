package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// CrossesOwnOrders reports whether an order on side at price would match one
// of our own resting orders. A bid crosses any own ask priced at or below it;
// an ask crosses any own bid priced at or above it. Same-side orders are
// ignored.
func CrossesOwnOrders(side domain.Side, price decimal.Decimal, outstanding map[string]domain.OutstandingOrder) bool {
	for _, o := range outstanding {
		if o.Side == side {
			continue
		}
		switch side {
		case domain.SideBid:
			if o.Side == domain.SideAsk && o.Price.LessThanOrEqual(price) {
				return true
			}
		case domain.SideAsk:
			if o.Side == domain.SideBid && o.Price.GreaterThanOrEqual(price) {
				return true
			}
		}
	}
	return false
}
