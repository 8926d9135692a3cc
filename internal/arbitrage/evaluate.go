package arbitrage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// Snapshot is everything Evaluate reads about the account and the market.
// Outstanding is keyed by instrument, then by order id.
type Snapshot struct {
	Positions   map[string]int
	Books       map[string]domain.Book
	Outstanding map[string]map[string]domain.OutstandingOrder
}

// Params are the engine-wide knobs Evaluate needs.
type Params struct {
	PositionLimit int
	Tick          decimal.Decimal
}

// Plan is the result of evaluating one pair. Orders is empty unless Outcome
// is OutcomeEmitted; for suppressed outcomes Withheld carries the orders the
// guards rejected. CancelFirst lists the instruments whose resting orders
// must be deleted before Orders are inserted.
type Plan struct {
	Pair        string
	Outcome     domain.Outcome
	Reason      string
	Opportunity domain.Opportunity
	Orders      []domain.Order
	Withheld    []domain.Order
	CancelFirst []string
}

// Evaluate decides what to do with pair given snap. It has no side effects
// and keeps no state between calls.
func Evaluate(pair domain.PairConfig, snap Snapshot, p Params) Plan {
	plan := Plan{Pair: pair.Name, Opportunity: domain.Opportunity{Kind: domain.OpportunityNone}}

	priBook, secBook := snap.Books[pair.Primary], snap.Books[pair.Secondary]
	priTop, okPri := priBook.Top()
	secTop, okSec := secBook.Top()
	if !okPri || !okSec {
		plan.Outcome = domain.OutcomeMissingMarketData
		plan.Reason = fmt.Sprintf("order book for %s or %s does not have bids or offers", pair.Primary, pair.Secondary)
		return plan
	}

	q := Quotes{Primary: priTop, Compare: secTop, Execute: secTop}
	if pair.NeedsModel() {
		q.Compare = NewFairValueModel(*pair.Model).Fair(secTop)
	}

	opp := Classifier{Tick: p.Tick, Quoting: pair.Quoting}.Classify(pair, q)
	plan.Opportunity = opp
	if !opp.Tradable() {
		plan.Outcome = domain.OutcomeNoOpportunity
		plan.Reason = fmt.Sprintf("%s bid-ask is %s::%s and %s compares at %s::%s",
			pair.Primary, priTop.Bid.StringFixed(2), priTop.Ask.StringFixed(2),
			pair.Secondary, q.Compare.Bid.StringFixed(2), q.Compare.Ask.StringFixed(2))
		return plan
	}

	orderType := domain.OrderTypeLimit
	if opp.Kind == domain.OpportunityActive {
		orderType = pair.ActiveOrderType
		if !orderType.Valid() {
			orderType = domain.OrderTypeIOC
		}
	}

	ledger := NewLedger(snap.Positions, p.PositionLimit)
	sizer := Sizer{Sizing: pair.Sizing}
	orders := make([]domain.Order, 0, 2)
	for _, leg := range []domain.Leg{opp.Primary, opp.Secondary} {
		orders = append(orders, domain.Order{
			InstrumentID: leg.InstrumentID,
			Side:         leg.Side,
			Price:        leg.Price,
			Volume:       sizer.Size(opp.Kind, leg.Side, ledger.Position(leg.InstrumentID)),
			Type:         orderType,
		})
	}

	// Both legs are withheld if any single leg fails a guard.
	for _, o := range orders {
		breach, err := ledger.WouldBreach(o.InstrumentID, o.Volume, o.Side)
		if err != nil || breach {
			plan.Outcome = domain.OutcomeLimitBreach
			plan.Reason = fmt.Sprintf("%d lot %s on %s would breach position limit %d (position %d)",
				o.Volume, o.Side, o.InstrumentID, p.PositionLimit, ledger.Position(o.InstrumentID))
			if err != nil {
				plan.Reason = err.Error()
			}
			plan.Withheld = orders
			return plan
		}
	}
	for _, o := range orders {
		if CrossesOwnOrders(o.Side, o.Price, snap.Outstanding[o.InstrumentID]) {
			plan.Outcome = domain.OutcomeSelfTrade
			plan.Reason = fmt.Sprintf("%s on %s at %s would cross own resting orders",
				o.Side, o.InstrumentID, o.Price.StringFixed(2))
			plan.Withheld = orders
			return plan
		}
	}

	plan.Outcome = domain.OutcomeEmitted
	plan.Orders = orders
	if opp.Kind == domain.OpportunityPassive {
		plan.CancelFirst = []string{pair.Primary, pair.Secondary}
	}
	return plan
}
