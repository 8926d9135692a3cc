package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// DefaultTick is the price increment used to step inside a spread.
var DefaultTick = decimal.New(1, -2)

// Quotes are the inputs of one classification. Compare is the secondary
// quote the primary is measured against (the model fair value for ETF/future
// pairs); Execute is the real secondary book the secondary leg trades on.
// For dual listings Compare and Execute are the same.
type Quotes struct {
	Primary domain.TopOfBook
	Compare domain.TopOfBook
	Execute domain.TopOfBook
}

// Classifier turns a pair's quotes into an Opportunity. Conditions are
// evaluated in a fixed order with strict inequalities, so exactly one of
// active A, active B, passive A, passive B or none holds.
type Classifier struct {
	Tick    decimal.Decimal
	Quoting domain.QuotingStyle
}

// Classify evaluates the quotes of pair.
func (c Classifier) Classify(pair domain.PairConfig, q Quotes) domain.Opportunity {
	tick := c.Tick
	if tick.IsZero() {
		tick = DefaultTick
	}
	pri, cmp, exe := q.Primary, q.Compare, q.Execute

	leg := func(id string, side domain.Side, price decimal.Decimal) domain.Leg {
		return domain.Leg{InstrumentID: id, Side: side, Price: price}
	}

	switch {
	// Secondary bids above where the primary can be bought.
	case cmp.Bid.GreaterThan(pri.Ask):
		return domain.Opportunity{
			Kind:      domain.OpportunityActive,
			Direction: domain.DirectionA,
			Primary:   leg(pair.Primary, domain.SideBid, pri.Ask),
			Secondary: leg(pair.Secondary, domain.SideAsk, exe.Bid),
		}

	// Primary bids above where the secondary can be bought.
	case pri.Bid.GreaterThan(cmp.Ask):
		return domain.Opportunity{
			Kind:      domain.OpportunityActive,
			Direction: domain.DirectionB,
			Primary:   leg(pair.Primary, domain.SideAsk, pri.Bid),
			Secondary: leg(pair.Secondary, domain.SideBid, exe.Ask),
		}

	// Primary offered rich: rest a sell on the primary, a buy on the secondary.
	case pri.Ask.GreaterThan(cmp.Ask):
		opp := domain.Opportunity{Kind: domain.OpportunityPassive, Direction: domain.DirectionA}
		opp.Primary = leg(pair.Primary, domain.SideAsk, pri.Ask.Sub(tick))
		if c.Quoting == domain.QuotingAskAnchored {
			opp.Secondary = leg(pair.Secondary, domain.SideBid, exe.Ask)
		} else {
			opp.Secondary = leg(pair.Secondary, domain.SideBid, exe.Bid.Add(tick))
		}
		return opp

	// Secondary offered rich: rest a buy on the primary, a sell on the secondary.
	case cmp.Ask.GreaterThan(pri.Ask):
		opp := domain.Opportunity{Kind: domain.OpportunityPassive, Direction: domain.DirectionB}
		if c.Quoting == domain.QuotingAskAnchored {
			opp.Primary = leg(pair.Primary, domain.SideBid, pri.Ask)
		} else {
			opp.Primary = leg(pair.Primary, domain.SideBid, pri.Bid.Add(tick))
		}
		opp.Secondary = leg(pair.Secondary, domain.SideAsk, exe.Ask.Sub(tick))
		return opp
	}

	return domain.Opportunity{Kind: domain.OpportunityNone}
}
