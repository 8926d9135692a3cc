package arbitrage

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

var dualPair = domain.PairConfig{
	Name:            "asml",
	Primary:         "ASML",
	Secondary:       "ASML_DUAL",
	Kind:            domain.PairKindDualListing,
	Sizing:          domain.Sizing{Base: 4, ActiveBonus: 26, PassiveBonus: 16},
	Quoting:         domain.QuotingInside,
	ActiveOrderType: domain.OrderTypeIOC,
}

func top(bid, ask string) domain.TopOfBook {
	return domain.TopOfBook{Bid: dec(bid), Ask: dec(ask)}
}

func direct(pri, sec domain.TopOfBook) Quotes {
	return Quotes{Primary: pri, Compare: sec, Execute: sec}
}

func assertLeg(t *testing.T, name string, got domain.Leg, id string, side domain.Side, price string) {
	t.Helper()
	if got.InstrumentID != id || got.Side != side || !got.Price.Equal(dec(price)) {
		t.Errorf("%s leg = %s %s @ %s, want %s %s @ %s", name, got.InstrumentID, got.Side, got.Price, id, side, price)
	}
}

func TestClassifyInside(t *testing.T) {
	c := Classifier{Tick: DefaultTick, Quoting: domain.QuotingInside}
	tests := []struct {
		name     string
		pri, sec domain.TopOfBook
		kind     domain.OpportunityKind
		dir      domain.Direction
		priSide  domain.Side
		priPrice string
		secSide  domain.Side
		secPrice string
	}{
		{"active A", top("10.00", "10.05"), top("10.10", "10.15"), domain.OpportunityActive, domain.DirectionA, domain.SideBid, "10.05", domain.SideAsk, "10.10"},
		{"active B", top("10.20", "10.25"), top("10.10", "10.15"), domain.OpportunityActive, domain.DirectionB, domain.SideAsk, "10.20", domain.SideBid, "10.15"},
		{"passive A", top("10.00", "10.10"), top("10.00", "10.05"), domain.OpportunityPassive, domain.DirectionA, domain.SideAsk, "10.09", domain.SideBid, "10.01"},
		{"passive B", top("10.00", "10.05"), top("10.00", "10.10"), domain.OpportunityPassive, domain.DirectionB, domain.SideBid, "10.01", domain.SideAsk, "10.09"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := c.Classify(dualPair, direct(tt.pri, tt.sec))
			if opp.Kind != tt.kind || opp.Direction != tt.dir {
				t.Fatalf("Classify = %s/%s, want %s/%s", opp.Kind, opp.Direction, tt.kind, tt.dir)
			}
			assertLeg(t, "primary", opp.Primary, "ASML", tt.priSide, tt.priPrice)
			assertLeg(t, "secondary", opp.Secondary, "ASML_DUAL", tt.secSide, tt.secPrice)
		})
	}
}

func TestClassifyEqualPricesIsNone(t *testing.T) {
	c := Classifier{Quoting: domain.QuotingInside}
	opp := c.Classify(dualPair, direct(top("10.00", "10.05"), top("10.00", "10.05")))
	if opp.Kind != domain.OpportunityNone || opp.Tradable() {
		t.Errorf("Classify(equal books) = %s, want none", opp.Kind)
	}
}

func TestClassifyAskAnchored(t *testing.T) {
	pair := domain.PairConfig{Primary: "OB5X_ETF", Secondary: "OB5X_202509_F"}
	c := Classifier{Tick: DefaultTick, Quoting: domain.QuotingAskAnchored}
	fut := top("100.00", "100.10")

	// ETF offered above fair ask: rest a sell one tick inside, bid the future at its ask.
	opp := c.Classify(pair, Quotes{Primary: top("27.45", "27.55"), Compare: top("27.46", "27.50"), Execute: fut})
	if opp.Kind != domain.OpportunityPassive || opp.Direction != domain.DirectionA {
		t.Fatalf("Classify = %s/%s, want passive/A", opp.Kind, opp.Direction)
	}
	assertLeg(t, "primary", opp.Primary, "OB5X_ETF", domain.SideAsk, "27.54")
	assertLeg(t, "secondary", opp.Secondary, "OB5X_202509_F", domain.SideBid, "100.10")

	opp = c.Classify(pair, Quotes{Primary: top("27.44", "27.48"), Compare: top("27.46", "27.50"), Execute: fut})
	if opp.Kind != domain.OpportunityPassive || opp.Direction != domain.DirectionB {
		t.Fatalf("Classify = %s/%s, want passive/B", opp.Kind, opp.Direction)
	}
	assertLeg(t, "primary", opp.Primary, "OB5X_ETF", domain.SideBid, "27.48")
	assertLeg(t, "secondary", opp.Secondary, "OB5X_202509_F", domain.SideAsk, "100.09")

	// Fair bid above the ETF ask: buy the ETF, sell the future at its real bid.
	opp = c.Classify(pair, Quotes{Primary: top("27.30", "27.40"), Compare: top("27.46", "27.50"), Execute: fut})
	if opp.Kind != domain.OpportunityActive || opp.Direction != domain.DirectionA {
		t.Fatalf("Classify = %s/%s, want active/A", opp.Kind, opp.Direction)
	}
	assertLeg(t, "secondary", opp.Secondary, "OB5X_202509_F", domain.SideAsk, "100.00")
}

// Every well-ordered quote combination maps to exactly one class, and the
// emitted legs never cross an empty set of own orders.
func TestClassifyTotal(t *testing.T) {
	c := Classifier{Tick: DefaultTick, Quoting: domain.QuotingInside}
	prices := make([]decimal.Decimal, 0, 8)
	for i := 0; i < 8; i++ {
		prices = append(prices, decimal.New(1000+int64(i)*5, -2))
	}
	counts := map[string]int{}
	for _, pb := range prices {
		for _, pa := range prices {
			if !pa.GreaterThan(pb) {
				continue
			}
			for _, sb := range prices {
				for _, sa := range prices {
					if !sa.GreaterThan(sb) {
						continue
					}
					pri := domain.TopOfBook{Bid: pb, Ask: pa}
					sec := domain.TopOfBook{Bid: sb, Ask: sa}
					opp := c.Classify(dualPair, direct(pri, sec))

					matches := 0
					if sb.GreaterThan(pa) {
						matches++
					}
					if matches == 0 && pb.GreaterThan(sa) {
						matches++
					}
					if matches == 0 && !pa.Equal(sa) {
						matches++
					}
					if (matches == 1) != opp.Tradable() {
						t.Fatalf("pri %s/%s sec %s/%s classified %s", pb, pa, sb, sa, opp.Kind)
					}
					counts[string(opp.Kind)+string(opp.Direction)]++

					if opp.Tradable() {
						for _, leg := range []domain.Leg{opp.Primary, opp.Secondary} {
							if CrossesOwnOrders(leg.Side, leg.Price, nil) {
								t.Fatalf("leg %v crosses empty order set", leg)
							}
						}
					}
				}
			}
		}
	}
	for _, k := range []string{"activeA", "activeB", "passiveA", "passiveB", "none"} {
		if counts[k] == 0 {
			t.Errorf("class %s never produced", k)
		}
	}
}
