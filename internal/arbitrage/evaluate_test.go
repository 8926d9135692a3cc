package arbitrage

import (
	"testing"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

var params = Params{PositionLimit: 100, Tick: DefaultTick}

func snapshot(positions map[string]int, books ...domain.Book) Snapshot {
	s := Snapshot{
		Positions:   positions,
		Books:       map[string]domain.Book{},
		Outstanding: map[string]map[string]domain.OutstandingOrder{},
	}
	for _, b := range books {
		s.Books[b.InstrumentID] = b
	}
	return s
}

func TestEvaluateActiveArb(t *testing.T) {
	snap := snapshot(map[string]int{"ASML": 0, "ASML_DUAL": 10},
		book("ASML", []string{"10.00"}, []string{"10.05"}),
		book("ASML_DUAL", []string{"10.10"}, []string{"10.15"}),
	)
	plan := Evaluate(dualPair, snap, params)
	if plan.Outcome != domain.OutcomeEmitted {
		t.Fatalf("Outcome = %s (%s), want emitted", plan.Outcome, plan.Reason)
	}
	if len(plan.Orders) != 2 || len(plan.CancelFirst) != 0 {
		t.Fatalf("orders=%d cancel=%v, want 2 orders and no cancels", len(plan.Orders), plan.CancelFirst)
	}
	pri, sec := plan.Orders[0], plan.Orders[1]
	if pri.Side != domain.SideBid || !pri.Price.Equal(dec("10.05")) || pri.Volume != 30 || pri.Type != domain.OrderTypeIOC {
		t.Errorf("primary = %v, want bid 30 @ 10.05 ioc", pri)
	}
	if sec.Side != domain.SideAsk || !sec.Price.Equal(dec("10.10")) || sec.Volume != 30 || sec.Type != domain.OrderTypeIOC {
		t.Errorf("secondary = %v, want ask 30 @ 10.10 ioc", sec)
	}
}

func TestEvaluatePassiveArb(t *testing.T) {
	snap := snapshot(map[string]int{"ASML": -5, "ASML_DUAL": 5},
		book("ASML", []string{"10.00"}, []string{"10.10"}),
		book("ASML_DUAL", []string{"10.00"}, []string{"10.05"}),
	)
	plan := Evaluate(dualPair, snap, params)
	if plan.Outcome != domain.OutcomeEmitted {
		t.Fatalf("Outcome = %s (%s), want emitted", plan.Outcome, plan.Reason)
	}
	pri, sec := plan.Orders[0], plan.Orders[1]
	if pri.Side != domain.SideAsk || !pri.Price.Equal(dec("10.09")) || pri.Volume != 4 || pri.Type != domain.OrderTypeLimit {
		t.Errorf("primary = %v, want ask 4 @ 10.09 limit", pri)
	}
	if sec.Side != domain.SideBid || !sec.Price.Equal(dec("10.01")) || sec.Volume != 4 || sec.Type != domain.OrderTypeLimit {
		t.Errorf("secondary = %v, want bid 4 @ 10.01 limit", sec)
	}
	if len(plan.CancelFirst) != 2 || plan.CancelFirst[0] != "ASML" || plan.CancelFirst[1] != "ASML_DUAL" {
		t.Errorf("CancelFirst = %v, want both instruments", plan.CancelFirst)
	}
}

func TestEvaluateLimitBreachWithholdsBothLegs(t *testing.T) {
	pair := dualPair
	pair.Sizing = domain.Sizing{Base: 5}
	snap := snapshot(map[string]int{"ASML": 98, "ASML_DUAL": 0},
		book("ASML", []string{"10.00"}, []string{"10.05"}),
		book("ASML_DUAL", []string{"10.10"}, []string{"10.15"}),
	)
	plan := Evaluate(pair, snap, params)
	if plan.Outcome != domain.OutcomeLimitBreach {
		t.Fatalf("Outcome = %s, want %s", plan.Outcome, domain.OutcomeLimitBreach)
	}
	if len(plan.Orders) != 0 {
		t.Errorf("Orders = %v, want none", plan.Orders)
	}
	if len(plan.Withheld) != 2 {
		t.Errorf("Withheld = %d orders, want 2", len(plan.Withheld))
	}
}

func TestEvaluateSelfTradeWithholdsBothLegs(t *testing.T) {
	snap := snapshot(map[string]int{},
		book("ASML", []string{"10.00"}, []string{"10.05"}),
		book("ASML_DUAL", []string{"10.10"}, []string{"10.15"}),
	)
	snap.Outstanding["ASML_DUAL"] = map[string]domain.OutstandingOrder{
		"o1": {OrderID: "o1", Side: domain.SideBid, Price: dec("10.10")},
	}
	plan := Evaluate(dualPair, snap, params)
	if plan.Outcome != domain.OutcomeSelfTrade {
		t.Fatalf("Outcome = %s, want %s", plan.Outcome, domain.OutcomeSelfTrade)
	}
	if len(plan.Orders) != 0 || len(plan.Withheld) != 2 {
		t.Errorf("orders=%d withheld=%d, want 0 and 2", len(plan.Orders), len(plan.Withheld))
	}
}

func TestEvaluateMissingBook(t *testing.T) {
	snap := snapshot(map[string]int{},
		book("ASML", []string{"10.00"}, []string{"10.05"}),
		book("ASML_DUAL", nil, []string{"10.15"}),
	)
	plan := Evaluate(dualPair, snap, params)
	if plan.Outcome != domain.OutcomeMissingMarketData {
		t.Errorf("Outcome = %s, want %s", plan.Outcome, domain.OutcomeMissingMarketData)
	}
	if len(plan.Orders) != 0 {
		t.Errorf("Orders = %v, want none", plan.Orders)
	}
}

func TestEvaluateETFFuture(t *testing.T) {
	p := etfParams()
	pair := domain.PairConfig{
		Name:            "ob5x",
		Primary:         "OB5X_ETF",
		Secondary:       "OB5X_202509_F",
		Kind:            domain.PairKindETFFuture,
		Model:           &p,
		Sizing:          domain.Sizing{Base: 3, ActiveBonus: 27, PassiveBonus: 27},
		Quoting:         domain.QuotingAskAnchored,
		ActiveOrderType: domain.OrderTypeLimit,
	}
	// Fair is 27.46/27.50; the ETF ask at 27.40 is cheap.
	snap := snapshot(map[string]int{"OB5X_ETF": 20, "OB5X_202509_F": -20},
		book("OB5X_ETF", []string{"27.30"}, []string{"27.40"}),
		book("OB5X_202509_F", []string{"100.00"}, []string{"100.10"}),
	)
	plan := Evaluate(pair, snap, params)
	if plan.Outcome != domain.OutcomeEmitted || plan.Opportunity.Kind != domain.OpportunityActive {
		t.Fatalf("plan = %s/%s (%s), want emitted active", plan.Outcome, plan.Opportunity.Kind, plan.Reason)
	}
	etf, fut := plan.Orders[0], plan.Orders[1]
	if etf.Side != domain.SideBid || !etf.Price.Equal(dec("27.40")) || etf.Volume != 3 || etf.Type != domain.OrderTypeLimit {
		t.Errorf("etf = %v, want bid 3 @ 27.40 limit", etf)
	}
	if fut.Side != domain.SideAsk || !fut.Price.Equal(dec("100.00")) || fut.Volume != 3 {
		t.Errorf("future = %v, want ask 3 @ 100.00", fut)
	}
	if len(plan.CancelFirst) != 0 {
		t.Errorf("CancelFirst = %v, want none for active", plan.CancelFirst)
	}
}

func TestEvaluateNoOpportunity(t *testing.T) {
	snap := snapshot(map[string]int{},
		book("ASML", []string{"10.00"}, []string{"10.05"}),
		book("ASML_DUAL", []string{"10.01"}, []string{"10.05"}),
	)
	plan := Evaluate(dualPair, snap, params)
	if plan.Outcome != domain.OutcomeNoOpportunity {
		t.Errorf("Outcome = %s, want %s", plan.Outcome, domain.OutcomeNoOpportunity)
	}
}
