package arbitrage

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func book(id string, bids, asks []string) domain.Book {
	b := domain.Book{InstrumentID: id}
	for _, p := range bids {
		b.Bids = append(b.Bids, domain.PriceLevel{Price: dec(p), Volume: 50})
	}
	for _, p := range asks {
		b.Asks = append(b.Asks, domain.PriceLevel{Price: dec(p), Volume: 50})
	}
	return b
}

func TestLedgerWouldBreach(t *testing.T) {
	tests := []struct {
		name     string
		position int
		volume   int
		side     domain.Side
		want     bool
	}{
		{"bid lands on limit", 96, 4, domain.SideBid, false},
		{"bid over limit", 98, 5, domain.SideBid, true},
		{"bid from short", -100, 30, domain.SideBid, false},
		{"ask lands on limit", -70, 30, domain.SideAsk, false},
		{"ask over limit", -80, 21, domain.SideAsk, true},
		{"ask from long", 100, 30, domain.SideAsk, false},
		{"flat small", 0, 4, domain.SideBid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(map[string]int{"ASML": tt.position}, 100)
			got, err := l.WouldBreach("ASML", tt.volume, tt.side)
			if err != nil {
				t.Fatalf("WouldBreach: %v", err)
			}
			if got != tt.want {
				t.Errorf("WouldBreach(pos=%d, v=%d, %s) = %v, want %v", tt.position, tt.volume, tt.side, got, tt.want)
			}
		})
	}
}

func TestLedgerWouldBreachProperty(t *testing.T) {
	const limit = 100
	for p := -limit; p <= limit; p += 7 {
		for v := 1; v <= 40; v += 3 {
			l := NewLedger(map[string]int{"X": p}, limit)
			bid, _ := l.WouldBreach("X", v, domain.SideBid)
			if bid != (p+v > limit) {
				t.Errorf("bid p=%d v=%d: got %v", p, v, bid)
			}
			ask, _ := l.WouldBreach("X", v, domain.SideAsk)
			if ask != (p-v < -limit) {
				t.Errorf("ask p=%d v=%d: got %v", p, v, ask)
			}
		}
	}
}

func TestLedgerInvalidSide(t *testing.T) {
	l := NewLedger(map[string]int{"X": 0}, 100)
	if _, err := l.WouldBreach("X", 1, domain.Side("buy")); !errors.Is(err, domain.ErrInvalidSide) {
		t.Errorf("WouldBreach err = %v, want ErrInvalidSide", err)
	}
	if _, _, err := l.AmountToUnwind("X", 1, domain.Side("")); !errors.Is(err, domain.ErrInvalidSide) {
		t.Errorf("AmountToUnwind err = %v, want ErrInvalidSide", err)
	}
}

func TestLedgerAmountToUnwind(t *testing.T) {
	l := NewLedger(map[string]int{"L": 95, "S": -90}, 100)

	side, n, err := l.AmountToUnwind("L", 10, domain.SideBid)
	if err != nil || side != domain.SideAsk || n != 5 {
		t.Errorf("AmountToUnwind(L) = %s, %d, %v, want ask, 5, nil", side, n, err)
	}
	side, n, err = l.AmountToUnwind("S", 15, domain.SideAsk)
	if err != nil || side != domain.SideBid || n != 5 {
		t.Errorf("AmountToUnwind(S) = %s, %d, %v, want bid, 5, nil", side, n, err)
	}
}

func TestLedgerNearLimit(t *testing.T) {
	l := NewLedger(map[string]int{"A": 95, "B": -94, "C": 93, "D": 0}, 100)
	got := l.NearLimit(94)
	want := []string{"A", "B"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NearLimit = %v, want %v", got, want)
	}
}

func TestLedgerDeRiskOrder(t *testing.T) {
	l := NewLedger(map[string]int{"LONG": 95, "SHORT": -97, "FLAT": 0}, 100)

	o, ok := l.DeRiskOrder("LONG", book("LONG", []string{"10.00", "9.99"}, []string{"10.05"}), 10)
	if !ok {
		t.Fatal("DeRiskOrder(LONG) not emitted")
	}
	want := domain.Order{InstrumentID: "LONG", Side: domain.SideAsk, Price: dec("10.00"), Volume: 10, Type: domain.OrderTypeIOC}
	if o.Side != want.Side || !o.Price.Equal(want.Price) || o.Volume != want.Volume || o.Type != want.Type {
		t.Errorf("DeRiskOrder(LONG) = %v, want %v", o, want)
	}

	o, ok = l.DeRiskOrder("SHORT", book("SHORT", nil, []string{"20.10"}), 10)
	if !ok || o.Side != domain.SideBid || !o.Price.Equal(dec("20.10")) {
		t.Errorf("DeRiskOrder(SHORT) = %v, %v, want bid @ 20.10", o, ok)
	}

	if _, ok := l.DeRiskOrder("LONG", book("LONG", nil, []string{"10.05"}), 10); ok {
		t.Error("DeRiskOrder(LONG) without bids should not emit")
	}
	if _, ok := l.DeRiskOrder("FLAT", book("FLAT", []string{"1"}, []string{"2"}), 10); ok {
		t.Error("DeRiskOrder(FLAT) should not emit")
	}
}
