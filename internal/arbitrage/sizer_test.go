package arbitrage

import (
	"testing"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

func TestSizerSize(t *testing.T) {
	dual := Sizer{domain.Sizing{Base: 4, ActiveBonus: 26, PassiveBonus: 16}}
	tests := []struct {
		name     string
		kind     domain.OpportunityKind
		side     domain.Side
		position int
		want     int
	}{
		{"active sell while long", domain.OpportunityActive, domain.SideAsk, 40, 30},
		{"active buy while long", domain.OpportunityActive, domain.SideBid, 40, 4},
		{"active buy while short", domain.OpportunityActive, domain.SideBid, -12, 30},
		{"active sell while short", domain.OpportunityActive, domain.SideAsk, -12, 4},
		{"active flat bid", domain.OpportunityActive, domain.SideBid, 0, 30},
		{"active flat ask", domain.OpportunityActive, domain.SideAsk, 0, 30},
		{"passive sell while long", domain.OpportunityPassive, domain.SideAsk, 5, 20},
		{"passive buy while long", domain.OpportunityPassive, domain.SideBid, 5, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dual.Size(tt.kind, tt.side, tt.position); got != tt.want {
				t.Errorf("Size = %d, want %d", got, tt.want)
			}
		})
	}
}
