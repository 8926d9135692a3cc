package arbitrage

import "github.com/cyrustjj/optiver-trading-challenge/internal/domain"

// Sizer converts an opportunity leg into a lot count, trading large when the
// leg flattens inventory and small when it adds to it.
type Sizer struct {
	domain.Sizing
}

// Reduces reports whether trading on side moves position toward flat. A flat
// position counts as reducing on both sides.
func Reduces(position int, side domain.Side) bool {
	return (position >= 0 && side == domain.SideAsk) || (position <= 0 && side == domain.SideBid)
}

// Size returns the volume for one leg. Legs are sized independently.
func (s Sizer) Size(kind domain.OpportunityKind, side domain.Side, position int) int {
	volume := s.Base
	if !Reduces(position, side) {
		return volume
	}
	switch kind {
	case domain.OpportunityActive:
		volume += s.ActiveBonus
	case domain.OpportunityPassive:
		volume += s.PassiveBonus
	}
	return volume
}
