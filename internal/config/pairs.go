package config

import (
	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// ToPairs converts the [[pairs]] tables into engine pair configurations.
// Call it on a validated Config.
func (c *Config) ToPairs() []domain.PairConfig {
	out := make([]domain.PairConfig, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		pc := domain.PairConfig{
			Name:      p.Name,
			Primary:   p.Primary,
			Secondary: p.Secondary,
			Kind:      domain.PairKind(p.Kind),
			Quoting:   domain.QuotingStyle(p.Quoting),
			Sizing: domain.Sizing{
				Base:         p.Sizing.Base,
				ActiveBonus:  p.Sizing.ActiveBonus,
				PassiveBonus: p.Sizing.PassiveBonus,
			},
			ActiveOrderType: domain.OrderType(p.ActiveOrderType),
		}
		if p.Model != nil {
			pc.Model = &domain.FairValueParams{
				Rate:         p.Model.Rate,
				TimeFraction: p.Model.TimeFraction,
				Multiplier:   decimal.NewFromFloat(p.Model.Multiplier),
				Offset:       decimal.NewFromFloat(p.Model.Offset),
				Buffer:       decimal.NewFromFloat(p.Model.Buffer),
			}
		}
		out = append(out, pc)
	}
	return out
}

// TickSize returns the engine tick. An unparsable tick yields zero, which
// the engine replaces with its default.
func (c *Config) TickSize() decimal.Decimal {
	tick, err := decimal.NewFromString(c.Engine.Tick)
	if err != nil {
		return decimal.Zero
	}
	return tick
}

// DeRiskThreshold converts engine.derisk.threshold_pct into lots, rounding
// up so de-risking never starts below the configured share of the limit.
func (c *Config) DeRiskThreshold() int {
	return (c.Engine.PositionLimit*c.Engine.DeRisk.ThresholdPct + 99) / 100
}
