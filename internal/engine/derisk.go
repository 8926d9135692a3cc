package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cyrustjj/optiver-trading-challenge/internal/arbitrage"
	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// deRisk runs once per cycle before any pair is evaluated. Every held
// instrument at or beyond the threshold is either unwound with a fixed-size
// IOC order or halted for the cycle. It returns the number of orders sent.
func (e *Engine) deRisk(ctx context.Context, c *cycle) (int, error) {
	dr := e.cfg.DeRisk
	if dr.Threshold <= 0 {
		return 0, nil
	}
	ledger := arbitrage.NewLedger(c.positions, e.cfg.PositionLimit)

	sent := 0
	for _, id := range ledger.NearLimit(dr.Threshold) {
		book, err := e.exchange.GetLastPriceBook(ctx, id)
		if err != nil {
			e.exchangeError(ctx, "get_book", err)
			return sent, fmt.Errorf("engine: derisk book %s: %w", id, err)
		}
		order, ok := ledger.DeRiskOrder(id, book, dr.Size)
		if !ok {
			e.logger.InfoContext(ctx, "near limit but no liquidity on unwind side",
				slog.String("instrument", id),
				slog.Int("position", ledger.Position(id)),
			)
			continue
		}

		if dr.Action == DeRiskHalt {
			c.halted[id] = true
			c.report.Halted = append(c.report.Halted, id)
			e.logger.WarnContext(ctx, "position about to breach limit, removing trades on it",
				slog.String("instrument", id),
				slog.Int("position", ledger.Position(id)),
			)
			continue
		}

		if dr.CheckSelfTrade {
			own, err := e.exchange.GetOutstandingOrders(ctx, id)
			if err != nil {
				e.exchangeError(ctx, "get_outstanding_orders", err)
				return sent, fmt.Errorf("engine: derisk outstanding orders %s: %w", id, err)
			}
			if arbitrage.CrossesOwnOrders(order.Side, order.Price, own) {
				e.record(ctx, c, domain.Decision{
					Outcome: domain.OutcomeDeRiskSelfTrade,
					Reason:  fmt.Sprintf("unwind of %s would cross own resting orders", id),
					Orders:  []domain.Order{order},
				})
				continue
			}
		}

		if err := e.insert(ctx, order); err != nil {
			e.record(ctx, c, domain.Decision{
				Outcome: domain.OutcomeExchangeError,
				Reason:  fmt.Sprintf("unwind of %s (%s) not sent: %v", id, order, err),
			})
			return sent, err
		}
		sent++
		e.record(ctx, c, domain.Decision{
			Outcome: domain.OutcomeDeRisk,
			Reason:  fmt.Sprintf("reducing position %d in %s as about to breach position limit", ledger.Position(id), id),
			Orders:  []domain.Order{order},
		})
	}
	return sent, nil
}
