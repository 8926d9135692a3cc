package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// DecisionStore implements domain.DecisionStore. A decision and its orders
// are written in one transaction.
type DecisionStore struct {
	pool *pgxpool.Pool
}

// NewDecisionStore creates a DecisionStore.
func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

const decisionSelectCols = `id, cycle_id, pair, outcome, reason, opportunity, direction, created_at`

// Record inserts d and its orders.
func (s *DecisionStore) Record(ctx context.Context, d domain.Decision) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO decisions (`+decisionSelectCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.CycleID, d.Pair, string(d.Outcome), d.Reason,
		string(d.Opportunity), string(d.Direction), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert decision %s: %w", d.ID, err)
	}

	for i, o := range d.Orders {
		// Prices travel as text so NUMERIC keeps every digit.
		_, err = tx.Exec(ctx, `
			INSERT INTO decision_orders (decision_id, seq, instrument_id, side, price, volume, order_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			d.ID, i, o.InstrumentID, string(o.Side), o.Price.String(), o.Volume, string(o.Type),
		)
		if err != nil {
			return fmt.Errorf("postgres: insert decision order %s/%d: %w", d.ID, i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit decision %s: %w", d.ID, err)
	}
	return nil
}

// ListRecent returns decisions newest first.
func (s *DecisionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Decision, error) {
	query := `SELECT ` + decisionSelectCols + ` FROM decisions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}
	query += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)
	argIdx++
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.list(ctx, query, args...)
}

// ListBetween returns decisions created in [from, to), oldest first.
func (s *DecisionStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Decision, error) {
	return s.list(ctx, `
		SELECT `+decisionSelectCols+` FROM decisions
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id`, from, to)
}

func (s *DecisionStore) list(ctx context.Context, query string, args ...any) ([]domain.Decision, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions: %w", err)
	}
	defer rows.Close()

	var list []domain.Decision
	index := make(map[string]int)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan decision: %w", err)
		}
		index[d.ID] = len(list)
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list decisions rows: %w", err)
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]string, len(list))
	for i, d := range list {
		ids[i] = d.ID
	}
	if err := s.attachOrders(ctx, list, index, ids); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *DecisionStore) attachOrders(ctx context.Context, list []domain.Decision, index map[string]int, ids []string) error {
	rows, err := s.pool.Query(ctx, `
		SELECT decision_id, instrument_id, side, price::text, volume, order_type
		FROM decision_orders WHERE decision_id = ANY($1)
		ORDER BY decision_id, seq`, ids)
	if err != nil {
		return fmt.Errorf("postgres: list decision orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, side, price, orderType string
		var o domain.Order
		if err := rows.Scan(&id, &o.InstrumentID, &side, &price, &o.Volume, &orderType); err != nil {
			return fmt.Errorf("postgres: scan decision order: %w", err)
		}
		if o.Side, err = domain.ParseSide(side); err != nil {
			return fmt.Errorf("postgres: decision order %s: %w", id, err)
		}
		if o.Price, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("postgres: decision order %s price %q: %w", id, price, err)
		}
		o.Type = domain.OrderType(orderType)
		i := index[id]
		list[i].Orders = append(list[i].Orders, o)
	}
	return rows.Err()
}

func scanDecision(row pgx.Row) (domain.Decision, error) {
	var d domain.Decision
	var outcome, opportunity, direction string
	if err := row.Scan(&d.ID, &d.CycleID, &d.Pair, &outcome, &d.Reason, &opportunity, &direction, &d.CreatedAt); err != nil {
		return domain.Decision{}, err
	}
	d.Outcome = domain.Outcome(outcome)
	d.Opportunity = domain.OpportunityKind(opportunity)
	d.Direction = domain.Direction(direction)
	return d, nil
}

var _ domain.DecisionStore = (*DecisionStore)(nil)
