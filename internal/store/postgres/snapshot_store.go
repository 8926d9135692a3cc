package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Save upserts the snapshot of a cycle.
func (s *SnapshotStore) Save(ctx context.Context, snap domain.PositionSnapshot) error {
	positions, err := json.Marshal(snap.Positions)
	if err != nil {
		return fmt.Errorf("postgres: marshal positions: %w", err)
	}
	pnl := ""
	if snap.PnL.Valid {
		pnl = snap.PnL.Decimal.String()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO position_snapshots (cycle_id, positions, pnl, taken_at)
		VALUES ($1, $2, NULLIF($3, '')::numeric, $4)
		ON CONFLICT (cycle_id) DO UPDATE SET
			positions = EXCLUDED.positions,
			pnl = EXCLUDED.pnl,
			taken_at = EXCLUDED.taken_at`,
		snap.CycleID, positions, pnl, snap.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save snapshot %s: %w", snap.CycleID, err)
	}
	return nil
}

// Latest returns the most recent snapshot or domain.ErrNotFound.
func (s *SnapshotStore) Latest(ctx context.Context) (domain.PositionSnapshot, error) {
	var snap domain.PositionSnapshot
	var positions []byte
	var pnl *string
	err := s.pool.QueryRow(ctx, `
		SELECT cycle_id, positions, pnl::text, taken_at
		FROM position_snapshots ORDER BY taken_at DESC LIMIT 1`,
	).Scan(&snap.CycleID, &positions, &pnl, &snap.TakenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PositionSnapshot{}, domain.ErrNotFound
		}
		return domain.PositionSnapshot{}, fmt.Errorf("postgres: latest snapshot: %w", err)
	}

	if err := json.Unmarshal(positions, &snap.Positions); err != nil {
		return domain.PositionSnapshot{}, fmt.Errorf("postgres: unmarshal positions: %w", err)
	}
	if pnl != nil {
		d, err := decimal.NewFromString(*pnl)
		if err != nil {
			return domain.PositionSnapshot{}, fmt.Errorf("postgres: parse pnl %q: %w", *pnl, err)
		}
		snap.PnL = decimal.NewNullDecimal(d)
	}
	return snap, nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
