package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// DecisionStore persists the decision journal.
type DecisionStore interface {
	Record(ctx context.Context, d Decision) error
	ListRecent(ctx context.Context, opts ListOpts) ([]Decision, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Decision, error)
}

// SnapshotStore persists per-cycle position and PnL snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, snap PositionSnapshot) error
	Latest(ctx context.Context) (PositionSnapshot, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log. List matches event as a
// prefix; an empty event lists everything.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, event string, opts ListOpts) ([]AuditEntry, error)
}
