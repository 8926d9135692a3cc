package domain

import (
	"context"
	"time"
)

// BookCache keeps the last top-of-book seen by the engine for dashboards.
// The engine never reads it back for decisions.
type BookCache interface {
	SetTop(ctx context.Context, book Book) error
	GetTop(ctx context.Context, instrumentID string) (TopOfBook, time.Time, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// Lease is a held lock. Refresh extends it by its original TTL and fails
// with ErrLockHeld once another holder owns the key.
type Lease interface {
	Refresh(ctx context.Context) error
	Release()
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
