package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

const defaultLockTTL = 30 * time.Second

// Run drives RunCycle until ctx is cancelled. A failed cycle is logged and
// alerted on; the loop carries on with the next one after the usual delay.
// When a lock manager is set the engine holds a lease for the whole session
// and stops with an error if it loses it.
func (e *Engine) Run(ctx context.Context) error {
	if e.locks != nil {
		leaseCtx, release, err := e.holdLease(ctx)
		if err != nil {
			return err
		}
		defer release()
		ctx = leaseCtx
	}

	e.logger.InfoContext(ctx, "engine started",
		slog.Int("pairs", len(e.pairs)),
		slog.Duration("interval", e.cfg.Interval),
		slog.String("derisk_action", string(e.cfg.DeRisk.Action)),
	)
	defer e.logger.Info("engine stopped")
	e.notify(ctx, EventEngineStarted, "Engine started", fmt.Sprintf("%d pair(s), interval %s", len(e.pairs), e.cfg.Interval))

	for {
		report, err := e.RunCycle(ctx)
		if err != nil && ctx.Err() == nil {
			e.notify(ctx, EventExchangeError, "Cycle aborted", err.Error())
		}

		wait := e.cfg.Interval
		if report.PlacedPassive() {
			wait += e.cfg.PassiveSettle
		}
		if !sleep(ctx, wait) {
			return stopCause(ctx)
		}
	}
}

// stopCause returns the lease-loss error if that is what stopped the loop
// and nil for an ordinary shutdown.
func stopCause(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, domain.ErrLockHeld) {
		return cause
	}
	return nil
}

// holdLease acquires the engine lock and refreshes it in the background. The
// returned context is cancelled if the lease is lost to another holder.
func (e *Engine) holdLease(ctx context.Context) (context.Context, func(), error) {
	ttl := e.cfg.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	key := e.cfg.LockKey
	if key == "" {
		key = "engine"
	}

	lease, err := e.locks.Acquire(ctx, key, ttl)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, nil, fmt.Errorf("engine: another instance holds %q: %w", key, err)
		}
		return nil, nil, fmt.Errorf("engine: acquire lock: %w", err)
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-leaseCtx.Done():
				return
			case <-ticker.C:
				err := lease.Refresh(leaseCtx)
				if err == nil || leaseCtx.Err() != nil {
					continue
				}
				e.logger.ErrorContext(leaseCtx, "engine lease refresh failed", slog.String("error", err.Error()))
				if errors.Is(err, domain.ErrLockHeld) {
					cancel(fmt.Errorf("engine: lease %q lost: %w", key, err))
					return
				}
			}
		}
	}()

	return leaseCtx, func() {
		cancel(nil)
		<-done
		lease.Release()
	}, nil
}

// sleep waits for d or until ctx is done. It reports whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
