package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
	"github.com/cyrustjj/optiver-trading-challenge/internal/engine"
	"github.com/cyrustjj/optiver-trading-challenge/internal/server"
	"github.com/cyrustjj/optiver-trading-challenge/internal/server/handler"
	"github.com/cyrustjj/optiver-trading-challenge/internal/server/ws"
)

const (
	shutdownTimeout = 5 * time.Second
	// archiveLag keeps the archive window clear of decisions still being
	// committed.
	archiveLag = time.Minute
	// replayWindow is how much recent decision history a new dashboard
	// client receives.
	replayWindow = 5 * time.Minute
)

// TradeMode runs the engine against the configured exchange (the gateway in
// trade mode, the paper simulator in paper mode) plus the HTTP API.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode", slog.String("mode", a.cfg.Mode))

	g, ctx := errgroup.WithContext(ctx)
	eng := a.buildEngine(deps)
	a.startEngine(ctx, g, eng, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng)
	}
	return g.Wait()
}

// ServerMode serves the journal and dashboards without trading.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, nil)
	return g.Wait()
}

// FullMode is TradeMode plus the periodic journal archive.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	eng := a.buildEngine(deps)
	a.startEngine(ctx, g, eng, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng)
	}
	if deps.Archiver != nil {
		a.startArchiver(ctx, g, deps.Archiver)
	} else {
		a.logger.InfoContext(ctx, "archiver: s3 or postgres disabled, journal archive skipped")
	}
	return g.Wait()
}

// buildEngine creates the engine and attaches every wired collaborator.
func (a *App) buildEngine(deps *Dependencies) *engine.Engine {
	ec := a.cfg.Engine
	eng := engine.New(deps.Exchange, a.cfg.ToPairs(), engine.Config{
		Interval:      ec.Interval.Duration,
		PositionLimit: ec.PositionLimit,
		Tick:          a.cfg.TickSize(),
		DeRisk: engine.DeRiskConfig{
			Threshold:      a.cfg.DeRiskThreshold(),
			Size:           ec.DeRisk.Size,
			Action:         engine.DeRiskAction(ec.DeRisk.Action),
			CheckSelfTrade: ec.DeRisk.CheckSelfTrade,
		},
		PassiveSettle: ec.PassiveSettle.Duration,
		LockKey:       ec.LockKey,
		LockTTL:       ec.LockTTL.Duration,
	}, a.logger)

	if deps.DecisionStore != nil {
		eng.SetJournal(deps.DecisionStore, deps.SnapshotStore)
	}
	if deps.SignalBus != nil {
		eng.SetBus(deps.SignalBus)
	}
	if deps.BookCache != nil {
		eng.SetBookCache(deps.BookCache)
	}
	if deps.LockManager != nil && a.cfg.Mode != "paper" {
		eng.SetLockManager(deps.LockManager)
	}
	eng.SetMetrics(deps.Metrics)
	eng.SetNotifier(deps.Notifier)
	return eng
}

// startEngine records the session start in the audit log and runs the
// engine loop in g.
func (a *App) startEngine(ctx context.Context, g *errgroup.Group, eng *engine.Engine, deps *Dependencies) {
	if deps.AuditStore != nil {
		names := make([]string, 0, len(a.cfg.Pairs))
		for _, p := range a.cfg.Pairs {
			names = append(names, p.Name)
		}
		if err := deps.AuditStore.Log(ctx, "engine.started", map[string]any{
			"mode":           a.cfg.Mode,
			"pairs":          names,
			"position_limit": a.cfg.Engine.PositionLimit,
			"derisk_action":  a.cfg.Engine.DeRisk.Action,
		}); err != nil {
			a.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}

	g.Go(func() error {
		return eng.Run(ctx)
	})
}

// startArchiver uploads the journal once at start and then every
// s3.archive_interval.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, archiver domain.Archiver) {
	interval := a.cfg.S3.ArchiveInterval.Duration

	g.Go(func() error {
		runOnce := func() {
			n, err := archiver.ArchiveDecisions(ctx, time.Now().UTC().Add(-archiveLag))
			if err != nil {
				if ctx.Err() == nil {
					a.logger.ErrorContext(ctx, "archiver: run failed", slog.String("error", err.Error()))
				}
				return
			}
			a.logger.DebugContext(ctx, "archiver: run complete", slog.Int64("decisions", n))
		}

		runOnce()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				runOnce()
			}
		}
	})

	a.logger.InfoContext(ctx, "archiver started", slog.Duration("interval", interval))
}

// startHTTPServer adds the HTTP server goroutines to g. eng is nil in server
// mode. The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine.Engine) {
	var state handler.EngineState
	if eng != nil {
		state = eng
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status:    handler.NewStatusHandler(a.cfg.Mode, state),
		Positions: handler.NewPositionHandler(state, deps.SnapshotStore, a.logger),
		Metrics:   deps.Metrics.Handler(),
	}
	if deps.DecisionStore != nil {
		handlers.Decisions = handler.NewDecisionHandler(deps.DecisionStore, a.logger)
	}
	if deps.BookCache != nil {
		handlers.Books = handler.NewBookHandler(deps.BookCache, a.logger)
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ws.Config{
			Mode:          a.cfg.Mode,
			Channels:      []string{engine.ChannelDecision, engine.ChannelCycle},
			ReplayStream:  engine.StreamDecisions,
			ReplayChannel: engine.ChannelDecision,
			ReplayWindow:  replayWindow,
		}, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  time.Second,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
