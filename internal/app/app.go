// Package app wires the pair arbitrage engine together and runs it in one of
// its operating modes: trade, paper, server or full.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cyrustjj/optiver-trading-challenge/internal/config"
)

// App owns the configuration and the cleanup functions registered while
// wiring, which Close runs in reverse order.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies the mode needs and blocks in the mode until ctx
// is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	run, ok := map[string]func(context.Context, *Dependencies) error{
		"trade":  a.TradeMode,
		"paper":  a.TradeMode,
		"server": a.ServerMode,
		"full":   a.FullMode,
	}[mode]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", mode),
		slog.Int("pairs", len(a.cfg.Pairs)),
		slog.Bool("engine", a.cfg.RunsEngine()),
	)
	for _, w := range a.cfg.Warnings() {
		a.logger.WarnContext(ctx, "config warning", slog.String("warning", w))
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return run(ctx, deps)
}

// Close releases everything Run acquired. Repeated calls do nothing.
func (a *App) Close() {
	if len(a.closers) == 0 {
		return
	}
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
