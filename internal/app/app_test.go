package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cyrustjj/optiver-trading-challenge/internal/config"
	"github.com/cyrustjj/optiver-trading-challenge/internal/exchange"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestWirePaperWithoutBackends(t *testing.T) {
	cfg := config.Defaults()
	deps, cleanup, err := Wire(context.Background(), &cfg, discard())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if _, ok := deps.Exchange.(*exchange.Paper); !ok {
		t.Errorf("exchange = %T, want *exchange.Paper", deps.Exchange)
	}
	if deps.DecisionStore != nil || deps.SignalBus != nil || deps.Archiver != nil {
		t.Errorf("disabled backends wired: %+v", deps)
	}
	if deps.Metrics == nil || deps.Notifier == nil {
		t.Errorf("metrics or notifier missing")
	}
	if len(deps.HealthChecks) != 0 {
		t.Errorf("health checks = %v", deps.HealthChecks)
	}

	positions, err := deps.Exchange.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 6 {
		t.Errorf("paper instruments = %v, want the six pair legs", positions)
	}
}

func TestWireServerModeHasNoExchange(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "server"
	deps, cleanup, err := Wire(context.Background(), &cfg, discard())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()
	if deps.Exchange != nil {
		t.Errorf("exchange = %T, want nil", deps.Exchange)
	}
}

func TestInstrumentsDeduplicates(t *testing.T) {
	cfg := config.Defaults()
	cfg.Pairs = append(cfg.Pairs, config.PairConfig{Primary: "ASML", Secondary: "ASML_ETF"})
	got := instruments(&cfg)
	want := []string{"ASML", "ASML_DUAL", "SAP", "SAP_DUAL", "OB5X_ETF", "OB5X_202509_F", "ASML_ETF"}
	if len(got) != len(want) {
		t.Fatalf("instruments = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instruments[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBuildEngine(t *testing.T) {
	cfg := config.Defaults()
	deps, cleanup, err := Wire(context.Background(), &cfg, discard())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	a := New(&cfg, discard())
	eng := a.buildEngine(deps)
	if got := len(eng.Pairs()); got != 3 {
		t.Errorf("pairs = %d, want 3", got)
	}
	if _, ok := eng.LastReport(); ok {
		t.Errorf("LastReport before any cycle")
	}
}

func TestServerModeStopsOnCancel(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "server"
	cfg.Server.Port = 0

	a := New(&cfg, discard())
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Errorf("Run = %v, want nil on shutdown", err)
	}
}
