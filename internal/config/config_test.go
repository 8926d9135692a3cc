package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v", err)
	}
	if w := cfg.Warnings(); len(w) != 0 {
		t.Errorf("Warnings() = %v, want none", w)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "backtest" }, `unknown mode "backtest"`},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "unknown log_level"},
		{"no pairs", func(c *Config) { c.Pairs = nil }, "at least one pair"},
		{"threshold above 100%", func(c *Config) { c.Engine.DeRisk.ThresholdPct = 101 }, "threshold_pct must be 1-100"},
		{"bad action", func(c *Config) { c.Engine.DeRisk.Action = "flatten" }, `unknown action "flatten"`},
		{"bad tick", func(c *Config) { c.Engine.Tick = "-0.01" }, "tick must be a positive decimal"},
		{"etf without model", func(c *Config) { c.Pairs[2].Model = nil }, "need a [pairs.model] table"},
		{"same legs", func(c *Config) { c.Pairs[0].Secondary = "ASML" }, "must differ"},
		{"bad quoting", func(c *Config) { c.Pairs[0].Quoting = "mid" }, `unknown quoting "mid"`},
		{"duplicate name", func(c *Config) { c.Pairs[1].Name = "ASML" }, "duplicate name"},
		{"archive needs journal", func(c *Config) { c.S3.Enabled = true }, "archiving needs postgres.enabled"},
		{"rate limit needs redis", func(c *Config) { c.Exchange.OrderRateLimit = 5 }, "order_rate_limit needs redis"},
		{"half telegram", func(c *Config) { c.Notify.TelegramToken = "t" }, "must be set together"},
		{"postgres pool", func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.PoolMinConns = 20
		}, "pool_min_conns must not exceed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestServerModeNeedsNoPairs(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "server"
	cfg.Pairs = nil
	cfg.Exchange.BaseURL = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestWarningsSharedInstrument(t *testing.T) {
	cfg := Defaults()
	cfg.Pairs = append(cfg.Pairs, PairConfig{
		Name: "ASML_ETF", Primary: "ASML", Secondary: "ASML_ETF", Kind: "dual_listing",
		Quoting: "inside", ActiveOrderType: "ioc", Sizing: SizingConfig{Base: 1},
	})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("shared instrument must not fail validation: %v", err)
	}
	w := cfg.Warnings()
	if len(w) != 1 || w[0] != "instrument ASML is shared by pairs ASML, ASML_ETF" {
		t.Errorf("Warnings() = %v", w)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadReplacesPairCatalogue(t *testing.T) {
	path := writeFile(t, `
mode = "trade"

[engine]
interval = "250ms"
passive_settle = "2.5s"

[engine.derisk]
action = "halt"

[[pairs]]
primary = "OB5X_ETF"
secondary = "OB5X_202509_F"
kind = "etf_future"
active_order_type = "limit"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Mode != "trade" || cfg.Engine.Interval.Duration != 250*time.Millisecond ||
		cfg.Engine.PassiveSettle.Duration != 2500*time.Millisecond || cfg.Engine.DeRisk.Action != "halt" {
		t.Errorf("engine = %+v mode = %s", cfg.Engine, cfg.Mode)
	}
	if cfg.Engine.PositionLimit != 100 || cfg.Engine.DeRisk.Size != 10 {
		t.Errorf("defaults lost: %+v", cfg.Engine)
	}
	if len(cfg.Pairs) != 1 {
		t.Fatalf("pairs = %+v", cfg.Pairs)
	}
	p := cfg.Pairs[0]
	if p.Name != "OB5X_ETF" || p.Quoting != "ask_anchored" || p.ActiveOrderType != "limit" ||
		p.Sizing.Base != 3 || p.Model == nil || p.Model.Multiplier != 0.25 {
		t.Errorf("pair defaults = %+v model %+v", p, p.Model)
	}
}

func TestLoadKeepsDefaultPairs(t *testing.T) {
	cfg, err := Load(writeFile(t, `log_level = "debug"`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Pairs) != 3 || cfg.Pairs[2].Secondary != "OB5X_202509_F" {
		t.Errorf("pairs = %+v", cfg.Pairs)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PAIRARB_EXCHANGE_API_KEY", "from-env")
	t.Setenv("PAIRARB_ENGINE_POSITION_LIMIT", "50")
	t.Setenv("PAIRARB_ENGINE_DERISK_THRESHOLD_PCT", "47")
	t.Setenv("PAIRARB_NOTIFY_EVENTS", "derisk, exchange_error,")
	t.Setenv("PAIRARB_REDIS_BOOK_TTL", "30s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Exchange.APIKey != "from-env" || cfg.Engine.PositionLimit != 50 || cfg.Engine.DeRisk.ThresholdPct != 47 {
		t.Errorf("overrides not applied: %+v %+v", cfg.Exchange, cfg.Engine)
	}
	if got := cfg.Notify.Events; len(got) != 2 || got[1] != "exchange_error" {
		t.Errorf("events = %v", got)
	}
	if cfg.Redis.BookTTL.Duration != 30*time.Second {
		t.Errorf("book_ttl = %s", cfg.Redis.BookTTL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}

func TestToPairs(t *testing.T) {
	cfg := Defaults()
	pairs := cfg.ToPairs()
	if len(pairs) != 3 {
		t.Fatalf("len = %d", len(pairs))
	}
	if pairs[0].Kind != domain.PairKindDualListing || pairs[0].Model != nil || pairs[0].Sizing.ActiveBonus != 26 {
		t.Errorf("dual pair = %+v", pairs[0])
	}
	etf := pairs[2]
	if !etf.NeedsModel() || etf.Quoting != domain.QuotingAskAnchored || etf.ActiveOrderType != domain.OrderTypeIOC {
		t.Fatalf("etf pair = %+v", etf)
	}
	if !etf.Model.Multiplier.Equal(decimal.RequireFromString("0.25")) || !etf.Model.Offset.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("model = %+v", etf.Model)
	}
	if !cfg.TickSize().Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("tick = %s", cfg.TickSize())
	}
}

func TestDeRiskThreshold(t *testing.T) {
	tests := []struct {
		limit, pct, want int
	}{
		{100, 94, 94},
		{200, 94, 188},
		{50, 47, 24},
		{100, 100, 100},
	}
	for _, tt := range tests {
		cfg := Defaults()
		cfg.Engine.PositionLimit = tt.limit
		cfg.Engine.DeRisk.ThresholdPct = tt.pct
		if got := cfg.DeRiskThreshold(); got != tt.want {
			t.Errorf("limit %d at %d%%: DeRiskThreshold = %d, want %d", tt.limit, tt.pct, got, tt.want)
		}
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Exchange.APIKey = "k"
	cfg.Postgres.Password = "pw"
	cfg.Notify.TelegramToken = "tok"

	out := RedactedConfig(&cfg)
	if out.Exchange.APIKey != redacted || out.Postgres.Password != redacted || out.Notify.TelegramToken != redacted {
		t.Errorf("secrets not redacted: %+v", out)
	}
	if out.Server.APIKey != "" {
		t.Errorf("empty secret became %q", out.Server.APIKey)
	}
	if cfg.Exchange.APIKey != "k" {
		t.Errorf("original mutated")
	}
	out.Pairs[2].Model.Rate = 1
	out.Notify.Events[0] = "x"
	if cfg.Pairs[2].Model.Rate != 0.03 || cfg.Notify.Events[0] != "derisk" {
		t.Errorf("redacted copy shares memory with original")
	}
}
