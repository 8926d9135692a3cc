// Package config defines the top-level configuration of the pair arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PAIRARB_* environment variables.
type Config struct {
	Exchange ExchangeConfig `toml:"exchange"`
	Engine   EngineConfig   `toml:"engine"`
	Pairs    []PairConfig   `toml:"pairs"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ExchangeConfig holds the exchange gateway endpoint and credentials.
type ExchangeConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
	// OrderRateLimit caps order inserts per second across instances. Zero
	// disables it. Needs redis.
	OrderRateLimit int `toml:"order_rate_limit"`
}

// EngineConfig holds the cycle knobs.
type EngineConfig struct {
	Interval      duration     `toml:"interval"`
	PositionLimit int          `toml:"position_limit"`
	Tick          string       `toml:"tick"`
	DeRisk        DeRiskConfig `toml:"derisk"`
	PassiveSettle duration     `toml:"passive_settle"`
	LockKey       string       `toml:"lock_key"`
	LockTTL       duration     `toml:"lock_ttl"`
}

// DeRiskConfig holds the pre-trade de-risk parameters.
type DeRiskConfig struct {
	// ThresholdPct is the near-limit trigger as a percentage of
	// engine.position_limit.
	ThresholdPct   int    `toml:"threshold_pct"`
	Size           int    `toml:"size"`
	Action         string `toml:"action"`
	CheckSelfTrade bool   `toml:"check_self_trade"`
}

// PairConfig describes one [[pairs]] entry.
type PairConfig struct {
	Name            string       `toml:"name"`
	Primary         string       `toml:"primary"`
	Secondary       string       `toml:"secondary"`
	Kind            string       `toml:"kind"`
	Quoting         string       `toml:"quoting"`
	ActiveOrderType string       `toml:"active_order_type"`
	Sizing          SizingConfig `toml:"sizing"`
	Model           *ModelConfig `toml:"model"`
}

// SizingConfig holds per-leg lot sizes.
type SizingConfig struct {
	Base         int `toml:"base"`
	ActiveBonus  int `toml:"active_bonus"`
	PassiveBonus int `toml:"passive_bonus"`
}

// ModelConfig holds the cost-of-carry coefficients of an etf_future pair.
type ModelConfig struct {
	Rate         float64 `toml:"rate"`
	TimeFraction float64 `toml:"time_fraction"`
	Multiplier   float64 `toml:"multiplier"`
	Offset       float64 `toml:"offset"`
	Buffer       float64 `toml:"buffer"`
}

// PostgresConfig holds the journal database connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	URL          string   `toml:"url"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	BookTTL      duration `toml:"book_ttl"`
	StreamMaxLen int64    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	TelegramBaseURL   string   `toml:"telegram_base_url"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	Cooldown          duration `toml:"cooldown"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			BaseURL: "http://localhost:8080",
			Timeout: duration{10 * time.Second},
		},
		Engine: EngineConfig{
			Interval:      duration{100 * time.Millisecond},
			PositionLimit: 100,
			Tick:          "0.01",
			DeRisk: DeRiskConfig{
				ThresholdPct: 94,
				Size:      10,
				Action:    "unwind",
			},
			LockKey: "engine",
			LockTTL: duration{30 * time.Second},
		},
		Pairs: DefaultPairs(),
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "pairarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			BookTTL:      duration{time.Minute},
			StreamMaxLen: 100_000,
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "pairarb-journal",
			ForcePathStyle:  true,
			ArchiveInterval: duration{time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			TelegramBaseURL: "https://api.telegram.org",
			Events:          []string{"derisk", "limit_breach", "exchange_error", "engine_started"},
			Cooldown:        duration{time.Minute},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// DefaultPairs returns the three desks the engine was built for: two dual
// listings quoted inside the spread and one ETF against its future.
func DefaultPairs() []PairConfig {
	dual := SizingConfig{Base: 4, ActiveBonus: 26, PassiveBonus: 16}
	return []PairConfig{
		{Name: "ASML", Primary: "ASML", Secondary: "ASML_DUAL", Kind: "dual_listing", Quoting: "inside", ActiveOrderType: "ioc", Sizing: dual},
		{Name: "SAP", Primary: "SAP", Secondary: "SAP_DUAL", Kind: "dual_listing", Quoting: "inside", ActiveOrderType: "ioc", Sizing: dual},
		{
			Name:            "OB5X",
			Primary:         "OB5X_ETF",
			Secondary:       "OB5X_202509_F",
			Kind:            "etf_future",
			Quoting:         "ask_anchored",
			ActiveOrderType: "ioc",
			Sizing:          SizingConfig{Base: 3, ActiveBonus: 27, PassiveBonus: 27},
			Model:           &ModelConfig{Rate: 0.03, TimeFraction: 0.04, Multiplier: 0.25, Offset: 2.5, Buffer: 0.01},
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":  true,
	"paper":  true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// RunsEngine reports whether the mode trades.
func (c *Config) RunsEngine() bool {
	return c.Mode != "server"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, paper, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchange
	if c.RunsEngine() && c.Exchange.BaseURL == "" {
		errs = append(errs, "exchange: base_url must not be empty for mode "+c.Mode)
	}
	if c.Exchange.Timeout.Duration <= 0 {
		errs = append(errs, "exchange: timeout must be > 0")
	}
	if c.Exchange.OrderRateLimit < 0 {
		errs = append(errs, "exchange: order_rate_limit must be >= 0")
	}
	if c.Exchange.OrderRateLimit > 0 && !c.Redis.Enabled {
		errs = append(errs, "exchange: order_rate_limit needs redis.enabled")
	}

	// Engine
	if c.Engine.Interval.Duration < 0 {
		errs = append(errs, "engine: interval must be >= 0")
	}
	if c.Engine.PassiveSettle.Duration < 0 {
		errs = append(errs, "engine: passive_settle must be >= 0")
	}
	if c.Engine.PositionLimit < 1 {
		errs = append(errs, "engine: position_limit must be >= 1")
	}
	if tick, err := decimal.NewFromString(c.Engine.Tick); err != nil || !tick.IsPositive() {
		errs = append(errs, fmt.Sprintf("engine: tick must be a positive decimal, got %q", c.Engine.Tick))
	}
	d := c.Engine.DeRisk
	if d.ThresholdPct < 1 || d.ThresholdPct > 100 {
		errs = append(errs, fmt.Sprintf("engine.derisk: threshold_pct must be 1-100, got %d", d.ThresholdPct))
	}
	if d.Action != "unwind" && d.Action != "halt" {
		errs = append(errs, fmt.Sprintf("engine.derisk: unknown action %q (valid: unwind, halt)", d.Action))
	}
	if d.Action == "unwind" && d.Size < 1 {
		errs = append(errs, "engine.derisk: size must be >= 1 for action unwind")
	}

	// Pairs
	if c.RunsEngine() && len(c.Pairs) == 0 {
		errs = append(errs, "pairs: at least one pair is required for mode "+c.Mode)
	}
	names := make(map[string]bool, len(c.Pairs))
	for i, p := range c.Pairs {
		label := fmt.Sprintf("pairs[%d]", i)
		if p.Name != "" {
			label = fmt.Sprintf("pairs[%s]", p.Name)
		}
		errs = append(errs, p.validate(label)...)
		if names[p.Name] {
			errs = append(errs, label+": duplicate name")
		}
		names[p.Name] = true
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" && c.Redis.URL == "" {
			errs = append(errs, "redis: addr or url must be set")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be > 0")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: archiving needs postgres.enabled")
		}
	}

	// Server
	if c.Server.Enabled || c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}
	if c.Server.RateLimit > 0 && !c.Redis.Enabled {
		errs = append(errs, "server: rate_limit needs redis.enabled")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (p PairConfig) validate(label string) []string {
	var errs []string
	if p.Name == "" {
		errs = append(errs, label+": name must not be empty")
	}
	if p.Primary == "" || p.Secondary == "" {
		errs = append(errs, label+": primary and secondary must not be empty")
	} else if p.Primary == p.Secondary {
		errs = append(errs, label+": primary and secondary must differ")
	}
	switch p.Kind {
	case "dual_listing":
	case "etf_future":
		if p.Model == nil {
			errs = append(errs, label+": etf_future pairs need a [pairs.model] table")
		} else if p.Model.Multiplier <= 0 {
			errs = append(errs, label+": model.multiplier must be > 0")
		}
	default:
		errs = append(errs, fmt.Sprintf("%s: unknown kind %q (valid: dual_listing, etf_future)", label, p.Kind))
	}
	if p.Quoting != "inside" && p.Quoting != "ask_anchored" {
		errs = append(errs, fmt.Sprintf("%s: unknown quoting %q (valid: inside, ask_anchored)", label, p.Quoting))
	}
	if p.ActiveOrderType != "ioc" && p.ActiveOrderType != "limit" {
		errs = append(errs, fmt.Sprintf("%s: unknown active_order_type %q (valid: ioc, limit)", label, p.ActiveOrderType))
	}
	if p.Sizing.Base < 1 {
		errs = append(errs, label+": sizing.base must be >= 1")
	}
	if p.Sizing.ActiveBonus < 0 || p.Sizing.PassiveBonus < 0 {
		errs = append(errs, label+": sizing bonuses must be >= 0")
	}
	return errs
}

// Warnings returns non-fatal findings. An instrument traded by more than one
// pair has its quotes cancelled by whichever pair requotes it, so the engine
// skips the later pair for the rest of the cycle.
func (c *Config) Warnings() []string {
	owners := make(map[string][]string)
	for _, p := range c.Pairs {
		for _, id := range []string{p.Primary, p.Secondary} {
			owners[id] = append(owners[id], p.Name)
		}
	}
	var out []string
	for id, pairs := range owners {
		if len(pairs) > 1 {
			out = append(out, fmt.Sprintf("instrument %s is shared by pairs %s", id, strings.Join(pairs, ", ")))
		}
	}
	sort.Strings(out)
	return out
}
