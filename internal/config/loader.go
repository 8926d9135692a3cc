package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PAIRARB_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		// [[pairs]] in the file replace the catalogue instead of being
		// decoded over the default entries index by index.
		cfg.Pairs = nil
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
		if len(cfg.Pairs) == 0 {
			cfg.Pairs = DefaultPairs()
		}
	}
	for i := range cfg.Pairs {
		cfg.Pairs[i].applyDefaults()
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyDefaults fills what a [[pairs]] entry left out from its kind.
func (p *PairConfig) applyDefaults() {
	if p.Name == "" {
		p.Name = p.Primary
	}
	if p.Kind == "" {
		p.Kind = "dual_listing"
	}
	etf := p.Kind == "etf_future"
	if p.Quoting == "" {
		p.Quoting = "inside"
		if etf {
			p.Quoting = "ask_anchored"
		}
	}
	if p.ActiveOrderType == "" {
		p.ActiveOrderType = "ioc"
	}
	if p.Sizing == (SizingConfig{}) {
		p.Sizing = SizingConfig{Base: 4, ActiveBonus: 26, PassiveBonus: 16}
		if etf {
			p.Sizing = SizingConfig{Base: 3, ActiveBonus: 27, PassiveBonus: 27}
		}
	}
	if etf && p.Model == nil {
		p.Model = &ModelConfig{Rate: 0.03, TimeFraction: 0.04, Multiplier: 0.25, Offset: 2.5, Buffer: 0.01}
	}
}

// applyEnvOverrides reads well-known PAIRARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.BaseURL, "PAIRARB_EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.APIKey, "PAIRARB_EXCHANGE_API_KEY")
	setDuration(&cfg.Exchange.Timeout, "PAIRARB_EXCHANGE_TIMEOUT")
	setInt(&cfg.Exchange.OrderRateLimit, "PAIRARB_EXCHANGE_ORDER_RATE_LIMIT")

	// ── Engine ──
	setDuration(&cfg.Engine.Interval, "PAIRARB_ENGINE_INTERVAL")
	setInt(&cfg.Engine.PositionLimit, "PAIRARB_ENGINE_POSITION_LIMIT")
	setStr(&cfg.Engine.Tick, "PAIRARB_ENGINE_TICK")
	setInt(&cfg.Engine.DeRisk.ThresholdPct, "PAIRARB_ENGINE_DERISK_THRESHOLD_PCT")
	setInt(&cfg.Engine.DeRisk.Size, "PAIRARB_ENGINE_DERISK_SIZE")
	setStr(&cfg.Engine.DeRisk.Action, "PAIRARB_ENGINE_DERISK_ACTION")
	setBool(&cfg.Engine.DeRisk.CheckSelfTrade, "PAIRARB_ENGINE_DERISK_CHECK_SELF_TRADE")
	setDuration(&cfg.Engine.PassiveSettle, "PAIRARB_ENGINE_PASSIVE_SETTLE")
	setStr(&cfg.Engine.LockKey, "PAIRARB_ENGINE_LOCK_KEY")
	setDuration(&cfg.Engine.LockTTL, "PAIRARB_ENGINE_LOCK_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "PAIRARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "PAIRARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "PAIRARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PAIRARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PAIRARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PAIRARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PAIRARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PAIRARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PAIRARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PAIRARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PAIRARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PAIRARB_REDIS_ENABLED")
	setStr(&cfg.Redis.URL, "PAIRARB_REDIS_URL")
	setStr(&cfg.Redis.Addr, "PAIRARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PAIRARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PAIRARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PAIRARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PAIRARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PAIRARB_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.BookTTL, "PAIRARB_REDIS_BOOK_TTL")
	setInt64(&cfg.Redis.StreamMaxLen, "PAIRARB_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PAIRARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PAIRARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PAIRARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "PAIRARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PAIRARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PAIRARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PAIRARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PAIRARB_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "PAIRARB_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PAIRARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PAIRARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PAIRARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PAIRARB_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "PAIRARB_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PAIRARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PAIRARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PAIRARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PAIRARB_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.Cooldown, "PAIRARB_NOTIFY_COOLDOWN")

	// ── Top-level ──
	setStr(&cfg.Mode, "PAIRARB_MODE")
	setStr(&cfg.LogLevel, "PAIRARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
