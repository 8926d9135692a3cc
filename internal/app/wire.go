package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/cyrustjj/optiver-trading-challenge/internal/blob/s3"
	"github.com/cyrustjj/optiver-trading-challenge/internal/cache/redis"
	"github.com/cyrustjj/optiver-trading-challenge/internal/config"
	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
	"github.com/cyrustjj/optiver-trading-challenge/internal/exchange"
	"github.com/cyrustjj/optiver-trading-challenge/internal/metrics"
	"github.com/cyrustjj/optiver-trading-challenge/internal/notify"
	"github.com/cyrustjj/optiver-trading-challenge/internal/server/handler"
	"github.com/cyrustjj/optiver-trading-challenge/internal/store/postgres"
)

// orderLimiterKey is the rate limiter bucket shared by every instance trading
// the same account.
const orderLimiterKey = "exchange:orders"

// Dependencies bundles every dependency that the application modes need to
// operate. Optional ones stay nil when their backend is disabled. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Exchange domain.Exchange

	// Journal
	DecisionStore domain.DecisionStore
	SnapshotStore domain.SnapshotStore
	AuditStore    domain.AuditStore

	// Caches and coordination
	BookCache   domain.BookCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	Metrics  *metrics.Collector
	Notifier *notify.Notifier

	// HealthChecks ping every wired backend for /api/health.
	HealthChecks map[string]handler.Checker
}

// needsExchange returns true for modes that trade.
func needsExchange(mode string) bool {
	switch mode {
	case "trade", "paper", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that archive the journal.
func needsS3(mode string) bool {
	return mode == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics:      metrics.New(),
		HealthChecks: make(map[string]handler.Checker),
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.DecisionStore = postgres.NewDecisionStore(pool)
		deps.SnapshotStore = postgres.NewSnapshotStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Ping
	}

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.BookCache = redis.NewBookCache(redisClient, cfg.Redis.BookTTL.Duration)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
		deps.RateLimiter = redis.NewRateLimiter(redisClient, cfg.Server.RateLimit, time.Second)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- Exchange ---
	if needsExchange(cfg.Mode) {
		gateway := exchange.NewHTTPClient(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.Timeout.Duration)
		if cfg.Exchange.OrderRateLimit > 0 && redisClient != nil {
			gateway.SetRateLimiter(
				redis.NewRateLimiter(redisClient, cfg.Exchange.OrderRateLimit, time.Second),
				orderLimiterKey,
			)
		}
		if cfg.Mode == "paper" {
			deps.Exchange = exchange.NewPaper(gateway, cfg.Engine.PositionLimit, instruments(cfg), logger)
		} else {
			deps.Exchange = gateway
			deps.HealthChecks["exchange"] = func(ctx context.Context) error {
				_, err := gateway.GetPositions(ctx)
				return err
			}
		}
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled && needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.HealthChecks["s3"] = s3Client.Health
		// Archiver: only when the journal it reads is wired.
		if source, ok := deps.DecisionStore.(s3blob.DecisionSource); ok {
			deps.Archiver = s3blob.NewArchiver(source, deps.BlobWriter, deps.BlobReader, deps.AuditStore, logger)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramBaseURL,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, "pairarb"))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.Cooldown.Duration, logger)

	return deps, cleanup, nil
}

// instruments lists every pair leg once, in configuration order.
func instruments(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range cfg.Pairs {
		for _, id := range []string{p.Primary, p.Secondary} {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
