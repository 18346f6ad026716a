package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "bolao/internal/blob/s3"
	busredis "bolao/internal/bus/redis"
	"bolao/internal/config"
	"bolao/internal/domain"
	"bolao/internal/eventlog"
	"bolao/internal/kyc"
	"bolao/internal/notify"
	"bolao/internal/store/postgres"
	"bolao/internal/treasury"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Durable event journal (also the archiver's source).
	Journal *postgres.EventStore

	// Redis-backed bus primitives.
	CommandBus    domain.CommandBus
	CommandSource domain.CommandSource
	EventPub      *busredis.EventPublisher
	LockManager   domain.LockManager
	RateLimiter   domain.RateLimiter

	// External services (pool engine only).
	Verifier domain.AgeVerifier
	Treasury domain.Treasury

	// Blob storage archiver; nil when archiving is disabled.
	Archiver *s3blob.Archiver

	// Notifications and the combined event fan-out.
	Notifier *notify.Notifier
	Emitter  *eventlog.Emitter
}

// needsTreasury returns true for modes that settle payouts.
func needsTreasury(mode string) bool {
	switch mode {
	case "pool", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL event journal ---
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
	deps.Journal = postgres.NewEventStore(pgClient.Pool())

	// --- Redis ---
	redisClient, err := busredis.New(ctx, busredis.ClientConfig{
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

	commandBus := busredis.NewCommandBus(redisClient)
	deps.CommandBus = commandBus
	deps.CommandSource = commandBus
	deps.EventPub = busredis.NewEventPublisher(redisClient)
	deps.LockManager = busredis.NewLockManager(redisClient)
	deps.RateLimiter = busredis.NewRateLimiter(redisClient)

	// --- S3 blob storage (only when the archive loop is enabled) ---
	if cfg.Archive.Enabled {
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
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Journal)
	}

	// --- External services (pool engine only) ---
	if needsTreasury(cfg.Mode) {
		deps.Verifier = kyc.NewClient(cfg.KYC.BaseURL, cfg.KYC.APIKey)

		secret, err := treasury.LoadSecret(treasury.SecretConfig{
			RawSecret:           cfg.Treasury.Secret,
			EncryptedSecretPath: cfg.Treasury.EncryptedSecretPath,
			SecretPassword:      cfg.Treasury.SecretPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: treasury secret: %w", err)
		}
		deps.Treasury = treasury.NewClient(cfg.Treasury.BaseURL, cfg.Treasury.APIKey, secret)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Event fan-out ---
	deps.Emitter = eventlog.New(deps.Journal, deps.EventPub, deps.Notifier, logger)

	return deps, cleanup, nil
}
