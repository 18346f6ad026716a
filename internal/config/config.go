// Package config defines the top-level configuration for the betting pool
// and governance services and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BOLAO_* environment variables.
type Config struct {
	Pool       PoolConfig       `toml:"pool"`
	Governance GovernanceConfig `toml:"governance"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	KYC        KYCConfig        `toml:"kyc"`
	Treasury   TreasuryConfig   `toml:"treasury"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PoolConfig holds the betting pool engine parameters.
type PoolConfig struct {
	Owner            string `toml:"owner"`
	PrizeDistributor string `toml:"prize_distributor"`
	FeeBps           uint64 `toml:"fee_bps"`
	FinalPrizeBps    uint64 `toml:"final_prize_bps"`
	MaxPayoutChunk   uint64 `toml:"max_payout_chunk"`
}

// GovernanceConfig holds the governance engine parameters. MarketTarget is
// the pool process identity commands are dispatched to.
type GovernanceConfig struct {
	Owner        string   `toml:"owner"`
	MarketTarget string   `toml:"market_target"`
	QuorumBps    uint16   `toml:"quorum_bps"`
	VotingPeriod duration `toml:"voting_period"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the event-journal archival loop.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// KYCConfig holds the age-verification service endpoint.
type KYCConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// TreasuryConfig holds the treasury transfer API credentials. The signing
// secret comes either raw or from an encrypted file.
type TreasuryConfig struct {
	BaseURL             string `toml:"base_url"`
	APIKey              string `toml:"api_key"`
	Secret              string `toml:"secret"`
	EncryptedSecretPath string `toml:"encrypted_secret_path"`
	SecretPassword      string `toml:"secret_password"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "24h").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "24h".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the standard parameter values:
// a 5% operator fee, a 20% final-prize cut, and a 24-hour voting window with
// a 20% quorum requirement.
func Defaults() Config {
	return Config{
		Pool: PoolConfig{
			FeeBps:         500,
			FinalPrizeBps:  2000,
			MaxPayoutChunk: 10_000 * 1_000_000_000_000,
		},
		Governance: GovernanceConfig{
			QuorumBps:    2000,
			VotingPeriod: duration{24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "bolao",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "bolao-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Interval:      duration{24 * time.Hour},
			RetentionDays: 90,
		},
		KYC: KYCConfig{
			BaseURL: "http://localhost:8100",
		},
		Treasury: TreasuryConfig{
			BaseURL: "http://localhost:8200",
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       300,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"result_finalized", "winner_paid", "proposal_executed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"pool":   true,
	"govern": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: pool, govern, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	mode := strings.ToLower(c.Mode)
	runsPool := mode == "pool" || mode == "full"
	runsGovern := mode == "govern" || mode == "full"

	// Both modes need the pool stream identity: governance dispatches commands
	// to it, the pool consumer reads from it.
	if !common.IsHexAddress(c.Governance.MarketTarget) {
		errs = append(errs, fmt.Sprintf("governance: market_target %q is not a valid address", c.Governance.MarketTarget))
	}

	// Pool
	if runsPool {
		if !common.IsHexAddress(c.Pool.Owner) {
			errs = append(errs, fmt.Sprintf("pool: owner %q is not a valid address", c.Pool.Owner))
		}
		if !common.IsHexAddress(c.Pool.PrizeDistributor) {
			errs = append(errs, fmt.Sprintf("pool: prize_distributor %q is not a valid address", c.Pool.PrizeDistributor))
		}
		if c.Pool.FeeBps > 10_000 {
			errs = append(errs, fmt.Sprintf("pool: fee_bps must be <= 10000, got %d", c.Pool.FeeBps))
		}
		if c.Pool.FinalPrizeBps > 10_000 {
			errs = append(errs, fmt.Sprintf("pool: final_prize_bps must be <= 10000, got %d", c.Pool.FinalPrizeBps))
		}
		if c.Pool.FeeBps+c.Pool.FinalPrizeBps > 10_000 {
			errs = append(errs, "pool: fee_bps + final_prize_bps must not exceed 10000")
		}
		if c.Pool.MaxPayoutChunk == 0 {
			errs = append(errs, "pool: max_payout_chunk must be positive")
		}
	}

	// Governance
	if runsGovern {
		if !common.IsHexAddress(c.Governance.Owner) {
			errs = append(errs, fmt.Sprintf("governance: owner %q is not a valid address", c.Governance.Owner))
		}
		if c.Governance.QuorumBps > 10_000 {
			errs = append(errs, fmt.Sprintf("governance: quorum_bps must be <= 10000, got %d", c.Governance.QuorumBps))
		}
		if c.Governance.VotingPeriod.Duration <= 0 {
			errs = append(errs, "governance: voting_period must be positive")
		}
	}

	// Postgres
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

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archive needs a usable S3 target.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
	}

	// KYC and treasury are required by the pool engine.
	if runsPool {
		if c.KYC.BaseURL == "" {
			errs = append(errs, "kyc: base_url must not be empty")
		}
		if c.Treasury.BaseURL == "" {
			errs = append(errs, "treasury: base_url must not be empty")
		}
		if c.Treasury.Secret == "" && c.Treasury.EncryptedSecretPath == "" {
			errs = append(errs, "treasury: either secret or encrypted_secret_path must be set")
		}
		if c.Treasury.EncryptedSecretPath != "" && c.Treasury.SecretPassword == "" {
			errs = append(errs, "treasury: secret_password is required when encrypted_secret_path is set")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
