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
// built-in defaults, applies BOLAO_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BOLAO_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Pool ──
	setStr(&cfg.Pool.Owner, "BOLAO_POOL_OWNER")
	setStr(&cfg.Pool.PrizeDistributor, "BOLAO_POOL_PRIZE_DISTRIBUTOR")
	setUint64(&cfg.Pool.FeeBps, "BOLAO_POOL_FEE_BPS")
	setUint64(&cfg.Pool.FinalPrizeBps, "BOLAO_POOL_FINAL_PRIZE_BPS")
	setUint64(&cfg.Pool.MaxPayoutChunk, "BOLAO_POOL_MAX_PAYOUT_CHUNK")

	// ── Governance ──
	setStr(&cfg.Governance.Owner, "BOLAO_GOVERNANCE_OWNER")
	setStr(&cfg.Governance.MarketTarget, "BOLAO_GOVERNANCE_MARKET_TARGET")
	setUint16(&cfg.Governance.QuorumBps, "BOLAO_GOVERNANCE_QUORUM_BPS")
	setDuration(&cfg.Governance.VotingPeriod, "BOLAO_GOVERNANCE_VOTING_PERIOD")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BOLAO_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BOLAO_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BOLAO_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BOLAO_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BOLAO_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BOLAO_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BOLAO_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BOLAO_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BOLAO_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BOLAO_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BOLAO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BOLAO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BOLAO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BOLAO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BOLAO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BOLAO_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BOLAO_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BOLAO_S3_REGION")
	setStr(&cfg.S3.Bucket, "BOLAO_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BOLAO_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BOLAO_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BOLAO_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BOLAO_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "BOLAO_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "BOLAO_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "BOLAO_ARCHIVE_RETENTION_DAYS")

	// ── KYC ──
	setStr(&cfg.KYC.BaseURL, "BOLAO_KYC_BASE_URL")
	setStr(&cfg.KYC.APIKey, "BOLAO_KYC_API_KEY")

	// ── Treasury ──
	setStr(&cfg.Treasury.BaseURL, "BOLAO_TREASURY_BASE_URL")
	setStr(&cfg.Treasury.APIKey, "BOLAO_TREASURY_API_KEY")
	setStr(&cfg.Treasury.Secret, "BOLAO_TREASURY_SECRET")
	setStr(&cfg.Treasury.EncryptedSecretPath, "BOLAO_TREASURY_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Treasury.SecretPassword, "BOLAO_TREASURY_SECRET_PASSWORD")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BOLAO_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BOLAO_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BOLAO_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BOLAO_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BOLAO_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "BOLAO_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BOLAO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BOLAO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BOLAO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BOLAO_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BOLAO_MODE")
	setStr(&cfg.LogLevel, "BOLAO_LOG_LEVEL")
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

func setUint16(dst *uint16, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			*dst = uint16(n)
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
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
