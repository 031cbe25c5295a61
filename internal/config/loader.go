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
// built-in defaults, applies ARENAD_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ARENAD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "ARENAD_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "ARENAD_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "ARENAD_WALLET_KEY_PASSWORD")

	// ── Arena ──
	setStr(&cfg.Arena.Treasury, "ARENAD_ARENA_TREASURY")
	setDuration(&cfg.Arena.Duration, "ARENAD_ARENA_DURATION")
	setInt(&cfg.Arena.MaxPlayers, "ARENAD_ARENA_MAX_PLAYERS")
	setInt(&cfg.Arena.MaxPerSlot, "ARENAD_ARENA_MAX_PER_SLOT")
	setInt64(&cfg.Arena.MinEntryValue, "ARENAD_ARENA_MIN_ENTRY_VALUE")
	setInt64(&cfg.Arena.MaxEntryValue, "ARENAD_ARENA_MAX_ENTRY_VALUE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARENAD_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "ARENAD_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ARENAD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARENAD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARENAD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARENAD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARENAD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARENAD_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARENAD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARENAD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARENAD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARENAD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARENAD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARENAD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARENAD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARENAD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARENAD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARENAD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARENAD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARENAD_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARENAD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARENAD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARENAD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARENAD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARENAD_S3_FORCE_PATH_STYLE")

	// ── Oracle ──
	setBool(&cfg.Oracle.Enabled, "ARENAD_ORACLE_ENABLED")
	setStr(&cfg.Oracle.FeedURL, "ARENAD_ORACLE_FEED_URL")
	setDuration(&cfg.Oracle.SampleInterval, "ARENAD_ORACLE_SAMPLE_INTERVAL")
	setDuration(&cfg.Oracle.RequestTimeout, "ARENAD_ORACLE_REQUEST_TIMEOUT")
	setDuration(&cfg.Oracle.LockTTL, "ARENAD_ORACLE_LOCK_TTL")
	setDuration(&cfg.Oracle.CacheTTL, "ARENAD_ORACLE_CACHE_TTL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARENAD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARENAD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARENAD_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARENAD_MODE")
	setStr(&cfg.LogLevel, "ARENAD_LOG_LEVEL")
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
