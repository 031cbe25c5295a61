// Package config defines the top-level configuration for the arena
// settlement daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARENAD_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Arena    ArenaConfig    `toml:"arena"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Oracle   OracleConfig   `toml:"oracle"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the operator's signing credentials. The operator wallet
// is the protocol admin and default price setter.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ArenaConfig holds the protocol parameters written into the global record on
// first boot. They bind only at initialization; later changes go through the
// admin settings endpoint.
type ArenaConfig struct {
	Treasury      string   `toml:"treasury"`
	Duration      duration `toml:"duration"`
	MaxPlayers    int      `toml:"max_players"`
	MaxPerSlot    int      `toml:"max_per_slot"`
	MinEntryValue int64    `toml:"min_entry_value"` // micro-USD
	MaxEntryValue int64    `toml:"max_entry_value"` // micro-USD
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

// S3Config holds S3-compatible object storage parameters for arena archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OracleConfig holds the price feed endpoint and sampling cadence.
type OracleConfig struct {
	Enabled        bool     `toml:"enabled"`
	FeedURL        string   `toml:"feed_url"`
	SampleInterval duration `toml:"sample_interval"`
	RequestTimeout duration `toml:"request_timeout"`
	LockTTL        duration `toml:"lock_ttl"`
	CacheTTL       duration `toml:"cache_ttl"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "10m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "10m" or "30s".
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
		Arena: ArenaConfig{
			Duration:      duration{10 * time.Minute},
			MaxPlayers:    10,
			MaxPerSlot:    3,
			MinEntryValue: 10_000_000, // $10
			MaxEntryValue: 20_000_000, // $20
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arenad",
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
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arenad-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Oracle: OracleConfig{
			Enabled:        true,
			FeedURL:        "http://localhost:8090/prices",
			SampleInterval: duration{15 * time.Second},
			RequestTimeout: duration{10 * time.Second},
			LockTTL:        duration{30 * time.Second},
			CacheTTL:       duration{time.Minute},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true, // HTTP API only
	"sampler": true, // oracle price sampler only
	"dev":     true, // in-memory ledger, no external services
	"full":    true, // server + sampler
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

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, sampler, dev, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// The daemon signs nothing in dev mode; every other mode needs a wallet
	// credential source.
	if c.Mode != "dev" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Arena parameters mirror the invariants the engine enforces at
	// initialization, so misconfiguration surfaces at boot rather than on the
	// first request.
	if c.Arena.Duration.Duration < time.Minute {
		errs = append(errs, fmt.Sprintf("arena: duration must be at least 1m, got %s", c.Arena.Duration.Duration))
	}
	if c.Arena.MaxPlayers < 2 || c.Arena.MaxPlayers > 64 {
		errs = append(errs, fmt.Sprintf("arena: max_players must be 2-64, got %d", c.Arena.MaxPlayers))
	}
	if c.Arena.MaxPerSlot < 1 || c.Arena.MaxPerSlot > c.Arena.MaxPlayers {
		errs = append(errs, fmt.Sprintf("arena: max_per_slot must be 1-%d, got %d", c.Arena.MaxPlayers, c.Arena.MaxPerSlot))
	}
	if c.Arena.MinEntryValue <= 0 {
		errs = append(errs, "arena: min_entry_value must be > 0")
	}
	if c.Arena.MaxEntryValue < c.Arena.MinEntryValue {
		errs = append(errs, "arena: max_entry_value must not be below min_entry_value")
	}

	if c.Mode != "dev" {
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
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Oracle
	if c.Oracle.Enabled && (c.Mode == "sampler" || c.Mode == "full") {
		if c.Oracle.FeedURL == "" {
			errs = append(errs, "oracle: feed_url must not be empty when enabled")
		}
		if c.Oracle.SampleInterval.Duration <= 0 {
			errs = append(errs, "oracle: sample_interval must be > 0")
		}
		if c.Oracle.RequestTimeout.Duration <= 0 {
			errs = append(errs, "oracle: request_timeout must be > 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
