package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// devConfig returns defaults flipped to dev mode, which needs no external
// services or wallet.
func devConfig() Config {
	cfg := Defaults()
	cfg.Mode = "dev"
	return cfg
}

func TestDefaultsValidateInDevMode(t *testing.T) {
	cfg := devConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresWalletOutsideDevMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "full"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet")

	cfg.Wallet.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	assert.NoError(t, cfg.Validate())

	cfg.Wallet.PrivateKey = ""
	cfg.Wallet.EncryptedKeyPath = "/etc/arenad/key.json"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")
}

func TestValidateArenaParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short duration", func(c *Config) { c.Arena.Duration.Duration = 30 * time.Second }, "duration"},
		{"too few players", func(c *Config) { c.Arena.MaxPlayers = 1 }, "max_players"},
		{"too many players", func(c *Config) { c.Arena.MaxPlayers = 65 }, "max_players"},
		{"per-slot above players", func(c *Config) { c.Arena.MaxPerSlot = 11 }, "max_per_slot"},
		{"zero min entry", func(c *Config) { c.Arena.MinEntryValue = 0 }, "min_entry_value"},
		{"max below min", func(c *Config) { c.Arena.MaxEntryValue = 1 }, "max_entry_value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := devConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateRejectsUnknownModeAndLogLevel(t *testing.T) {
	cfg := devConfig()
	cfg.Mode = "turbo"
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
}

func TestValidateSkipsBackendsInDevMode(t *testing.T) {
	cfg := devConfig()
	cfg.Postgres = PostgresConfig{}
	cfg.Redis = RedisConfig{}
	assert.NoError(t, cfg.Validate())
}

func TestValidateS3RequiresEndpointAndBucket(t *testing.T) {
	cfg := devConfig()
	cfg.S3.Enabled = true
	cfg.S3.Endpoint = ""
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: endpoint")
	assert.Contains(t, err.Error(), "s3: bucket")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "dev"
log_level = "debug"

[arena]
duration = "5m"
max_players = 4

[server]
port = 9100
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.Arena.Duration.Duration)
	assert.Equal(t, 4, cfg.Arena.MaxPlayers)
	assert.Equal(t, 9100, cfg.Server.Port)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Arena.MaxPerSlot)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "dev"`), 0o644))

	t.Setenv("ARENAD_SERVER_PORT", "9200")
	t.Setenv("ARENAD_ARENA_DURATION", "2m")
	t.Setenv("ARENAD_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("ARENAD_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Arena.Duration.Duration)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
