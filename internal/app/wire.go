package app

import (
	"context"
	"fmt"

	s3archive "github.com/cryptarena/arenad/internal/archive/s3"
	"github.com/cryptarena/arenad/internal/cache/redis"
	"github.com/cryptarena/arenad/internal/config"
	"github.com/cryptarena/arenad/internal/domain"
	"github.com/cryptarena/arenad/internal/identity"
	"github.com/cryptarena/arenad/internal/store/memory"
	"github.com/cryptarena/arenad/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Ledger is the transactional record store; Reader is its lock-free read
	// surface. In dev mode both are served by the in-memory store.
	Ledger domain.Ledger
	Reader domain.LedgerReader

	// Caches
	PriceCache  domain.PriceCache
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter

	// Blob storage for terminal arena snapshots.
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	// Wallet signs as the operator and is the protocol admin identity. Nil in
	// dev mode when no key is configured.
	Wallet *identity.Wallet
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	switch mode {
	case "server", "sampler", "full":
		return true
	default:
		return false
	}
}

// needsRedis returns true for modes that require Redis.
func needsRedis(mode string) bool {
	return needsPostgres(mode)
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Operator wallet ---
	if cfg.Wallet.PrivateKey != "" || cfg.Wallet.EncryptedKeyPath != "" {
		keyHex, err := identity.LoadKey(identity.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		wallet, err := identity.NewWallet(keyHex)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		deps.Wallet = wallet
	}

	// --- Record store ---
	if needsPostgres(cfg.Mode) {
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

		ledger := postgres.NewLedger(pgClient)
		deps.Ledger = ledger
		deps.Reader = ledger
	} else {
		// Dev mode runs entirely in memory.
		ledger := memory.New()
		deps.Ledger = ledger
		deps.Reader = ledger
	}

	// --- Redis ---
	if needsRedis(cfg.Mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
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

		deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Oracle.CacheTTL.Duration)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- S3 archive storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3archive.New(ctx, s3archive.ClientConfig{
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

		deps.BlobWriter = s3archive.NewWriter(s3Client)
		deps.BlobReader = s3archive.NewReader(s3Client)
	}

	return deps, cleanup, nil
}
