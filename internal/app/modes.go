package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3archive "github.com/cryptarena/arenad/internal/archive/s3"
	"github.com/cryptarena/arenad/internal/domain"
	"github.com/cryptarena/arenad/internal/engine"
	"github.com/cryptarena/arenad/internal/identity"
	"github.com/cryptarena/arenad/internal/oracle"
	"github.com/cryptarena/arenad/internal/server"
	"github.com/cryptarena/arenad/internal/server/handler"
	"github.com/cryptarena/arenad/internal/server/ws"
)

// devAdmin is the administrative identity in dev mode when no wallet is
// configured. Dev mode trusts the address header, so a client acts as admin
// by sending X-Arena-Address with this value.
const devAdmin = domain.Identity("0x0000000000000000000000000000000000000001")

// rateLimitPerSecond caps per-IP request throughput when Redis is wired.
const rateLimitPerSecond = 50

// ServerMode runs the HTTP API, the WebSocket hub, and the arena archiver.
// Price sampling is expected to run in a separate sampler process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(a.cfg.Mode, a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	eng := engine.New(deps.Ledger, engine.StaticAuthorizer{}, hub, a.logger)
	if err := a.bootstrap(ctx, eng, a.adminIdentity(deps)); err != nil {
		return err
	}

	a.startArchiver(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, eng, hub, false)

	return g.Wait()
}

// SamplerMode runs only the oracle price sampler. It shares the record store
// with the server process; the distributed lock keeps concurrent samplers
// from double-writing.
func (a *App) SamplerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sampler mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := engine.New(deps.Ledger, engine.StaticAuthorizer{}, nil, a.logger)
	if err := a.bootstrap(ctx, eng, a.adminIdentity(deps)); err != nil {
		return err
	}

	a.startSampler(ctx, g, deps, eng)

	return g.Wait()
}

// DevMode runs the HTTP API against the in-memory store with header-trust
// authentication. No Postgres, Redis, or S3 required.
func (a *App) DevMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting dev mode",
		slog.String("admin", string(a.adminIdentity(deps))),
	)

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(a.cfg.Mode, a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	eng := engine.New(deps.Ledger, engine.StaticAuthorizer{}, hub, a.logger)
	if err := a.bootstrap(ctx, eng, a.adminIdentity(deps)); err != nil {
		return err
	}

	a.startHTTPServer(ctx, g, deps, eng, hub, true)

	return g.Wait()
}

// FullMode runs everything in one process: HTTP API, WebSocket hub, oracle
// sampler, and arena archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(a.cfg.Mode, a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	eng := engine.New(deps.Ledger, engine.StaticAuthorizer{}, hub, a.logger)
	if err := a.bootstrap(ctx, eng, a.adminIdentity(deps)); err != nil {
		return err
	}

	a.startSampler(ctx, g, deps, eng)
	a.startArchiver(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, eng, hub, false)

	return g.Wait()
}

// adminIdentity returns the operator wallet identity, or the fixed dev admin
// when no wallet is configured.
func (a *App) adminIdentity(deps *Dependencies) domain.Identity {
	if deps.Wallet != nil {
		return deps.Wallet.Identity()
	}
	return devAdmin
}

// bootstrap writes the protocol's global configuration on first boot. A
// record left by a previous run wins; the config file only binds once.
func (a *App) bootstrap(ctx context.Context, eng *engine.Engine, admin domain.Identity) error {
	treasury := domain.NormalizeIdentity(a.cfg.Arena.Treasury)
	if treasury.Zero() {
		treasury = admin
	}

	err := eng.Initialize(ctx, engine.InitParams{
		Admin:         admin,
		Treasury:      treasury,
		ArenaDuration: a.cfg.Arena.Duration.Duration,
		MaxPlayers:    a.cfg.Arena.MaxPlayers,
		MaxPerSlot:    a.cfg.Arena.MaxPerSlot,
		MinEntryValue: a.cfg.Arena.MinEntryValue,
		MaxEntryValue: a.cfg.Arena.MaxEntryValue,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		a.logger.InfoContext(ctx, "protocol already initialized, keeping stored settings")
		return nil
	}
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "protocol initialized",
		slog.String("admin", string(admin)),
		slog.String("treasury", string(treasury)),
	)
	return nil
}

// startSampler adds the oracle sampler goroutine to the group. It is a no-op
// when the oracle is disabled in config.
func (a *App) startSampler(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine.Engine) {
	if !a.cfg.Oracle.Enabled {
		a.logger.InfoContext(ctx, "oracle disabled, prices must be set via the API")
		return
	}

	feed := oracle.NewFeedClient(a.cfg.Oracle.FeedURL, a.cfg.Oracle.RequestTimeout.Duration)
	sampler := oracle.NewSampler(
		eng,
		deps.Reader,
		feed,
		deps.PriceCache,
		deps.LockManager,
		a.adminIdentity(deps),
		a.cfg.Oracle.SampleInterval.Duration,
		a.cfg.Oracle.LockTTL.Duration,
		a.logger,
	)
	g.Go(func() error { return sampler.Run(ctx) })
}

// startArchiver adds the snapshot archiver goroutine to the group when S3 is
// configured.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.BlobWriter == nil || deps.BlobReader == nil {
		return
	}
	archiver := s3archive.NewArchiver(deps.BlobWriter, deps.BlobReader, deps.Reader, 5*time.Minute, a.logger)
	g.Go(func() error { return archiver.Run(ctx) })
}

// startHTTPServer adds the HTTP server goroutines to the group: one serving
// requests and one waiting on the context to shut the listener down.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	eng *engine.Engine,
	hub *ws.Hub,
	trustHeader bool,
) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled by config")
		return
	}

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Config:     handler.NewConfigHandler(eng, deps.Reader, a.logger),
		Registry:   handler.NewRegistryHandler(eng, deps.Reader, a.logger),
		Arenas:     handler.NewArenaHandler(eng, deps.Reader, a.logger),
		Pricing:    handler.NewPricingHandler(eng, deps.PriceCache, a.logger),
		Settlement: handler.NewSettlementHandler(eng, a.logger),
	}

	srvCfg := server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		MaxClockSkew: 5 * time.Minute,
	}
	if !trustHeader {
		srvCfg.Recover = identity.Recover
	}
	if deps.RateLimiter != nil {
		srvCfg.RateLimiter = deps.RateLimiter
		srvCfg.RateLimit = rateLimitPerSecond
		srvCfg.RateWindow = time.Second
	}

	srv := server.NewServer(srvCfg, handlers, hub, a.logger)

	g.Go(func() error { return srv.Start() })
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
