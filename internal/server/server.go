// Package server exposes the settlement engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cryptarena/arenad/internal/domain"
	"github.com/cryptarena/arenad/internal/server/handler"
	"github.com/cryptarena/arenad/internal/server/middleware"
	"github.com/cryptarena/arenad/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// Recover verifies request signatures. When nil, the address header is
	// trusted without verification (dev mode only).
	Recover middleware.Recoverer

	// MaxClockSkew bounds how stale a signed request timestamp may be.
	MaxClockSkew time.Duration

	// RateLimiter, when set, bounds requests per caller (or client IP).
	RateLimiter domain.RateLimiter
	RateLimit   int
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Config     *handler.ConfigHandler
	Registry   *handler.RegistryHandler
	Arenas     *handler.ArenaHandler
	Pricing    *handler.PricingHandler
	Settlement *handler.SettlementHandler
}

// Server is the headless HTTP + WebSocket API server for the settlement
// daemon.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, rate limiting, wallet auth) and
// attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Global configuration.
	mux.HandleFunc("GET /api/config", handlers.Config.GetConfig)
	mux.HandleFunc("PUT /api/config", handlers.Config.UpdateSettings)

	// Asset whitelist.
	mux.HandleFunc("GET /api/assets", handlers.Registry.ListAssets)
	mux.HandleFunc("POST /api/assets", handlers.Registry.AddAsset)
	mux.HandleFunc("DELETE /api/assets/{slot}", handlers.Registry.RemoveAsset)

	// Arenas and entries.
	mux.HandleFunc("GET /api/arenas", handlers.Arenas.ListArenas)
	mux.HandleFunc("POST /api/arenas/enter", handlers.Arenas.Enter)
	mux.HandleFunc("GET /api/arenas/{id}", handlers.Arenas.GetArena)
	mux.HandleFunc("GET /api/arenas/{id}/aggregates", handlers.Arenas.ListAggregates)
	mux.HandleFunc("GET /api/arenas/{id}/entries", handlers.Arenas.ListEntries)
	mux.HandleFunc("GET /api/arenas/{id}/entries/{player}", handlers.Arenas.GetEntry)
	mux.HandleFunc("GET /api/arenas/{id}/transfers", handlers.Arenas.ListTransfers)

	// Price samples and cached quotes.
	mux.HandleFunc("POST /api/arenas/{id}/prices/start", handlers.Pricing.SetStartPrice)
	mux.HandleFunc("POST /api/arenas/{id}/prices/end", handlers.Pricing.SetEndPrice)
	mux.HandleFunc("GET /api/prices", handlers.Pricing.GetQuotes)

	// Finalization and settlement claims.
	mux.HandleFunc("POST /api/arenas/{id}/finalize", handlers.Settlement.Finalize)
	mux.HandleFunc("POST /api/arenas/{id}/suspend", handlers.Settlement.Suspend)
	mux.HandleFunc("POST /api/arenas/{id}/claims/own-stake", handlers.Settlement.ClaimOwnStake)
	mux.HandleFunc("POST /api/arenas/{id}/claims/reward", handlers.Settlement.ClaimReward)
	mux.HandleFunc("POST /api/arenas/{id}/claims/fee", handlers.Settlement.CollectFee)
	mux.HandleFunc("POST /api/arenas/{id}/claims/refund", handlers.Settlement.ClaimRefund)
	mux.HandleFunc("POST /api/arenas/{id}/claims/residue", handlers.Settlement.SweepResidue)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain inside out. Requests flow
	// CORS -> logging -> wallet auth -> rate limit -> mux, so the limiter
	// can key on the authenticated caller.
	var h http.Handler = mux

	if cfg.RateLimiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit, window)(h)
	}

	// A nil Recover means the address header is trusted (dev mode).
	skew := cfg.MaxClockSkew
	if skew <= 0 {
		skew = 5 * time.Minute
	}
	h = middleware.WalletAuth(cfg.Recover, skew, cfg.Recover == nil)(h)

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
