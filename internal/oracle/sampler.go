package oracle

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/cryptarena/arenad/internal/domain"
	"github.com/cryptarena/arenad/internal/engine"
)

// samplerLockKey guards the sampling loop so one instance drives price
// writes even when several daemons run against the same ledger.
const samplerLockKey = "oracle:sampler"

// Sampler polls the price feed on a fixed cadence and advances every arena
// that is waiting on a price: ready arenas get start samples, expired active
// arenas get end samples and are finalized once fully sampled.
type Sampler struct {
	engine   *engine.Engine
	reader   domain.LedgerReader
	feed     *FeedClient
	cache    domain.PriceCache
	locks    domain.LockManager
	caller   domain.Identity
	interval time.Duration
	lockTTL  time.Duration
	logger   *slog.Logger
}

// NewSampler creates a Sampler. The caller identity must be authorized to
// set prices and finalize arenas.
func NewSampler(
	eng *engine.Engine,
	reader domain.LedgerReader,
	feed *FeedClient,
	cache domain.PriceCache,
	locks domain.LockManager,
	caller domain.Identity,
	interval, lockTTL time.Duration,
	logger *slog.Logger,
) *Sampler {
	return &Sampler{
		engine:   eng,
		reader:   reader,
		feed:     feed,
		cache:    cache,
		locks:    locks,
		caller:   caller,
		interval: interval,
		lockTTL:  lockTTL,
		logger:   logger.With(slog.String("component", "sampler")),
	}
}

// Run drives the sampling loop until the context is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sampler started", slog.Duration("interval", s.interval))
	defer s.logger.Info("sampler stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.logger.Warn("sampler tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// tick runs one sampling pass under the distributed lock. A held lock means
// another instance is sampling and the pass is skipped.
func (s *Sampler) tick(ctx context.Context) error {
	unlock, err := s.locks.Acquire(ctx, samplerLockKey, s.lockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		return nil
	}
	if err != nil {
		return err
	}
	defer unlock()

	symbols, err := s.slotSymbols(ctx)
	if err != nil {
		return err
	}

	prices, err := s.fetch(ctx, symbols)
	if err != nil {
		return err
	}

	s.sampleStarts(ctx, symbols, prices)
	s.sampleEnds(ctx, symbols, prices)
	return nil
}

// slotSymbols maps each active whitelist slot to its feed symbol.
func (s *Sampler) slotSymbols(ctx context.Context) (map[int16]string, error) {
	wl, err := s.reader.GetWhitelist(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int16]string, len(wl))
	for _, e := range wl {
		if e.Active {
			out[e.SlotIndex] = e.Symbol
		}
	}
	return out, nil
}

// fetch pulls quotes for every whitelisted symbol and mirrors them into the
// price cache for the read API.
func (s *Sampler) fetch(ctx context.Context, symbols map[int16]string) (map[string]float64, error) {
	seen := make(map[string]bool, len(symbols))
	list := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if !seen[sym] {
			seen[sym] = true
			list = append(list, sym)
		}
	}

	prices, err := s.feed.Prices(ctx, list)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for sym, price := range prices {
		if err := s.cache.SetPrice(ctx, sym, price, now); err != nil {
			s.logger.Warn("price cache write failed",
				slog.String("symbol", sym),
				slog.String("error", err.Error()),
			)
		}
	}
	return prices, nil
}

// fixedPrice converts a float USD quote to the fixed-point representation the
// engine stores.
func fixedPrice(usd float64) int64 {
	return int64(math.Round(usd * domain.PriceScale))
}

// sampleStarts writes start prices for arenas that are full and waiting on
// their opening samples.
func (s *Sampler) sampleStarts(ctx context.Context, symbols map[int16]string, prices map[string]float64) {
	arenas, err := s.reader.GetArenasByStatus(ctx, domain.ArenaReady, domain.ArenaStarting)
	if err != nil {
		s.logger.Warn("list ready arenas failed", slog.String("error", err.Error()))
		return
	}

	for _, arena := range arenas {
		aggs, err := s.reader.GetAssetAggregates(ctx, arena.ID)
		if err != nil {
			s.logger.Warn("list aggregates failed",
				slog.Int64("arena", arena.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, agg := range aggs {
			if agg.StartPrice != 0 {
				continue
			}
			usd, ok := prices[symbols[agg.SlotIndex]]
			if !ok {
				continue
			}
			if err := s.engine.SetStartPrice(ctx, s.caller, arena.ID, agg.SlotIndex, fixedPrice(usd)); err != nil {
				s.logger.Warn("set start price failed",
					slog.Int64("arena", arena.ID),
					slog.Int("slot", int(agg.SlotIndex)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// sampleEnds writes end prices for arenas whose round has expired and
// finalizes each arena once every slot is sampled.
func (s *Sampler) sampleEnds(ctx context.Context, symbols map[int16]string, prices map[string]float64) {
	arenas, err := s.reader.GetArenasByStatus(ctx, domain.ArenaActive, domain.ArenaEnding)
	if err != nil {
		s.logger.Warn("list active arenas failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, arena := range arenas {
		if now.Before(arena.EndTime) {
			continue
		}

		aggs, err := s.reader.GetAssetAggregates(ctx, arena.ID)
		if err != nil {
			s.logger.Warn("list aggregates failed",
				slog.Int64("arena", arena.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		sampled := 0
		for _, agg := range aggs {
			if agg.EndPrice != 0 {
				sampled++
				continue
			}
			usd, ok := prices[symbols[agg.SlotIndex]]
			if !ok {
				continue
			}
			if err := s.engine.SetEndPrice(ctx, s.caller, arena.ID, agg.SlotIndex, fixedPrice(usd)); err != nil {
				s.logger.Warn("set end price failed",
					slog.Int64("arena", arena.ID),
					slog.Int("slot", int(agg.SlotIndex)),
					slog.String("error", err.Error()),
				)
				continue
			}
			sampled++
		}

		if sampled < len(aggs) {
			continue
		}
		if _, err := s.engine.Finalize(ctx, s.caller, arena.ID); err != nil {
			s.logger.Warn("finalize failed",
				slog.Int64("arena", arena.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
