package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cryptarena/arenad/internal/domain"
)

// SetStartPrice records the start-of-round price sample for one asset slot.
// The first sample moves the arena from ready to starting; once every
// distinct slot has a sample the arena goes active and the end timestamp is
// stamped from the configured duration.
func (e *Engine) SetStartPrice(ctx context.Context, caller domain.Identity, arenaID int64, slot int16, price int64) error {
	if price <= 0 {
		return fmt.Errorf("engine: start price: %w", domain.ErrInvalidPrice)
	}

	var activated bool
	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		cfg, err := tx.GlobalConfig(ctx)
		if err != nil {
			return fmt.Errorf("engine: start price: %w", err)
		}
		if !e.auth.CanSetPrices(cfg, caller) {
			return fmt.Errorf("engine: start price: %w", domain.ErrUnauthorized)
		}

		arena, err := tx.Arena(ctx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: start price arena %d: %w", arenaID, err)
		}
		if arena.Status != domain.ArenaReady && arena.Status != domain.ArenaStarting {
			return fmt.Errorf("engine: start price arena %d: %w", arenaID, domain.ErrArenaNotReady)
		}

		agg, err := tx.AssetAggregate(ctx, arenaID, slot)
		if err != nil {
			return fmt.Errorf("engine: start price slot %d: %w", slot, err)
		}

		if agg.StartPrice == 0 {
			arena.StartPricesSet++
		}
		agg.StartPrice = price

		if arena.Status == domain.ArenaReady {
			arena.Status = domain.ArenaStarting
		}
		if arena.StartPricesSet >= arena.AssetCount {
			now := e.now().UTC()
			arena.Status = domain.ArenaActive
			arena.StartTime = now
			arena.EndTime = now.Add(cfg.ArenaDuration)
			activated = true
		}
		arena.UpdatedAt = e.now().UTC()

		if err := tx.PutAssetAggregate(ctx, agg); err != nil {
			return fmt.Errorf("engine: start price: %w", err)
		}
		return tx.PutArena(ctx, arena)
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "engine: start price set",
		slog.Int64("arena", arenaID),
		slog.Int("slot", int(slot)),
		slog.Int64("price", price),
	)
	e.emit(domain.Event{Type: domain.EventPriceSet, ArenaID: arenaID, SlotIndex: slot, Amount: price})
	if activated {
		e.emit(domain.Event{Type: domain.EventStatus, ArenaID: arenaID, Status: domain.ArenaActive})
	}
	return nil
}

// SetEndPrice records the end-of-round price sample for one asset slot. It is
// gated on the arena duration having elapsed and computes the slot's signed
// movement in basis points as soon as both samples are present.
func (e *Engine) SetEndPrice(ctx context.Context, caller domain.Identity, arenaID int64, slot int16, price int64) error {
	if price <= 0 {
		return fmt.Errorf("engine: end price: %w", domain.ErrInvalidPrice)
	}

	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		cfg, err := tx.GlobalConfig(ctx)
		if err != nil {
			return fmt.Errorf("engine: end price: %w", err)
		}
		if !e.auth.CanSetPrices(cfg, caller) {
			return fmt.Errorf("engine: end price: %w", domain.ErrUnauthorized)
		}

		arena, err := tx.Arena(ctx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: end price arena %d: %w", arenaID, err)
		}
		if arena.Status != domain.ArenaActive && arena.Status != domain.ArenaEnding {
			return fmt.Errorf("engine: end price arena %d: %w", arenaID, domain.ErrArenaNotActive)
		}
		if e.now().Before(arena.EndTime) {
			return fmt.Errorf("engine: end price arena %d: %w", arenaID, domain.ErrDurationNotElapsed)
		}

		agg, err := tx.AssetAggregate(ctx, arenaID, slot)
		if err != nil {
			return fmt.Errorf("engine: end price slot %d: %w", slot, err)
		}
		if agg.StartPrice == 0 {
			return fmt.Errorf("engine: end price slot %d: %w", slot, domain.ErrMissingPrice)
		}

		if agg.EndPrice == 0 {
			arena.EndPricesSet++
		}
		agg.EndPrice = price
		agg.MovementBps = MovementBps(agg.StartPrice, price)
		agg.MovementSet = true

		if arena.Status == domain.ArenaActive {
			arena.Status = domain.ArenaEnding
		}
		arena.UpdatedAt = e.now().UTC()

		if err := tx.PutAssetAggregate(ctx, agg); err != nil {
			return fmt.Errorf("engine: end price: %w", err)
		}
		return tx.PutArena(ctx, arena)
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "engine: end price set",
		slog.Int64("arena", arenaID),
		slog.Int("slot", int(slot)),
		slog.Int64("price", price),
	)
	e.emit(domain.Event{Type: domain.EventPriceSet, ArenaID: arenaID, SlotIndex: slot, Amount: price})
	return nil
}
