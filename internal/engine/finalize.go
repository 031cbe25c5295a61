package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cryptarena/arenad/internal/domain"
)

// FinalizeResult reports the outcome of arena finalization.
type FinalizeResult struct {
	ArenaID     int64
	WinningSlot int16
	MovementBps int64
	Cancelled   bool
}

// Finalize determines the winning slot once every asset aggregate carries an
// end price. The slot with the strictly greatest movement wins; an exact tie
// for the maximum cancels the arena and opens the refund path instead.
// Arenas that are already terminal are rejected, not re-computed.
func (e *Engine) Finalize(ctx context.Context, caller domain.Identity, arenaID int64) (FinalizeResult, error) {
	var res FinalizeResult
	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		cfg, err := tx.GlobalConfig(ctx)
		if err != nil {
			return fmt.Errorf("engine: finalize: %w", err)
		}
		if !e.auth.CanAdminister(cfg, caller) && !e.auth.CanSetPrices(cfg, caller) {
			return fmt.Errorf("engine: finalize: %w", domain.ErrUnauthorized)
		}

		arena, err := tx.Arena(ctx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: finalize arena %d: %w", arenaID, err)
		}
		if arena.Status != domain.ArenaEnding {
			return fmt.Errorf("engine: finalize arena %d: %w", arenaID, domain.ErrArenaNotEnding)
		}
		if arena.EndPricesSet < arena.AssetCount {
			return fmt.Errorf("engine: finalize arena %d: %w", arenaID, domain.ErrMissingPrice)
		}

		aggs, err := tx.AssetAggregates(ctx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: finalize: %w", err)
		}

		best := int64(math.MinInt64)
		winning := domain.NoWinningSlot
		tie := false
		for _, agg := range aggs {
			if !agg.MovementSet {
				return fmt.Errorf("engine: finalize slot %d: %w", agg.SlotIndex, domain.ErrMissingPrice)
			}
			switch {
			case agg.MovementBps > best:
				best = agg.MovementBps
				winning = agg.SlotIndex
				tie = false
			case agg.MovementBps == best && winning != domain.NoWinningSlot:
				tie = true
			}
		}

		arena.UpdatedAt = e.now().UTC()
		if tie {
			arena.Status = domain.ArenaCancelled
			arena.Cancelled = true
			res = FinalizeResult{ArenaID: arenaID, WinningSlot: domain.NoWinningSlot, Cancelled: true}
			return tx.PutArena(ctx, arena)
		}

		arena.Status = domain.ArenaEnded
		arena.WinningSlot = winning

		entries, err := tx.Entries(ctx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: finalize: %w", err)
		}
		for _, en := range entries {
			if en.SlotIndex == winning {
				en.Winner = true
				if err := tx.PutEntry(ctx, en); err != nil {
					return fmt.Errorf("engine: finalize: flag winner %s: %w", en.Player, err)
				}
			}
		}

		res = FinalizeResult{ArenaID: arenaID, WinningSlot: winning, MovementBps: best}
		return tx.PutArena(ctx, arena)
	})
	if err != nil {
		return FinalizeResult{}, err
	}

	if res.Cancelled {
		e.logger.WarnContext(ctx, "engine: arena cancelled on tie", slog.Int64("arena", arenaID))
		e.emit(domain.Event{Type: domain.EventCancelled, ArenaID: arenaID, Status: domain.ArenaCancelled})
		return res, nil
	}

	e.logger.InfoContext(ctx, "engine: arena finalized",
		slog.Int64("arena", arenaID),
		slog.Int("winning_slot", int(res.WinningSlot)),
		slog.Int64("movement_bps", res.MovementBps),
	)
	e.emit(domain.Event{Type: domain.EventFinalized, ArenaID: arenaID, SlotIndex: res.WinningSlot, Status: domain.ArenaEnded})
	return res, nil
}

// Suspend is the administrative escape hatch: it halts a non-terminal arena.
// Suspended arenas admit no entries, prices or claims.
func (e *Engine) Suspend(ctx context.Context, caller domain.Identity, arenaID int64) error {
	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		cfg, err := tx.GlobalConfig(ctx)
		if err != nil {
			return fmt.Errorf("engine: suspend: %w", err)
		}
		if !e.auth.CanAdminister(cfg, caller) {
			return fmt.Errorf("engine: suspend: %w", domain.ErrUnauthorized)
		}

		arena, err := tx.Arena(ctx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: suspend arena %d: %w", arenaID, err)
		}
		if arena.Terminal() || arena.Status == domain.ArenaSuspended {
			return fmt.Errorf("engine: suspend arena %d: %w", arenaID, domain.ErrArenaNotActive)
		}
		arena.Status = domain.ArenaSuspended
		arena.UpdatedAt = e.now().UTC()
		return tx.PutArena(ctx, arena)
	})
	if err != nil {
		return err
	}

	e.logger.WarnContext(ctx, "engine: arena suspended", slog.Int64("arena", arenaID))
	e.emit(domain.Event{Type: domain.EventStatus, ArenaID: arenaID, Status: domain.ArenaSuspended})
	return nil
}
