package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cryptarena/arenad/internal/domain"
)

// Enter admits a participant's stake on an asset slot. If no arena is
// currently waiting for players a new one is created; when the admission
// fills the arena its status moves to ready. The stake value is credited to
// the (arena, slot) escrow inside the same transaction.
func (e *Engine) Enter(ctx context.Context, caller domain.Identity, slot int16, amount, value int64) (domain.PlayerEntry, error) {
	if caller.Zero() {
		return domain.PlayerEntry{}, fmt.Errorf("engine: enter: %w", domain.ErrUnauthorized)
	}
	if amount <= 0 || value <= 0 {
		return domain.PlayerEntry{}, fmt.Errorf("engine: enter: %w", domain.ErrEntryOutOfBounds)
	}

	var (
		entry domain.PlayerEntry
		ready bool
	)
	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		cfg, err := tx.GlobalConfig(ctx)
		if err != nil {
			return fmt.Errorf("engine: enter: %w", err)
		}
		if cfg.Paused {
			return fmt.Errorf("engine: enter: %w", domain.ErrProtocolPaused)
		}

		wl, err := tx.WhitelistEntry(ctx, slot)
		if err != nil || !wl.Active {
			return fmt.Errorf("engine: enter slot %d: %w", slot, domain.ErrSlotNotWhitelisted)
		}

		if cfg.MinEntryValue > 0 && value < cfg.MinEntryValue {
			return fmt.Errorf("engine: enter: %w", domain.ErrEntryOutOfBounds)
		}
		if cfg.MaxEntryValue > 0 && value > cfg.MaxEntryValue {
			return fmt.Errorf("engine: enter: %w", domain.ErrEntryOutOfBounds)
		}

		arena, err := tx.WaitingArena(ctx)
		if errors.Is(err, domain.ErrNotFound) {
			arena = domain.Arena{
				ID:          cfg.NextArenaID,
				Status:      domain.ArenaWaiting,
				WinningSlot: domain.NoWinningSlot,
				CreatedAt:   e.now().UTC(),
			}
			cfg.NextArenaID++
			cfg.Version++
			if err := tx.PutGlobalConfig(ctx, cfg); err != nil {
				return fmt.Errorf("engine: enter: advance arena counter: %w", err)
			}
			// The aggregate, entry, and transfer rows all reference the
			// arena, so its row must exist before any of them are written.
			if err := tx.PutArena(ctx, arena); err != nil {
				return fmt.Errorf("engine: enter: create arena: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("engine: enter: %w", err)
		}

		if !arena.AcceptsEntries() {
			return fmt.Errorf("engine: enter arena %d: %w", arena.ID, domain.ErrArenaNotWaiting)
		}
		// Admissions race for the last seat; the loser of that race fails here.
		if arena.PlayerCount >= cfg.MaxPlayers {
			return fmt.Errorf("engine: enter arena %d: %w", arena.ID, domain.ErrArenaFull)
		}

		if _, err := tx.Entry(ctx, arena.ID, caller); err == nil {
			return fmt.Errorf("engine: enter arena %d: %w", arena.ID, domain.ErrAlreadyEntered)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("engine: enter: %w", err)
		}

		agg, err := tx.AssetAggregate(ctx, arena.ID, slot)
		if errors.Is(err, domain.ErrNotFound) {
			agg = domain.AssetAggregate{ArenaID: arena.ID, SlotIndex: slot}
			arena.AssetCount++
		} else if err != nil {
			return fmt.Errorf("engine: enter: %w", err)
		}
		if agg.PlayerCount >= cfg.MaxPerSlot {
			return fmt.Errorf("engine: enter slot %d: %w", slot, domain.ErrSlotCapReached)
		}

		entry = domain.PlayerEntry{
			ArenaID:     arena.ID,
			Player:      caller,
			SlotIndex:   slot,
			StakeAmount: amount,
			StakeValue:  value,
			Ordinal:     arena.PlayerCount,
			EnteredAt:   e.now().UTC(),
		}

		agg.PlayerCount++
		agg.PooledStake += value
		arena.PlayerCount++
		arena.TotalPool += value
		if arena.PlayerCount >= cfg.MaxPlayers {
			arena.Status = domain.ArenaReady
			ready = true
		}
		arena.UpdatedAt = e.now().UTC()

		if _, err := tx.CreditEscrow(ctx, arena.ID, slot, caller, value, domain.TransferStake); err != nil {
			return fmt.Errorf("engine: enter: escrow credit: %w", err)
		}
		if err := tx.PutAssetAggregate(ctx, agg); err != nil {
			return fmt.Errorf("engine: enter: %w", err)
		}
		if err := tx.PutEntry(ctx, entry); err != nil {
			return fmt.Errorf("engine: enter: %w", err)
		}
		return tx.PutArena(ctx, arena)
	})
	if err != nil {
		return domain.PlayerEntry{}, err
	}

	e.logger.InfoContext(ctx, "engine: entry admitted",
		slog.Int64("arena", entry.ArenaID),
		slog.String("player", string(caller)),
		slog.Int("slot", int(slot)),
		slog.Int64("value", value),
	)
	e.emit(domain.Event{Type: domain.EventEntered, ArenaID: entry.ArenaID, SlotIndex: slot, Player: caller, Amount: value})
	if ready {
		e.emit(domain.Event{Type: domain.EventStatus, ArenaID: entry.ArenaID, Status: domain.ArenaReady})
	}
	return entry, nil
}
