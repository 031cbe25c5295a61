package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptarena/arenad/internal/domain"
)

// AddWhitelisted activates an asset slot for staking. An active entry at the
// same index is rejected rather than silently overwritten; a previously
// removed (inactive) entry is reactivated with the new details.
func (e *Engine) AddWhitelisted(ctx context.Context, caller domain.Identity, entry domain.WhitelistEntry) error {
	if entry.SlotIndex < 0 {
		return fmt.Errorf("engine: whitelist add: %w", domain.ErrInvalidSlot)
	}
	if strings.TrimSpace(entry.Symbol) == "" {
		return fmt.Errorf("engine: whitelist add: symbol required: %w", domain.ErrInvalidSlot)
	}
	if entry.ChainTag == "evm" && len(entry.AssetID) != common.AddressLength {
		return fmt.Errorf("engine: whitelist add: evm asset identity must be %d bytes: %w",
			common.AddressLength, domain.ErrInvalidSlot)
	}

	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		cfg, err := tx.GlobalConfig(ctx)
		if err != nil {
			return fmt.Errorf("engine: whitelist add: %w", err)
		}
		if !e.auth.CanAdminister(cfg, caller) {
			return fmt.Errorf("engine: whitelist add: %w", domain.ErrUnauthorized)
		}

		existing, err := tx.WhitelistEntry(ctx, entry.SlotIndex)
		switch {
		case err == nil && existing.Active:
			return fmt.Errorf("engine: whitelist add slot %d: %w", entry.SlotIndex, domain.ErrAlreadyExists)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("engine: whitelist add: %w", err)
		}

		entry.Active = true
		return tx.PutWhitelistEntry(ctx, entry)
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "engine: slot whitelisted",
		slog.Int("slot", int(entry.SlotIndex)),
		slog.String("symbol", entry.Symbol),
		slog.String("chain", entry.ChainTag),
	)
	e.emit(domain.Event{Type: domain.EventWhitelist, SlotIndex: entry.SlotIndex})
	return nil
}

// RemoveWhitelisted deactivates a slot. The record stays addressable and
// arenas already using the slot are unaffected; only new admissions stop.
func (e *Engine) RemoveWhitelisted(ctx context.Context, caller domain.Identity, slot int16) error {
	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		cfg, err := tx.GlobalConfig(ctx)
		if err != nil {
			return fmt.Errorf("engine: whitelist remove: %w", err)
		}
		if !e.auth.CanAdminister(cfg, caller) {
			return fmt.Errorf("engine: whitelist remove: %w", domain.ErrUnauthorized)
		}

		entry, err := tx.WhitelistEntry(ctx, slot)
		if err != nil {
			return fmt.Errorf("engine: whitelist remove slot %d: %w", slot, err)
		}
		if !entry.Active {
			return nil // already removed
		}
		entry.Active = false
		return tx.PutWhitelistEntry(ctx, entry)
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "engine: slot removed from whitelist", slog.Int("slot", int(slot)))
	e.emit(domain.Event{Type: domain.EventWhitelist, SlotIndex: slot})
	return nil
}
