package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cryptarena/arenad/internal/domain"
)

// InitParams seeds the global configuration record on first run.
type InitParams struct {
	Admin         domain.Identity
	Treasury      domain.Identity
	ArenaDuration time.Duration
	MaxPlayers    int
	MaxPerSlot    int
	MinEntryValue int64
	MaxEntryValue int64
}

// Initialize creates the protocol's global configuration. It fails with
// ErrAlreadyExists once the record is present; there is no re-initialization.
func (e *Engine) Initialize(ctx context.Context, p InitParams) error {
	if p.Admin.Zero() || p.Treasury.Zero() {
		return fmt.Errorf("engine: initialize: admin and treasury required: %w", domain.ErrUnauthorized)
	}
	if p.ArenaDuration < domain.MinArenaDuration {
		return fmt.Errorf("engine: initialize: %w", domain.ErrInvalidDuration)
	}
	if p.MaxPlayers < 2 || p.MaxPlayers > domain.ClaimBitmapWidth {
		return fmt.Errorf("engine: initialize: max players must be 2..%d", domain.ClaimBitmapWidth)
	}
	if p.MaxPerSlot < 1 || p.MaxPerSlot > p.MaxPlayers {
		return fmt.Errorf("engine: initialize: max per slot must be 1..max players")
	}

	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		_, err := tx.GlobalConfig(ctx)
		if err == nil {
			return fmt.Errorf("engine: initialize: %w", domain.ErrAlreadyExists)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("engine: initialize: read config: %w", err)
		}

		return tx.PutGlobalConfig(ctx, domain.GlobalConfig{
			Version:       1,
			Admin:         p.Admin,
			Treasury:      p.Treasury,
			ArenaDuration: p.ArenaDuration,
			MaxPlayers:    p.MaxPlayers,
			MaxPerSlot:    p.MaxPerSlot,
			MinEntryValue: p.MinEntryValue,
			MaxEntryValue: p.MaxEntryValue,
			NextArenaID:   1,
			UpdatedAt:     e.now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "engine: protocol initialized",
		slog.String("admin", string(p.Admin)),
		slog.Duration("duration", p.ArenaDuration),
		slog.Int("max_players", p.MaxPlayers),
	)
	e.emit(domain.Event{Type: domain.EventConfigSet})
	return nil
}

// SettingsPatch carries optional admin updates; nil fields are untouched.
type SettingsPatch struct {
	ArenaDuration *time.Duration
	Treasury      *domain.Identity
	MaxPlayers    *int
	MaxPerSlot    *int
	MinEntryValue *int64
	MaxEntryValue *int64
	Paused        *bool
}

// UpdateSettings applies an admin-authenticated patch to the global
// configuration and bumps its version.
func (e *Engine) UpdateSettings(ctx context.Context, caller domain.Identity, patch SettingsPatch) error {
	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		cfg, err := tx.GlobalConfig(ctx)
		if err != nil {
			return fmt.Errorf("engine: update settings: %w", err)
		}
		if !e.auth.CanAdminister(cfg, caller) {
			return fmt.Errorf("engine: update settings: %w", domain.ErrUnauthorized)
		}

		if patch.ArenaDuration != nil {
			if *patch.ArenaDuration < domain.MinArenaDuration {
				return fmt.Errorf("engine: update settings: %w", domain.ErrInvalidDuration)
			}
			cfg.ArenaDuration = *patch.ArenaDuration
		}
		if patch.Treasury != nil && !patch.Treasury.Zero() {
			cfg.Treasury = *patch.Treasury
		}
		if patch.MaxPlayers != nil {
			if *patch.MaxPlayers < 2 || *patch.MaxPlayers > domain.ClaimBitmapWidth {
				return fmt.Errorf("engine: update settings: max players must be 2..%d", domain.ClaimBitmapWidth)
			}
			cfg.MaxPlayers = *patch.MaxPlayers
		}
		if patch.MaxPerSlot != nil {
			if *patch.MaxPerSlot < 1 {
				return fmt.Errorf("engine: update settings: max per slot must be >= 1")
			}
			cfg.MaxPerSlot = *patch.MaxPerSlot
		}
		if patch.MinEntryValue != nil {
			cfg.MinEntryValue = *patch.MinEntryValue
		}
		if patch.MaxEntryValue != nil {
			cfg.MaxEntryValue = *patch.MaxEntryValue
		}
		if patch.Paused != nil {
			cfg.Paused = *patch.Paused
		}

		cfg.Version++
		cfg.UpdatedAt = e.now().UTC()
		return tx.PutGlobalConfig(ctx, cfg)
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "engine: settings updated", slog.String("caller", string(caller)))
	e.emit(domain.Event{Type: domain.EventConfigSet})
	return nil
}
