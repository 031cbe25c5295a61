package memory

import (
	"context"
	"sort"

	"github.com/cryptarena/arenad/internal/domain"
)

// Read-only fetches open a short-lived transaction and roll it back.

func (l *Ledger) GetGlobalConfig(ctx context.Context) (domain.GlobalConfig, error) {
	tx, _ := l.Begin(ctx)
	defer tx.Rollback(ctx)
	return tx.GlobalConfig(ctx)
}

func (l *Ledger) GetWhitelist(ctx context.Context) ([]domain.WhitelistEntry, error) {
	tx, _ := l.Begin(ctx)
	defer tx.Rollback(ctx)
	return tx.Whitelist(ctx)
}

func (l *Ledger) GetArena(ctx context.Context, id int64) (domain.Arena, error) {
	tx, _ := l.Begin(ctx)
	defer tx.Rollback(ctx)
	return tx.Arena(ctx, id)
}

func (l *Ledger) GetArenasByStatus(ctx context.Context, statuses ...domain.ArenaStatus) ([]domain.Arena, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Arena
	for _, a := range l.st.arenas {
		for _, s := range statuses {
			if a.Status == s {
				out = append(out, a)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *Ledger) GetAssetAggregates(ctx context.Context, arenaID int64) ([]domain.AssetAggregate, error) {
	tx, _ := l.Begin(ctx)
	defer tx.Rollback(ctx)
	return tx.AssetAggregates(ctx, arenaID)
}

func (l *Ledger) GetEntry(ctx context.Context, arenaID int64, player domain.Identity) (domain.PlayerEntry, error) {
	tx, _ := l.Begin(ctx)
	defer tx.Rollback(ctx)
	return tx.Entry(ctx, arenaID, player)
}

func (l *Ledger) GetEntries(ctx context.Context, arenaID int64) ([]domain.PlayerEntry, error) {
	tx, _ := l.Begin(ctx)
	defer tx.Rollback(ctx)
	return tx.Entries(ctx, arenaID)
}

func (l *Ledger) GetTransfers(ctx context.Context, arenaID int64) ([]domain.Transfer, error) {
	tx, _ := l.Begin(ctx)
	defer tx.Rollback(ctx)
	return tx.Transfers(ctx, arenaID)
}

var (
	_ domain.Ledger       = (*Ledger)(nil)
	_ domain.LedgerReader = (*Ledger)(nil)
)
