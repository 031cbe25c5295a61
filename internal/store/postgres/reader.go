package postgres

import (
	"context"
	"fmt"

	"github.com/cryptarena/arenad/internal/domain"
)

// Read-only fetches run directly on the pool without row locks.

func (l *Ledger) GetGlobalConfig(ctx context.Context) (domain.GlobalConfig, error) {
	row := l.client.pool.QueryRow(ctx,
		`SELECT `+globalConfigColumns+` FROM global_config WHERE id = 1`)
	return scanGlobalConfig(row)
}

func (l *Ledger) GetWhitelist(ctx context.Context) ([]domain.WhitelistEntry, error) {
	rows, err := l.client.pool.Query(ctx, `
		SELECT slot_index, chain_tag, asset_id, symbol, active
		FROM whitelist ORDER BY slot_index`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list whitelist: %w", err)
	}
	defer rows.Close()

	var out []domain.WhitelistEntry
	for rows.Next() {
		var e domain.WhitelistEntry
		if err := rows.Scan(&e.SlotIndex, &e.ChainTag, &e.AssetID, &e.Symbol, &e.Active); err != nil {
			return nil, fmt.Errorf("postgres: scan whitelist entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *Ledger) GetArena(ctx context.Context, id int64) (domain.Arena, error) {
	row := l.client.pool.QueryRow(ctx,
		`SELECT `+arenaColumns+` FROM arenas WHERE id = $1`, id)
	return scanArena(row)
}

func (l *Ledger) GetArenasByStatus(ctx context.Context, statuses ...domain.ArenaStatus) ([]domain.Arena, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := l.client.pool.Query(ctx,
		`SELECT `+arenaColumns+` FROM arenas
		WHERE status = ANY($1) ORDER BY id`, names)
	if err != nil {
		return nil, fmt.Errorf("postgres: list arenas by status: %w", err)
	}
	defer rows.Close()

	var out []domain.Arena
	for rows.Next() {
		a, err := scanArena(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan arena: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (l *Ledger) GetAssetAggregates(ctx context.Context, arenaID int64) ([]domain.AssetAggregate, error) {
	rows, err := l.client.pool.Query(ctx,
		`SELECT `+aggregateColumns+` FROM asset_aggregates
		WHERE arena_id = $1 ORDER BY slot_index`, arenaID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list aggregates: %w", err)
	}
	defer rows.Close()

	var out []domain.AssetAggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan aggregate: %w", err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func (l *Ledger) GetEntry(ctx context.Context, arenaID int64, player domain.Identity) (domain.PlayerEntry, error) {
	row := l.client.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM player_entries
		WHERE arena_id = $1 AND player = $2`, arenaID, string(player))
	return scanEntry(row)
}

func (l *Ledger) GetEntries(ctx context.Context, arenaID int64) ([]domain.PlayerEntry, error) {
	rows, err := l.client.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM player_entries
		WHERE arena_id = $1 ORDER BY ordinal`, arenaID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list entries: %w", err)
	}
	defer rows.Close()

	var out []domain.PlayerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *Ledger) GetTransfers(ctx context.Context, arenaID int64) ([]domain.Transfer, error) {
	rows, err := l.client.pool.Query(ctx,
		`SELECT `+transferColumns+` FROM escrow_transfers
		WHERE arena_id = $1 ORDER BY created_at, id`, arenaID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transfers: %w", err)
	}
	defer rows.Close()

	var out []domain.Transfer
	for rows.Next() {
		tr, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transfer: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

var (
	_ domain.Ledger       = (*Ledger)(nil)
	_ domain.LedgerReader = (*Ledger)(nil)
)
