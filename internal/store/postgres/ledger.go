package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cryptarena/arenad/internal/domain"
)

// Ledger implements domain.Ledger over the pgx pool. Every transaction reads
// the rows it will mutate with FOR UPDATE, so two settlement calls racing on
// the same entry serialize inside the database.
type Ledger struct {
	client *Client
}

// NewLedger wraps a connected Client as the domain ledger.
func NewLedger(client *Client) *Ledger {
	return &Ledger{client: client}
}

// Begin opens a database transaction.
func (l *Ledger) Begin(ctx context.Context) (domain.LedgerTx, error) {
	tx, err := l.client.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx   pgx.Tx
	done bool
}

func (t *pgTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

const globalConfigColumns = `version, admin, treasury, arena_duration_secs,
	max_players, max_per_slot, min_entry_value, max_entry_value,
	next_arena_id, paused, updated_at`

func scanGlobalConfig(row pgx.Row) (domain.GlobalConfig, error) {
	var cfg domain.GlobalConfig
	var durationSecs int64
	err := row.Scan(
		&cfg.Version, &cfg.Admin, &cfg.Treasury, &durationSecs,
		&cfg.MaxPlayers, &cfg.MaxPerSlot, &cfg.MinEntryValue, &cfg.MaxEntryValue,
		&cfg.NextArenaID, &cfg.Paused, &cfg.UpdatedAt,
	)
	if err != nil {
		return domain.GlobalConfig{}, mapNotFound(err)
	}
	cfg.ArenaDuration = time.Duration(durationSecs) * time.Second
	return cfg, nil
}

func (t *pgTx) GlobalConfig(ctx context.Context) (domain.GlobalConfig, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+globalConfigColumns+` FROM global_config WHERE id = 1 FOR UPDATE`)
	return scanGlobalConfig(row)
}

func (t *pgTx) PutGlobalConfig(ctx context.Context, cfg domain.GlobalConfig) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO global_config (
			id, version, admin, treasury, arena_duration_secs,
			max_players, max_per_slot, min_entry_value, max_entry_value,
			next_arena_id, paused, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			version = EXCLUDED.version,
			admin = EXCLUDED.admin,
			treasury = EXCLUDED.treasury,
			arena_duration_secs = EXCLUDED.arena_duration_secs,
			max_players = EXCLUDED.max_players,
			max_per_slot = EXCLUDED.max_per_slot,
			min_entry_value = EXCLUDED.min_entry_value,
			max_entry_value = EXCLUDED.max_entry_value,
			next_arena_id = EXCLUDED.next_arena_id,
			paused = EXCLUDED.paused,
			updated_at = EXCLUDED.updated_at`,
		cfg.Version, string(cfg.Admin), string(cfg.Treasury),
		int64(cfg.ArenaDuration/time.Second),
		cfg.MaxPlayers, cfg.MaxPerSlot, cfg.MinEntryValue, cfg.MaxEntryValue,
		cfg.NextArenaID, cfg.Paused, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put global config: %w", err)
	}
	return nil
}

func (t *pgTx) WhitelistEntry(ctx context.Context, slot int16) (domain.WhitelistEntry, error) {
	var e domain.WhitelistEntry
	err := t.tx.QueryRow(ctx, `
		SELECT slot_index, chain_tag, asset_id, symbol, active
		FROM whitelist WHERE slot_index = $1 FOR UPDATE`, slot,
	).Scan(&e.SlotIndex, &e.ChainTag, &e.AssetID, &e.Symbol, &e.Active)
	if err != nil {
		return domain.WhitelistEntry{}, mapNotFound(err)
	}
	return e, nil
}

func (t *pgTx) PutWhitelistEntry(ctx context.Context, e domain.WhitelistEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO whitelist (slot_index, chain_tag, asset_id, symbol, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slot_index) DO UPDATE SET
			chain_tag = EXCLUDED.chain_tag,
			asset_id = EXCLUDED.asset_id,
			symbol = EXCLUDED.symbol,
			active = EXCLUDED.active`,
		e.SlotIndex, e.ChainTag, e.AssetID, e.Symbol, e.Active,
	)
	if err != nil {
		return fmt.Errorf("postgres: put whitelist entry: %w", err)
	}
	return nil
}

func (t *pgTx) Whitelist(ctx context.Context) ([]domain.WhitelistEntry, error) {
	rows, err := t.tx.Query(ctx, `
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

const arenaColumns = `id, status, player_count, asset_count, total_pool,
	start_prices_set, end_prices_set, start_time, end_time,
	winning_slot, cancelled, created_at, updated_at`

func scanArena(row pgx.Row) (domain.Arena, error) {
	var a domain.Arena
	var status string
	var startTime, endTime *time.Time
	err := row.Scan(
		&a.ID, &status, &a.PlayerCount, &a.AssetCount, &a.TotalPool,
		&a.StartPricesSet, &a.EndPricesSet, &startTime, &endTime,
		&a.WinningSlot, &a.Cancelled, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Arena{}, mapNotFound(err)
	}
	a.Status = domain.ArenaStatus(status)
	if startTime != nil {
		a.StartTime = *startTime
	}
	if endTime != nil {
		a.EndTime = *endTime
	}
	return a, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (t *pgTx) Arena(ctx context.Context, id int64) (domain.Arena, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+arenaColumns+` FROM arenas WHERE id = $1 FOR UPDATE`, id)
	return scanArena(row)
}

func (t *pgTx) WaitingArena(ctx context.Context) (domain.Arena, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+arenaColumns+` FROM arenas
		WHERE status = $1 ORDER BY id LIMIT 1 FOR UPDATE`,
		string(domain.ArenaWaiting))
	return scanArena(row)
}

func (t *pgTx) PutArena(ctx context.Context, a domain.Arena) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO arenas (
			id, status, player_count, asset_count, total_pool,
			start_prices_set, end_prices_set, start_time, end_time,
			winning_slot, cancelled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			player_count = EXCLUDED.player_count,
			asset_count = EXCLUDED.asset_count,
			total_pool = EXCLUDED.total_pool,
			start_prices_set = EXCLUDED.start_prices_set,
			end_prices_set = EXCLUDED.end_prices_set,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			winning_slot = EXCLUDED.winning_slot,
			cancelled = EXCLUDED.cancelled,
			updated_at = EXCLUDED.updated_at`,
		a.ID, string(a.Status), a.PlayerCount, a.AssetCount, a.TotalPool,
		a.StartPricesSet, a.EndPricesSet, nullableTime(a.StartTime), nullableTime(a.EndTime),
		a.WinningSlot, a.Cancelled, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put arena %d: %w", a.ID, err)
	}
	return nil
}

const aggregateColumns = `arena_id, slot_index, player_count, pooled_stake,
	start_price, end_price, movement_bps, movement_set`

func scanAggregate(row pgx.Row) (domain.AssetAggregate, error) {
	var agg domain.AssetAggregate
	err := row.Scan(
		&agg.ArenaID, &agg.SlotIndex, &agg.PlayerCount, &agg.PooledStake,
		&agg.StartPrice, &agg.EndPrice, &agg.MovementBps, &agg.MovementSet,
	)
	if err != nil {
		return domain.AssetAggregate{}, mapNotFound(err)
	}
	return agg, nil
}

func (t *pgTx) AssetAggregate(ctx context.Context, arenaID int64, slot int16) (domain.AssetAggregate, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+aggregateColumns+` FROM asset_aggregates
		WHERE arena_id = $1 AND slot_index = $2 FOR UPDATE`, arenaID, slot)
	return scanAggregate(row)
}

func (t *pgTx) AssetAggregates(ctx context.Context, arenaID int64) ([]domain.AssetAggregate, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+aggregateColumns+` FROM asset_aggregates
		WHERE arena_id = $1 ORDER BY slot_index FOR UPDATE`, arenaID)
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

func (t *pgTx) PutAssetAggregate(ctx context.Context, agg domain.AssetAggregate) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO asset_aggregates (
			arena_id, slot_index, player_count, pooled_stake,
			start_price, end_price, movement_bps, movement_set
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (arena_id, slot_index) DO UPDATE SET
			player_count = EXCLUDED.player_count,
			pooled_stake = EXCLUDED.pooled_stake,
			start_price = EXCLUDED.start_price,
			end_price = EXCLUDED.end_price,
			movement_bps = EXCLUDED.movement_bps,
			movement_set = EXCLUDED.movement_set`,
		agg.ArenaID, agg.SlotIndex, agg.PlayerCount, agg.PooledStake,
		agg.StartPrice, agg.EndPrice, agg.MovementBps, agg.MovementSet,
	)
	if err != nil {
		return fmt.Errorf("postgres: put aggregate: %w", err)
	}
	return nil
}

const entryColumns = `arena_id, player, slot_index, stake_amount, stake_value,
	ordinal, entered_at, winner, own_stake_claimed, fee_claimed, rewards_claimed`

func scanEntry(row pgx.Row) (domain.PlayerEntry, error) {
	var e domain.PlayerEntry
	var player string
	var bitmap int64
	err := row.Scan(
		&e.ArenaID, &player, &e.SlotIndex, &e.StakeAmount, &e.StakeValue,
		&e.Ordinal, &e.EnteredAt, &e.Winner, &e.OwnStakeClaimed, &e.FeeClaimed, &bitmap,
	)
	if err != nil {
		return domain.PlayerEntry{}, mapNotFound(err)
	}
	e.Player = domain.Identity(player)
	e.RewardsClaimed = domain.ClaimBitmap(uint64(bitmap))
	return e, nil
}

func (t *pgTx) Entry(ctx context.Context, arenaID int64, player domain.Identity) (domain.PlayerEntry, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM player_entries
		WHERE arena_id = $1 AND player = $2 FOR UPDATE`, arenaID, string(player))
	return scanEntry(row)
}

func (t *pgTx) EntryByOrdinal(ctx context.Context, arenaID int64, ordinal int) (domain.PlayerEntry, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM player_entries
		WHERE arena_id = $1 AND ordinal = $2 FOR UPDATE`, arenaID, ordinal)
	return scanEntry(row)
}

func (t *pgTx) Entries(ctx context.Context, arenaID int64) ([]domain.PlayerEntry, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+entryColumns+` FROM player_entries
		WHERE arena_id = $1 ORDER BY ordinal FOR UPDATE`, arenaID)
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

func (t *pgTx) PutEntry(ctx context.Context, e domain.PlayerEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO player_entries (
			arena_id, player, slot_index, stake_amount, stake_value,
			ordinal, entered_at, winner, own_stake_claimed, fee_claimed, rewards_claimed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (arena_id, player) DO UPDATE SET
			winner = EXCLUDED.winner,
			own_stake_claimed = EXCLUDED.own_stake_claimed,
			fee_claimed = EXCLUDED.fee_claimed,
			rewards_claimed = EXCLUDED.rewards_claimed`,
		e.ArenaID, string(e.Player), e.SlotIndex, e.StakeAmount, e.StakeValue,
		e.Ordinal, e.EnteredAt, e.Winner, e.OwnStakeClaimed, e.FeeClaimed,
		int64(e.RewardsClaimed),
	)
	if err != nil {
		return fmt.Errorf("postgres: put entry: %w", err)
	}
	return nil
}

func (t *pgTx) EscrowBalance(ctx context.Context, arenaID int64, slot int16) (int64, error) {
	var balance int64
	err := t.tx.QueryRow(ctx, `
		SELECT balance FROM escrow_balances
		WHERE arena_id = $1 AND slot_index = $2 FOR UPDATE`, arenaID, slot,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: escrow balance: %w", err)
	}
	return balance, nil
}

func (t *pgTx) journal(ctx context.Context, tr domain.Transfer) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO escrow_transfers (
			id, arena_id, slot_index, counterparty, amount, debit, kind, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tr.ID, tr.ArenaID, tr.SlotIndex, string(tr.Counterparty),
		tr.Amount, tr.Debit, string(tr.Kind), tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: journal transfer: %w", err)
	}
	return nil
}

func (t *pgTx) CreditEscrow(ctx context.Context, arenaID int64, slot int16, from domain.Identity, amount int64, kind domain.TransferKind) (domain.Transfer, error) {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO escrow_balances (arena_id, slot_index, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (arena_id, slot_index) DO UPDATE SET
			balance = escrow_balances.balance + EXCLUDED.balance`,
		arenaID, slot, amount,
	)
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("postgres: credit escrow: %w", err)
	}
	tr := domain.Transfer{
		ID:           uuid.NewString(),
		ArenaID:      arenaID,
		SlotIndex:    slot,
		Counterparty: from,
		Amount:       amount,
		Kind:         kind,
		CreatedAt:    time.Now().UTC(),
	}
	if err := t.journal(ctx, tr); err != nil {
		return domain.Transfer{}, err
	}
	return tr, nil
}

func (t *pgTx) DebitEscrow(ctx context.Context, arenaID int64, slot int16, to domain.Identity, amount int64, kind domain.TransferKind) (domain.Transfer, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE escrow_balances SET balance = balance - $3
		WHERE arena_id = $1 AND slot_index = $2 AND balance >= $3`,
		arenaID, slot, amount,
	)
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("postgres: debit escrow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Transfer{}, domain.ErrInsufficientEscrow
	}
	tr := domain.Transfer{
		ID:           uuid.NewString(),
		ArenaID:      arenaID,
		SlotIndex:    slot,
		Counterparty: to,
		Amount:       amount,
		Debit:        true,
		Kind:         kind,
		CreatedAt:    time.Now().UTC(),
	}
	if err := t.journal(ctx, tr); err != nil {
		return domain.Transfer{}, err
	}
	return tr, nil
}

const transferColumns = `id, arena_id, slot_index, counterparty, amount, debit, kind, created_at`

func scanTransfer(row pgx.Row) (domain.Transfer, error) {
	var tr domain.Transfer
	var counterparty, kind string
	err := row.Scan(
		&tr.ID, &tr.ArenaID, &tr.SlotIndex, &counterparty,
		&tr.Amount, &tr.Debit, &kind, &tr.CreatedAt,
	)
	if err != nil {
		return domain.Transfer{}, mapNotFound(err)
	}
	tr.Counterparty = domain.Identity(counterparty)
	tr.Kind = domain.TransferKind(kind)
	return tr, nil
}

func (t *pgTx) Transfers(ctx context.Context, arenaID int64) ([]domain.Transfer, error) {
	rows, err := t.tx.Query(ctx,
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

var _ domain.LedgerTx = (*pgTx)(nil)
