package domain

import (
	"context"
	"time"
)

// TransferKind classifies escrow journal entries.
type TransferKind string

const (
	TransferStake    TransferKind = "stake"     // admission credit
	TransferOwnStake TransferKind = "own_stake" // winner reclaiming capital
	TransferReward   TransferKind = "reward"    // winner draining a loser
	TransferFee      TransferKind = "fee"       // treasury sweep
	TransferRefund   TransferKind = "refund"    // cancellation refund
)

// Transfer is one value-conserving escrow movement. Credits flow into the
// (arena, slot) escrow at admission; debits flow out during settlement.
type Transfer struct {
	ID           string // uuid
	ArenaID      int64
	SlotIndex    int16
	Counterparty Identity
	Amount       int64
	Debit        bool
	Kind         TransferKind
	CreatedAt    time.Time
}

// Ledger opens isolated transactions against the record store. Every public
// engine operation runs inside exactly one LedgerTx; the transaction's
// atomicity is the only synchronization primitive the engine relies on.
type Ledger interface {
	Begin(ctx context.Context) (LedgerTx, error)
}

// LedgerTx is a single atomic transaction. Reads return locked snapshots of
// the addressed records; either every write commits or none does. Rollback
// after Commit is a no-op so `defer tx.Rollback(ctx)` is always safe.
type LedgerTx interface {
	GlobalConfig(ctx context.Context) (GlobalConfig, error)
	PutGlobalConfig(ctx context.Context, cfg GlobalConfig) error

	WhitelistEntry(ctx context.Context, slot int16) (WhitelistEntry, error)
	PutWhitelistEntry(ctx context.Context, e WhitelistEntry) error
	Whitelist(ctx context.Context) ([]WhitelistEntry, error)

	Arena(ctx context.Context, id int64) (Arena, error)
	WaitingArena(ctx context.Context) (Arena, error)
	PutArena(ctx context.Context, a Arena) error

	AssetAggregate(ctx context.Context, arenaID int64, slot int16) (AssetAggregate, error)
	AssetAggregates(ctx context.Context, arenaID int64) ([]AssetAggregate, error)
	PutAssetAggregate(ctx context.Context, agg AssetAggregate) error

	Entry(ctx context.Context, arenaID int64, player Identity) (PlayerEntry, error)
	EntryByOrdinal(ctx context.Context, arenaID int64, ordinal int) (PlayerEntry, error)
	Entries(ctx context.Context, arenaID int64) ([]PlayerEntry, error)
	PutEntry(ctx context.Context, e PlayerEntry) error

	// EscrowBalance returns the current balance of the (arena, slot) escrow.
	EscrowBalance(ctx context.Context, arenaID int64, slot int16) (int64, error)
	// CreditEscrow moves value from the counterparty into escrow.
	CreditEscrow(ctx context.Context, arenaID int64, slot int16, from Identity, amount int64, kind TransferKind) (Transfer, error)
	// DebitEscrow moves value from escrow to the counterparty. It fails with
	// ErrInsufficientEscrow rather than overdrawing.
	DebitEscrow(ctx context.Context, arenaID int64, slot int16, to Identity, amount int64, kind TransferKind) (Transfer, error)
	// Transfers lists the journal for an arena in creation order.
	Transfers(ctx context.Context, arenaID int64) ([]Transfer, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// LedgerReader serves the read-only fetch surface without opening an explicit
// transaction.
type LedgerReader interface {
	GetGlobalConfig(ctx context.Context) (GlobalConfig, error)
	GetWhitelist(ctx context.Context) ([]WhitelistEntry, error)
	GetArena(ctx context.Context, id int64) (Arena, error)
	GetArenasByStatus(ctx context.Context, statuses ...ArenaStatus) ([]Arena, error)
	GetAssetAggregates(ctx context.Context, arenaID int64) ([]AssetAggregate, error)
	GetEntry(ctx context.Context, arenaID int64, player Identity) (PlayerEntry, error)
	GetEntries(ctx context.Context, arenaID int64) ([]PlayerEntry, error)
	GetTransfers(ctx context.Context, arenaID int64) ([]Transfer, error)
}
