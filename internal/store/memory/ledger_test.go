package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptarena/arenad/internal/domain"
)

func TestRollbackLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	l := New()

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.PutArena(ctx, domain.Arena{ID: 1, Status: domain.ArenaWaiting}))
	_, err = tx.CreditEscrow(ctx, 1, 0, "0xabc", 500, domain.TransferStake)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	tx, err = l.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = tx.Arena(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	bal, err := tx.EscrowBalance(ctx, 1, 0)
	require.NoError(t, err)
	assert.Zero(t, bal)

	transfers, err := tx.Transfers(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestCommitPublishesStagedState(t *testing.T) {
	ctx := context.Background()
	l := New()

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.PutArena(ctx, domain.Arena{ID: 7, Status: domain.ArenaWaiting}))
	require.NoError(t, tx.Commit(ctx))

	tx, err = l.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	a, err := tx.Arena(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.ArenaWaiting, a.Status)

	// Rollback after Commit is a no-op, not a double unlock.
	assert.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, tx.Rollback(ctx))
}

func TestDebitEscrowRejectsOverdraw(t *testing.T) {
	ctx := context.Background()
	l := New()

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = tx.CreditEscrow(ctx, 1, 0, "0xabc", 100, domain.TransferStake)
	require.NoError(t, err)

	_, err = tx.DebitEscrow(ctx, 1, 0, "0xabc", 101, domain.TransferOwnStake)
	assert.ErrorIs(t, err, domain.ErrInsufficientEscrow)

	tr, err := tx.DebitEscrow(ctx, 1, 0, "0xabc", 100, domain.TransferOwnStake)
	require.NoError(t, err)
	assert.True(t, tr.Debit)
	assert.NotEmpty(t, tr.ID)

	bal, err := tx.EscrowBalance(ctx, 1, 0)
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestWaitingArenaPicksLowestID(t *testing.T) {
	ctx := context.Background()
	l := New()

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = tx.WaitingArena(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, tx.PutArena(ctx, domain.Arena{ID: 3, Status: domain.ArenaWaiting}))
	require.NoError(t, tx.PutArena(ctx, domain.Arena{ID: 2, Status: domain.ArenaWaiting}))
	require.NoError(t, tx.PutArena(ctx, domain.Arena{ID: 1, Status: domain.ArenaEnded}))

	a, err := tx.WaitingArena(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.ID)
}

func TestEntriesSortedByOrdinal(t *testing.T) {
	ctx := context.Background()
	l := New()

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	require.NoError(t, tx.PutEntry(ctx, domain.PlayerEntry{ArenaID: 1, Player: "0xb", Ordinal: 1}))
	require.NoError(t, tx.PutEntry(ctx, domain.PlayerEntry{ArenaID: 1, Player: "0xa", Ordinal: 0}))

	entries, err := tx.Entries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.Identity("0xa"), entries[0].Player)
	assert.Equal(t, domain.Identity("0xb"), entries[1].Player)

	e, err := tx.EntryByOrdinal(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("0xb"), e.Player)

	_, err = tx.EntryByOrdinal(ctx, 1, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
