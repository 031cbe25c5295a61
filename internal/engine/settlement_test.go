package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptarena/arenad/internal/domain"
)

// settleTwoSlots drives a 1v1 arena to ended with slot 0 winning.
func settleTwoSlots(t *testing.T, f *fixture, aliceValue, bobValue int64) int64 {
	t.Helper()
	ctx := context.Background()

	id := fillTwoSlots(t, f, aliceValue, bobValue)
	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 0, 100*domain.PriceScale))
	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 1, 100*domain.PriceScale))
	f.advance(10 * time.Minute)
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 0, 120*domain.PriceScale))
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 1, 90*domain.PriceScale))

	res, err := f.eng.Finalize(ctx, admin, id)
	require.NoError(t, err)
	require.Equal(t, int16(0), res.WinningSlot)
	return id
}

// escrowNet returns credits minus debits per slot from the journal.
func escrowNet(t *testing.T, f *fixture, arenaID int64) map[int16]int64 {
	t.Helper()
	transfers, err := f.ledger.GetTransfers(context.Background(), arenaID)
	require.NoError(t, err)

	net := make(map[int16]int64)
	for _, tr := range transfers {
		if tr.Debit {
			net[tr.SlotIndex] -= tr.Amount
		} else {
			net[tr.SlotIndex] += tr.Amount
		}
	}
	return net
}

func TestSettlementDistributesEveryUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)
	id := settleTwoSlots(t, f, 10_000_000, 12_000_000)

	own, err := f.eng.ClaimOwnStake(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), own)

	reward, err := f.eng.ClaimRewardFrom(ctx, alice, id, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10_800_000), reward, "90%% of the losing stake")

	fee, err := f.eng.CollectTreasuryFee(ctx, treasury, id, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1_200_000), fee, "10%% of the losing stake")

	// With a single winner the split is exact and both escrows drain to zero.
	residue, err := f.eng.SweepResidue(ctx, admin, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), residue)

	for slot, bal := range escrowNet(t, f, id) {
		assert.Zero(t, bal, "slot %d escrow should be empty", slot)
	}
}

func TestSettlementClaimGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)
	id := settleTwoSlots(t, f, 10_000_000, 10_000_000)

	// Losers cannot reclaim capital or pose as winners.
	_, err := f.eng.ClaimOwnStake(ctx, bob, id)
	assert.ErrorIs(t, err, domain.ErrNotWinner)
	_, err = f.eng.ClaimRewardFrom(ctx, bob, id, 0)
	assert.ErrorIs(t, err, domain.ErrNotWinner)

	// Winners cannot drain a co-winner.
	_, err = f.eng.ClaimRewardFrom(ctx, alice, id, 0)
	assert.ErrorIs(t, err, domain.ErrNotLoser)
	_, err = f.eng.CollectTreasuryFee(ctx, admin, id, 0)
	assert.ErrorIs(t, err, domain.ErrNotLoser)

	// Fee sweeps need the admin or treasury identity.
	_, err = f.eng.CollectTreasuryFee(ctx, alice, id, 1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Each claim succeeds exactly once.
	_, err = f.eng.ClaimOwnStake(ctx, alice, id)
	require.NoError(t, err)
	_, err = f.eng.ClaimOwnStake(ctx, alice, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	_, err = f.eng.ClaimRewardFrom(ctx, alice, id, 1)
	require.NoError(t, err)
	_, err = f.eng.ClaimRewardFrom(ctx, alice, id, 1)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	_, err = f.eng.CollectTreasuryFee(ctx, treasury, id, 1)
	require.NoError(t, err)
	_, err = f.eng.CollectTreasuryFee(ctx, treasury, id, 1)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestSettlementRequiresEndedArena(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)
	id := fillTwoSlots(t, f, 10_000_000, 10_000_000)

	_, err := f.eng.ClaimOwnStake(ctx, alice, id)
	assert.ErrorIs(t, err, domain.ErrArenaNotEnded)
	_, err = f.eng.ClaimRewardFrom(ctx, alice, id, 1)
	assert.ErrorIs(t, err, domain.ErrArenaNotEnded)
	_, err = f.eng.CollectTreasuryFee(ctx, treasury, id, 1)
	assert.ErrorIs(t, err, domain.ErrArenaNotEnded)
	_, err = f.eng.ClaimRefund(ctx, alice, id)
	assert.ErrorIs(t, err, domain.ErrArenaNotCancelled)
}

func TestRefundAfterCancellation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)
	id := fillTwoSlots(t, f, 10_000_000, 12_000_000)

	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 0, 100*domain.PriceScale))
	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 1, 200*domain.PriceScale))
	f.advance(10 * time.Minute)
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 0, 110*domain.PriceScale))
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 1, 220*domain.PriceScale))

	res, err := f.eng.Finalize(ctx, admin, id)
	require.NoError(t, err)
	require.True(t, res.Cancelled)

	amount, err := f.eng.ClaimRefund(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), amount)

	amount, err = f.eng.ClaimRefund(ctx, bob, id)
	require.NoError(t, err)
	assert.Equal(t, int64(12_000_000), amount)

	_, err = f.eng.ClaimRefund(ctx, alice, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// Cancelled arenas never pay rewards.
	_, err = f.eng.ClaimOwnStake(ctx, alice, id)
	assert.ErrorIs(t, err, domain.ErrArenaNotEnded)

	for slot, bal := range escrowNet(t, f, id) {
		assert.Zero(t, bal, "slot %d escrow should be empty", slot)
	}
}

func TestRewardSplitsEquallyAcrossCoWinners(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4, 3)

	for _, winner := range []domain.Identity{alice, carol, dave} {
		_, err := f.eng.Enter(ctx, winner, 0, 1, 10_000_000)
		require.NoError(t, err)
	}
	entry, err := f.eng.Enter(ctx, bob, 1, 1, 10_000_000)
	require.NoError(t, err)
	id := entry.ArenaID

	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 0, 100*domain.PriceScale))
	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 1, 100*domain.PriceScale))
	f.advance(10 * time.Minute)
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 0, 110*domain.PriceScale))
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 1, 90*domain.PriceScale))

	res, err := f.eng.Finalize(ctx, admin, id)
	require.NoError(t, err)
	require.Equal(t, int16(0), res.WinningSlot)

	// Three co-winners split 90% of the loser's stake in equal shares.
	for _, winner := range []domain.Identity{alice, carol, dave} {
		reward, err := f.eng.ClaimRewardFrom(ctx, winner, id, entry.Ordinal)
		require.NoError(t, err)
		assert.Equal(t, int64(3_000_000), reward)
	}
}

func TestSweepResidueCollectsRoundingDust(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3, 2)

	// Two co-winners on slot 0, one loser on slot 1 with a stake that does
	// not split evenly.
	_, err := f.eng.Enter(ctx, alice, 0, 1, 10_000_000)
	require.NoError(t, err)
	_, err = f.eng.Enter(ctx, carol, 0, 1, 10_000_000)
	require.NoError(t, err)
	entry, err := f.eng.Enter(ctx, bob, 1, 1, 10_000_001)
	require.NoError(t, err)
	id := entry.ArenaID

	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 0, 100*domain.PriceScale))
	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 1, 100*domain.PriceScale))
	f.advance(10 * time.Minute)
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 0, 110*domain.PriceScale))
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 1, 90*domain.PriceScale))

	res, err := f.eng.Finalize(ctx, admin, id)
	require.NoError(t, err)
	require.Equal(t, int16(0), res.WinningSlot)

	// Sweeping is premature while any claim is outstanding.
	_, err = f.eng.SweepResidue(ctx, admin, id)
	assert.ErrorIs(t, err, domain.ErrSettlementOpen)

	bobOrdinal := entry.Ordinal
	for _, winner := range []domain.Identity{alice, carol} {
		_, err = f.eng.ClaimOwnStake(ctx, winner, id)
		require.NoError(t, err)
		reward, err := f.eng.ClaimRewardFrom(ctx, winner, id, bobOrdinal)
		require.NoError(t, err)
		assert.Equal(t, int64(4_500_000), reward)
	}

	_, err = f.eng.SweepResidue(ctx, admin, id)
	assert.ErrorIs(t, err, domain.ErrSettlementOpen, "fee not yet swept")

	fee, err := f.eng.CollectTreasuryFee(ctx, treasury, id, bobOrdinal)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), fee)

	_, err = f.eng.SweepResidue(ctx, alice, id)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	residue, err := f.eng.SweepResidue(ctx, admin, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), residue, "floor division leaves one unit of dust")

	for slot, bal := range escrowNet(t, f, id) {
		assert.Zero(t, bal, "slot %d escrow should be empty", slot)
	}

	// A second sweep finds nothing.
	residue, err = f.eng.SweepResidue(ctx, admin, id)
	require.NoError(t, err)
	assert.Zero(t, residue)
}
