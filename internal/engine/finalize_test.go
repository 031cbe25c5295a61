package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptarena/arenad/internal/domain"
)

// fillTwoSlots admits alice on slot 0 and bob on slot 1 with the given stake
// values and returns the arena ID.
func fillTwoSlots(t *testing.T, f *fixture, aliceValue, bobValue int64) int64 {
	t.Helper()
	ctx := context.Background()

	first, err := f.eng.Enter(ctx, alice, 0, 1, aliceValue)
	require.NoError(t, err)
	_, err = f.eng.Enter(ctx, bob, 1, 1, bobValue)
	require.NoError(t, err)
	return first.ArenaID
}

func TestStartPriceActivatesArena(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)
	id := fillTwoSlots(t, f, 10_000_000, 10_000_000)

	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 0, 100*domain.PriceScale))

	arena, err := f.ledger.GetArena(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ArenaStarting, arena.Status)
	assert.Equal(t, 1, arena.StartPricesSet)

	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 1, 50*domain.PriceScale))

	arena, err = f.ledger.GetArena(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ArenaActive, arena.Status)
	assert.Equal(t, f.now, arena.StartTime)
	assert.Equal(t, f.now.Add(10*time.Minute), arena.EndTime)
}

func TestStartPriceGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)
	id := fillTwoSlots(t, f, 10_000_000, 10_000_000)

	assert.ErrorIs(t, f.eng.SetStartPrice(ctx, admin, id, 0, 0), domain.ErrInvalidPrice)
	assert.ErrorIs(t, f.eng.SetStartPrice(ctx, alice, id, 0, domain.PriceScale), domain.ErrUnauthorized)

	// Resampling the same slot does not double count.
	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 0, domain.PriceScale))
	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 0, 2*domain.PriceScale))

	arena, err := f.ledger.GetArena(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, arena.StartPricesSet)
}

func TestStartPriceRejectedBeforeArenaReady(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4, 2)

	entry, err := f.eng.Enter(ctx, alice, 0, 1, 10_000_000)
	require.NoError(t, err)

	// One of four seats is taken; the arena is still waiting.
	err = f.eng.SetStartPrice(ctx, admin, entry.ArenaID, 0, domain.PriceScale)
	assert.ErrorIs(t, err, domain.ErrArenaNotReady)
}

func TestEndPriceDurationGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)
	id := fillTwoSlots(t, f, 10_000_000, 10_000_000)

	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 0, 100*domain.PriceScale))
	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 1, 50*domain.PriceScale))

	err := f.eng.SetEndPrice(ctx, admin, id, 0, 110*domain.PriceScale)
	assert.ErrorIs(t, err, domain.ErrDurationNotElapsed)

	f.advance(10 * time.Minute)
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 0, 110*domain.PriceScale))

	arena, err := f.ledger.GetArena(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ArenaEnding, arena.Status)
	assert.Equal(t, 1, arena.EndPricesSet)
}

func TestFinalizePicksStrictMaxMovement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)
	id := fillTwoSlots(t, f, 10_000_000, 10_000_000)

	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 0, 100*domain.PriceScale))
	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 1, 50*domain.PriceScale))
	f.advance(10 * time.Minute)

	// Slot 0 moves +10%, slot 1 moves -10%.
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 0, 110*domain.PriceScale))
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 1, 45*domain.PriceScale))

	res, err := f.eng.Finalize(ctx, admin, id)
	require.NoError(t, err)
	assert.Equal(t, int16(0), res.WinningSlot)
	assert.Equal(t, int64(1000), res.MovementBps)
	assert.False(t, res.Cancelled)

	arena, err := f.ledger.GetArena(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ArenaEnded, arena.Status)
	assert.Equal(t, int16(0), arena.WinningSlot)

	entry, err := f.ledger.GetEntry(ctx, id, alice)
	require.NoError(t, err)
	assert.True(t, entry.Winner)

	entry, err = f.ledger.GetEntry(ctx, id, bob)
	require.NoError(t, err)
	assert.False(t, entry.Winner)

	// Terminal arenas are not re-finalized.
	_, err = f.eng.Finalize(ctx, admin, id)
	assert.ErrorIs(t, err, domain.ErrArenaNotEnding)
}

func TestFinalizeTieCancelsArena(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)
	id := fillTwoSlots(t, f, 10_000_000, 10_000_000)

	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 0, 100*domain.PriceScale))
	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 1, 200*domain.PriceScale))
	f.advance(10 * time.Minute)

	// Both slots move exactly +5%.
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 0, 105*domain.PriceScale))
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 1, 210*domain.PriceScale))

	res, err := f.eng.Finalize(ctx, admin, id)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, domain.NoWinningSlot, res.WinningSlot)

	arena, err := f.ledger.GetArena(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ArenaCancelled, arena.Status)
	assert.True(t, arena.Cancelled)
}

func TestFinalizeRequiresAllEndPrices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)
	id := fillTwoSlots(t, f, 10_000_000, 10_000_000)

	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 0, 100*domain.PriceScale))
	require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, 1, 50*domain.PriceScale))
	f.advance(10 * time.Minute)
	require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, 0, 110*domain.PriceScale))

	_, err := f.eng.Finalize(ctx, admin, id)
	assert.ErrorIs(t, err, domain.ErrMissingPrice)
}

func TestFinalizeSelectsBoostedSlotAmongTen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10, 1)

	// Fixture whitelists slots 0 and 1; fill out the remaining eight.
	for slot := int16(2); slot < 10; slot++ {
		require.NoError(t, f.eng.AddWhitelisted(ctx, admin, domain.WhitelistEntry{
			SlotIndex: slot,
			ChainTag:  "svm",
			AssetID:   []byte{byte(slot)},
			Symbol:    fmt.Sprintf("AST%d", slot),
		}))
	}

	var id int64
	for slot := int16(0); slot < 10; slot++ {
		player := domain.Identity(fmt.Sprintf("0x%040x", 0x1000+slot))
		entry, err := f.eng.Enter(ctx, player, slot, 1, 10_000_000)
		require.NoError(t, err)
		id = entry.ArenaID
	}

	// Every slot starts at 100. Slot 7 jumps 50%; the rest gain at most 9%.
	for slot := int16(0); slot < 10; slot++ {
		require.NoError(t, f.eng.SetStartPrice(ctx, admin, id, slot, 100*domain.PriceScale))
	}
	f.advance(10 * time.Minute)
	for slot := int16(0); slot < 10; slot++ {
		end := int64(100+slot) * domain.PriceScale
		if slot == 7 {
			end = 150 * domain.PriceScale
		}
		require.NoError(t, f.eng.SetEndPrice(ctx, admin, id, slot, end))
	}

	res, err := f.eng.Finalize(ctx, admin, id)
	require.NoError(t, err)
	assert.Equal(t, int16(7), res.WinningSlot)
	assert.Equal(t, int64(5000), res.MovementBps)
	assert.False(t, res.Cancelled)
}

func TestSuspendHaltsArena(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)
	id := fillTwoSlots(t, f, 10_000_000, 10_000_000)

	assert.ErrorIs(t, f.eng.Suspend(ctx, alice, id), domain.ErrUnauthorized)
	require.NoError(t, f.eng.Suspend(ctx, admin, id))

	arena, err := f.ledger.GetArena(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ArenaSuspended, arena.Status)

	require.ErrorIs(t, f.eng.Suspend(ctx, admin, id), domain.ErrArenaNotActive)
	err = f.eng.SetStartPrice(ctx, admin, id, 0, domain.PriceScale)
	assert.ErrorIs(t, err, domain.ErrArenaNotReady)
}
