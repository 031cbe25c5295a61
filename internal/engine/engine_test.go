package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptarena/arenad/internal/domain"
	"github.com/cryptarena/arenad/internal/store/memory"
)

const (
	admin    = domain.Identity("0xad317b1d51a22d1b1f8e1ff5d9e1b64169b87a2e")
	treasury = domain.Identity("0x7e55017ab23bb12921ab55c1aa1f4a49e8b2c6b7")
	alice    = domain.Identity("0xa11ce00000000000000000000000000000000001")
	bob      = domain.Identity("0xb0b0000000000000000000000000000000000002")
	carol    = domain.Identity("0xca40100000000000000000000000000000000003")
	dave     = domain.Identity("0xda7e000000000000000000000000000000000004")
)

// fixture binds an engine to a fresh in-memory ledger with a controllable
// clock.
type fixture struct {
	eng    *Engine
	ledger *memory.Ledger
	now    time.Time
}

func newFixture(t *testing.T, maxPlayers, maxPerSlot int) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		ledger: memory.New(),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.eng = New(f.ledger, StaticAuthorizer{}, nil, logger).
		WithClock(func() time.Time { return f.now })

	require.NoError(t, f.eng.Initialize(ctx, InitParams{
		Admin:         admin,
		Treasury:      treasury,
		ArenaDuration: 10 * time.Minute,
		MaxPlayers:    maxPlayers,
		MaxPerSlot:    maxPerSlot,
		MinEntryValue: 1_000_000,
		MaxEntryValue: 100_000_000,
	}))

	require.NoError(t, f.eng.AddWhitelisted(ctx, admin, domain.WhitelistEntry{
		SlotIndex: 0, ChainTag: "svm", AssetID: []byte{0x01}, Symbol: "BTC",
	}))
	require.NoError(t, f.eng.AddWhitelisted(ctx, admin, domain.WhitelistEntry{
		SlotIndex: 1, ChainTag: "svm", AssetID: []byte{0x02}, Symbol: "ETH",
	}))
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func TestInitializeRejectsSecondRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)

	err := f.eng.Initialize(ctx, InitParams{
		Admin:         admin,
		Treasury:      treasury,
		ArenaDuration: 10 * time.Minute,
		MaxPlayers:    2,
		MaxPerSlot:    2,
		MinEntryValue: 1,
		MaxEntryValue: 100,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestInitializeValidatesParams(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := New(memory.New(), StaticAuthorizer{}, nil, logger)

	base := InitParams{
		Admin:         admin,
		Treasury:      treasury,
		ArenaDuration: 10 * time.Minute,
		MaxPlayers:    4,
		MaxPerSlot:    2,
		MinEntryValue: 1,
		MaxEntryValue: 100,
	}

	p := base
	p.ArenaDuration = 30 * time.Second
	assert.ErrorIs(t, eng.Initialize(ctx, p), domain.ErrInvalidDuration)

	p = base
	p.MaxPlayers = 1
	assert.Error(t, eng.Initialize(ctx, p))

	p = base
	p.MaxPlayers = domain.ClaimBitmapWidth + 1
	assert.Error(t, eng.Initialize(ctx, p))

	p = base
	p.Admin = ""
	assert.ErrorIs(t, eng.Initialize(ctx, p), domain.ErrUnauthorized)
}

func TestEnterCreatesArenaAndFillsIt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)

	first, err := f.eng.Enter(ctx, alice, 0, 500, 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ArenaID)
	assert.Equal(t, 0, first.Ordinal)

	arena, err := f.ledger.GetArena(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ArenaWaiting, arena.Status)
	assert.Equal(t, 1, arena.PlayerCount)
	assert.Equal(t, int64(10_000_000), arena.TotalPool)

	second, err := f.eng.Enter(ctx, bob, 1, 300, 12_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.ArenaID)
	assert.Equal(t, 1, second.Ordinal)

	arena, err = f.ledger.GetArena(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ArenaReady, arena.Status)
	assert.Equal(t, 2, arena.PlayerCount)
	assert.Equal(t, 2, arena.AssetCount)
	assert.Equal(t, int64(22_000_000), arena.TotalPool)

	// Each admission journals a stake credit.
	transfers, err := f.ledger.GetTransfers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	for _, tr := range transfers {
		assert.False(t, tr.Debit)
		assert.Equal(t, domain.TransferStake, tr.Kind)
	}
}

func TestEnterOpensNextArenaWhenCurrentIsFull(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)

	_, err := f.eng.Enter(ctx, alice, 0, 1, 10_000_000)
	require.NoError(t, err)
	_, err = f.eng.Enter(ctx, bob, 1, 1, 10_000_000)
	require.NoError(t, err)

	// Arena 1 is ready; a third admission starts arena 2.
	entry, err := f.eng.Enter(ctx, carol, 0, 1, 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.ArenaID)
	assert.Equal(t, 0, entry.Ordinal)
}

func TestEnterValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4, 1)

	_, err := f.eng.Enter(ctx, alice, 0, 1, 500_000)
	assert.ErrorIs(t, err, domain.ErrEntryOutOfBounds, "below min entry value")

	_, err = f.eng.Enter(ctx, alice, 0, 1, 200_000_000)
	assert.ErrorIs(t, err, domain.ErrEntryOutOfBounds, "above max entry value")

	_, err = f.eng.Enter(ctx, alice, 7, 1, 10_000_000)
	assert.ErrorIs(t, err, domain.ErrSlotNotWhitelisted)

	_, err = f.eng.Enter(ctx, "", 0, 1, 10_000_000)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.eng.Enter(ctx, alice, 0, 1, 10_000_000)
	require.NoError(t, err)

	_, err = f.eng.Enter(ctx, alice, 1, 1, 10_000_000)
	assert.ErrorIs(t, err, domain.ErrAlreadyEntered)

	// MaxPerSlot is 1, so a second player on slot 0 is refused.
	_, err = f.eng.Enter(ctx, bob, 0, 1, 10_000_000)
	assert.ErrorIs(t, err, domain.ErrSlotCapReached)
}

// recordingLedger notes which table each mutating call touches so tests can
// check that referenced rows are written before their dependents. Backends
// with foreign keys reject the reverse order.
type recordingLedger struct {
	*memory.Ledger
	writes []string
}

func (l *recordingLedger) Begin(ctx context.Context) (domain.LedgerTx, error) {
	tx, err := l.Ledger.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &recordingTx{LedgerTx: tx, l: l}, nil
}

type recordingTx struct {
	domain.LedgerTx
	l *recordingLedger
}

func (t *recordingTx) PutArena(ctx context.Context, a domain.Arena) error {
	t.l.writes = append(t.l.writes, "arena")
	return t.LedgerTx.PutArena(ctx, a)
}

func (t *recordingTx) PutAssetAggregate(ctx context.Context, agg domain.AssetAggregate) error {
	t.l.writes = append(t.l.writes, "aggregate")
	return t.LedgerTx.PutAssetAggregate(ctx, agg)
}

func (t *recordingTx) PutEntry(ctx context.Context, e domain.PlayerEntry) error {
	t.l.writes = append(t.l.writes, "entry")
	return t.LedgerTx.PutEntry(ctx, e)
}

func (t *recordingTx) CreditEscrow(ctx context.Context, arenaID int64, slot int16, from domain.Identity, amount int64, kind domain.TransferKind) (domain.Transfer, error) {
	t.l.writes = append(t.l.writes, "transfer")
	return t.LedgerTx.CreditEscrow(ctx, arenaID, slot, from, amount, kind)
}

func TestEnterWritesArenaBeforeDependentRows(t *testing.T) {
	ctx := context.Background()
	ledger := &recordingLedger{Ledger: memory.New()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := New(ledger, StaticAuthorizer{}, nil, logger)

	require.NoError(t, eng.Initialize(ctx, InitParams{
		Admin:         admin,
		Treasury:      treasury,
		ArenaDuration: 10 * time.Minute,
		MaxPlayers:    2,
		MaxPerSlot:    2,
		MinEntryValue: 1_000_000,
		MaxEntryValue: 100_000_000,
	}))
	require.NoError(t, eng.AddWhitelisted(ctx, admin, domain.WhitelistEntry{
		SlotIndex: 0, ChainTag: "svm", AssetID: []byte{0x01}, Symbol: "BTC",
	}))

	ledger.writes = nil
	_, err := eng.Enter(ctx, alice, 0, 1, 10_000_000)
	require.NoError(t, err)

	// The aggregate, entry, and transfer rows all reference the arena, so
	// the freshly created arena row must land first. The trailing arena
	// write upserts the updated counters.
	assert.Equal(t, []string{"arena", "transfer", "aggregate", "entry", "arena"}, ledger.writes)
}

func TestEnterRejectedWhenWaitingArenaIsFull(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)

	// Seed a waiting arena that already holds a full roster, as if two
	// admissions committed while this caller was racing for the last seat.
	full := domain.Arena{
		ID:          1,
		Status:      domain.ArenaWaiting,
		PlayerCount: 2,
		AssetCount:  2,
		TotalPool:   20_000_000,
		WinningSlot: domain.NoWinningSlot,
		CreatedAt:   f.now,
	}
	tx, err := f.ledger.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.PutArena(ctx, full))
	require.NoError(t, tx.Commit(ctx))

	_, err = f.eng.Enter(ctx, carol, 0, 1, 10_000_000)
	assert.ErrorIs(t, err, domain.ErrArenaFull)

	// The refused admission leaves no trace.
	arena, err := f.ledger.GetArena(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, arena.PlayerCount)
	assert.Equal(t, int64(20_000_000), arena.TotalPool)

	transfers, err := f.ledger.GetTransfers(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, transfers)

	entries, err := f.ledger.GetEntries(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEnterRejectedWhilePaused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)

	paused := true
	require.NoError(t, f.eng.UpdateSettings(ctx, admin, SettingsPatch{Paused: &paused}))

	_, err := f.eng.Enter(ctx, alice, 0, 1, 10_000_000)
	assert.ErrorIs(t, err, domain.ErrProtocolPaused)

	paused = false
	require.NoError(t, f.eng.UpdateSettings(ctx, admin, SettingsPatch{Paused: &paused}))

	_, err = f.eng.Enter(ctx, alice, 0, 1, 10_000_000)
	assert.NoError(t, err)
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)

	d := 20 * time.Minute
	assert.ErrorIs(t, f.eng.UpdateSettings(ctx, alice, SettingsPatch{ArenaDuration: &d}), domain.ErrUnauthorized)

	require.NoError(t, f.eng.UpdateSettings(ctx, admin, SettingsPatch{ArenaDuration: &d}))

	cfg, err := f.ledger.GetGlobalConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, cfg.ArenaDuration)
	assert.Equal(t, int64(2), cfg.Version)

	bad := 10 * time.Second
	assert.ErrorIs(t, f.eng.UpdateSettings(ctx, admin, SettingsPatch{ArenaDuration: &bad}), domain.ErrInvalidDuration)
}

func TestWhitelistLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)

	entry := domain.WhitelistEntry{SlotIndex: 2, ChainTag: "svm", AssetID: []byte{0x03}, Symbol: "SOL"}

	assert.ErrorIs(t, f.eng.AddWhitelisted(ctx, alice, entry), domain.ErrUnauthorized)
	require.NoError(t, f.eng.AddWhitelisted(ctx, admin, entry))

	// An active slot cannot be overwritten.
	assert.ErrorIs(t, f.eng.AddWhitelisted(ctx, admin, entry), domain.ErrAlreadyExists)

	require.NoError(t, f.eng.RemoveWhitelisted(ctx, admin, 2))
	_, err := f.eng.Enter(ctx, alice, 2, 1, 10_000_000)
	assert.ErrorIs(t, err, domain.ErrSlotNotWhitelisted)

	// Removed slots can be re-activated with new details.
	entry.Symbol = "WSOL"
	require.NoError(t, f.eng.AddWhitelisted(ctx, admin, entry))
	_, err = f.eng.Enter(ctx, alice, 2, 1, 10_000_000)
	assert.NoError(t, err)
}

func TestWhitelistRejectsBadEvmAssetID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 2)

	err := f.eng.AddWhitelisted(ctx, admin, domain.WhitelistEntry{
		SlotIndex: 3, ChainTag: "evm", AssetID: []byte{0x01, 0x02}, Symbol: "WETH",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSlot)
}
