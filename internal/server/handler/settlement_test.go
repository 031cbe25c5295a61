package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptarena/arenad/internal/domain"
	"github.com/cryptarena/arenad/internal/engine"
	"github.com/cryptarena/arenad/internal/server/middleware"
	"github.com/cryptarena/arenad/internal/store/memory"
)

const (
	testAdmin    = domain.Identity("0xad317b1d51a22d1b1f8e1ff5d9e1b64169b87a2e")
	testTreasury = domain.Identity("0x7e55017ab23bb12921ab55c1aa1f4a49e8b2c6b7")
	testAlice    = domain.Identity("0xa11ce00000000000000000000000000000000001")
	testBob      = domain.Identity("0xb0b0000000000000000000000000000000000002")
)

// endedArenaEngine drives a 1v1 arena to ending so Finalize is the next
// legal move. Slot 0 gains 10%, slot 1 loses 10%.
func endedArenaEngine(t *testing.T) (*engine.Engine, int64) {
	t.Helper()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(memory.New(), engine.StaticAuthorizer{}, nil, logger).
		WithClock(func() time.Time { return now })

	require.NoError(t, eng.Initialize(ctx, engine.InitParams{
		Admin:         testAdmin,
		Treasury:      testTreasury,
		ArenaDuration: 10 * time.Minute,
		MaxPlayers:    2,
		MaxPerSlot:    2,
		MinEntryValue: 1_000_000,
		MaxEntryValue: 100_000_000,
	}))
	require.NoError(t, eng.AddWhitelisted(ctx, testAdmin, domain.WhitelistEntry{
		SlotIndex: 0, ChainTag: "svm", AssetID: []byte{0x01}, Symbol: "BTC",
	}))
	require.NoError(t, eng.AddWhitelisted(ctx, testAdmin, domain.WhitelistEntry{
		SlotIndex: 1, ChainTag: "svm", AssetID: []byte{0x02}, Symbol: "ETH",
	}))

	entry, err := eng.Enter(ctx, testAlice, 0, 1, 10_000_000)
	require.NoError(t, err)
	id := entry.ArenaID
	_, err = eng.Enter(ctx, testBob, 1, 1, 10_000_000)
	require.NoError(t, err)

	require.NoError(t, eng.SetStartPrice(ctx, testAdmin, id, 0, 100*domain.PriceScale))
	require.NoError(t, eng.SetStartPrice(ctx, testAdmin, id, 1, 100*domain.PriceScale))
	now = now.Add(10 * time.Minute)
	require.NoError(t, eng.SetEndPrice(ctx, testAdmin, id, 0, 110*domain.PriceScale))
	require.NoError(t, eng.SetEndPrice(ctx, testAdmin, id, 1, 90*domain.PriceScale))

	return eng, id
}

// post builds an authenticated request against a settlement route.
func post(t *testing.T, path, arenaID string, as domain.Identity) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.SetPathValue("id", arenaID)
	return req.WithContext(middleware.WithCaller(req.Context(), as))
}

func TestFinalizeReportsWinningMovement(t *testing.T) {
	eng, id := endedArenaEngine(t)
	h := NewSettlementHandler(eng, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.Finalize(rec, post(t, "/api/arenas/1/finalize", "1", testAdmin))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ArenaID     int64 `json:"arena_id"`
		WinningSlot int16 `json:"winning_slot"`
		MovementBps int64 `json:"movement_bps"`
		Cancelled   bool  `json:"cancelled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, id, body.ArenaID)
	assert.Equal(t, int16(0), body.WinningSlot)
	assert.Equal(t, int64(1000), body.MovementBps, "slot 0 moved +10%%")
	assert.False(t, body.Cancelled)

	// A movement_bps key must be present, not merely zero-valued.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw, "movement_bps")
}

func TestFinalizeRequiresAuthenticatedCaller(t *testing.T) {
	eng, _ := endedArenaEngine(t)
	h := NewSettlementHandler(eng, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/arenas/1/finalize", nil)
	req.SetPathValue("id", "1")
	h.Finalize(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
