package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cryptarena/arenad/internal/domain"
	"github.com/cryptarena/arenad/internal/engine"
)

// ArenaHandler serves arena state and the entry endpoint.
type ArenaHandler struct {
	engine *engine.Engine
	reader domain.LedgerReader
	logger *slog.Logger
}

// NewArenaHandler creates an ArenaHandler.
func NewArenaHandler(eng *engine.Engine, reader domain.LedgerReader, logger *slog.Logger) *ArenaHandler {
	return &ArenaHandler{engine: eng, reader: reader, logger: logHandler(logger, "arena")}
}

type arenaResponse struct {
	ID             int64  `json:"id"`
	Status         string `json:"status"`
	PlayerCount    int    `json:"player_count"`
	AssetCount     int    `json:"asset_count"`
	TotalPool      int64  `json:"total_pool"`
	StartPricesSet int    `json:"start_prices_set"`
	EndPricesSet   int    `json:"end_prices_set"`
	StartTime      string `json:"start_time,omitempty"`
	EndTime        string `json:"end_time,omitempty"`
	WinningSlot    int16  `json:"winning_slot"`
	Cancelled      bool   `json:"cancelled"`
	CreatedAt      string `json:"created_at"`
}

func toArenaResponse(a domain.Arena) arenaResponse {
	out := arenaResponse{
		ID:             a.ID,
		Status:         string(a.Status),
		PlayerCount:    a.PlayerCount,
		AssetCount:     a.AssetCount,
		TotalPool:      a.TotalPool,
		StartPricesSet: a.StartPricesSet,
		EndPricesSet:   a.EndPricesSet,
		WinningSlot:    a.WinningSlot,
		Cancelled:      a.Cancelled,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
	}
	if !a.StartTime.IsZero() {
		out.StartTime = a.StartTime.Format(time.RFC3339)
	}
	if !a.EndTime.IsZero() {
		out.EndTime = a.EndTime.Format(time.RFC3339)
	}
	return out
}

type aggregateResponse struct {
	SlotIndex   int16 `json:"slot_index"`
	PlayerCount int   `json:"player_count"`
	PooledStake int64 `json:"pooled_stake"`
	StartPrice  int64 `json:"start_price"`
	EndPrice    int64 `json:"end_price"`
	MovementBps int64 `json:"movement_bps"`
	MovementSet bool  `json:"movement_set"`
}

type entryResponse struct {
	ArenaID         int64  `json:"arena_id"`
	Player          string `json:"player"`
	SlotIndex       int16  `json:"slot_index"`
	StakeAmount     int64  `json:"stake_amount"`
	StakeValue      int64  `json:"stake_value"`
	Ordinal         int    `json:"ordinal"`
	EnteredAt       string `json:"entered_at"`
	Winner          bool   `json:"winner"`
	OwnStakeClaimed bool   `json:"own_stake_claimed"`
	FeeClaimed      bool   `json:"fee_claimed"`
	RewardsClaimed  uint64 `json:"rewards_claimed"` // bitmap over loser ordinals
}

func toEntryResponse(e domain.PlayerEntry) entryResponse {
	return entryResponse{
		ArenaID:         e.ArenaID,
		Player:          string(e.Player),
		SlotIndex:       e.SlotIndex,
		StakeAmount:     e.StakeAmount,
		StakeValue:      e.StakeValue,
		Ordinal:         e.Ordinal,
		EnteredAt:       e.EnteredAt.Format(time.RFC3339),
		Winner:          e.Winner,
		OwnStakeClaimed: e.OwnStakeClaimed,
		FeeClaimed:      e.FeeClaimed,
		RewardsClaimed:  uint64(e.RewardsClaimed),
	}
}

type transferResponse struct {
	ID           string `json:"id"`
	SlotIndex    int16  `json:"slot_index"`
	Counterparty string `json:"counterparty"`
	Amount       int64  `json:"amount"`
	Debit        bool   `json:"debit"`
	Kind         string `json:"kind"`
	CreatedAt    string `json:"created_at"`
}

// GetArena returns one arena by ID.
// GET /api/arenas/{id}
func (h *ArenaHandler) GetArena(w http.ResponseWriter, r *http.Request) {
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}
	arena, err := h.reader.GetArena(r.Context(), arenaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toArenaResponse(arena))
}

// ListArenas returns arenas filtered by an optional status query parameter.
// GET /api/arenas?status=waiting
func (h *ArenaHandler) ListArenas(w http.ResponseWriter, r *http.Request) {
	statuses := []domain.ArenaStatus{
		domain.ArenaWaiting, domain.ArenaReady, domain.ArenaStarting,
		domain.ArenaActive, domain.ArenaEnding, domain.ArenaEnded,
		domain.ArenaCancelled, domain.ArenaSuspended,
	}
	if s := r.URL.Query().Get("status"); s != "" {
		statuses = []domain.ArenaStatus{domain.ArenaStatus(s)}
	}
	arenas, err := h.reader.GetArenasByStatus(r.Context(), statuses...)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]arenaResponse, 0, len(arenas))
	for _, a := range arenas {
		out = append(out, toArenaResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// ListAggregates returns the per-slot rollups for an arena.
// GET /api/arenas/{id}/aggregates
func (h *ArenaHandler) ListAggregates(w http.ResponseWriter, r *http.Request) {
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}
	aggs, err := h.reader.GetAssetAggregates(r.Context(), arenaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]aggregateResponse, 0, len(aggs))
	for _, agg := range aggs {
		out = append(out, aggregateResponse{
			SlotIndex:   agg.SlotIndex,
			PlayerCount: agg.PlayerCount,
			PooledStake: agg.PooledStake,
			StartPrice:  agg.StartPrice,
			EndPrice:    agg.EndPrice,
			MovementBps: agg.MovementBps,
			MovementSet: agg.MovementSet,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListEntries returns every player entry in an arena, ordered by ordinal.
// GET /api/arenas/{id}/entries
func (h *ArenaHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}
	entries, err := h.reader.GetEntries(r.Context(), arenaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetEntry returns one player's entry in an arena.
// GET /api/arenas/{id}/entries/{player}
func (h *ArenaHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}
	player := domain.NormalizeIdentity(r.PathValue("player"))
	entry, err := h.reader.GetEntry(r.Context(), arenaID, player)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

// ListTransfers returns the escrow journal for an arena.
// GET /api/arenas/{id}/transfers
func (h *ArenaHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}
	transfers, err := h.reader.GetTransfers(r.Context(), arenaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]transferResponse, 0, len(transfers))
	for _, tr := range transfers {
		out = append(out, transferResponse{
			ID:           tr.ID,
			SlotIndex:    tr.SlotIndex,
			Counterparty: string(tr.Counterparty),
			Amount:       tr.Amount,
			Debit:        tr.Debit,
			Kind:         string(tr.Kind),
			CreatedAt:    tr.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type enterRequest struct {
	SlotIndex   int16 `json:"slot_index"`
	StakeAmount int64 `json:"stake_amount"`
	StakeValue  int64 `json:"stake_value"`
}

// Enter stakes the caller into the open arena.
// POST /api/arenas/enter
func (h *ArenaHandler) Enter(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req enterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	entry, err := h.engine.Enter(r.Context(), id, req.SlotIndex, req.StakeAmount, req.StakeValue)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}
