package handler

import (
	"log/slog"
	"net/http"

	"github.com/cryptarena/arenad/internal/engine"
)

// SettlementHandler serves finalization and the claim endpoints.
type SettlementHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(eng *engine.Engine, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{engine: eng, logger: logHandler(logger, "settlement")}
}

// Finalize declares the winner once every end price is in.
// POST /api/arenas/{id}/finalize
func (h *SettlementHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	res, err := h.engine.Finalize(r.Context(), id, arenaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"arena_id":     arenaID,
		"winning_slot": res.WinningSlot,
		"movement_bps": res.MovementBps,
		"cancelled":    res.Cancelled,
	})
}

// Suspend is the admin emergency halt for a non-terminal arena.
// POST /api/arenas/{id}/suspend
func (h *SettlementHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	if err := h.engine.Suspend(r.Context(), id, arenaID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// claimResult is the common response for value-moving claim endpoints.
type claimResult struct {
	ArenaID int64 `json:"arena_id"`
	Amount  int64 `json:"amount"`
}

// ClaimOwnStake returns the calling winner's original stake.
// POST /api/arenas/{id}/claims/own-stake
func (h *SettlementHandler) ClaimOwnStake(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	amount, err := h.engine.ClaimOwnStake(r.Context(), id, arenaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResult{ArenaID: arenaID, Amount: amount})
}

type loserRequest struct {
	LoserOrdinal int `json:"loser_ordinal"`
}

// ClaimReward pays the calling winner their share of one losing stake.
// POST /api/arenas/{id}/claims/reward
func (h *SettlementHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	var req loserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	amount, err := h.engine.ClaimRewardFrom(r.Context(), id, arenaID, req.LoserOrdinal)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResult{ArenaID: arenaID, Amount: amount})
}

// CollectFee sweeps the treasury cut of one losing stake.
// POST /api/arenas/{id}/claims/fee
func (h *SettlementHandler) CollectFee(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	var req loserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	amount, err := h.engine.CollectTreasuryFee(r.Context(), id, arenaID, req.LoserOrdinal)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResult{ArenaID: arenaID, Amount: amount})
}

// ClaimRefund returns the caller's stake from a cancelled arena.
// POST /api/arenas/{id}/claims/refund
func (h *SettlementHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	amount, err := h.engine.ClaimRefund(r.Context(), id, arenaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResult{ArenaID: arenaID, Amount: amount})
}

// SweepResidue moves rounding dust from a fully settled arena to the
// treasury (admin only).
// POST /api/arenas/{id}/claims/residue
func (h *SettlementHandler) SweepResidue(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	amount, err := h.engine.SweepResidue(r.Context(), id, arenaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResult{ArenaID: arenaID, Amount: amount})
}
