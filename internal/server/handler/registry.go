package handler

import (
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cryptarena/arenad/internal/domain"
	"github.com/cryptarena/arenad/internal/engine"
)

// RegistryHandler serves the stakeable asset whitelist.
type RegistryHandler struct {
	engine *engine.Engine
	reader domain.LedgerReader
	logger *slog.Logger
}

// NewRegistryHandler creates a RegistryHandler.
func NewRegistryHandler(eng *engine.Engine, reader domain.LedgerReader, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{engine: eng, reader: reader, logger: logHandler(logger, "registry")}
}

type assetResponse struct {
	SlotIndex int16  `json:"slot_index"`
	ChainTag  string `json:"chain_tag"`
	AssetID   string `json:"asset_id"` // hex
	Symbol    string `json:"symbol"`
	Active    bool   `json:"active"`
}

func toAssetResponse(e domain.WhitelistEntry) assetResponse {
	return assetResponse{
		SlotIndex: e.SlotIndex,
		ChainTag:  e.ChainTag,
		AssetID:   "0x" + hex.EncodeToString(e.AssetID),
		Symbol:    e.Symbol,
		Active:    e.Active,
	}
}

// ListAssets returns every whitelist entry, active or not.
// GET /api/assets
func (h *RegistryHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	wl, err := h.reader.GetWhitelist(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]assetResponse, 0, len(wl))
	for _, e := range wl {
		out = append(out, toAssetResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

type addAssetRequest struct {
	SlotIndex int16  `json:"slot_index"`
	ChainTag  string `json:"chain_tag"`
	AssetID   string `json:"asset_id"` // hex, with or without 0x
	Symbol    string `json:"symbol"`
}

// AddAsset whitelists an asset slot (admin only).
// POST /api/assets
func (h *RegistryHandler) AddAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req addAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	assetID, err := hex.DecodeString(strings.TrimPrefix(req.AssetID, "0x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "asset_id is not valid hex")
		return
	}

	entry := domain.WhitelistEntry{
		SlotIndex: req.SlotIndex,
		ChainTag:  req.ChainTag,
		AssetID:   assetID,
		Symbol:    req.Symbol,
		Active:    true,
	}
	if err := h.engine.AddWhitelisted(r.Context(), id, entry); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssetResponse(entry))
}

// RemoveAsset deactivates a whitelist slot (admin only, soft delete).
// DELETE /api/assets/{slot}
func (h *RegistryHandler) RemoveAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	slot, err := strconv.ParseInt(r.PathValue("slot"), 10, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot index")
		return
	}

	if err := h.engine.RemoveWhitelisted(r.Context(), id, int16(slot)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
