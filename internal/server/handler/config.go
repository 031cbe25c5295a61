package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cryptarena/arenad/internal/domain"
	"github.com/cryptarena/arenad/internal/engine"
)

// ConfigHandler serves the global protocol configuration.
type ConfigHandler struct {
	engine *engine.Engine
	reader domain.LedgerReader
	logger *slog.Logger
}

// NewConfigHandler creates a ConfigHandler.
func NewConfigHandler(eng *engine.Engine, reader domain.LedgerReader, logger *slog.Logger) *ConfigHandler {
	return &ConfigHandler{engine: eng, reader: reader, logger: logHandler(logger, "config")}
}

type configResponse struct {
	Version       int64  `json:"version"`
	Admin         string `json:"admin"`
	Treasury      string `json:"treasury"`
	ArenaDuration string `json:"arena_duration"`
	MaxPlayers    int    `json:"max_players"`
	MaxPerSlot    int    `json:"max_per_slot"`
	MinEntryValue int64  `json:"min_entry_value"`
	MaxEntryValue int64  `json:"max_entry_value"`
	NextArenaID   int64  `json:"next_arena_id"`
	Paused        bool   `json:"paused"`
	UpdatedAt     string `json:"updated_at"`
}

// GetConfig returns the global configuration record.
// GET /api/config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.reader.GetGlobalConfig(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{
		Version:       cfg.Version,
		Admin:         string(cfg.Admin),
		Treasury:      string(cfg.Treasury),
		ArenaDuration: cfg.ArenaDuration.String(),
		MaxPlayers:    cfg.MaxPlayers,
		MaxPerSlot:    cfg.MaxPerSlot,
		MinEntryValue: cfg.MinEntryValue,
		MaxEntryValue: cfg.MaxEntryValue,
		NextArenaID:   cfg.NextArenaID,
		Paused:        cfg.Paused,
		UpdatedAt:     cfg.UpdatedAt.Format(time.RFC3339),
	})
}

type settingsRequest struct {
	ArenaDuration *string `json:"arena_duration,omitempty"`
	Treasury      *string `json:"treasury,omitempty"`
	MaxPlayers    *int    `json:"max_players,omitempty"`
	MaxPerSlot    *int    `json:"max_per_slot,omitempty"`
	MinEntryValue *int64  `json:"min_entry_value,omitempty"`
	MaxEntryValue *int64  `json:"max_entry_value,omitempty"`
	Paused        *bool   `json:"paused,omitempty"`
}

// UpdateSettings applies an admin patch to the global configuration.
// PUT /api/config
func (h *ConfigHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var patch engine.SettingsPatch
	if req.ArenaDuration != nil {
		d, err := time.ParseDuration(*req.ArenaDuration)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid arena_duration")
			return
		}
		patch.ArenaDuration = &d
	}
	if req.Treasury != nil {
		t := domain.NormalizeIdentity(*req.Treasury)
		patch.Treasury = &t
	}
	patch.MaxPlayers = req.MaxPlayers
	patch.MaxPerSlot = req.MaxPerSlot
	patch.MinEntryValue = req.MinEntryValue
	patch.MaxEntryValue = req.MaxEntryValue
	patch.Paused = req.Paused

	if err := h.engine.UpdateSettings(r.Context(), id, patch); err != nil {
		writeDomainError(w, err)
		return
	}
	h.GetConfig(w, r)
}
