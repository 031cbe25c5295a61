package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cryptarena/arenad/internal/domain"
	"github.com/cryptarena/arenad/internal/engine"
)

// PricingHandler serves price sample submission and the oracle price cache.
type PricingHandler struct {
	engine *engine.Engine
	prices domain.PriceCache
	logger *slog.Logger
}

// NewPricingHandler creates a PricingHandler. prices may be nil when no
// cache is wired (dev mode); the quotes endpoint then returns 404s.
func NewPricingHandler(eng *engine.Engine, prices domain.PriceCache, logger *slog.Logger) *PricingHandler {
	return &PricingHandler{engine: eng, prices: prices, logger: logHandler(logger, "pricing")}
}

type priceRequest struct {
	SlotIndex int16 `json:"slot_index"`
	Price     int64 `json:"price"` // fixed point, 8 decimals
}

// SetStartPrice records a start-of-round sample for one slot.
// POST /api/arenas/{id}/prices/start
func (h *PricingHandler) SetStartPrice(w http.ResponseWriter, r *http.Request) {
	h.setPrice(w, r, h.engine.SetStartPrice)
}

// SetEndPrice records an end-of-round sample for one slot.
// POST /api/arenas/{id}/prices/end
func (h *PricingHandler) SetEndPrice(w http.ResponseWriter, r *http.Request) {
	h.setPrice(w, r, h.engine.SetEndPrice)
}

func (h *PricingHandler) setPrice(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, id domain.Identity, arenaID int64, slot int16, price int64) error,
) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	arenaID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	var req priceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := apply(r.Context(), id, arenaID, req.SlotIndex, req.Price); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"arena_id":   arenaID,
		"slot_index": req.SlotIndex,
		"price":      req.Price,
	})
}

type quoteResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// GetQuotes returns cached oracle quotes for a comma-separated symbol list.
// GET /api/prices?symbols=BTC,ETH
func (h *PricingHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	if h.prices == nil {
		writeError(w, http.StatusNotFound, "price cache not available")
		return
	}

	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "symbols query parameter required")
		return
	}
	symbols := strings.Split(raw, ",")
	for i := range symbols {
		symbols[i] = strings.TrimSpace(symbols[i])
	}

	prices, err := h.prices.GetPrices(r.Context(), symbols)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]quoteResponse, 0, len(prices))
	for _, sym := range symbols {
		if price, ok := prices[sym]; ok {
			out = append(out, quoteResponse{Symbol: sym, Price: price})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"quotes": out,
		"as_of":  time.Now().UTC().Format(time.RFC3339),
	})
}
