package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cryptarena/arenad/internal/domain"
	"github.com/cryptarena/arenad/internal/server/middleware"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps an engine error onto an HTTP status and sends it.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// statusFor translates domain sentinel errors into HTTP status codes. State
// machine violations are conflicts, validation failures are bad requests.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrAlreadyEntered),
		errors.Is(err, domain.ErrAlreadyClaimed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidSlot),
		errors.Is(err, domain.ErrEntryOutOfBounds):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProtocolPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrArenaFull),
		errors.Is(err, domain.ErrSlotCapReached),
		errors.Is(err, domain.ErrSlotNotWhitelisted),
		errors.Is(err, domain.ErrArenaNotWaiting),
		errors.Is(err, domain.ErrArenaNotReady),
		errors.Is(err, domain.ErrArenaNotActive),
		errors.Is(err, domain.ErrArenaNotEnding),
		errors.Is(err, domain.ErrArenaNotEnded),
		errors.Is(err, domain.ErrArenaNotCancelled),
		errors.Is(err, domain.ErrDurationNotElapsed),
		errors.Is(err, domain.ErrMissingPrice),
		errors.Is(err, domain.ErrNotWinner),
		errors.Is(err, domain.ErrNotLoser),
		errors.Is(err, domain.ErrSettlementOpen),
		errors.Is(err, domain.ErrInsufficientEscrow):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON parses the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// caller extracts the authenticated identity or writes a 401.
func caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := middleware.CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "wallet authentication required")
		return "", false
	}
	return id, true
}

// pathInt64 extracts a named int64 path parameter using Go 1.22+ built-in
// routing (http.Request.PathValue).
func pathInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
