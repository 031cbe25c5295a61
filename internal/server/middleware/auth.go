package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cryptarena/arenad/internal/domain"
)

type contextKey string

// callerKey stores the authenticated identity in the request context.
const callerKey contextKey = "caller"

// maxBodyBytes bounds the request body read for signature verification.
const maxBodyBytes = 1 << 20

// Recoverer recovers the identity that signed a message. The message for a
// request is timestamp + "\n" + method + "\n" + path + "\n" + body.
type Recoverer func(message []byte, sigHex string) (domain.Identity, error)

// WalletAuth returns middleware that authenticates requests by wallet
// signature. Clients send three headers:
//
//   - X-Arena-Address:   the claimed 0x address
//   - X-Arena-Timestamp: Unix seconds, within maxSkew of server time
//   - X-Arena-Signature: personal-sign signature over the request message
//
// Requests without the headers pass through unauthenticated; handlers that
// need an identity reject those with 401. When trustHeader is set (dev mode)
// the address header is believed without a signature.
func WalletAuth(recover Recoverer, maxSkew time.Duration, trustHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := strings.TrimSpace(r.Header.Get("X-Arena-Address"))
			if addr == "" {
				next.ServeHTTP(w, r)
				return
			}
			claimed := domain.NormalizeIdentity(addr)

			if trustHeader {
				next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), claimed)))
				return
			}

			tsStr := strings.TrimSpace(r.Header.Get("X-Arena-Timestamp"))
			sig := strings.TrimSpace(r.Header.Get("X-Arena-Signature"))
			if tsStr == "" || sig == "" {
				writeUnauthorized(w, "missing signature headers")
				return
			}

			ts, err := strconv.ParseInt(tsStr, 10, 64)
			if err != nil {
				writeUnauthorized(w, "invalid timestamp")
				return
			}
			skew := time.Since(time.Unix(ts, 0))
			if skew < -maxSkew || skew > maxSkew {
				writeUnauthorized(w, "timestamp outside allowed window")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				writeUnauthorized(w, "unreadable request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			message := []byte(tsStr + "\n" + r.Method + "\n" + r.URL.Path + "\n" + string(body))
			signer, err := recover(message, sig)
			if err != nil || signer != claimed {
				writeUnauthorized(w, "signature does not match address")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), claimed)))
		})
	}
}

// WithCaller stores an authenticated identity in the context.
func WithCaller(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, callerKey, id)
}

// CallerFrom extracts the authenticated identity, if any.
func CallerFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(callerKey).(domain.Identity)
	return id, ok && !id.Zero()
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
