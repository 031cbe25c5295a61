package middleware

import (
	"net/http"
	"strings"
)

// arenaHeaders lists the request headers browser clients send, including the
// wallet-signature trio checked by WalletAuth.
const arenaHeaders = "Content-Type, X-Arena-Address, X-Arena-Timestamp, X-Arena-Signature"

// CORS returns middleware that answers preflight requests and stamps CORS
// headers for origins on the allow list. An empty list allows every origin,
// which is the dev-mode default.
func CORS(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && originAllowed(origins, origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", arenaHeaders)
				h.Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origins []string, origin string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
