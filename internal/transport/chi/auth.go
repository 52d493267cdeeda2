package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// APIKeyMiddleware rejects requests without a configured API key. An empty
// key list disables auth, which is only sensible for local runs.
func APIKeyMiddleware(keys []string, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			presented := extractKey(r)
			if presented == "" || !keyMatches(presented, keys) {
				logger.Warn("Rejected request with invalid API key",
					zap.String("path", r.URL.Path),
					zap.String("remote", r.RemoteAddr))
				writeError(w, http.StatusUnauthorized, "unauthorized", "valid API key required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isExempt keeps probes and scrapers working without credentials.
func isExempt(path string) bool {
	return path == "/health" || path == "/metrics"
}

func extractKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if key, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return key
		}
	}
	return r.Header.Get("X-API-Key")
}

func keyMatches(presented string, keys []string) bool {
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
			return true
		}
	}
	return false
}
