package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/ratelimit"
)

// RateLimit rejects requests with 429 once a client exhausts its bucket.
// Clients are keyed by the first X-Forwarded-For hop, falling back to the
// remote address. Health probes are never limited. m may be nil.
func RateLimit(l *ratelimit.Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			key := clientKey(r)
			if !l.Allow(key) {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				slog.Debug("rate limited", "client", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				writeError(w, apperrors.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeError answers with the status HTTPStatusCode maps err to.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatusCode(err))
	json.NewEncoder(w).Encode(map[string]string{"error": apperrors.Message(err, err.Error())})
}
