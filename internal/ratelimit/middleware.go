package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ferro-labs/market-cache/internal/metrics"
)

// Middleware rejects requests with 429 once the client's bucket in store is
// empty. Clients are keyed by remote IP.
func Middleware(store *Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := store.Reserve(ClientIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			metrics.AdminRateLimited.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"error":   "rate limit exceeded",
			})
		})
	}
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// ignored here; chi's RealIP middleware rewrites RemoteAddr when the server
// is configured to trust its proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterSeconds(wait time.Duration) int {
	s := math.Ceil(wait.Seconds())
	if s < 1 {
		return 1
	}
	if s > 3600 {
		return 3600
	}
	return int(s)
}
