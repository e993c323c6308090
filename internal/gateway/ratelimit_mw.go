package gateway

import (
	"net"
	"net/http"
	"strconv"

	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/ratelimit"
)

// Operation is a rate-limited endpoint and the tokens each call costs.
type Operation struct {
	Name string
	Cost uint64
}

// AdmitObserver is told about every decision, e.g. to count it.
type AdmitObserver func(operation string, allowed bool)

// Admit charges op.Cost against the caller's bucket before next runs.
// Denied requests get 429 and their body is never read.
func Admit(lim ratelimit.Limiter, op Operation, observe AdmitObserver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dec := lim.Allow(r.Context(), ClientKey(r), op.Cost)
			if observe != nil {
				observe(op.Name, dec.Allowed)
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatUint(dec.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatUint(dec.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(dec.ResetUnixSec, 10))

			if !dec.Allowed {
				WriteMessage(w, http.StatusTooManyRequests, false, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the caller by the IP of the connection peer.
func ClientKey(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
