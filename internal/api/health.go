package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
)

const healthTimeout = 2 * time.Second

// Check is one dependency probed by the health endpoint.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Health answers 200 {"ok":true} when every check passes and 503 otherwise.
func Health(checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		for _, c := range checks {
			if err := c.Probe(ctx); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Str("check", c.Name).Msg("health check failed")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"ok":false,"failed":"` + c.Name + `"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func Version(v string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(v))
	}
}
