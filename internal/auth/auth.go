// Package auth guards the read endpoints with a single shared secret.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/gateway"
)

const DefaultHeader = "X-RLA-KEY"

// Guard compares a request header against the configured secret.
type Guard struct {
	header string
	secret []byte
}

// NewSharedSecret creates a guard reading header (DefaultHeader if empty).
// An empty secret makes every request fail.
func NewSharedSecret(header, secret string) *Guard {
	h := header
	if h == "" {
		h = DefaultHeader
	}
	return &Guard{header: h, secret: []byte(secret)}
}

func (g *Guard) Header() string { return g.header }

// Authorized reports whether r carries the secret.
func (g *Guard) Authorized(r *http.Request) bool {
	if len(g.secret) == 0 {
		return false
	}
	got := strings.TrimSpace(r.Header.Get(g.header))
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), g.secret) == 1
}

// Middleware rejects unauthorized requests with 401.
func (g *Guard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.Authorized(r) {
				gateway.WriteMessage(w, http.StatusUnauthorized, false, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
