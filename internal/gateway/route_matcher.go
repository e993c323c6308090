package gateway

import (
	"net/http"

	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/routing"
)

// RouteMatcher tags the request with the name of the route it will reach so
// outer middleware (metrics) can label it. Unmatched requests pass through
// untagged and the router answers them.
func RouteMatcher(rr *routing.Router) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if name, ok := rr.Match(r); ok {
				r = routing.WithRoute(r, name)
			}
			next.ServeHTTP(w, r)
		})
	}
}
