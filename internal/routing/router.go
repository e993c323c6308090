// Package routing registers the service endpoints on a gorilla/mux router
// under stable names used for logging and metrics labels.
package routing

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

const (
	RouteCreateSession = "create_session"
	RouteIngestEvent   = "ingest_event"
	RouteGetEvents     = "get_events"
	RouteGetSessions   = "get_sessions"
	RouteHealth        = "health"
	RouteVersion       = "version"
	RouteMetrics       = "metrics"
)

type Router struct {
	mux *mux.Router
}

func New() *Router {
	return &Router{mux: mux.NewRouter()}
}

// Handle registers h for method and path under name. Paths may carry mux
// variables such as {session_id}.
func (r *Router) Handle(name, method, path string, h http.Handler) {
	r.mux.Handle(path, h).Methods(method).Name(name)
}

// Match returns the name of the route req would be dispatched to.
func (r *Router) Match(req *http.Request) (string, bool) {
	var m mux.RouteMatch
	if !r.mux.Match(req, &m) || m.Route == nil {
		return "", false
	}
	name := m.Route.GetName()
	return name, name != ""
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Var returns a path variable of the matched route.
func Var(req *http.Request, key string) string {
	return mux.Vars(req)[key]
}

// --- context helpers ---
type ctxKey int

const keyRoute ctxKey = 0

func WithRoute(r *http.Request, name string) *http.Request {
	ctx := context.WithValue(r.Context(), keyRoute, name)
	return r.WithContext(ctx)
}

func RouteFrom(r *http.Request) (string, bool) {
	v := r.Context().Value(keyRoute)
	if v == nil {
		return "", false
	}
	name, ok := v.(string)
	return name, ok && name != ""
}
