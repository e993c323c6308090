// Package gateway holds the HTTP middleware that sits in front of the
// analytics handlers: admission control, body limits, CORS and route tagging.
package gateway

import "net/http"

type Middleware func(http.Handler) http.Handler

// Chain wraps h so that mws[0] runs first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// WriteMessage writes the {"success":...,"message":...} envelope. msg must
// not need JSON escaping.
func WriteMessage(w http.ResponseWriter, code int, success bool, msg string) {
	ok := "false"
	if success {
		ok = "true"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"success":` + ok + `,"message":"` + msg + `"}`))
}
