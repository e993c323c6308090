// Package server assembles the HTTP handler: routes, admission control,
// authentication and the shared middleware chain.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/api"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/auth"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/cache"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/config"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/gateway"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/obs"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/ratelimit/memory"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/routing"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/store"
)

var errSweeperStale = errors.New("rate limiter sweeper is not running")

type Deps struct {
	Config   *config.Root
	Logger   zerolog.Logger
	Limiter  *memory.Limiter
	Sweeper  *memory.Sweeper
	Store    store.Store
	Cache    *cache.Client // optional
	Registry *prometheus.Registry
	Metrics  *obs.Metrics
	Version  string
	APIOpts  []api.Option
}

// NewHandler wires every endpoint. Metrics must have been created on Registry.
func NewHandler(d Deps) http.Handler {
	cfg := d.Config
	h := api.New(d.Store, d.APIOpts...)
	guard := auth.NewSharedSecret(cfg.Auth.Header, cfg.Auth.Secret)

	admit := func(name string, cost uint64) gateway.Middleware {
		return gateway.Admit(d.Limiter, gateway.Operation{Name: name, Cost: cost}, d.Metrics.ObserveAdmission)
	}

	checks := []api.Check{
		{Name: "store", Probe: d.Store.Ping},
		{Name: "sweeper", Probe: func(context.Context) error {
			if d.Sweeper != nil && !d.Sweeper.Healthy(time.Now()) {
				return errSweeperStale
			}
			return nil
		}},
	}
	if d.Cache != nil {
		checks = append(checks, api.Check{Name: "cache", Probe: d.Cache.Ping})
	}
	health := api.Health(checks...)

	rr := routing.New()
	rr.Handle(routing.RouteCreateSession, http.MethodPost, "/create_session",
		gateway.Chain(http.HandlerFunc(h.CreateSession), admit(routing.RouteCreateSession, cfg.Limits.Costs.CreateSession)))
	rr.Handle(routing.RouteIngestEvent, http.MethodPost, "/ingest_event",
		gateway.Chain(http.HandlerFunc(h.IngestEvent), admit(routing.RouteIngestEvent, cfg.Limits.Costs.IngestEvent)))
	rr.Handle(routing.RouteGetEvents, http.MethodGet, "/get_events/{session_id}",
		gateway.Chain(http.HandlerFunc(h.GetEvents), guard.Middleware()))
	rr.Handle(routing.RouteGetSessions, http.MethodGet, "/get_sessions",
		gateway.Chain(http.HandlerFunc(h.GetSessions), guard.Middleware()))
	rr.Handle(routing.RouteHealth, http.MethodGet, "/health_check", health)
	rr.Handle(routing.RouteHealth, http.MethodGet, "/health", health)
	rr.Handle(routing.RouteVersion, http.MethodGet, "/version", api.Version(d.Version))
	rr.Handle(routing.RouteMetrics, http.MethodGet, cfg.Observability.PrometheusPath, obs.Handler(d.Registry))

	skip := map[string]struct{}{
		cfg.Observability.PrometheusPath: {},
	}

	return gateway.Chain(
		rr,
		obs.Logger(d.Logger),
		gateway.RouteMatcher(rr),
		d.Metrics.Middleware(skip),
		gateway.CORS(cfg.Server.AllowedOrigins, "Content-Type, "+guard.Header()),
		gateway.BodyLimit(cfg.Server.MaxJSONPayload),
	)
}

// New returns an *http.Server for handler using the configured timeouts.
func New(cfg *config.Root, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout(),
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
	}
}
