package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/gateway"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/ratelimit/memory"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/routing"
)

type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Admissions      *prometheus.CounterVec
	SweepEvictions  *prometheus.CounterVec
	LastSweep       prometheus.Gauge
	TrackedClients  prometheus.GaugeFunc
}

// NewMetrics registers the service collectors on reg. tracked reports the
// number of clients currently held by the limiter.
func NewMetrics(reg prometheus.Registerer, tracked func() int) *Metrics {
	if tracked == nil {
		tracked = func() int { return 0 }
	}
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rla_requests_total",
				Help: "Total HTTP requests processed",
			},
			[]string{"route", "method", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rla_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		Admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rla_admissions_total",
				Help: "Rate limiter decisions per operation",
			},
			[]string{"operation", "outcome"},
		),
		SweepEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rla_sweep_evictions_total",
				Help: "Limiter entries removed by the sweeper",
			},
			[]string{"reason"},
		),
		LastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rla_last_sweep_timestamp_seconds",
			Help: "Unix time of the last completed sweep",
		}),
		TrackedClients: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rla_tracked_clients",
			Help: "Clients currently tracked by the rate limiter",
		}, func() float64 { return float64(tracked()) }),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.Admissions,
		m.SweepEvictions,
		m.LastSweep,
		m.TrackedClients,
	)
	return m
}

// ObserveAdmission matches gateway.AdmitObserver.
func (m *Metrics) ObserveAdmission(operation string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.Admissions.WithLabelValues(operation, outcome).Inc()
}

// OnSweep is passed to memory.NewSweeper.
func (m *Metrics) OnSweep(res memory.SweepResult) {
	m.SweepEvictions.WithLabelValues("expired").Add(float64(res.Expired))
	m.SweepEvictions.WithLabelValues("capacity").Add(float64(res.Evicted))
	m.LastSweep.SetToCurrentTime()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Middleware records per-request metrics.
// It uses the route name stored by gateway.RouteMatcher (routing.RouteFrom).
func (m *Metrics) Middleware(skip map[string]struct{}) gateway.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			route := "unknown"
			if name, ok := routing.RouteFrom(r); ok {
				route = name
			}

			code := rec.status
			if code == 0 {
				code = http.StatusOK
			}

			m.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
		})
	}
}
