package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/ratelimit/memory"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/routing"
)

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, zerolog.WarnLevel, NewLogger(&buf, "WARN").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger(&buf, "nonsense").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger(&buf, "").GetLevel())
}

func TestLogger_AccessLine(t *testing.T) {
	var buf bytes.Buffer
	h := Logger(NewLogger(&buf, "info"))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req", line["message"])
	assert.Equal(t, "/health", line["path"])
	assert.Equal(t, float64(http.StatusTeapot), line["status"])
	assert.Equal(t, float64(2), line["size"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), line["req_id"])
}

func TestMetrics_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, func() int { return 3 })

	h := m.Middleware(map[string]struct{}{"/metrics": {}})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := routing.WithRoute(httptest.NewRequest(http.MethodPost, "/create_session", nil), routing.RouteCreateSession)
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("create_session", "POST", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("unknown", "GET", "201")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TrackedClients))
}

func TestMetrics_AdmissionsAndSweeps(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), nil)

	m.ObserveAdmission("ingest_event", true)
	m.ObserveAdmission("ingest_event", false)
	m.ObserveAdmission("ingest_event", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Admissions.WithLabelValues("ingest_event", "allowed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Admissions.WithLabelValues("ingest_event", "denied")))

	m.OnSweep(memory.SweepResult{Expired: 4, Evicted: 2, Remaining: 10})
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SweepEvictions.WithLabelValues("expired")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepEvictions.WithLabelValues("capacity")))
	assert.Greater(t, testutil.ToFloat64(m.LastSweep), 0.0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TrackedClients))
}
