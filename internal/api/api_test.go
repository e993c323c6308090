package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/gateway"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/routing"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/store"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  store.Store
	router *routing.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "analytics.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	n := 0
	h := New(s,
		WithClock(func() time.Time { return fixedNow }),
		WithIDs(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)

	rr := routing.New()
	limit := gateway.BodyLimit(64)
	rr.Handle(routing.RouteCreateSession, http.MethodPost, "/create_session", limit(http.HandlerFunc(h.CreateSession)))
	rr.Handle(routing.RouteIngestEvent, http.MethodPost, "/ingest_event", limit(http.HandlerFunc(h.IngestEvent)))
	rr.Handle(routing.RouteGetEvents, http.MethodGet, "/get_events/{session_id}", http.HandlerFunc(h.GetEvents))
	rr.Handle(routing.RouteGetSessions, http.MethodGet, "/get_sessions", http.HandlerFunc(h.GetSessions))
	return &fixture{store: s, router: rr}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)

	t.Run("empty body generates user id", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/create_session", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"session_id":"id-2","user_id":"id-1"}`, rec.Body.String())
	})

	t.Run("empty object", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/create_session", `{}`)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("given user id", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/create_session", `{"user_id":"xxx"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp createSessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "xxx", resp.UserID)
		assert.NotEmpty(t, resp.SessionID)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/create_session", `{"user_id":`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("wrong field type", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/create_session", `{"screen_width":"wide"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("negative screen size", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/create_session", `{"screen_width":-1}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("oversize body", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/create_session", `{"device_model":"`+strings.Repeat("x", 100)+`"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	sessions, err := f.store.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
	for _, s := range sessions {
		assert.Equal(t, fixedNow.UnixMilli(), s.StartDate)
	}
}

func TestIngestAndReadBack(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/create_session", `{"device_model":"TestModel","screen_width":1920}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))

	rec = f.do(http.MethodPost, "/ingest_event", `{"session_id":"`+sess.SessionID+`","event_name":"boss","data":{"hp":3}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Event ingested"}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/ingest_event", `{"session_id":"`+sess.SessionID+`","event_name":"quit"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/get_events/"+sess.SessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	want := fmt.Sprintf(`[
		{"id":1,"event_name":"boss","time":%d,"data":{"hp":3}},
		{"id":2,"event_name":"quit","time":%d,"data":null}
	]`, fixedNow.UnixMilli(), fixedNow.UnixMilli())
	assert.JSONEq(t, want, rec.Body.String())

	rec = f.do(http.MethodGet, "/get_sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`[{"session_id":%q,"start_date":%d}]`, sess.SessionID, fixedNow.UnixMilli()), rec.Body.String())
}

func TestIngestEvent_Rejects(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/create_session", "")
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"no body", "", http.StatusConflict},
		{"malformed", `{"session_id":`, http.StatusConflict},
		{"missing event name", `{"session_id":"id-2"}`, http.StatusConflict},
		{"missing session id", `{"event_name":"x"}`, http.StatusConflict},
		{"empty event name", `{"session_id":"id-2","event_name":""}`, http.StatusConflict},
		{"event name wrong type", `{"session_id":"id-2","event_name":7}`, http.StatusConflict},
		{"null body", `null`, http.StatusConflict},
		{"unknown session", `{"session_id":"nope","event_name":"x"}`, http.StatusNotFound},
		{"oversize", `{"session_id":"id-2","event_name":"` + strings.Repeat("x", 80) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/ingest_event", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}

	events, err := f.store.ListEvents(context.Background(), "id-2")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGetEvents_UnknownSessionIsEmpty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/get_events/nope", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	ok := Check{Name: "store", Probe: func(context.Context) error { return nil }}
	bad := Check{Name: "sweeper", Probe: func(context.Context) error { return errors.New("stale") }}

	rec := httptest.NewRecorder()
	Health(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health_check", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Health(ok, bad).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health_check", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"ok":false,"failed":"sweeper"}`, rec.Body.String())
}
