// Package api implements the analytics endpoints on top of a store.Store.
// Admission control and authentication are applied by the caller.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/gateway"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/routing"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/store"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/validation"
)

var errBadRequest = errors.New("malformed request body")

type Handlers struct {
	store store.Store
	now   func() time.Time
	newID func() string
}

type Option func(*Handlers)

func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

// WithIDs replaces the UUIDv4 generator used for session and user ids.
func WithIDs(newID func() string) Option {
	return func(h *Handlers) { h.newID = newID }
}

func New(s store.Store, opts ...Option) *Handlers {
	h := &Handlers{
		store: s,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

type createSessionRequest struct {
	UserID          *string `json:"user_id"`
	DeviceModel     *string `json:"device_model"`
	OperatingSystem *string `json:"operating_system"`
	ScreenWidth     *int64  `json:"screen_width" validate:"omitempty,gte=0"`
	ScreenHeight    *int64  `json:"screen_height" validate:"omitempty,gte=0"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeDecodeError(w, err)
		return
	}

	userID := h.newID()
	if req.UserID != nil && *req.UserID != "" {
		userID = *req.UserID
	}
	sess := store.Session{
		SessionID:       h.newID(),
		UserID:          userID,
		StartDate:       h.now().UnixMilli(),
		IPAddress:       gateway.ClientKey(r),
		DeviceModel:     req.DeviceModel,
		OperatingSystem: req.OperatingSystem,
		ScreenWidth:     req.ScreenWidth,
		ScreenHeight:    req.ScreenHeight,
	}
	if err := h.store.CreateSession(r.Context(), sess); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("create session")
		gateway.WriteMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, createSessionResponse{SessionID: sess.SessionID, UserID: sess.UserID})
}

type ingestEventRequest struct {
	SessionID string          `json:"session_id" validate:"required"`
	EventName string          `json:"event_name" validate:"required"`
	Data      json.RawMessage `json:"data"`
}

func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req ingestEventRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeDecodeError(w, err)
		return
	}
	data := req.Data
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = nil
	}

	err := h.store.InsertEvent(r.Context(), store.Event{
		SessionID: req.SessionID,
		EventName: req.EventName,
		Time:      h.now().UnixMilli(),
		IPAddress: gateway.ClientKey(r),
		Data:      data,
	})
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		gateway.WriteMessage(w, http.StatusNotFound, false, "Session not found")
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Str("session_id", req.SessionID).Msg("ingest event")
		gateway.WriteMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	gateway.WriteMessage(w, http.StatusOK, true, "Event ingested")
}

type eventResponse struct {
	ID        int64           `json:"id"`
	EventName string          `json:"event_name"`
	Time      int64           `json:"time"`
	Data      json.RawMessage `json:"data"`
}

func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := routing.Var(r, "session_id")
	events, err := h.store.ListEvents(r.Context(), sessionID)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("session_id", sessionID).Msg("list events")
		gateway.WriteMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		data := e.Data
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		out = append(out, eventResponse{ID: e.ID, EventName: e.EventName, Time: e.Time, Data: data})
	}
	writeJSON(w, http.StatusOK, out)
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	StartDate int64  `json:"start_date"`
}

func (h *Handlers) GetSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list sessions")
		gateway.WriteMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{SessionID: s.SessionID, StartDate: s.StartDate})
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeBody reads the whole (size-limited) body into v and validates it.
// With allowEmpty an absent body leaves v untouched.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	if r.Body == nil {
		if allowEmpty {
			return nil
		}
		return errBadRequest
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if allowEmpty {
			return nil
		}
		return errBadRequest
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	if err := validation.Struct(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		gateway.WriteMessage(w, http.StatusRequestEntityTooLarge, false, "Payload too large")
		return
	}
	gateway.WriteMessage(w, http.StatusConflict, false, "Invalid JSON payload")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
