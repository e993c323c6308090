package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "analytics.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }
func intPtr(i int64) *int64   { return &i }

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported storage driver")
}

func TestOpen_IsIdempotentOnExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.db")
	ctx := context.Background()

	s1, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, s1.CreateSession(ctx, Session{SessionID: "s1", UserID: "u1", StartDate: 1, IPAddress: "10.0.0.1"}))
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer s2.Close()

	sessions, err := s2.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []SessionInfo{{SessionID: "s1", StartDate: 1}}, sessions)
}

func TestSessionsAndEvents(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	require.NoError(t, s.CreateSession(ctx, Session{
		SessionID:       "sess-a",
		UserID:          "user-1",
		StartDate:       1000,
		IPAddress:       "10.0.0.1",
		DeviceModel:     strPtr("Pixel"),
		OperatingSystem: strPtr("Android"),
		ScreenWidth:     intPtr(1080),
		ScreenHeight:    intPtr(2400),
	}))
	require.NoError(t, s.CreateSession(ctx, Session{
		SessionID: "sess-b",
		UserID:    "user-2",
		StartDate: 2000,
		IPAddress: "10.0.0.2",
	}))

	require.NoError(t, s.InsertEvent(ctx, Event{
		SessionID: "sess-a",
		EventName: "level_start",
		Time:      1100,
		IPAddress: "10.0.0.1",
		Data:      json.RawMessage(`{"level":3}`),
	}))
	require.NoError(t, s.InsertEvent(ctx, Event{
		SessionID: "sess-a",
		EventName: "death",
		Time:      1200,
		IPAddress: "10.0.0.1",
	}))

	events, err := s.ListEvents(ctx, "sess-a")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "level_start", events[0].EventName)
	assert.Equal(t, int64(1100), events[0].Time)
	assert.JSONEq(t, `{"level":3}`, string(events[0].Data))
	assert.Equal(t, "death", events[1].EventName)
	assert.Nil(t, events[1].Data)
	assert.Less(t, events[0].ID, events[1].ID)

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []SessionInfo{
		{SessionID: "sess-a", StartDate: 1000},
		{SessionID: "sess-b", StartDate: 2000},
	}, sessions)
}

func TestInsertEvent_UnknownSession(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	err := s.InsertEvent(ctx, Event{SessionID: "nope", EventName: "x", Time: 1, IPAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCreateSession_DuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	sess := Session{SessionID: "dup", UserID: "u", StartDate: 1, IPAddress: "10.0.0.1"}
	require.NoError(t, s.CreateSession(ctx, sess))
	assert.Error(t, s.CreateSession(ctx, sess))
}

func TestListEmpty(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	events, err := s.ListEvents(ctx, "none")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)

	assert.NoError(t, s.Ping(ctx))
}
