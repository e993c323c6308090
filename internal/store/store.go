// Package store persists analytics sessions and events in a relational
// database. SQLite is the default; PostgreSQL is available through pgx.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	SessionID       string
	UserID          string
	StartDate       int64 // ms since epoch
	IPAddress       string
	DeviceModel     *string
	OperatingSystem *string
	ScreenWidth     *int64
	ScreenHeight    *int64
}

type Event struct {
	ID        int64
	SessionID string
	EventName string
	Time      int64 // ms since epoch
	IPAddress string
	Data      json.RawMessage // nil when the event carried no data
}

type SessionInfo struct {
	SessionID string
	StartDate int64
}

type Store interface {
	CreateSession(ctx context.Context, s Session) error
	// InsertEvent returns ErrSessionNotFound when e.SessionID is unknown.
	InsertEvent(ctx context.Context, e Event) error
	ListEvents(ctx context.Context, sessionID string) ([]Event, error)
	ListSessions(ctx context.Context) ([]SessionInfo, error)
	Ping(ctx context.Context) error
	Close() error
}

type Config struct {
	Driver string // "sqlite" or "postgres"
	Path   string
	DSN    string
}

// Open connects to the configured database and creates the schema if needed.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return openSQL(ctx, sqliteDialect, sqliteDSN(cfg.Path))
	case "postgres", "postgresql":
		return openSQL(ctx, postgresDialect, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
