package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// dialect holds the driver name and the statements that differ between
// databases.
type dialect struct {
	driver        string
	schema        []string
	insertSession string
	insertEvent   string // inserts only when the session exists
	listEvents    string
	listSessions  string
}

type sqlStore struct {
	db *sql.DB
	d  dialect
}

func openSQL(ctx context.Context, d dialect, dsn string) (*sqlStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.driver, err)
	}
	s := &sqlStore{db: db, d: d}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", d.driver, err)
	}
	return s, nil
}

func (s *sqlStore) migrate(ctx context.Context) error {
	for _, q := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, s.d.insertSession,
		sess.SessionID,
		sess.UserID,
		sess.StartDate,
		sess.IPAddress,
		sess.DeviceModel,
		sess.OperatingSystem,
		sess.ScreenWidth,
		sess.ScreenHeight,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *sqlStore) InsertEvent(ctx context.Context, e Event) error {
	var params any
	if len(e.Data) > 0 {
		params = string(e.Data)
	}
	res, err := s.db.ExecContext(ctx, s.d.insertEvent, e.SessionID, e.EventName, e.Time, e.IPAddress, params)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *sqlStore) ListEvents(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, s.d.listEvents, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e      Event
			params sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EventName, &e.Time, &params); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.SessionID = sessionID
		if params.Valid && json.Valid([]byte(params.String)) {
			e.Data = json.RawMessage(params.String)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *sqlStore) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, s.d.listSessions)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		var si SessionInfo
		if err := rows.Scan(&si.SessionID, &si.StartDate); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, si)
	}
	return sessions, rows.Err()
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
