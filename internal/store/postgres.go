package store

import (
	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresDialect = dialect{
	driver: "pgx",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_row_id BIGSERIAL PRIMARY KEY,
			session_id TEXT UNIQUE NOT NULL,
			user_id TEXT NOT NULL,
			start_date BIGINT NOT NULL,
			ip_address TEXT NOT NULL,
			device_model TEXT,
			operating_system TEXT,
			screen_width BIGINT,
			screen_height BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			event_name TEXT NOT NULL,
			occurred_at BIGINT NOT NULL,
			ip_address TEXT NOT NULL,
			params JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id)`,
	},
	insertSession: `INSERT INTO sessions
		(session_id, user_id, start_date, ip_address, device_model, operating_system, screen_width, screen_height)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	insertEvent: `INSERT INTO events (session_id, event_name, occurred_at, ip_address, params)
		SELECT $1::text, $2::text, $3::bigint, $4::text, $5::jsonb
		WHERE EXISTS (SELECT 1 FROM sessions WHERE session_id = $1::text)`,
	listEvents: `SELECT id, event_name, occurred_at, params::text
		FROM events WHERE session_id = $1 ORDER BY id`,
	listSessions: `SELECT session_id, start_date FROM sessions ORDER BY session_row_id`,
}
