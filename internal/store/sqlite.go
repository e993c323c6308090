package store

import (
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

func sqliteDSN(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "5000")
	return "file:" + path + "?" + q.Encode()
}

var sqliteDialect = dialect{
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_row_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT UNIQUE NOT NULL,
			user_id TEXT NOT NULL,
			start_date INTEGER NOT NULL,
			ip_address TEXT NOT NULL,
			device_model TEXT,
			operating_system TEXT,
			screen_width INTEGER,
			screen_height INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			event_name TEXT NOT NULL,
			occurred_at INTEGER NOT NULL,
			ip_address TEXT NOT NULL,
			params TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id)`,
	},
	insertSession: `INSERT INTO sessions
		(session_id, user_id, start_date, ip_address, device_model, operating_system, screen_width, screen_height)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8)`,
	insertEvent: `INSERT INTO events (session_id, event_name, occurred_at, ip_address, params)
		SELECT ?1, ?2, ?3, ?4, json(?5)
		WHERE EXISTS (SELECT 1 FROM sessions WHERE session_id = ?1)`,
	listEvents: `SELECT id, event_name, occurred_at, params
		FROM events WHERE session_id = ?1 ORDER BY id`,
	listSessions: `SELECT session_id, start_date FROM sessions ORDER BY session_row_id`,
}
