package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// conflictErr maps unique-constraint violations to ErrConflict.
func conflictErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrConflict
	}
	return err
}

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL DEFAULT 'user',
		password_hash TEXT NOT NULL,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS backlogs (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT DEFAULT '',
		source      TEXT DEFAULT '',
		created_by  TEXT DEFAULT '',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_backlogs_name ON backlogs(name);

	CREATE TABLE IF NOT EXISTS tickets (
		backlog_id      TEXT NOT NULL REFERENCES backlogs(id) ON DELETE CASCADE,
		ticket_id       TEXT NOT NULL,
		title           TEXT DEFAULT '',
		status          TEXT DEFAULT '',
		severity        TEXT DEFAULT '',
		owner           TEXT DEFAULT '',
		region          TEXT DEFAULT '',
		company         TEXT DEFAULT '',
		city            TEXT DEFAULT '',
		source          TEXT DEFAULT '',
		created_at      DATETIME,
		last_updated_at DATETIME,
		PRIMARY KEY (backlog_id, ticket_id)
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(backlog_id, status);

	CREATE TABLE IF NOT EXISTS refresh_tokens (
		token_hash TEXT PRIMARY KEY,
		username   TEXT NOT NULL,
		expires_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expiry ON refresh_tokens(expires_at);

	CREATE TABLE IF NOT EXISTS alert_runs (
		id            TEXT PRIMARY KEY,
		backlog_id    TEXT NOT NULL REFERENCES backlogs(id) ON DELETE CASCADE,
		triggered_by  TEXT NOT NULL,
		success       INTEGER NOT NULL,
		message       TEXT DEFAULT '',
		overdue_count INTEGER NOT NULL DEFAULT 0,
		ran_at        DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alert_runs_backlog ON alert_runs(backlog_id, ran_at);
	`
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, err
	}

	// Migration: add title column to tickets created before it existed.
	var colCount int
	_ = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('tickets') WHERE name = 'title'`).Scan(&colCount)
	if colCount == 0 {
		_, _ = db.Exec(`ALTER TABLE tickets ADD COLUMN title TEXT DEFAULT ''`)
	}

	return db, nil
}

// nullTime stores missing timestamps as NULL so they read back as zero.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timeOrZero(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time
}
