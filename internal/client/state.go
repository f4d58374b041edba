package client

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// OpenState opens the agent's local state database and creates its tables
func OpenState(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping state database: %w", err)
	}

	if err := createStateTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create state tables: %w", err)
	}

	return db, nil
}

func createStateTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_entries (
		device_id TEXT PRIMARY KEY,
		server_photo_id TEXT NOT NULL,
		filename TEXT NOT NULL DEFAULT '',
		uploaded_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS album_baselines (
		album_id TEXT PRIMARY KEY,
		album_name TEXT NOT NULL DEFAULT '',
		tracked_photo_count INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER,
		enabled INTEGER NOT NULL DEFAULT 1,
		server_record_id TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := db.Exec(schema)
	return err
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
