package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL,
		api_key_hash TEXT UNIQUE NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		checksum TEXT NOT NULL,
		legacy_hash TEXT NOT NULL DEFAULT '',
		storage_path TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		format TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		processing_status TEXT NOT NULL DEFAULT 'pending',
		captured_at DATETIME,
		width INTEGER,
		height INTEGER,
		camera_make TEXT,
		camera_model TEXT,
		latitude REAL,
		longitude REAL,
		face_count INTEGER NOT NULL DEFAULT 0,
		uploaded_at DATETIME NOT NULL,
		tombstoned_at DATETIME
	);

	-- Checksum is unique per owner among active rows only
	CREATE UNIQUE INDEX IF NOT EXISTS idx_photos_owner_checksum_active
		ON photos(owner_id, checksum) WHERE tombstoned_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_photos_owner_legacy ON photos(owner_id, legacy_hash);
	CREATE INDEX IF NOT EXISTS idx_photos_storage_path ON photos(storage_path);
	CREATE INDEX IF NOT EXISTS idx_photos_owner_sort ON photos(owner_id, captured_at, uploaded_at);

	CREATE TABLE IF NOT EXISTS faces (
		id TEXT PRIMARY KEY,
		photo_id TEXT NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
		bbox_x INTEGER NOT NULL,
		bbox_y INTEGER NOT NULL,
		bbox_width INTEGER NOT NULL,
		bbox_height INTEGER NOT NULL,
		confidence REAL NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_faces_photo_id ON faces(photo_id);

	CREATE TABLE IF NOT EXISTS device_album_uploads (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		device_album_id TEXT NOT NULL,
		device_album_name TEXT NOT NULL,
		device_type TEXT NOT NULL,
		server_album_id TEXT,
		uploaded_count INTEGER NOT NULL DEFAULT 0,
		total_device_count INTEGER NOT NULL DEFAULT 0,
		last_upload_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(user_id, device_album_id, device_type)
	);

	CREATE TABLE IF NOT EXISTS album_auto_syncs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		device_album_upload_id TEXT NOT NULL REFERENCES device_album_uploads(id) ON DELETE CASCADE,
		server_album_id TEXT NOT NULL,
		sync_frequency TEXT NOT NULL DEFAULT 'manual',
		enabled INTEGER NOT NULL DEFAULT 1,
		last_photo_count INTEGER NOT NULL DEFAULT 0,
		new_photos_since_sync INTEGER NOT NULL DEFAULT 0,
		last_sync_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(user_id, device_album_upload_id, server_album_id)
	);
	`

	_, err := db.Exec(schema)
	return err
}
