package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL,
		api_key_hash TEXT UNIQUE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		checksum TEXT NOT NULL,
		legacy_hash TEXT NOT NULL DEFAULT '',
		storage_path TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		size_bytes BIGINT NOT NULL,
		format TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		processing_status TEXT NOT NULL DEFAULT 'pending',
		captured_at TIMESTAMPTZ,
		width INTEGER,
		height INTEGER,
		camera_make TEXT,
		camera_model TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		face_count INTEGER NOT NULL DEFAULT 0,
		uploaded_at TIMESTAMPTZ NOT NULL,
		tombstoned_at TIMESTAMPTZ
	);

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
		confidence DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
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
		last_upload_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE(user_id, device_album_id, device_type)
	);

	CREATE TABLE IF NOT EXISTS album_auto_syncs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		device_album_upload_id TEXT NOT NULL REFERENCES device_album_uploads(id) ON DELETE CASCADE,
		server_album_id TEXT NOT NULL,
		sync_frequency TEXT NOT NULL DEFAULT 'manual',
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		last_photo_count INTEGER NOT NULL DEFAULT 0,
		new_photos_since_sync INTEGER NOT NULL DEFAULT 0,
		last_sync_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE(user_id, device_album_upload_id, server_album_id)
	);
	`

	_, err := db.Exec(schema)
	return err
}
