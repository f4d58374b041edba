package client

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// AlbumBaseline is the photo count an album had at its last sync
type AlbumBaseline struct {
	AlbumID           string
	AlbumName         string
	TrackedPhotoCount int
	LastSyncedAt      *time.Time
	Enabled           bool
	ServerRecordID    string
}

// BaselineStore persists album baselines next to the ledger
type BaselineStore struct {
	db *sql.DB
}

// NewBaselineStore creates a store on a database opened with OpenState
func NewBaselineStore(db *sql.DB) *BaselineStore {
	return &BaselineStore{db: db}
}

// Get returns the baseline for albumID, or nil when the album was never enabled
func (s *BaselineStore) Get(ctx context.Context, albumID string) (*AlbumBaseline, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT album_id, album_name, tracked_photo_count, last_synced_at, enabled, server_record_id
		FROM album_baselines WHERE album_id = ?`, albumID)

	b, err := scanBaseline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// Save inserts or replaces b
func (s *BaselineStore) Save(ctx context.Context, b *AlbumBaseline) error {
	var lastSynced sql.NullInt64
	if b.LastSyncedAt != nil {
		lastSynced = sql.NullInt64{Int64: toMillis(*b.LastSyncedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO album_baselines (album_id, album_name, tracked_photo_count, last_synced_at, enabled, server_record_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(album_id) DO UPDATE SET
			album_name = excluded.album_name,
			tracked_photo_count = excluded.tracked_photo_count,
			last_synced_at = excluded.last_synced_at,
			enabled = excluded.enabled,
			server_record_id = excluded.server_record_id`,
		b.AlbumID, b.AlbumName, b.TrackedPhotoCount, lastSynced, b.Enabled, b.ServerRecordID,
	)
	return err
}

// ListEnabled returns every enabled baseline ordered by album id
func (s *BaselineStore) ListEnabled(ctx context.Context) ([]*AlbumBaseline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT album_id, album_name, tracked_photo_count, last_synced_at, enabled, server_record_id
		FROM album_baselines WHERE enabled = 1 ORDER BY album_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AlbumBaseline
	for rows.Next() {
		b, err := scanBaseline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBaseline(row scanner) (*AlbumBaseline, error) {
	var b AlbumBaseline
	var lastSynced sql.NullInt64
	if err := row.Scan(&b.AlbumID, &b.AlbumName, &b.TrackedPhotoCount, &lastSynced, &b.Enabled, &b.ServerRecordID); err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		t := fromMillis(lastSynced.Int64)
		b.LastSyncedAt = &t
	}
	return &b, nil
}
