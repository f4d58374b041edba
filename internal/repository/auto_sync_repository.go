package repository

import (
	"context"
	"database/sql"

	"github.com/ravin1227/photonix-sub000/internal/models"
)

const autoSyncColumns = `id, user_id, device_album_upload_id, server_album_id, sync_frequency, enabled,
	last_photo_count, new_photos_since_sync, last_sync_at, created_at, updated_at`

// AutoSyncRepository handles auto-sync pairing persistence
type AutoSyncRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewAutoSyncRepository creates a new AutoSyncRepository
func NewAutoSyncRepository(db *sql.DB, dialect Dialect) *AutoSyncRepository {
	return &AutoSyncRepository{db: db, dialect: dialect}
}

func scanAutoSync(row rowScanner) (*models.AutoSyncConfig, error) {
	var c models.AutoSyncConfig
	var frequency string
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.DeviceAlbumUploadID,
		&c.ServerAlbumID,
		&frequency,
		&c.Enabled,
		&c.LastPhotoCount,
		&c.NewPhotosSinceSync,
		&c.LastSyncAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.SyncFrequency = models.SyncFrequency(frequency)
	return &c, nil
}

// Get retrieves the pairing for (user, device album, server album)
func (r *AutoSyncRepository) Get(ctx context.Context, userID, deviceAlbumUploadID, serverAlbumID string) (*models.AutoSyncConfig, error) {
	query := `SELECT ` + autoSyncColumns + ` FROM album_auto_syncs
		WHERE user_id = ? AND device_album_upload_id = ? AND server_album_id = ?`

	cfg, err := scanAutoSync(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), userID, deviceAlbumUploadID, serverAlbumID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListByDeviceAlbum lists every pairing of a device album
func (r *AutoSyncRepository) ListByDeviceAlbum(ctx context.Context, deviceAlbumUploadID string) ([]*models.AutoSyncConfig, error) {
	query := `SELECT ` + autoSyncColumns + ` FROM album_auto_syncs
		WHERE device_album_upload_id = ? ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), deviceAlbumUploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []*models.AutoSyncConfig{}
	for rows.Next() {
		cfg, err := scanAutoSync(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// Upsert enables a pairing, updating frequency in place when it already exists
func (r *AutoSyncRepository) Upsert(ctx context.Context, c *models.AutoSyncConfig) (*models.AutoSyncConfig, error) {
	query := `INSERT INTO album_auto_syncs (` + autoSyncColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, device_album_upload_id, server_album_id) DO UPDATE SET
			sync_frequency = excluded.sync_frequency,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		c.ID,
		c.UserID,
		c.DeviceAlbumUploadID,
		c.ServerAlbumID,
		string(c.SyncFrequency),
		c.Enabled,
		c.LastPhotoCount,
		c.NewPhotosSinceSync,
		c.LastSyncAt,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, c.UserID, c.DeviceAlbumUploadID, c.ServerAlbumID)
}

// Update writes the mutable fields of a pairing
func (r *AutoSyncRepository) Update(ctx context.Context, c *models.AutoSyncConfig) error {
	query := `UPDATE album_auto_syncs SET
			sync_frequency = ?,
			enabled = ?,
			last_photo_count = ?,
			new_photos_since_sync = ?,
			last_sync_at = ?,
			updated_at = ?
		WHERE id = ?`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		string(c.SyncFrequency),
		c.Enabled,
		c.LastPhotoCount,
		c.NewPhotosSinceSync,
		c.LastSyncAt,
		c.UpdatedAt,
		c.ID,
	)
	return err
}
