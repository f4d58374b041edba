package repository

import (
	"context"
	"database/sql"

	"github.com/ravin1227/photonix-sub000/internal/models"
)

const deviceAlbumColumns = `id, user_id, device_album_id, device_album_name, device_type, server_album_id,
	uploaded_count, total_device_count, last_upload_at, created_at, updated_at`

// DeviceAlbumRepository handles device album tracking persistence
type DeviceAlbumRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewDeviceAlbumRepository creates a new DeviceAlbumRepository
func NewDeviceAlbumRepository(db *sql.DB, dialect Dialect) *DeviceAlbumRepository {
	return &DeviceAlbumRepository{db: db, dialect: dialect}
}

func scanDeviceAlbum(row rowScanner) (*models.DeviceAlbumUpload, error) {
	var a models.DeviceAlbumUpload
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.DeviceAlbumID,
		&a.DeviceAlbumName,
		&a.DeviceType,
		&a.ServerAlbumID,
		&a.UploadedCount,
		&a.TotalDeviceCount,
		&a.LastUploadAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *DeviceAlbumRepository) getOne(ctx context.Context, where string, args ...interface{}) (*models.DeviceAlbumUpload, error) {
	query := `SELECT ` + deviceAlbumColumns + ` FROM device_album_uploads WHERE ` + where
	album, err := scanDeviceAlbum(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return album, nil
}

// GetByID retrieves a user's device album by id
func (r *DeviceAlbumRepository) GetByID(ctx context.Context, userID, id string) (*models.DeviceAlbumUpload, error) {
	return r.getOne(ctx, "id = ? AND user_id = ?", id, userID)
}

// GetByDeviceAlbum retrieves a device album by its natural key
func (r *DeviceAlbumRepository) GetByDeviceAlbum(ctx context.Context, userID, deviceAlbumID, deviceType string) (*models.DeviceAlbumUpload, error) {
	return r.getOne(ctx, "user_id = ? AND device_album_id = ? AND device_type = ?", userID, deviceAlbumID, deviceType)
}

// ListByUser lists a user's device albums, newest first, optionally filtered by device type
func (r *DeviceAlbumRepository) ListByUser(ctx context.Context, userID, deviceType string) ([]*models.DeviceAlbumUpload, error) {
	query := `SELECT ` + deviceAlbumColumns + ` FROM device_album_uploads WHERE user_id = ?`
	args := []interface{}{userID}
	if deviceType != "" {
		query += ` AND device_type = ?`
		args = append(args, deviceType)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	albums := []*models.DeviceAlbumUpload{}
	for rows.Next() {
		album, err := scanDeviceAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}
	return albums, rows.Err()
}

// Upsert creates the album or refreshes its name, total and server album,
// keyed by (user, device album, device type)
func (r *DeviceAlbumRepository) Upsert(ctx context.Context, a *models.DeviceAlbumUpload) (*models.DeviceAlbumUpload, error) {
	query := `INSERT INTO device_album_uploads (` + deviceAlbumColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, device_album_id, device_type) DO UPDATE SET
			device_album_name = excluded.device_album_name,
			total_device_count = excluded.total_device_count,
			server_album_id = COALESCE(excluded.server_album_id, device_album_uploads.server_album_id),
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		a.ID,
		a.UserID,
		a.DeviceAlbumID,
		a.DeviceAlbumName,
		a.DeviceType,
		a.ServerAlbumID,
		a.UploadedCount,
		a.TotalDeviceCount,
		a.LastUploadAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.GetByDeviceAlbum(ctx, a.UserID, a.DeviceAlbumID, a.DeviceType)
}

// Update writes the mutable fields of an album
func (r *DeviceAlbumRepository) Update(ctx context.Context, a *models.DeviceAlbumUpload) error {
	query := `UPDATE device_album_uploads SET
			device_album_name = ?,
			server_album_id = ?,
			uploaded_count = ?,
			total_device_count = ?,
			last_upload_at = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ?`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		a.DeviceAlbumName,
		a.ServerAlbumID,
		a.UploadedCount,
		a.TotalDeviceCount,
		a.LastUploadAt,
		a.UpdatedAt,
		a.ID,
		a.UserID,
	)
	return err
}
