package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/models"
)

const photoColumns = `id, owner_id, checksum, legacy_hash, storage_path, original_filename, size_bytes,
	format, content_type, processing_status, captured_at, width, height, camera_make, camera_model,
	latitude, longitude, face_count, uploaded_at, tombstoned_at`

// PhotoRepository handles photo record persistence for SQLite and PostgreSQL
type PhotoRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewPhotoRepository creates a PhotoRepository for SQLite
func NewPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: db, dialect: DialectSQLite}
}

// NewPostgresPhotoRepository creates a PhotoRepository for PostgreSQL
func NewPostgresPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: db, dialect: DialectPostgres}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPhoto(row rowScanner) (*models.PhotoRecord, error) {
	var p models.PhotoRecord
	var status string
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Checksum,
		&p.LegacyHash,
		&p.StoragePath,
		&p.OriginalFilename,
		&p.SizeBytes,
		&p.Format,
		&p.ContentType,
		&status,
		&p.CapturedAt,
		&p.Width,
		&p.Height,
		&p.CameraMake,
		&p.CameraModel,
		&p.Latitude,
		&p.Longitude,
		&p.FaceCount,
		&p.UploadedAt,
		&p.TombstonedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ProcessingStatus = models.ProcessingStatus(status)
	return &p, nil
}

func (r *PhotoRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.PhotoRecord, error) {
	photo, err := scanPhoto(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return photo, nil
}

// Create inserts a new record. A lost race on the active-checksum index
// returns ErrDuplicateChecksum.
func (r *PhotoRepository) Create(ctx context.Context, p *models.PhotoRecord) error {
	query := `
		INSERT INTO photos (` + photoColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		p.ID,
		p.OwnerID,
		p.Checksum,
		p.LegacyHash,
		p.StoragePath,
		p.OriginalFilename,
		p.SizeBytes,
		p.Format,
		p.ContentType,
		string(p.ProcessingStatus),
		p.CapturedAt,
		p.Width,
		p.Height,
		p.CameraMake,
		p.CameraModel,
		p.Latitude,
		p.Longitude,
		p.FaceCount,
		p.UploadedAt,
		p.TombstonedAt,
	)
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateChecksum, err)
	}
	return err
}

// GetByID retrieves a record by id, including tombstoned ones
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.PhotoRecord, error) {
	return r.queryOne(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, id)
}

// FindActiveByChecksum returns the owner's active record for checksum
func (r *PhotoRepository) FindActiveByChecksum(ctx context.Context, ownerID, checksum string) (*models.PhotoRecord, error) {
	query := `SELECT ` + photoColumns + ` FROM photos
		WHERE owner_id = ? AND checksum = ? AND tombstoned_at IS NULL`
	return r.queryOne(ctx, query, ownerID, strings.ToLower(checksum))
}

// FindActiveByHashes matches primary checksums and legacy hashes in one
// owner-scoped query
func (r *PhotoRepository) FindActiveByHashes(ctx context.Context, ownerID string, checksums, legacyHashes []string) ([]HashMatch, error) {
	if len(checksums) == 0 && len(legacyHashes) == 0 {
		return []HashMatch{}, nil
	}

	var conds []string
	args := []interface{}{ownerID}
	if len(checksums) > 0 {
		conds = append(conds, "checksum IN ("+Placeholders(len(checksums))+")")
		for _, h := range checksums {
			args = append(args, strings.ToLower(h))
		}
	}
	if len(legacyHashes) > 0 {
		conds = append(conds, "legacy_hash IN ("+Placeholders(len(legacyHashes))+")")
		for _, h := range legacyHashes {
			args = append(args, strings.ToLower(h))
		}
	}

	query := `SELECT id, checksum, legacy_hash FROM photos
		WHERE owner_id = ? AND tombstoned_at IS NULL AND (` + strings.Join(conds, " OR ") + `)`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wantLegacy := make(map[string]bool, len(legacyHashes))
	for _, h := range legacyHashes {
		wantLegacy[strings.ToLower(h)] = true
	}
	wantPrimary := make(map[string]bool, len(checksums))
	for _, h := range checksums {
		wantPrimary[strings.ToLower(h)] = true
	}

	matches := []HashMatch{}
	for rows.Next() {
		var id, checksum, legacy string
		if err := rows.Scan(&id, &checksum, &legacy); err != nil {
			return nil, err
		}
		if wantPrimary[checksum] {
			matches = append(matches, HashMatch{Hash: checksum, PhotoID: id})
		}
		if legacy != "" && wantLegacy[legacy] {
			matches = append(matches, HashMatch{Hash: legacy, PhotoID: id})
		}
	}
	return matches, rows.Err()
}

// List retrieves the owner's active records, newest capture first
func (r *PhotoRepository) List(ctx context.Context, ownerID string, skip, take int) ([]*models.PhotoRecord, error) {
	query := `SELECT ` + photoColumns + ` FROM photos
		WHERE owner_id = ? AND tombstoned_at IS NULL
		ORDER BY COALESCE(captured_at, uploaded_at) DESC, id
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), ownerID, take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []*models.PhotoRecord{}
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

// ListByStatus returns active records of any owner in status that were
// uploaded before cutoff, oldest first
func (r *PhotoRepository) ListByStatus(ctx context.Context, status models.ProcessingStatus, cutoff time.Time, limit int) ([]*models.PhotoRecord, error) {
	query := `SELECT ` + photoColumns + ` FROM photos
		WHERE processing_status = ? AND uploaded_at < ? AND tombstoned_at IS NULL
		ORDER BY uploaded_at, id
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), string(status), cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []*models.PhotoRecord
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

// Count returns the number of the owner's active records
func (r *PhotoRepository) Count(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT COUNT(*) FROM photos WHERE owner_id = ? AND tombstoned_at IS NULL`),
		ownerID,
	).Scan(&count)
	return count, err
}

// CountByStatus groups the owner's active records by processing status
func (r *PhotoRepository) CountByStatus(ctx context.Context, ownerID string) (map[models.ProcessingStatus]int, error) {
	query := `SELECT processing_status, COUNT(*) FROM photos
		WHERE owner_id = ? AND tombstoned_at IS NULL
		GROUP BY processing_status`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[models.ProcessingStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.ProcessingStatus(status)] = n
	}
	return counts, rows.Err()
}

// CountByStoragePath counts every record, tombstoned or not, that points at a stored file
func (r *PhotoRepository) CountByStoragePath(ctx context.Context, storagePath string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT COUNT(*) FROM photos WHERE storage_path = ?`),
		storagePath,
	).Scan(&count)
	return count, err
}

// UpdateStatus sets the processing status of a record
func (r *PhotoRepository) UpdateStatus(ctx context.Context, id string, status models.ProcessingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid processing status %q", status)
	}
	_, err := r.db.ExecContext(ctx,
		r.dialect.Rebind(`UPDATE photos SET processing_status = ? WHERE id = ?`),
		string(status), id,
	)
	return err
}

// UpdateMetadata fills extracted metadata. A capture time already set by
// the uploader is kept.
func (r *PhotoRepository) UpdateMetadata(ctx context.Context, id string, meta models.PhotoMetadata) error {
	query := `
		UPDATE photos SET
			captured_at = COALESCE(captured_at, ?),
			width = COALESCE(?, width),
			height = COALESCE(?, height),
			camera_make = COALESCE(?, camera_make),
			camera_model = COALESCE(?, camera_model),
			latitude = COALESCE(?, latitude),
			longitude = COALESCE(?, longitude)
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		meta.CapturedAt,
		meta.Width,
		meta.Height,
		meta.CameraMake,
		meta.CameraModel,
		meta.Latitude,
		meta.Longitude,
		id,
	)
	return err
}

// SetFaceCount stores the number of detected faces
func (r *PhotoRepository) SetFaceCount(ctx context.Context, id string, count int) error {
	_, err := r.db.ExecContext(ctx,
		r.dialect.Rebind(`UPDATE photos SET face_count = ? WHERE id = ?`),
		count, id,
	)
	return err
}

// Tombstone soft-deletes an active record
func (r *PhotoRepository) Tombstone(ctx context.Context, ownerID, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		r.dialect.Rebind(`UPDATE photos SET tombstoned_at = ? WHERE id = ? AND owner_id = ? AND tombstoned_at IS NULL`),
		at.UTC(), id, ownerID,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Restore clears a tombstone. If the checksum is active again under another
// record the unique index rejects it with ErrDuplicateChecksum.
func (r *PhotoRepository) Restore(ctx context.Context, ownerID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		r.dialect.Rebind(`UPDATE photos SET tombstoned_at = NULL WHERE id = ? AND owner_id = ? AND tombstoned_at IS NOT NULL`),
		id, ownerID,
	)
	if IsUniqueViolation(err) {
		return false, fmt.Errorf("%w: %v", ErrDuplicateChecksum, err)
	}
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
