package repository

import (
	"context"
	"database/sql"

	"github.com/ravin1227/photonix-sub000/internal/models"
)

// FaceRepository stores faces reported by the detection service
type FaceRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewFaceRepository creates a new FaceRepository
func NewFaceRepository(db *sql.DB, dialect Dialect) *FaceRepository {
	return &FaceRepository{db: db, dialect: dialect}
}

// ReplaceForPhoto swaps the photo's faces in one transaction so a re-run
// of detection never doubles them
func (r *FaceRepository) ReplaceForPhoto(ctx context.Context, photoID string, faces []models.Face) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM faces WHERE photo_id = ?`), photoID); err != nil {
		return err
	}

	insert := r.dialect.Rebind(`INSERT INTO faces (id, photo_id, bbox_x, bbox_y, bbox_width, bbox_height, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, f := range faces {
		if _, err := tx.ExecContext(ctx, insert,
			f.ID, photoID, f.X, f.Y, f.Width, f.Height, f.Confidence, f.CreatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListByPhoto returns the faces of a photo
func (r *FaceRepository) ListByPhoto(ctx context.Context, photoID string) ([]models.Face, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`
		SELECT id, photo_id, bbox_x, bbox_y, bbox_width, bbox_height, confidence, created_at
		FROM faces WHERE photo_id = ? ORDER BY created_at, id`), photoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	faces := []models.Face{}
	for rows.Next() {
		var f models.Face
		if err := rows.Scan(&f.ID, &f.PhotoID, &f.X, &f.Y, &f.Width, &f.Height, &f.Confidence, &f.CreatedAt); err != nil {
			return nil, err
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}
