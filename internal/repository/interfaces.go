package repository

import (
	"context"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/models"
)

// HashMatch maps a submitted hash to the active record holding it
type HashMatch struct {
	Hash    string
	PhotoID string
}

// PhotoRepo defines photo record persistence. Lookups by owner only see
// active (non-tombstoned) rows unless stated otherwise.
type PhotoRepo interface {
	Create(ctx context.Context, photo *models.PhotoRecord) error
	GetByID(ctx context.Context, id string) (*models.PhotoRecord, error)
	FindActiveByChecksum(ctx context.Context, ownerID, checksum string) (*models.PhotoRecord, error)
	FindActiveByHashes(ctx context.Context, ownerID string, checksums, legacyHashes []string) ([]HashMatch, error)
	List(ctx context.Context, ownerID string, skip, take int) ([]*models.PhotoRecord, error)
	Count(ctx context.Context, ownerID string) (int, error)
	CountByStatus(ctx context.Context, ownerID string) (map[models.ProcessingStatus]int, error)
	CountByStoragePath(ctx context.Context, storagePath string) (int, error)
	ListByStatus(ctx context.Context, status models.ProcessingStatus, cutoff time.Time, limit int) ([]*models.PhotoRecord, error)
	UpdateStatus(ctx context.Context, id string, status models.ProcessingStatus) error
	UpdateMetadata(ctx context.Context, id string, meta models.PhotoMetadata) error
	SetFaceCount(ctx context.Context, id string, count int) error
	Tombstone(ctx context.Context, ownerID, id string, at time.Time) (bool, error)
	Restore(ctx context.Context, ownerID, id string) (bool, error)
}

// FaceRepo stores detected faces
type FaceRepo interface {
	ReplaceForPhoto(ctx context.Context, photoID string, faces []models.Face) error
	ListByPhoto(ctx context.Context, photoID string) ([]models.Face, error)
}

// UserRepo resolves API keys to owners
type UserRepo interface {
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Add(ctx context.Context, user *models.User) error
}

// DeviceAlbumRepo persists device album tracking records
type DeviceAlbumRepo interface {
	GetByID(ctx context.Context, userID, id string) (*models.DeviceAlbumUpload, error)
	GetByDeviceAlbum(ctx context.Context, userID, deviceAlbumID, deviceType string) (*models.DeviceAlbumUpload, error)
	ListByUser(ctx context.Context, userID, deviceType string) ([]*models.DeviceAlbumUpload, error)
	Upsert(ctx context.Context, album *models.DeviceAlbumUpload) (*models.DeviceAlbumUpload, error)
	Update(ctx context.Context, album *models.DeviceAlbumUpload) error
}

// AutoSyncRepo persists auto-sync pairings
type AutoSyncRepo interface {
	Get(ctx context.Context, userID, deviceAlbumUploadID, serverAlbumID string) (*models.AutoSyncConfig, error)
	ListByDeviceAlbum(ctx context.Context, deviceAlbumUploadID string) ([]*models.AutoSyncConfig, error)
	Upsert(ctx context.Context, cfg *models.AutoSyncConfig) (*models.AutoSyncConfig, error)
	Update(ctx context.Context, cfg *models.AutoSyncConfig) error
}
