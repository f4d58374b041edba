package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/repository"
)

const maxPageSize = 200

// PhotoService serves retrieval and soft-delete lifecycle of an owner's photos
type PhotoService struct {
	photos repository.PhotoRepo
	store  *ContentStore
}

// NewPhotoService creates a new PhotoService
func NewPhotoService(photos repository.PhotoRepo, store *ContentStore) *PhotoService {
	return &PhotoService{photos: photos, store: store}
}

// ToResponse converts a record and links its thumbnail sizes
func (s *PhotoService) ToResponse(photo *models.PhotoRecord) models.PhotoResponse {
	resp := models.PhotoToResponse(photo)
	resp.ThumbnailURLs = make(map[string]string)
	for _, size := range s.store.ThumbnailSizeNames() {
		resp.ThumbnailURLs[size] = fmt.Sprintf("/api/photos/%s/thumbnail?size=%s", photo.ID, size)
	}
	return resp
}

// List pages through the owner's active photos
func (s *PhotoService) List(ctx context.Context, ownerID string, skip, take int) (*models.PhotoListResponse, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 || take > maxPageSize {
		take = 50
	}

	photos, err := s.photos.List(ctx, ownerID, skip, take)
	if err != nil {
		return nil, err
	}
	total, err := s.photos.Count(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	resp := &models.PhotoListResponse{
		Photos:     make([]models.PhotoResponse, 0, len(photos)),
		TotalCount: total,
		Skip:       skip,
		Take:       take,
	}
	for _, p := range photos {
		resp.Photos = append(resp.Photos, s.ToResponse(p))
	}
	return resp, nil
}

// Get returns an active photo of the owner
func (s *PhotoService) Get(ctx context.Context, ownerID, id string) (*models.PhotoRecord, error) {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if photo == nil || photo.OwnerID != ownerID || !photo.IsActive() {
		return nil, models.ErrNotFound
	}
	return photo, nil
}

// Open returns the bytes of an active photo. A thumbnail that has not been
// rendered yet falls back to the original; fallback reports that.
func (s *PhotoService) Open(ctx context.Context, ownerID, id, variant string) (f *os.File, photo *models.PhotoRecord, fallback bool, err error) {
	photo, err = s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, nil, false, err
	}

	f, err = s.store.Open(photo.StoragePath, variant)
	if errors.Is(err, models.ErrContentNotFound) && variant != "" && variant != VariantOriginal {
		f, err = s.store.Open(photo.StoragePath, VariantOriginal)
		fallback = true
	}
	if err != nil {
		return nil, nil, false, err
	}
	return f, photo, fallback, nil
}

// Delete tombstones an active photo. Stored bytes are kept.
func (s *PhotoService) Delete(ctx context.Context, ownerID, id string) error {
	ok, err := s.photos.Tombstone(ctx, ownerID, id, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrNotFound
	}
	return nil
}

// Restore clears a tombstone. It fails with ErrConflict when the same content
// has been uploaded again since.
func (s *PhotoService) Restore(ctx context.Context, ownerID, id string) (*models.PhotoRecord, error) {
	ok, err := s.photos.Restore(ctx, ownerID, id)
	if errors.Is(err, repository.ErrDuplicateChecksum) {
		return nil, models.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.Get(ctx, ownerID, id)
}

// Stats reports the owner's counts by status and the store totals
func (s *PhotoService) Stats(ctx context.Context, ownerID string) (*models.PhotoStatsResponse, error) {
	byStatus, err := s.photos.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}

	storeStats, err := s.store.AggregateStats()
	if err != nil {
		return nil, err
	}

	return &models.PhotoStatsResponse{
		TotalPhotos:    total,
		ByStatus:       byStatus,
		StoredItems:    storeStats.ItemCount,
		TotalSizeBytes: storeStats.TotalBytes,
		TotalSizeMB:    storeStats.TotalSizeMB(),
		TotalSizeGB:    storeStats.TotalSizeGB(),
	}, nil
}
