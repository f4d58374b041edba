package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/observability"
	"github.com/ravin1227/photonix-sub000/internal/repository"
)

// AutoSyncService manages device album tracking and device/server album
// pairings reported by sync clients
type AutoSyncService struct {
	albums  repository.DeviceAlbumRepo
	syncs   repository.AutoSyncRepo
	metrics *observability.IngestionMetrics
	now     func() time.Time
}

// NewAutoSyncService creates a new AutoSyncService
func NewAutoSyncService(albums repository.DeviceAlbumRepo, syncs repository.AutoSyncRepo, metrics *observability.IngestionMetrics) *AutoSyncService {
	return &AutoSyncService{
		albums:  albums,
		syncs:   syncs,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// TrackDeviceAlbum finds or creates the tracking record of a device album and
// refreshes its name, total and server album
func (s *AutoSyncService) TrackDeviceAlbum(ctx context.Context, userID string, req models.TrackDeviceAlbumRequest) (*models.DeviceAlbumUpload, error) {
	album, err := models.NewDeviceAlbumUpload(userID, req.DeviceAlbumID, req.DeviceAlbumName, req.DeviceType, req.TotalDeviceCount)
	if err != nil {
		return nil, err
	}
	if id := strings.TrimSpace(req.ServerAlbumID); id != "" {
		album.ServerAlbumID = &id
	}

	stored, err := s.albums.Upsert(ctx, album)
	if err != nil {
		return nil, err
	}

	if req.UploadedCount != nil {
		if *req.UploadedCount < 0 {
			return nil, &models.ValidationError{Field: "uploaded_count", Message: "must be greater than or equal to 0"}
		}
		now := s.now()
		stored.UploadedCount = *req.UploadedCount
		stored.LastUploadAt = &now
		stored.UpdatedAt = now
		if err := s.albums.Update(ctx, stored); err != nil {
			return nil, err
		}
	}

	observability.WithContext(ctx).
		WithField("user_id", userID).
		WithField("device_album_id", stored.DeviceAlbumID).
		Debugf("Tracked device album %q (%d/%d)", stored.DeviceAlbumName, stored.UploadedCount, stored.TotalDeviceCount)
	return stored, nil
}

// ListDeviceAlbums returns the user's albums with their pairings. An empty
// deviceType lists all device types.
func (s *AutoSyncService) ListDeviceAlbums(ctx context.Context, userID, deviceType string) ([]models.DeviceAlbumResponse, error) {
	albums, err := s.albums.ListByUser(ctx, userID, deviceType)
	if err != nil {
		return nil, err
	}

	result := make([]models.DeviceAlbumResponse, 0, len(albums))
	for _, album := range albums {
		syncs, err := s.syncResponses(ctx, album.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, album.ToResponse(syncs))
	}
	return result, nil
}

// GetDeviceAlbum returns ErrNotFound for missing albums and albums of other users
func (s *AutoSyncService) GetDeviceAlbum(ctx context.Context, userID, id string) (*models.DeviceAlbumUpload, error) {
	album, err := s.albums.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, models.ErrNotFound
	}
	return album, nil
}

// MarkUploaded records upload progress of a device album
func (s *AutoSyncService) MarkUploaded(ctx context.Context, userID, id string, uploadedCount, totalCount int) (*models.DeviceAlbumUpload, error) {
	if uploadedCount < 0 {
		return nil, &models.ValidationError{Field: "uploaded_count", Message: "must be greater than or equal to 0"}
	}
	if totalCount < 0 {
		return nil, &models.ValidationError{Field: "total_device_count", Message: "must be greater than or equal to 0"}
	}

	album, err := s.GetDeviceAlbum(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	album.UploadedCount = uploadedCount
	album.TotalDeviceCount = totalCount
	album.LastUploadAt = &now
	album.UpdatedAt = now
	if err := s.albums.Update(ctx, album); err != nil {
		return nil, err
	}
	return album, nil
}

// EnableSync enables the pairing of a device album with a server album.
// Enabling an existing pairing updates it in place.
func (s *AutoSyncService) EnableSync(ctx context.Context, userID, deviceAlbumID, serverAlbumID, frequency string) (*models.AutoSyncConfig, error) {
	serverAlbumID = strings.TrimSpace(serverAlbumID)
	if serverAlbumID == "" {
		return nil, &models.ValidationError{Field: "server_album_id", Message: "can't be blank"}
	}
	freq, err := models.ParseSyncFrequency(frequency)
	if err != nil {
		return nil, err
	}

	album, err := s.GetDeviceAlbum(ctx, userID, deviceAlbumID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cfg, err := s.syncs.Upsert(ctx, &models.AutoSyncConfig{
		ID:                  uuid.New().String(),
		UserID:              userID,
		DeviceAlbumUploadID: album.ID,
		ServerAlbumID:       serverAlbumID,
		SyncFrequency:       freq,
		Enabled:             true,
		LastPhotoCount:      album.UploadedCount,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return nil, err
	}

	observability.WithContext(ctx).
		WithField("device_album_id", album.DeviceAlbumID).
		Infof("Auto-sync enabled to album %s (%s)", serverAlbumID, freq)
	return cfg, nil
}

// DisableSync turns a pairing off, keeping its history
func (s *AutoSyncService) DisableSync(ctx context.Context, userID, deviceAlbumID, serverAlbumID string) (*models.AutoSyncConfig, error) {
	album, err := s.GetDeviceAlbum(ctx, userID, deviceAlbumID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.syncs.Get(ctx, userID, album.ID, strings.TrimSpace(serverAlbumID))
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, models.ErrNotFound
	}

	cfg.Enabled = false
	cfg.UpdatedAt = s.now()
	if err := s.syncs.Update(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RecordSync applies a completed device-side sync to every enabled pairing
// of the album and returns them
func (s *AutoSyncService) RecordSync(ctx context.Context, userID, deviceAlbumID string, syncedCount int) ([]*models.AutoSyncConfig, error) {
	if syncedCount < 0 {
		return nil, &models.ValidationError{Field: "synced_count", Message: "must be greater than or equal to 0"}
	}

	album, err := s.GetDeviceAlbum(ctx, userID, deviceAlbumID)
	if err != nil {
		return nil, err
	}
	configs, err := s.syncs.ListByDeviceAlbum(ctx, album.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated := []*models.AutoSyncConfig{}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		cfg.RecordSync(syncedCount, now)
		if err := s.syncs.Update(ctx, cfg); err != nil {
			return nil, err
		}
		updated = append(updated, cfg)
	}

	s.metrics.RecordSyncRun(ctx, syncedCount)
	return updated, nil
}

// UpdateSyncStatus records the album's current size against each pairing
func (s *AutoSyncService) UpdateSyncStatus(ctx context.Context, userID, deviceAlbumID string, photoCount int) ([]*models.AutoSyncConfig, error) {
	if photoCount < 0 {
		return nil, &models.ValidationError{Field: "photo_count", Message: "must be greater than or equal to 0"}
	}

	album, err := s.GetDeviceAlbum(ctx, userID, deviceAlbumID)
	if err != nil {
		return nil, err
	}
	configs, err := s.syncs.ListByDeviceAlbum(ctx, album.ID)
	if err != nil {
		return nil, err
	}

	for _, cfg := range configs {
		cfg.UpdateSyncStatus(photoCount)
		if err := s.syncs.Update(ctx, cfg); err != nil {
			return nil, err
		}
	}
	return configs, nil
}

// SyncStatus returns the album, its pairings and a health summary
func (s *AutoSyncService) SyncStatus(ctx context.Context, userID, deviceAlbumID string) (*models.SyncStatusResponse, error) {
	album, err := s.GetDeviceAlbum(ctx, userID, deviceAlbumID)
	if err != nil {
		return nil, err
	}
	syncs, err := s.syncResponses(ctx, album.ID)
	if err != nil {
		return nil, err
	}

	health := models.SyncHealth{TotalSyncs: len(syncs)}
	for _, sync := range syncs {
		if sync.Enabled {
			health.ActiveSyncs++
		}
		if sync.SyncNeeded {
			health.PendingSyncs++
		}
	}

	return &models.SyncStatusResponse{
		DeviceAlbum: album.ToResponse(nil),
		Syncs:       syncs,
		Health:      health,
	}, nil
}

func (s *AutoSyncService) syncResponses(ctx context.Context, deviceAlbumUploadID string) ([]models.AutoSyncResponse, error) {
	configs, err := s.syncs.ListByDeviceAlbum(ctx, deviceAlbumUploadID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	result := make([]models.AutoSyncResponse, 0, len(configs))
	for _, cfg := range configs {
		result = append(result, cfg.ToResponse(now))
	}
	return result, nil
}
