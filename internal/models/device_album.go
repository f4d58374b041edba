package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SyncFrequency is how often an album pairing is expected to sync
type SyncFrequency string

const (
	FrequencyManual SyncFrequency = "manual"
	FrequencyHourly SyncFrequency = "hourly"
	FrequencyDaily  SyncFrequency = "daily"
)

// ParseSyncFrequency defaults empty input to manual
func ParseSyncFrequency(raw string) (SyncFrequency, error) {
	switch f := SyncFrequency(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FrequencyManual, nil
	case FrequencyManual, FrequencyHourly, FrequencyDaily:
		return f, nil
	}
	return "", NewValidationError("sync_frequency", ErrInvalidFrequency)
}

// DeviceAlbumUpload tracks how much of a device album has reached the server
type DeviceAlbumUpload struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	DeviceAlbumID    string     `json:"device_album_id"`
	DeviceAlbumName  string     `json:"device_album_name"`
	DeviceType       string     `json:"device_type"`
	ServerAlbumID    *string    `json:"server_album_id,omitempty"`
	UploadedCount    int        `json:"uploaded_count"`
	TotalDeviceCount int        `json:"total_device_count"`
	LastUploadAt     *time.Time `json:"last_upload_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewDeviceAlbumUpload validates and builds a tracking record
func NewDeviceAlbumUpload(userID, deviceAlbumID, name, deviceType string, total int) (*DeviceAlbumUpload, error) {
	if strings.TrimSpace(deviceAlbumID) == "" {
		return nil, &ValidationError{Field: "device_album_id", Message: "can't be blank"}
	}
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "device_album_name", Message: "can't be blank"}
	}
	switch deviceType {
	case "ios", "android", "desktop":
	default:
		return nil, &ValidationError{Field: "device_type", Message: "must be ios, android or desktop"}
	}
	if total < 0 {
		return nil, &ValidationError{Field: "total_device_count", Message: "must be greater than or equal to 0"}
	}

	now := time.Now().UTC()
	return &DeviceAlbumUpload{
		ID:               uuid.New().String(),
		UserID:           userID,
		DeviceAlbumID:    deviceAlbumID,
		DeviceAlbumName:  name,
		DeviceType:       deviceType,
		TotalDeviceCount: total,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// SyncProgress is the uploaded/total ratio of a device album
type SyncProgress struct {
	Uploaded   int     `json:"uploaded"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Progress reports upload progress rounded to two decimals
func (d *DeviceAlbumUpload) Progress() SyncProgress {
	p := SyncProgress{Uploaded: d.UploadedCount, Total: d.TotalDeviceCount}
	if d.TotalDeviceCount > 0 {
		p.Percentage = math.Round(float64(d.UploadedCount)/float64(d.TotalDeviceCount)*10000) / 100
	}
	return p
}

// FullySynced reports whether every device photo has been uploaded
func (d *DeviceAlbumUpload) FullySynced() bool {
	return d.TotalDeviceCount > 0 && d.UploadedCount >= d.TotalDeviceCount
}

// AutoSyncConfig pairs a device album with a server album for a user
type AutoSyncConfig struct {
	ID                  string        `json:"id"`
	UserID              string        `json:"user_id"`
	DeviceAlbumUploadID string        `json:"device_album_upload_id"`
	ServerAlbumID       string        `json:"server_album_id"`
	SyncFrequency       SyncFrequency `json:"sync_frequency"`
	Enabled             bool          `json:"enabled"`
	LastPhotoCount      int           `json:"last_photo_count"`
	NewPhotosSinceSync  int           `json:"new_photos_since_sync"`
	LastSyncAt          *time.Time    `json:"last_sync_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// SyncNeeded reports whether an enabled pairing has unsynced photos
func (c *AutoSyncConfig) SyncNeeded() bool {
	return c.Enabled && c.NewPhotosSinceSync > 0
}

// RecordSync applies a completed sync of syncedCount photos
func (c *AutoSyncConfig) RecordSync(syncedCount int, at time.Time) {
	at = at.UTC()
	c.LastSyncAt = &at
	c.LastPhotoCount += syncedCount
	c.NewPhotosSinceSync = 0
	c.UpdatedAt = at
}

// UpdateSyncStatus records how many photos appeared since the last sync
func (c *AutoSyncConfig) UpdateSyncStatus(newPhotoCount int) {
	if diff := newPhotoCount - c.LastPhotoCount; diff > 0 {
		c.NewPhotosSinceSync = diff
	}
	c.UpdatedAt = time.Now().UTC()
}

// AutoSyncResponse adds derived fields to an AutoSyncConfig
type AutoSyncResponse struct {
	AutoSyncConfig
	SyncNeeded        bool   `json:"sync_needed"`
	TimeSinceLastSync *int64 `json:"time_since_last_sync,omitempty"`
}

// ToResponse computes derived fields relative to now
func (c *AutoSyncConfig) ToResponse(now time.Time) AutoSyncResponse {
	resp := AutoSyncResponse{AutoSyncConfig: *c, SyncNeeded: c.SyncNeeded()}
	if c.LastSyncAt != nil {
		secs := int64(math.Round(now.Sub(*c.LastSyncAt).Seconds()))
		resp.TimeSinceLastSync = &secs
	}
	return resp
}

// DeviceAlbumResponse is a tracked device album with derived progress
type DeviceAlbumResponse struct {
	DeviceAlbumUpload
	SyncProgress SyncProgress       `json:"sync_progress"`
	FullySynced  bool               `json:"fully_synced"`
	Syncs        []AutoSyncResponse `json:"syncs,omitempty"`
}

// ToResponse wraps the album with its progress and pairings
func (d *DeviceAlbumUpload) ToResponse(syncs []AutoSyncResponse) DeviceAlbumResponse {
	return DeviceAlbumResponse{
		DeviceAlbumUpload: *d,
		SyncProgress:      d.Progress(),
		FullySynced:       d.FullySynced(),
		Syncs:             syncs,
	}
}

// SyncHealth summarizes the pairings of a device album
type SyncHealth struct {
	TotalSyncs   int `json:"total_syncs"`
	ActiveSyncs  int `json:"active_syncs"`
	PendingSyncs int `json:"pending_syncs"`
}

// SyncStatusResponse is returned by the sync status endpoint
type SyncStatusResponse struct {
	DeviceAlbum DeviceAlbumResponse `json:"device_album"`
	Syncs       []AutoSyncResponse  `json:"syncs"`
	Health      SyncHealth          `json:"health"`
}

// TrackDeviceAlbumRequest registers or refreshes a device album
type TrackDeviceAlbumRequest struct {
	DeviceAlbumID    string `json:"device_album_id"`
	DeviceAlbumName  string `json:"device_album_name"`
	DeviceType       string `json:"device_type"`
	TotalDeviceCount int    `json:"total_device_count"`
	UploadedCount    *int   `json:"uploaded_count,omitempty"`
	ServerAlbumID    string `json:"server_album_id,omitempty"`
}

// EnableSyncRequest enables auto-sync for a device/server album pair
type EnableSyncRequest struct {
	ServerAlbumID string `json:"server_album_id"`
	SyncFrequency string `json:"sync_frequency"`
}

// DisableSyncRequest disables auto-sync for a device/server album pair
type DisableSyncRequest struct {
	ServerAlbumID string `json:"server_album_id"`
}

// RecordSyncRequest reports a completed device-side sync
type RecordSyncRequest struct {
	SyncedCount int `json:"synced_count"`
}

// SyncStatusUpdateRequest reports the current device album size
type SyncStatusUpdateRequest struct {
	PhotoCount int `json:"photo_count"`
}
