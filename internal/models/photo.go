package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus tracks downstream work on a photo
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Valid reports whether s is a known status
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// PhotoRecord is the server-owned record of one piece of stored content
type PhotoRecord struct {
	ID               string           `json:"id"`
	OwnerID          string           `json:"owner_id"`
	Checksum         string           `json:"checksum"`
	LegacyHash       string           `json:"legacy_hash,omitempty"`
	StoragePath      string           `json:"storage_path"`
	OriginalFilename string           `json:"original_filename"`
	SizeBytes        int64            `json:"size_bytes"`
	Format           string           `json:"format"`
	ContentType      string           `json:"content_type,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	CapturedAt       *time.Time       `json:"captured_at,omitempty"`
	Width            *int             `json:"width,omitempty"`
	Height           *int             `json:"height,omitempty"`
	CameraMake       *string          `json:"camera_make,omitempty"`
	CameraModel      *string          `json:"camera_model,omitempty"`
	Latitude         *float64         `json:"latitude,omitempty"`
	Longitude        *float64         `json:"longitude,omitempty"`
	FaceCount        int              `json:"face_count"`
	UploadedAt       time.Time        `json:"uploaded_at"`
	TombstonedAt     *time.Time       `json:"tombstoned_at,omitempty"`
}

// NewPhotoRecord creates a pending record with validation and sanitization
func NewPhotoRecord(ownerID, originalFilename, storagePath, checksum, legacyHash string, size int64, uploadedAt time.Time) (*PhotoRecord, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrEmptyOwner
	}
	if strings.TrimSpace(originalFilename) == "" {
		return nil, ErrEmptyFilename
	}
	if strings.TrimSpace(storagePath) == "" {
		return nil, ErrEmptyStoredPath
	}
	if strings.TrimSpace(checksum) == "" {
		return nil, ErrEmptyHash
	}
	if size <= 0 {
		return nil, ErrInvalidFileSize
	}

	name := SanitizeFilename(originalFilename)
	return &PhotoRecord{
		ID:               uuid.New().String(),
		OwnerID:          ownerID,
		Checksum:         strings.ToLower(checksum),
		LegacyHash:       strings.ToLower(legacyHash),
		StoragePath:      storagePath,
		OriginalFilename: name,
		SizeBytes:        size,
		Format:           FormatOf(name),
		ProcessingStatus: StatusPending,
		UploadedAt:       uploadedAt.UTC(),
	}, nil
}

// IsActive reports whether the record has not been tombstoned
func (p *PhotoRecord) IsActive() bool {
	return p.TombstonedAt == nil
}

// SortTime is the capture time when known, otherwise the upload time
func (p *PhotoRecord) SortTime() time.Time {
	if p.CapturedAt != nil {
		return *p.CapturedAt
	}
	return p.UploadedAt
}

// FormatOf returns the lowercase extension of filename without the dot
func FormatOf(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// SanitizeFilename removes path components and invalid characters
func SanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))

	replacer := strings.NewReplacer(
		"..", "",
		"/", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = replacer.Replace(name)

	const maxLength = 200
	if len(name) > maxLength {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		if len(base) > maxLength-len(ext) {
			base = base[:maxLength-len(ext)]
		}
		name = base + ext
	}
	return name
}

// Face is one detected face on a photo
type Face struct {
	ID         string    `json:"id"`
	PhotoID    string    `json:"photo_id"`
	X          int       `json:"bbox_x"`
	Y          int       `json:"bbox_y"`
	Width      int       `json:"bbox_width"`
	Height     int       `json:"bbox_height"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// PhotoMetadata is the output of the metadata job
type PhotoMetadata struct {
	CapturedAt  *time.Time
	Width       *int
	Height      *int
	CameraMake  *string
	CameraModel *string
	Latitude    *float64
	Longitude   *float64
}
