package models

import "time"

// PreCheckRequest is the body of a bulk pre-check call
type PreCheckRequest struct {
	Checksums []string `json:"checksums"`
}

// ExistingPhoto identifies the record that already holds a hash
type ExistingPhoto struct {
	ID string `json:"id"`
}

// PreCheckResponse reports which submitted hashes already exist for the caller
type PreCheckResponse struct {
	ExistingHashes []string                 `json:"existing_hashes"`
	ExistingPhotos map[string]ExistingPhoto `json:"existing_photos"`
	TotalChecked   int                      `json:"total_checked"`
	ExistingCount  int                      `json:"existing_count"`
	NewCount       int                      `json:"new_count"`
}

// PhotoResponse is a single photo in API responses
type PhotoResponse struct {
	ID               string            `json:"id"`
	OriginalFilename string            `json:"original_filename"`
	Checksum         string            `json:"checksum"`
	SizeBytes        int64             `json:"size_bytes"`
	Format           string            `json:"format"`
	ProcessingStatus ProcessingStatus  `json:"processing_status"`
	CapturedAt       *time.Time        `json:"captured_at,omitempty"`
	Width            *int              `json:"width,omitempty"`
	Height           *int              `json:"height,omitempty"`
	CameraMake       *string           `json:"camera_make,omitempty"`
	CameraModel      *string           `json:"camera_model,omitempty"`
	Latitude         *float64          `json:"latitude,omitempty"`
	Longitude        *float64          `json:"longitude,omitempty"`
	FaceCount        int               `json:"face_count"`
	UploadedAt       time.Time         `json:"uploaded_at"`
	ThumbnailURLs    map[string]string `json:"thumbnail_urls,omitempty"`
}

// PhotoToResponse converts a PhotoRecord to its API shape
func PhotoToResponse(p *PhotoRecord) PhotoResponse {
	return PhotoResponse{
		ID:               p.ID,
		OriginalFilename: p.OriginalFilename,
		Checksum:         p.Checksum,
		SizeBytes:        p.SizeBytes,
		Format:           p.Format,
		ProcessingStatus: p.ProcessingStatus,
		CapturedAt:       p.CapturedAt,
		Width:            p.Width,
		Height:           p.Height,
		CameraMake:       p.CameraMake,
		CameraModel:      p.CameraModel,
		Latitude:         p.Latitude,
		Longitude:        p.Longitude,
		FaceCount:        p.FaceCount,
		UploadedAt:       p.UploadedAt,
	}
}

// PhotoListResponse is returned when listing photos
type PhotoListResponse struct {
	Photos     []PhotoResponse `json:"photos"`
	TotalCount int             `json:"total_count"`
	Skip       int             `json:"skip"`
	Take       int             `json:"take"`
}

// PhotoStatsResponse reports library and store totals
type PhotoStatsResponse struct {
	TotalPhotos    int                      `json:"total_photos"`
	ByStatus       map[ProcessingStatus]int `json:"by_status"`
	StoredItems    int                      `json:"stored_items"`
	TotalSizeBytes int64                    `json:"total_size_bytes"`
	TotalSizeMB    float64                  `json:"total_size_mb"`
	TotalSizeGB    float64                  `json:"total_size_gb"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Database      string    `json:"database"`
	FaceDetection string    `json:"face_detection"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is returned by lifecycle operations
type MessageResponse struct {
	Message string `json:"message"`
}
