package models

import (
	"io"
	"net/http"
	"time"
)

// UploadedItem is one file resolved at the request boundary. Err carries a
// problem found while resolving it; such an item fails on its own.
type UploadedItem struct {
	Index       int
	Filename    string
	ContentType string
	Size        int64
	CapturedAt  *time.Time
	Content     io.ReadSeeker
	Err         error
}

// IngestResult is the outcome of ingesting one item
type IngestResult struct {
	Photo     *PhotoRecord
	Duplicate bool
}

// BulkStatus classifies a bulk upload outcome
type BulkStatus int

const (
	BulkAllSucceeded BulkStatus = iota
	BulkAllFailed
	BulkMixed
)

// HTTPStatus maps the outcome to created, unprocessable or multi-status
func (s BulkStatus) HTTPStatus() int {
	switch s {
	case BulkAllSucceeded:
		return http.StatusCreated
	case BulkAllFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusMultiStatus
	}
}

// BulkSummary counts the items of a bulk upload
type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// SuccessfulItem is reported for every stored or deduplicated item
type SuccessfulItem struct {
	Index     int           `json:"index"`
	Filename  string        `json:"filename"`
	Photo     PhotoResponse `json:"photo"`
	Duplicate bool          `json:"duplicate"`
}

// FailedItem is reported for every item that could not be ingested
type FailedItem struct {
	Index    int      `json:"index"`
	Filename string   `json:"filename"`
	Errors   []string `json:"errors"`
}

// BulkResults groups per-item outcomes
type BulkResults struct {
	Successful []SuccessfulItem `json:"successful"`
	Failed     []FailedItem     `json:"failed"`
}

// BulkUploadResponse is the body of a bulk upload response
type BulkUploadResponse struct {
	Summary BulkSummary `json:"summary"`
	Results BulkResults `json:"results"`
}

// Status derives the aggregate outcome
func (r *BulkUploadResponse) Status() BulkStatus {
	switch {
	case r.Summary.Failed == 0:
		return BulkAllSucceeded
	case r.Summary.Successful == 0:
		return BulkAllFailed
	default:
		return BulkMixed
	}
}

// SingleUploadResponse is returned by the single-file upload endpoint
type SingleUploadResponse struct {
	Photo     PhotoResponse `json:"photo"`
	Duplicate bool          `json:"duplicate"`
}
