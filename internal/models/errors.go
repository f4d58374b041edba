package models

import (
	"errors"
	"fmt"
)

// PhotoError is a sentinel error for record and request validation
type PhotoError struct {
	Message string
}

func (e PhotoError) Error() string {
	return e.Message
}

var (
	ErrEmptyOwner        = PhotoError{"owner cannot be empty"}
	ErrEmptyFilename     = PhotoError{"original filename cannot be empty"}
	ErrEmptyStoredPath   = PhotoError{"stored path cannot be empty"}
	ErrEmptyHash         = PhotoError{"checksum cannot be empty"}
	ErrInvalidFileSize   = PhotoError{"file size must be positive"}
	ErrInvalidExtension  = PhotoError{"file extension not allowed"}
	ErrFileTooLarge      = PhotoError{"file size exceeds maximum allowed"}
	ErrPathTraversal     = PhotoError{"invalid path - path traversal detected"}
	ErrInvalidChecksum   = PhotoError{"checksum must be 64 hex characters"}
	ErrInvalidVariant    = PhotoError{"invalid thumbnail size"}
	ErrContentNotFound   = PhotoError{"content not found"}
	ErrNotFound          = PhotoError{"not found"}
	ErrConflict          = PhotoError{"conflicts with an active record"}
	ErrPrecheckMalformed = PhotoError{"malformed pre-check request"}
	ErrInvalidFrequency  = PhotoError{"sync frequency must be manual, hourly or daily"}
)

// ValidationError is a per-item problem with a bad or missing field
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps a sentinel as a field error
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

// StorageWriteError marks a failed write to the content store
type StorageWriteError struct {
	Path string
	Err  error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storage write %s: %v", e.Path, e.Err)
}

func (e *StorageWriteError) Unwrap() error {
	return e.Err
}

// ReadError marks an unreadable upload source
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read upload: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a client-caused item error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrorMessages flattens an item error into the list reported to clients
func ErrorMessages(err error) []string {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return []string{ve.Error()}
	}
	var se *StorageWriteError
	if errors.As(err, &se) {
		return []string{"failed to store file"}
	}
	var re *ReadError
	if errors.As(err, &re) {
		return []string{"failed to read file"}
	}
	return []string{err.Error()}
}
