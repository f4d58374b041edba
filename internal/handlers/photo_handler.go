package handlers

import (
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/middleware"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/services"
)

const (
	bulkFileField     = "photos[]"
	singleFileField   = "photo"
	capturedAtField   = "captured_at"
	multipartMemory   = 32 << 20
	multipartOverhead = 1 << 20
)

// PhotoHandler handles photo upload, pre-check and retrieval endpoints
type PhotoHandler struct {
	ingestion    *services.IngestionService
	precheck     *services.PreCheckService
	photos       *services.PhotoService
	maxBulkItems int
	maxFileSize  int64
}

// NewPhotoHandler creates a new PhotoHandler
func NewPhotoHandler(
	ingestion *services.IngestionService,
	precheck *services.PreCheckService,
	photos *services.PhotoService,
	ingestionCfg config.Ingestion,
	maxFileSize int64,
) *PhotoHandler {
	maxItems := ingestionCfg.MaxBulkItems
	if maxItems <= 0 {
		maxItems = 100
	}
	return &PhotoHandler{
		ingestion:    ingestion,
		precheck:     precheck,
		photos:       photos,
		maxBulkItems: maxItems,
		maxFileSize:  maxFileSize,
	}
}

// CheckBulkUpload reports which checksums the caller already holds
// @Summary Pre-check checksums before a bulk upload
// @Description Advisory lookup of up to 50 SHA-256 (or legacy SHA-1) hashes among the caller's active photos.
// @Tags photos
// @Accept json
// @Produce json
// @Param request body models.PreCheckRequest true "Checksums to check"
// @Success 200 {object} models.PreCheckResponse
// @Failure 400 {object} models.ErrorResponse "Malformed request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Security ApiKeyAuth
// @Router /api/photos/check_bulk_upload [post]
func (h *PhotoHandler) CheckBulkUpload(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req models.PreCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	resp, err := h.precheck.Check(r.Context(), user.ID, req.Checksums)
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// BulkUpload ingests several files in one request
// @Summary Upload several photos
// @Description Each file is deduplicated per owner. Item failures do not fail the request.
// @Tags photos
// @Accept multipart/form-data
// @Produce json
// @Param photos[] formData file true "Photo files"
// @Param captured_at[0] formData string false "Capture time of file 0 (RFC3339)"
// @Success 201 {object} models.BulkUploadResponse "Every item stored or deduplicated"
// @Success 207 {object} models.BulkUploadResponse "Some items failed"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 422 {object} models.BulkUploadResponse "Every item failed"
// @Security ApiKeyAuth
// @Router /api/photos/bulk [post]
func (h *PhotoHandler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize*int64(h.maxBulkItems)+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondError(w, http.StatusBadRequest, "Request must be multipart/form-data.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[bulkFileField]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "At least one file is required in photos[].")
		return
	}
	if len(headers) > h.maxBulkItems {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("At most %d files per request.", h.maxBulkItems))
		return
	}

	items := make([]models.UploadedItem, 0, len(headers))
	for i, fh := range headers {
		items = append(items, openItem(i, fh, r.MultipartForm.Value[fmt.Sprintf("%s[%d]", capturedAtField, i)]))
	}
	defer closeItems(items)

	resp := h.ingestion.IngestBulk(r.Context(), user.ID, items)
	respondJSON(w, resp.Status().HTTPStatus(), resp)
}

// Upload ingests a single file
// @Summary Upload a photo
// @Description Returns 201 for new content and 200 with duplicate=true for content the caller already holds.
// @Tags photos
// @Accept multipart/form-data
// @Produce json
// @Param photo formData file true "Photo file"
// @Param captured_at formData string false "Capture time (RFC3339)"
// @Success 200 {object} models.SingleUploadResponse "Duplicate"
// @Success 201 {object} models.SingleUploadResponse "Created"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 422 {object} models.ErrorResponse "Invalid file"
// @Security ApiKeyAuth
// @Router /api/photos [post]
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondError(w, http.StatusBadRequest, "Request must be multipart/form-data.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[singleFileField]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "No file provided in photo.")
		return
	}

	item := openItem(0, headers[0], r.MultipartForm.Value[capturedAtField])
	defer closeItems([]models.UploadedItem{item})
	if item.Err != nil {
		respondError(w, http.StatusBadRequest, item.Err.Error())
		return
	}

	result, err := h.ingestion.Ingest(r.Context(), user.ID, item)
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, models.SingleUploadResponse{
		Photo:     h.photos.ToResponse(result.Photo),
		Duplicate: result.Duplicate,
	})
}

// openItem resolves one multipart file. Problems are kept on the item so
// that they fail it alone.
func openItem(index int, fh *multipart.FileHeader, capturedAt []string) models.UploadedItem {
	item := models.UploadedItem{
		Index:       index,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	}

	if len(capturedAt) > 0 && strings.TrimSpace(capturedAt[0]) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(capturedAt[0]))
		if err != nil {
			item.Err = &models.ValidationError{Field: "captured_at", Message: "must be RFC3339", Err: err}
			return item
		}
		item.CapturedAt = &t
	}

	f, err := fh.Open()
	if err != nil {
		item.Err = &models.ReadError{Err: err}
		return item
	}
	item.Content = f
	return item
}

func closeItems(items []models.UploadedItem) {
	for _, item := range items {
		if c, ok := item.Content.(multipart.File); ok {
			c.Close()
		}
	}
}

// List returns the caller's photos, newest capture first
// @Summary List photos
// @Tags photos
// @Produce json
// @Param skip query int false "Number of photos to skip" default(0)
// @Param take query int false "Number of photos to return (max 200)" default(50)
// @Success 200 {object} models.PhotoListResponse
// @Security ApiKeyAuth
// @Router /api/photos [get]
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	take, _ := strconv.Atoi(r.URL.Query().Get("take"))

	resp, err := h.photos.List(r.Context(), user.ID, skip, take)
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetByID returns a single photo
// @Summary Get photo by ID
// @Tags photos
// @Produce json
// @Param id path string true "Photo ID (UUID)"
// @Success 200 {object} models.PhotoResponse
// @Failure 404 {object} models.ErrorResponse "Photo not found"
// @Security ApiKeyAuth
// @Router /api/photos/{id} [get]
func (h *PhotoHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	photo, err := h.photos.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err, "Photo not found.")
		return
	}
	respondJSON(w, http.StatusOK, h.photos.ToResponse(photo))
}

// Download streams the original file
// @Summary Download the original
// @Tags photos
// @Produce octet-stream
// @Param id path string true "Photo ID (UUID)"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse "Photo not found"
// @Security ApiKeyAuth
// @Router /api/photos/{id}/download [get]
func (h *PhotoHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.serveVariant(w, r, services.VariantOriginal, true)
}

// Thumbnail streams a rendered thumbnail, or the original while it is pending
// @Summary Get a thumbnail
// @Tags photos
// @Produce jpeg
// @Param id path string true "Photo ID (UUID)"
// @Param size query string false "small, medium or large" default(medium)
// @Success 200 {file} binary
// @Failure 400 {object} models.ErrorResponse "Invalid size"
// @Failure 404 {object} models.ErrorResponse "Photo not found"
// @Security ApiKeyAuth
// @Router /api/photos/{id}/thumbnail [get]
func (h *PhotoHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	size := r.URL.Query().Get("size")
	if size == "" {
		size = "medium"
	}
	h.serveVariant(w, r, size, false)
}

func (h *PhotoHandler) serveVariant(w http.ResponseWriter, r *http.Request, variant string, attachment bool) {
	user := middleware.GetUserFromContext(r.Context())

	f, photo, fallback, err := h.photos.Open(r.Context(), user.ID, chi.URLParam(r, "id"), variant)
	if err != nil {
		respondServiceError(w, r, err, "Photo not found.")
		return
	}
	defer f.Close()

	contentType := services.ThumbnailContentType(photo.StoragePath)
	if variant == services.VariantOriginal || fallback {
		contentType = photo.ContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(photo.StoragePath))
		}
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if fallback {
		w.Header().Set("X-Thumbnail-Fallback", "true")
	}
	if attachment {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": photo.OriginalFilename}))
	}

	http.ServeContent(w, r, "", photo.UploadedAt, f)
}

// Delete tombstones a photo
// @Summary Delete a photo
// @Description Soft-deletes the record. Stored bytes are kept.
// @Tags photos
// @Param id path string true "Photo ID (UUID)"
// @Success 204 "Photo deleted"
// @Failure 404 {object} models.ErrorResponse "Photo not found"
// @Security ApiKeyAuth
// @Router /api/photos/{id} [delete]
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	if err := h.photos.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err, "Photo not found.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Restore clears a photo's tombstone
// @Summary Restore a deleted photo
// @Tags photos
// @Produce json
// @Param id path string true "Photo ID (UUID)"
// @Success 200 {object} models.PhotoResponse
// @Failure 404 {object} models.ErrorResponse "No deleted photo with this ID"
// @Failure 409 {object} models.ErrorResponse "The same content was uploaded again"
// @Security ApiKeyAuth
// @Router /api/photos/{id}/restore [post]
func (h *PhotoHandler) Restore(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	photo, err := h.photos.Restore(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err, "Deleted photo not found.")
		return
	}
	respondJSON(w, http.StatusOK, h.photos.ToResponse(photo))
}

// Stats reports counts by processing status and storage totals
// @Summary Photo statistics
// @Tags photos
// @Produce json
// @Success 200 {object} models.PhotoStatsResponse
// @Security ApiKeyAuth
// @Router /api/photos/stats [get]
func (h *PhotoHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	stats, err := h.photos.Stats(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
