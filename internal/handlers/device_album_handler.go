package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ravin1227/photonix-sub000/internal/middleware"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/services"
)

const deviceAlbumNotFound = "Device album not found."

// DeviceAlbumHandler handles device album tracking and auto-sync endpoints
type DeviceAlbumHandler struct {
	autoSync *services.AutoSyncService
}

// NewDeviceAlbumHandler creates a new DeviceAlbumHandler
func NewDeviceAlbumHandler(autoSync *services.AutoSyncService) *DeviceAlbumHandler {
	return &DeviceAlbumHandler{autoSync: autoSync}
}

// Track registers or refreshes a device album
// @Summary Track a device album
// @Tags device-albums
// @Accept json
// @Produce json
// @Param request body models.TrackDeviceAlbumRequest true "Device album"
// @Success 201 {object} models.DeviceAlbumResponse
// @Failure 422 {object} models.ErrorResponse "Invalid album"
// @Security ApiKeyAuth
// @Router /api/device-albums/track [post]
func (h *DeviceAlbumHandler) Track(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req models.TrackDeviceAlbumRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	album, err := h.autoSync.TrackDeviceAlbum(r.Context(), user.ID, req)
	if err != nil {
		respondServiceError(w, r, err, deviceAlbumNotFound)
		return
	}
	respondJSON(w, http.StatusCreated, album.ToResponse(nil))
}

// List returns the caller's device albums
// @Summary List device albums
// @Tags device-albums
// @Produce json
// @Param device_type query string false "ios, android or desktop"
// @Success 200 {array} models.DeviceAlbumResponse
// @Security ApiKeyAuth
// @Router /api/device-albums [get]
func (h *DeviceAlbumHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	albums, err := h.autoSync.ListDeviceAlbums(r.Context(), user.ID, r.URL.Query().Get("device_type"))
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, albums)
}

// Get returns one device album
// @Summary Get a device album
// @Tags device-albums
// @Produce json
// @Param id path string true "Device album upload ID"
// @Success 200 {object} models.DeviceAlbumResponse
// @Failure 404 {object} models.ErrorResponse "Device album not found"
// @Security ApiKeyAuth
// @Router /api/device-albums/{id} [get]
func (h *DeviceAlbumHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	album, err := h.autoSync.GetDeviceAlbum(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err, deviceAlbumNotFound)
		return
	}
	respondJSON(w, http.StatusOK, album.ToResponse(nil))
}

// EnableSync pairs the device album with a server album
// @Summary Enable auto-sync
// @Tags device-albums
// @Accept json
// @Produce json
// @Param id path string true "Device album upload ID"
// @Param request body models.EnableSyncRequest true "Server album and frequency"
// @Success 201 {object} models.AutoSyncResponse
// @Failure 404 {object} models.ErrorResponse "Device album not found"
// @Failure 422 {object} models.ErrorResponse "Invalid frequency"
// @Security ApiKeyAuth
// @Router /api/device-albums/{id}/sync/enable [post]
func (h *DeviceAlbumHandler) EnableSync(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req models.EnableSyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	cfg, err := h.autoSync.EnableSync(r.Context(), user.ID, chi.URLParam(r, "id"), req.ServerAlbumID, req.SyncFrequency)
	if err != nil {
		respondServiceError(w, r, err, deviceAlbumNotFound)
		return
	}
	respondJSON(w, http.StatusCreated, cfg.ToResponse(time.Now()))
}

// DisableSync turns a pairing off
// @Summary Disable auto-sync
// @Tags device-albums
// @Accept json
// @Produce json
// @Param id path string true "Device album upload ID"
// @Param request body models.DisableSyncRequest true "Server album"
// @Success 200 {object} models.AutoSyncResponse
// @Failure 404 {object} models.ErrorResponse "Sync configuration not found"
// @Security ApiKeyAuth
// @Router /api/device-albums/{id}/sync/disable [post]
func (h *DeviceAlbumHandler) DisableSync(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req models.DisableSyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	cfg, err := h.autoSync.DisableSync(r.Context(), user.ID, chi.URLParam(r, "id"), req.ServerAlbumID)
	if err != nil {
		respondServiceError(w, r, err, "Sync configuration not found.")
		return
	}
	respondJSON(w, http.StatusOK, cfg.ToResponse(time.Now()))
}

// RecordSync applies a completed device-side sync
// @Summary Record a completed sync
// @Tags device-albums
// @Accept json
// @Produce json
// @Param id path string true "Device album upload ID"
// @Param request body models.RecordSyncRequest true "Synced count"
// @Success 200 {array} models.AutoSyncResponse
// @Failure 404 {object} models.ErrorResponse "Device album not found"
// @Security ApiKeyAuth
// @Router /api/device-albums/{id}/sync/record [post]
func (h *DeviceAlbumHandler) RecordSync(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req models.RecordSyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	configs, err := h.autoSync.RecordSync(r.Context(), user.ID, chi.URLParam(r, "id"), req.SyncedCount)
	if err != nil {
		respondServiceError(w, r, err, deviceAlbumNotFound)
		return
	}
	respondJSON(w, http.StatusOK, syncResponses(configs))
}

// UpdateSyncStatus reports the device album's current size
// @Summary Update sync status
// @Tags device-albums
// @Accept json
// @Produce json
// @Param id path string true "Device album upload ID"
// @Param request body models.SyncStatusUpdateRequest true "Photo count"
// @Success 200 {array} models.AutoSyncResponse
// @Failure 404 {object} models.ErrorResponse "Device album not found"
// @Security ApiKeyAuth
// @Router /api/device-albums/{id}/sync/status-update [post]
func (h *DeviceAlbumHandler) UpdateSyncStatus(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req models.SyncStatusUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	configs, err := h.autoSync.UpdateSyncStatus(r.Context(), user.ID, chi.URLParam(r, "id"), req.PhotoCount)
	if err != nil {
		respondServiceError(w, r, err, deviceAlbumNotFound)
		return
	}
	respondJSON(w, http.StatusOK, syncResponses(configs))
}

// SyncStatus returns the album, its pairings and their health
// @Summary Get sync status
// @Tags device-albums
// @Produce json
// @Param id path string true "Device album upload ID"
// @Success 200 {object} models.SyncStatusResponse
// @Failure 404 {object} models.ErrorResponse "Device album not found"
// @Security ApiKeyAuth
// @Router /api/device-albums/{id}/sync/status [get]
func (h *DeviceAlbumHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	status, err := h.autoSync.SyncStatus(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err, deviceAlbumNotFound)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func syncResponses(configs []*models.AutoSyncConfig) []models.AutoSyncResponse {
	now := time.Now()
	result := make([]models.AutoSyncResponse, 0, len(configs))
	for _, cfg := range configs {
		result = append(result, cfg.ToResponse(now))
	}
	return result
}
