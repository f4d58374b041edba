package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/services"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db         Pinger
	faceClient *services.FaceDetectionClient
}

// NewHealthHandler creates a new HealthHandler. faceClient may be nil.
func NewHealthHandler(db Pinger, faceClient *services.FaceDetectionClient) *HealthHandler {
	return &HealthHandler{db: db, faceClient: faceClient}
}

// HealthCheck returns the server health status
// @Summary Health check
// @Description Reports database reachability and the face detection service status
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse "Server is healthy"
// @Failure 503 {object} models.HealthResponse "Database unreachable"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := models.HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC(),
		Database:      "ok",
		FaceDetection: h.faceStatus(ctx),
	}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		response.Status = "unhealthy"
		response.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, response)
}

func (h *HealthHandler) faceStatus(ctx context.Context) string {
	if h.faceClient == nil {
		return "disabled"
	}
	err := h.faceClient.Health(ctx)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, services.ErrFaceDetectionDisabled):
		return "disabled"
	default:
		return "unavailable"
	}
}
