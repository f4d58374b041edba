package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ravin1227/photonix-sub000/internal/middleware"
	"github.com/ravin1227/photonix-sub000/internal/observability"
	"github.com/ravin1227/photonix-sub000/internal/repository"
)

// RouterConfig collects what the HTTP surface is assembled from
type RouterConfig struct {
	ServiceName  string
	APIKeyHeader string
	Users        repository.UserRepo
	HTTPMetrics  *observability.HTTPMetrics

	Photos       *PhotoHandler
	DeviceAlbums *DeviceAlbumHandler
	Health       *HealthHandler
	WebSocket    *WebSocketHandler
}

// NewRouter wires every route behind API key authentication, except health
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(observability.TracingMiddleware(cfg.ServiceName))
	if cfg.HTTPMetrics != nil {
		r.Use(observability.MetricsMiddleware(cfg.HTTPMetrics))
	}

	r.Get("/health", cfg.Health.HealthCheck)
	r.Get("/api/health", cfg.Health.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(middleware.UserAPIKeyAuth(cfg.Users, cfg.APIKeyHeader, nil))

		r.Route("/api/photos", func(r chi.Router) {
			r.Post("/check_bulk_upload", cfg.Photos.CheckBulkUpload)
			r.Post("/bulk", cfg.Photos.BulkUpload)
			r.Post("/", cfg.Photos.Upload)
			r.Get("/", cfg.Photos.List)
			r.Get("/stats", cfg.Photos.Stats)
			r.Get("/{id}", cfg.Photos.GetByID)
			r.Get("/{id}/download", cfg.Photos.Download)
			r.Get("/{id}/thumbnail", cfg.Photos.Thumbnail)
			r.Delete("/{id}", cfg.Photos.Delete)
			r.Post("/{id}/restore", cfg.Photos.Restore)
		})

		r.Route("/api/device-albums", func(r chi.Router) {
			r.Post("/track", cfg.DeviceAlbums.Track)
			r.Get("/", cfg.DeviceAlbums.List)
			r.Get("/{id}", cfg.DeviceAlbums.Get)
			r.Post("/{id}/sync/enable", cfg.DeviceAlbums.EnableSync)
			r.Post("/{id}/sync/disable", cfg.DeviceAlbums.DisableSync)
			r.Post("/{id}/sync/record", cfg.DeviceAlbums.RecordSync)
			r.Post("/{id}/sync/status-update", cfg.DeviceAlbums.UpdateSyncStatus)
			r.Get("/{id}/sync/status", cfg.DeviceAlbums.SyncStatus)
		})

		if cfg.WebSocket != nil {
			r.Get("/api/ws", cfg.WebSocket.HandleConnection)
		}
	})

	return r
}
