package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/handlers"
	"github.com/ravin1227/photonix-sub000/internal/observability"
	"github.com/ravin1227/photonix-sub000/internal/repository"
	"github.com/ravin1227/photonix-sub000/internal/services"
)

const (
	serviceName    = "photonix-server"
	serviceVersion = "1.0.0"
)

func main() {
	logger := observability.GetLogger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	telemetry, err := observability.Initialize(ctx, observability.NewConfig(serviceName, serviceVersion))
	if err != nil {
		logger.WithError(err).Warn("Telemetry disabled")
	}
	ingestionMetrics, err := observability.NewIngestionMetrics()
	if err != nil {
		logger.WithError(err).Warn("Ingestion metrics disabled")
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		logger.WithError(err).Warn("HTTP metrics disabled")
	}

	// Initialize database and repositories
	var (
		db      *sql.DB
		dialect repository.Dialect
		photos  *repository.PhotoRepository
	)
	if cfg.UsePostgres() {
		logger.Info("Using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.DatabaseURL)
		dialect = repository.DialectPostgres
		if err == nil {
			photos = repository.NewPostgresPhotoRepository(db)
		}
	} else {
		logger.Infof("Using SQLite database at %s", cfg.DatabasePath)
		db, err = repository.NewSQLiteDB(cfg.DatabasePath)
		dialect = repository.DialectSQLite
		if err == nil {
			photos = repository.NewPhotoRepository(db)
		}
	}
	if err != nil {
		logger.WithError(err).Error("Failed to initialize database")
		os.Exit(1)
	}
	defer db.Close()

	users := repository.NewUserRepository(db, dialect)
	faces := repository.NewFaceRepository(db, dialect)
	deviceAlbums := repository.NewDeviceAlbumRepository(db, dialect)
	autoSyncs := repository.NewAutoSyncRepository(db, dialect)

	if cfg.Security.APIKey != "" {
		owner, err := repository.EnsureUser(ctx, users, cfg.Security.BootstrapEmail, cfg.Security.APIKey)
		if err != nil {
			logger.WithError(err).Error("Failed to bootstrap owner")
			os.Exit(1)
		}
		logger.WithField("user_id", owner.ID).Info("Bootstrap owner ready")
	}

	// Initialize services
	store, err := services.NewContentStore(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize content store")
		os.Exit(1)
	}

	hub := services.NewWebSocketHub()
	go hub.Run(ctx)

	faceClient := services.NewFaceDetectionClient(cfg.FaceDetection)

	jobs := services.NewJobQueue(cfg.Jobs, ingestionMetrics)
	services.NewPhotoProcessor(photos, faces, store, faceClient, hub).Register(jobs)
	// jobs outlive the signal so the queue can drain on shutdown
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	jobs.Start(jobCtx)
	services.NewMaintenanceService(photos, jobs, cfg.Jobs).Start(ctx)

	ingestion := services.NewIngestionService(photos, store, jobs, hub, ingestionMetrics, cfg.Ingestion)
	precheck := services.NewPreCheckService(photos, cfg.PreCheck, ingestionMetrics)
	autoSync := services.NewAutoSyncService(deviceAlbums, autoSyncs, ingestionMetrics)

	// Setup router
	router := handlers.NewRouter(handlers.RouterConfig{
		ServiceName:  serviceName,
		APIKeyHeader: cfg.Security.APIKeyHeader,
		Users:        users,
		HTTPMetrics:  httpMetrics,
		Photos: handlers.NewPhotoHandler(
			ingestion,
			precheck,
			services.NewPhotoService(photos, store),
			cfg.Ingestion,
			cfg.Storage.MaxFileSizeBytes(),
		),
		DeviceAlbums: handlers.NewDeviceAlbumHandler(autoSync),
		Health:       handlers.NewHealthHandler(db, faceClient),
		WebSocket:    handlers.NewWebSocketHandler(hub),
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  5 * time.Minute, // bulk uploads
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(map[string]interface{}{
			"address":      cfg.ServerAddress,
			"storage_root": cfg.Storage.Root,
			"max_file_mb":  cfg.Storage.MaxFileSizeMB,
		}).Info("Photonix server starting")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	jobs.Stop()
	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}

	logger.Info("Server stopped")
}
