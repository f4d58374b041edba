package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ravin1227/photonix-sub000/internal/client"
	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/observability"
)

func main() {
	once := flag.Bool("once", false, "run a single sync pass and exit")
	fromZero := flag.Bool("from-zero", false, "upload existing photos of newly enabled albums")
	flag.Parse()

	if os.Getenv("SERVICE_NAME") == "" {
		os.Setenv("SERVICE_NAME", "photonix-syncer")
	}
	logger := observability.GetLogger().WithField("component", "syncer")

	cfg, err := config.LoadClient()
	if err != nil {
		logger.WithError(err).Error("Failed to load sync configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := client.OpenState(cfg.StatePath)
	if err != nil {
		logger.WithError(err).Error("Failed to open sync state")
		os.Exit(1)
	}
	defer db.Close()

	ledger := client.NewLedger(db)
	baselines := client.NewBaselineStore(db)
	api := client.NewAPIClient(cfg.ServerURL, cfg.APIKey, cfg.RequestTimeout.Duration)
	uploader := client.NewBatchUploader(api, ledger, cfg)
	scheduler := client.NewScheduler(uploader, ledger, baselines, api, cfg)

	for _, source := range cfg.Albums {
		album := client.NewDirectoryAlbum(source.ID, source.Name, source.Path)
		scheduler.Register(album)

		existing, err := baselines.Get(ctx, source.ID)
		if err != nil {
			logger.WithError(err).Error("Failed to read album baseline")
			os.Exit(1)
		}
		if existing == nil {
			enable := scheduler.Enable
			if *fromZero {
				enable = scheduler.EnableFromZero
			}
			if err := enable(ctx, album); err != nil {
				logger.WithError(err).WithField("album_id", source.ID).Error("Failed to enable album")
				continue
			}
			logger.WithField("album_id", source.ID).Info("Album enabled")
		}

		if source.ServerAlbumID != "" {
			pairAlbum(ctx, api, album, source, cfg.DeviceType, logger)
		}
	}

	if *once {
		reports, err := scheduler.SyncAll(ctx)
		for _, r := range reports {
			logger.WithFields(map[string]interface{}{
				"album_id": r.AlbumID,
				"delta":    r.Delta,
				"uploaded": r.Summary.Uploaded,
				"failed":   r.Summary.Failed,
			}).Info("Sync pass")
		}
		if err != nil {
			logger.WithError(err).Error("Sync finished with errors")
			os.Exit(1)
		}
		return
	}

	scheduler.Run(ctx)
}

// pairAlbum makes sure the server knows the album and its auto-sync pairing
func pairAlbum(ctx context.Context, api *client.APIClient, album client.DeviceAlbum, source config.AlbumSource, deviceType string, logger *observability.Logger) {
	count, err := album.Count()
	if err != nil {
		logger.WithError(err).WithField("album_id", source.ID).Warn("Failed to count album")
		return
	}
	tracked, err := api.TrackDeviceAlbum(ctx, models.TrackDeviceAlbumRequest{
		DeviceAlbumID:    album.ID(),
		DeviceAlbumName:  album.Name(),
		DeviceType:       deviceType,
		TotalDeviceCount: count,
	})
	if err != nil {
		logger.WithError(err).WithField("album_id", source.ID).Warn("Failed to track album")
		return
	}
	if err := api.EnableSync(ctx, tracked.ID, source.ServerAlbumID, source.Frequency); err != nil {
		logger.WithError(err).WithField("album_id", source.ID).Warn("Failed to enable server sync")
	}
}
