package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/observability"
)

// ErrAlbumNotEnabled is returned when syncing an album without a baseline
var ErrAlbumNotEnabled = errors.New("album sync is not enabled")

// SyncReporter tells the server about device-side sync progress
type SyncReporter interface {
	TrackDeviceAlbum(ctx context.Context, req models.TrackDeviceAlbumRequest) (*models.DeviceAlbumResponse, error)
	RecordSync(ctx context.Context, albumRecordID string, syncedCount int) error
}

// SyncReport describes one SyncAlbum run
type SyncReport struct {
	AlbumID      string
	Current      int
	Baseline     int
	Delta        int
	NothingToDo  bool
	Skipped      int
	Summary      UploadSummary
	LastSyncedAt time.Time
}

// Scheduler uploads photos added to enabled albums since their last sync
type Scheduler struct {
	uploader   *BatchUploader
	ledger     *Ledger
	baselines  *BaselineStore
	reporter   SyncReporter
	deviceType string
	interval   time.Duration
	now        func() time.Time
	logger     *observability.Logger

	mu     sync.RWMutex
	albums map[string]DeviceAlbum
}

// NewScheduler creates a scheduler. reporter may be nil.
func NewScheduler(uploader *BatchUploader, ledger *Ledger, baselines *BaselineStore, reporter SyncReporter, cfg *config.ClientConfig) *Scheduler {
	interval := cfg.SyncInterval.Duration
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		uploader:   uploader,
		ledger:     ledger,
		baselines:  baselines,
		reporter:   reporter,
		deviceType: cfg.DeviceType,
		interval:   interval,
		now:        time.Now,
		logger:     observability.GetLogger().WithField("component", "scheduler"),
		albums:     make(map[string]DeviceAlbum),
	}
}

// Register makes album available to SyncAll
func (s *Scheduler) Register(album DeviceAlbum) {
	s.mu.Lock()
	s.albums[album.ID()] = album
	s.mu.Unlock()
}

func (s *Scheduler) album(id string) (DeviceAlbum, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.albums[id]
	return a, ok
}

// Enable starts tracking album from its current size, so existing photos
// are not uploaded.
func (s *Scheduler) Enable(ctx context.Context, album DeviceAlbum) error {
	count, err := album.Count()
	if err != nil {
		return fmt.Errorf("count album %s: %w", album.ID(), err)
	}
	return s.enableAt(ctx, album, count)
}

// EnableFromZero starts tracking album so the next sync uploads all of it
func (s *Scheduler) EnableFromZero(ctx context.Context, album DeviceAlbum) error {
	return s.enableAt(ctx, album, 0)
}

func (s *Scheduler) enableAt(ctx context.Context, album DeviceAlbum, count int) error {
	s.Register(album)

	existing, err := s.baselines.Get(ctx, album.ID())
	if err != nil {
		return err
	}
	b := &AlbumBaseline{AlbumID: album.ID(), AlbumName: album.Name(), TrackedPhotoCount: count, Enabled: true}
	if existing != nil {
		b.LastSyncedAt = existing.LastSyncedAt
		b.ServerRecordID = existing.ServerRecordID
	}
	return s.baselines.Save(ctx, b)
}

// Disable stops syncing albumID; its baseline is kept
func (s *Scheduler) Disable(ctx context.Context, albumID string) error {
	b, err := s.baselines.Get(ctx, albumID)
	if err != nil || b == nil {
		return err
	}
	b.Enabled = false
	return s.baselines.Save(ctx, b)
}

// SyncAlbum uploads the photos added to album since its baseline and moves
// the baseline to the current count, even when some uploads failed.
func (s *Scheduler) SyncAlbum(ctx context.Context, album DeviceAlbum) (*SyncReport, error) {
	baseline, err := s.baselines.Get(ctx, album.ID())
	if err != nil {
		return nil, err
	}
	if baseline == nil || !baseline.Enabled {
		return nil, fmt.Errorf("%s: %w", album.ID(), ErrAlbumNotEnabled)
	}

	current, err := album.Count()
	if err != nil {
		return nil, fmt.Errorf("count album %s: %w", album.ID(), err)
	}

	report := &SyncReport{
		AlbumID:  album.ID(),
		Current:  current,
		Baseline: baseline.TrackedPhotoCount,
		Delta:    current - baseline.TrackedPhotoCount,
	}
	// the baseline only moves forward; a short listing must not re-expose history
	if report.Delta <= 0 {
		report.NothingToDo = true
		return report, nil
	}

	newest, err := album.Newest(report.Delta)
	if err != nil {
		return nil, fmt.Errorf("list album %s: %w", album.ID(), err)
	}

	var candidates []Candidate
	for _, c := range newest {
		done, err := s.ledger.IsUploaded(ctx, c.DeviceID)
		if err != nil {
			return nil, err
		}
		if done {
			report.Skipped++
			continue
		}
		candidates = append(candidates, c)
	}

	report.Summary = s.uploader.Upload(ctx, candidates)

	now := s.now().UTC()
	baseline.TrackedPhotoCount = current
	baseline.LastSyncedAt = &now
	baseline.AlbumName = album.Name()
	report.LastSyncedAt = now

	s.report(ctx, album, baseline, report)

	if err := s.baselines.Save(context.WithoutCancel(ctx), baseline); err != nil {
		return report, fmt.Errorf("save baseline %s: %w", album.ID(), err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"album_id": album.ID(),
		"delta":    report.Delta,
		"uploaded": report.Summary.Uploaded,
		"failed":   report.Summary.Failed,
	}).Info("Album synced")
	return report, nil
}

// report is best effort; failures are logged and ignored
func (s *Scheduler) report(ctx context.Context, album DeviceAlbum, baseline *AlbumBaseline, report *SyncReport) {
	if s.reporter == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.WithContext(ctx).WithField("album_id", album.ID())

	req := models.TrackDeviceAlbumRequest{
		DeviceAlbumID:    album.ID(),
		DeviceAlbumName:  album.Name(),
		DeviceType:       s.deviceType,
		TotalDeviceCount: report.Current,
	}
	if uploaded, err := s.uploadedCount(ctx, album, report.Current); err != nil {
		logger.WithError(err).Warn("Failed to count uploaded photos")
	} else {
		req.UploadedCount = &uploaded
	}

	tracked, err := s.reporter.TrackDeviceAlbum(ctx, req)
	if err != nil {
		logger.WithError(err).Warn("Failed to report album progress")
		return
	}
	baseline.ServerRecordID = tracked.ID

	if err := s.reporter.RecordSync(ctx, tracked.ID, report.Summary.Uploaded); err != nil {
		logger.WithError(err).Warn("Failed to record sync")
	}
}

// uploadedCount is the number of album items the ledger holds
func (s *Scheduler) uploadedCount(ctx context.Context, album DeviceAlbum, current int) (int, error) {
	items, err := album.Newest(current)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(items))
	for i, c := range items {
		ids[i] = c.DeviceID
	}
	return s.ledger.CountUploaded(ctx, ids)
}

// SyncAll syncs every enabled, registered album. One album failing does not
// stop the others.
func (s *Scheduler) SyncAll(ctx context.Context) ([]*SyncReport, error) {
	baselines, err := s.baselines.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	var reports []*SyncReport
	var errs []error
	for _, b := range baselines {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		album, ok := s.album(b.AlbumID)
		if !ok {
			s.logger.WithField("album_id", b.AlbumID).Debug("Enabled album is not registered, skipping")
			continue
		}
		report, err := s.SyncAlbum(ctx, album)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("album_id", b.AlbumID).Error("Album sync failed")
			errs = append(errs, err)
		}
		if report != nil {
			reports = append(reports, report)
		}
	}
	return reports, errors.Join(errs...)
}

// Run calls SyncAll immediately and then on every interval until ctx is done
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Infof("Auto-sync running every %s", s.interval)
	for {
		if _, err := s.SyncAll(ctx); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Warn("Sync pass finished with errors")
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Auto-sync stopped")
			return
		case <-ticker.C:
		}
	}
}
