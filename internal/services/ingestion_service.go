package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/observability"
	"github.com/ravin1227/photonix-sub000/internal/repository"
)

// ContentWriter is the part of the content store ingestion depends on
type ContentWriter interface {
	MaxFileSizeBytes() int64
	IsAllowedExtension(ext string) bool
	WriteIfAbsent(r io.Reader, checksum, ext string, uploadedAt time.Time) (string, bool, error)
	Delete(storedPath string) DeleteReport
}

// IngestionService turns uploaded items into deduplicated photo records
type IngestionService struct {
	photos         repository.PhotoRepo
	store          ContentWriter
	checksums      *ChecksumService
	jobs           JobEnqueuer
	notifier       Notifier
	metrics        *observability.IngestionMetrics
	maxConcurrency int
	now            func() time.Time
}

// NewIngestionService creates a new IngestionService. notifier and metrics may be nil.
func NewIngestionService(
	photos repository.PhotoRepo,
	store ContentWriter,
	jobs JobEnqueuer,
	notifier Notifier,
	metrics *observability.IngestionMetrics,
	cfg config.Ingestion,
) *IngestionService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &IngestionService{
		photos:         photos,
		store:          store,
		checksums:      NewChecksumService(),
		jobs:           jobs,
		notifier:       notifier,
		metrics:        metrics,
		maxConcurrency: concurrency,
		now:            time.Now,
	}
}

// Ingest stores one item for ownerID. Re-uploading content the owner already
// holds returns the existing record with Duplicate set.
func (s *IngestionService) Ingest(ctx context.Context, ownerID string, item models.UploadedItem) (*models.IngestResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "IngestionService", "Ingest")
	defer span.End()
	span.SetAttributes(observability.UserID(ownerID))

	result, err := s.ingest(ctx, ownerID, item)
	if err != nil {
		observability.RecordError(span, err)
		s.metrics.RecordIngest(ctx, observability.OutcomeFailed, 0)
		return nil, err
	}

	span.SetAttributes(observability.PhotoID(result.Photo.ID))
	observability.SetSuccess(span)
	if result.Duplicate {
		s.metrics.RecordIngest(ctx, observability.OutcomeDuplicate, 0)
	} else {
		s.metrics.RecordIngest(ctx, observability.OutcomeNew, result.Photo.SizeBytes)
	}
	return result, nil
}

func (s *IngestionService) ingest(ctx context.Context, ownerID string, item models.UploadedItem) (*models.IngestResult, error) {
	if item.Err != nil {
		return nil, item.Err
	}
	ext, err := s.validate(item)
	if err != nil {
		return nil, err
	}

	if _, err := item.Content.Seek(0, io.SeekStart); err != nil {
		return nil, &models.ReadError{Err: err}
	}
	sums, size, err := s.checksums.Compute(item.Content)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, models.NewValidationError("file", models.ErrInvalidFileSize)
	}

	log := observability.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id":  ownerID,
		"checksum": sums.Primary,
	})

	existing, err := s.photos.FindActiveByChecksum(ctx, ownerID, sums.Primary)
	if err != nil {
		return nil, fmt.Errorf("lookup checksum: %w", err)
	}
	if existing != nil {
		log.Debugf("Duplicate of photo %s", existing.ID)
		return &models.IngestResult{Photo: existing, Duplicate: true}, nil
	}

	if _, err := item.Content.Seek(0, io.SeekStart); err != nil {
		return nil, &models.ReadError{Err: err}
	}
	uploadedAt := s.now().UTC()
	storedPath, created, err := s.store.WriteIfAbsent(item.Content, sums.Primary, ext, uploadedAt)
	if err != nil {
		return nil, err
	}

	photo, err := models.NewPhotoRecord(ownerID, item.Filename, storedPath, sums.Primary, sums.Legacy, size, uploadedAt)
	if err != nil {
		s.discard(ctx, storedPath, created)
		return nil, models.NewValidationError("file", err)
	}
	photo.ContentType = item.ContentType
	if item.CapturedAt != nil {
		capturedAt := item.CapturedAt.UTC()
		photo.CapturedAt = &capturedAt
	}

	if err := s.photos.Create(ctx, photo); err != nil {
		s.discard(ctx, storedPath, created)

		if errors.Is(err, repository.ErrDuplicateChecksum) {
			winner, lookupErr := s.photos.FindActiveByChecksum(ctx, ownerID, sums.Primary)
			if lookupErr != nil {
				return nil, fmt.Errorf("lookup race winner: %w", lookupErr)
			}
			if winner != nil {
				s.metrics.RecordRaceLost(ctx)
				log.Infof("Lost insert race, returning photo %s", winner.ID)
				return &models.IngestResult{Photo: winner, Duplicate: true}, nil
			}
		}
		return nil, fmt.Errorf("create photo record: %w", err)
	}

	for _, kind := range NewPhotoJobs {
		if err := s.jobs.Enqueue(ctx, kind, photo.ID); err != nil {
			log.WithError(err).Warnf("Failed to enqueue %s job for photo %s", kind, photo.ID)
		}
	}
	s.notifier.PhotoUploaded(ownerID, photo.ID)

	log.Infof("Stored photo %s at %s", photo.ID, storedPath)
	return &models.IngestResult{Photo: photo, Duplicate: false}, nil
}

func (s *IngestionService) validate(item models.UploadedItem) (string, error) {
	if item.Content == nil {
		return "", &models.ValidationError{Field: "file", Message: "is required"}
	}
	if strings.TrimSpace(item.Filename) == "" {
		return "", models.NewValidationError("filename", models.ErrEmptyFilename)
	}
	if item.Size <= 0 {
		return "", models.NewValidationError("file", models.ErrInvalidFileSize)
	}
	if item.Size > s.store.MaxFileSizeBytes() {
		return "", models.NewValidationError("file", models.ErrFileTooLarge)
	}

	ext := strings.ToLower(filepath.Ext(models.SanitizeFilename(item.Filename)))
	if !s.store.IsAllowedExtension(ext) {
		return "", models.NewValidationError("file", models.ErrInvalidExtension)
	}
	return ext, nil
}

// discard removes a file this call created when no record points at it
func (s *IngestionService) discard(ctx context.Context, storedPath string, created bool) {
	if !created {
		return
	}
	refs, err := s.photos.CountByStoragePath(ctx, storedPath)
	if err != nil || refs > 0 {
		return
	}
	report := s.store.Delete(storedPath)
	for path, err := range report.Failed {
		observability.WithContext(ctx).WithError(err).Warnf("Failed to remove unreferenced file %s", path)
	}
}

// IngestBulk ingests items with bounded parallelism. Every item is reported,
// ordered by index; one item's failure never affects another.
func (s *IngestionService) IngestBulk(ctx context.Context, ownerID string, items []models.UploadedItem) *models.BulkUploadResponse {
	ctx, span := observability.StartServiceSpan(ctx, "IngestionService", "IngestBulk")
	defer span.End()
	span.SetAttributes(observability.UserID(ownerID), observability.ItemCount(len(items)))

	type outcome struct {
		result *models.IngestResult
		err    error
	}
	outcomes := make([]outcome, len(items))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for i := range items {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = outcome{err: err}
				return nil
			}
			result, err := s.Ingest(ctx, ownerID, items[i])
			outcomes[i] = outcome{result: result, err: err}
			return nil
		})
	}
	_ = g.Wait()

	resp := &models.BulkUploadResponse{
		Summary: models.BulkSummary{Total: len(items)},
		Results: models.BulkResults{
			Successful: []models.SuccessfulItem{},
			Failed:     []models.FailedItem{},
		},
	}

	log := observability.WithContext(ctx).WithField("user_id", ownerID)
	for i, o := range outcomes {
		item := items[i]
		if o.err != nil {
			if !models.IsValidationError(o.err) {
				log.WithError(o.err).Warnf("Bulk item %d (%s) failed", item.Index, item.Filename)
			}
			resp.Results.Failed = append(resp.Results.Failed, models.FailedItem{
				Index:    item.Index,
				Filename: item.Filename,
				Errors:   models.ErrorMessages(o.err),
			})
			continue
		}
		resp.Results.Successful = append(resp.Results.Successful, models.SuccessfulItem{
			Index:     item.Index,
			Filename:  item.Filename,
			Photo:     models.PhotoToResponse(o.result.Photo),
			Duplicate: o.result.Duplicate,
		})
	}
	resp.Summary.Successful = len(resp.Results.Successful)
	resp.Summary.Failed = len(resp.Results.Failed)

	observability.SetSuccess(span)
	return resp
}
