package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/observability"
	"github.com/ravin1227/photonix-sub000/internal/repository"
)

const defaultFaceConfidence = 0.95

// PhotoProcessor implements the downstream jobs enqueued for new photos
type PhotoProcessor struct {
	photos     repository.PhotoRepo
	faces      repository.FaceRepo
	store      *ContentStore
	exif       *EXIFService
	thumbnails *ThumbnailService
	faceClient *FaceDetectionClient
	notifier   Notifier
}

// NewPhotoProcessor creates a new PhotoProcessor. notifier may be nil.
func NewPhotoProcessor(
	photos repository.PhotoRepo,
	faces repository.FaceRepo,
	store *ContentStore,
	faceClient *FaceDetectionClient,
	notifier Notifier,
) *PhotoProcessor {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &PhotoProcessor{
		photos:     photos,
		faces:      faces,
		store:      store,
		exif:       NewEXIFService(),
		thumbnails: NewThumbnailService(store),
		faceClient: faceClient,
		notifier:   notifier,
	}
}

// Register binds each job kind to its handler
func (p *PhotoProcessor) Register(q *JobQueue) {
	q.Register(JobMetadata, p.ExtractMetadata)
	q.Register(JobThumbnail, p.GenerateThumbnails)
	q.Register(JobFaceDetection, p.DetectFaces)
}

func (p *PhotoProcessor) load(ctx context.Context, photoID string) (*models.PhotoRecord, error) {
	photo, err := p.photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if photo == nil {
		return nil, fmt.Errorf("photo %s: %w", photoID, models.ErrNotFound)
	}
	return photo, nil
}

func (p *PhotoProcessor) readEXIF(storedPath string) (*EXIFData, error) {
	f, err := p.store.Open(storedPath, VariantOriginal)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.exif.ExtractFromReader(f), nil
}

// ExtractMetadata fills capture time, dimensions, camera and GPS from EXIF.
// A capture time supplied at upload is kept.
func (p *PhotoProcessor) ExtractMetadata(ctx context.Context, photoID string) error {
	photo, err := p.load(ctx, photoID)
	if err != nil {
		return err
	}

	data, err := p.readEXIF(photo.StoragePath)
	if err != nil {
		return fmt.Errorf("read exif: %w", err)
	}
	return p.photos.UpdateMetadata(ctx, photo.ID, data.ToMetadata())
}

// GenerateThumbnails renders the thumbnail sizes and settles the processing
// status to completed or failed
func (p *PhotoProcessor) GenerateThumbnails(ctx context.Context, photoID string) error {
	photo, err := p.load(ctx, photoID)
	if err != nil {
		return err
	}
	if err := p.photos.UpdateStatus(ctx, photo.ID, models.StatusProcessing); err != nil {
		return err
	}

	genErr := p.generate(photo)

	status := models.StatusCompleted
	if genErr != nil {
		status = models.StatusFailed
	}
	if err := p.photos.UpdateStatus(ctx, photo.ID, status); err != nil {
		return errors.Join(genErr, err)
	}
	p.notifier.PhotoProcessed(photo.OwnerID, photo.ID, status)
	return genErr
}

func (p *PhotoProcessor) generate(photo *models.PhotoRecord) error {
	if !p.store.ExistsAt(photo.StoragePath) {
		return fmt.Errorf("original %s: %w", photo.StoragePath, models.ErrContentNotFound)
	}

	orientation := 1
	if data, err := p.readEXIF(photo.StoragePath); err == nil {
		orientation = data.Orientation
	}

	_, err := p.thumbnails.GenerateForPhoto(photo.StoragePath, orientation)
	return err
}

// DetectFaces stores the faces reported by the detection service. A disabled
// or unreachable service is logged and skipped.
func (p *PhotoProcessor) DetectFaces(ctx context.Context, photoID string) error {
	log := observability.WithContext(ctx).WithField("photo_id", photoID)
	if p.faceClient == nil || !p.faceClient.Enabled() {
		log.Debug("Face detection disabled, skipping")
		return nil
	}

	photo, err := p.load(ctx, photoID)
	if err != nil {
		return err
	}
	imagePath, err := p.store.FullPath(photo.StoragePath)
	if err != nil {
		return err
	}

	result, err := p.faceClient.Detect(ctx, imagePath)
	if err != nil {
		log.WithError(err).Warn("Face detection unavailable, skipping")
		return nil
	}
	if !result.Success {
		log.Warnf("Face detection failed: %s", result.Message)
		return nil
	}

	now := time.Now().UTC()
	faces := make([]models.Face, 0, len(result.Faces))
	for _, detected := range result.Faces {
		faces = append(faces, models.Face{
			ID:         uuid.New().String(),
			PhotoID:    photo.ID,
			X:          roundPixel(detected.BoundingBox.Left),
			Y:          roundPixel(detected.BoundingBox.Top),
			Width:      roundPixel(detected.BoundingBox.Width),
			Height:     roundPixel(detected.BoundingBox.Height),
			Confidence: detected.confidenceOr(defaultFaceConfidence),
			CreatedAt:  now,
		})
	}

	if err := p.faces.ReplaceForPhoto(ctx, photo.ID, faces); err != nil {
		return fmt.Errorf("store faces: %w", err)
	}
	if err := p.photos.SetFaceCount(ctx, photo.ID, len(faces)); err != nil {
		return err
	}
	log.Infof("Detected %d face(s)", len(faces))
	return nil
}
