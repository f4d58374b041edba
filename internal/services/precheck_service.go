package services

import (
	"context"
	"fmt"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/observability"
	"github.com/ravin1227/photonix-sub000/internal/repository"
)

// PreCheckService answers which hashes an owner already holds. The answer is
// advisory; ingestion dedups again on its own.
type PreCheckService struct {
	photos    repository.PhotoRepo
	maxHashes int
	metrics   *observability.IngestionMetrics
}

// NewPreCheckService creates a new PreCheckService
func NewPreCheckService(photos repository.PhotoRepo, cfg config.PreCheck, metrics *observability.IngestionMetrics) *PreCheckService {
	maxHashes := cfg.MaxHashes
	if maxHashes <= 0 {
		maxHashes = 50
	}
	return &PreCheckService{photos: photos, maxHashes: maxHashes, metrics: metrics}
}

// Check looks up hashes among the owner's active records. SHA-256 entries
// match the checksum; SHA-1 entries match the legacy hash.
func (s *PreCheckService) Check(ctx context.Context, ownerID string, hashes []string) (*models.PreCheckResponse, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PreCheckService", "Check")
	defer span.End()
	span.SetAttributes(observability.UserID(ownerID), observability.ItemCount(len(hashes)))

	unique, checksums, legacy, err := s.normalize(hashes)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	matches, err := s.photos.FindActiveByHashes(ctx, ownerID, checksums, legacy)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("pre-check lookup: %w", err)
	}

	found := make(map[string]models.ExistingPhoto, len(matches))
	for _, m := range matches {
		if _, seen := found[m.Hash]; !seen {
			found[m.Hash] = models.ExistingPhoto{ID: m.PhotoID}
		}
	}

	resp := &models.PreCheckResponse{
		ExistingHashes: []string{},
		ExistingPhotos: make(map[string]models.ExistingPhoto, len(found)),
		TotalChecked:   len(unique),
	}
	for _, h := range unique {
		if photo, ok := found[h]; ok {
			resp.ExistingHashes = append(resp.ExistingHashes, h)
			resp.ExistingPhotos[h] = photo
		}
	}
	resp.ExistingCount = len(resp.ExistingHashes)
	resp.NewCount = resp.TotalChecked - resp.ExistingCount

	s.metrics.RecordPreCheck(ctx, resp.TotalChecked, resp.ExistingCount)
	observability.SetSuccess(span)
	return resp, nil
}

// normalize validates the whole request before any lookup and de-duplicates
// while keeping the submitted order
func (s *PreCheckService) normalize(hashes []string) (unique, checksums, legacy []string, err error) {
	if len(hashes) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: checksums must not be empty", models.ErrPrecheckMalformed)
	}
	if len(hashes) > s.maxHashes {
		return nil, nil, nil, fmt.Errorf("%w: at most %d checksums per request", models.ErrPrecheckMalformed, s.maxHashes)
	}

	seen := make(map[string]bool, len(hashes))
	for i, raw := range hashes {
		h := NormalizeHash(raw)
		switch {
		case checksumPattern.MatchString(h):
			if !seen[h] {
				checksums = append(checksums, h)
			}
		case legacyHashPattern.MatchString(h):
			if !seen[h] {
				legacy = append(legacy, h)
			}
		default:
			return nil, nil, nil, fmt.Errorf("%w: entry %d is not a valid hash", models.ErrPrecheckMalformed, i)
		}
		if !seen[h] {
			seen[h] = true
			unique = append(unique, h)
		}
	}
	return unique, checksums, legacy, nil
}
