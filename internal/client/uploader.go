package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/observability"
)

// maxPreCheckHashes is the server's per-request pre-check limit
const maxPreCheckHashes = 50

// UploadAPI is the part of the server API the uploader needs
type UploadAPI interface {
	PreCheck(ctx context.Context, checksums []string) (*models.PreCheckResponse, error)
	BulkUpload(ctx context.Context, files []UploadFile) (*models.BulkUploadResponse, error)
}

// UploadSummary totals one Upload call
type UploadSummary struct {
	Total          int
	Uploaded       int
	AlreadyPresent int
	Failed         int
	Errors         []error
}

func (s *UploadSummary) fail(n int, err error) {
	s.Failed += n
	if err != nil {
		s.Errors = append(s.Errors, err)
	}
}

// BatchUploader sends candidates in small batches and records what the
// server accepted in the ledger.
type BatchUploader struct {
	api         UploadAPI
	ledger      *Ledger
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
	preCheck    bool
	logger      *observability.Logger
}

// NewBatchUploader creates an uploader configured from cfg
func NewBatchUploader(api UploadAPI, ledger *Ledger, cfg *config.ClientConfig) *BatchUploader {
	u := &BatchUploader{
		api:         api,
		ledger:      ledger,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.RetryBaseDelay.Duration,
		preCheck:    cfg.PreCheck,
		logger:      observability.GetLogger().WithField("component", "uploader"),
	}
	if u.batchSize <= 0 {
		u.batchSize = 3
	}
	if u.maxAttempts <= 0 {
		u.maxAttempts = 3
	}
	if u.baseDelay <= 0 {
		u.baseDelay = time.Second
	}
	return u
}

// pending is a candidate whose bytes have been read and hashed
type pending struct {
	Candidate
	content  []byte
	checksum string
}

// Upload sends candidates newest first. A failed batch never stops the
// following ones; cancelling ctx stops scheduling new batches.
func (u *BatchUploader) Upload(ctx context.Context, candidates []Candidate) UploadSummary {
	items := append([]Candidate(nil), candidates...)
	sortNewestFirst(items)

	summary := UploadSummary{Total: len(items)}
	for start := 0; start < len(items); start += u.batchSize {
		if err := ctx.Err(); err != nil {
			summary.fail(len(items)-start, err)
			break
		}
		end := start + u.batchSize
		if end > len(items) {
			end = len(items)
		}
		u.uploadBatch(ctx, items[start:end], &summary)
	}

	u.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"total":           summary.Total,
		"uploaded":        summary.Uploaded,
		"already_present": summary.AlreadyPresent,
		"failed":          summary.Failed,
	}).Info("Upload finished")
	return summary
}

func (u *BatchUploader) uploadBatch(ctx context.Context, batch []Candidate, summary *UploadSummary) {
	var ready []pending
	for _, c := range batch {
		content, err := os.ReadFile(c.Path)
		if err != nil {
			summary.fail(1, fmt.Errorf("read %s: %w", c.Filename, err))
			continue
		}
		sum := sha256.Sum256(content)
		ready = append(ready, pending{Candidate: c, content: content, checksum: hex.EncodeToString(sum[:])})
	}
	if len(ready) == 0 {
		return
	}

	if u.preCheck {
		ready = u.skipExisting(ctx, ready, summary)
		if len(ready) == 0 {
			return
		}
	}

	files := make([]UploadFile, len(ready))
	for i, p := range ready {
		capturedAt := p.CapturedAt
		files[i] = UploadFile{Filename: p.Filename, Content: p.content}
		if !capturedAt.IsZero() {
			files[i].CapturedAt = &capturedAt
		}
	}

	resp, err := u.sendWithRetry(ctx, files)
	if err != nil {
		u.logger.WithContext(ctx).WithError(err).Warnf("Batch of %d failed", len(files))
		summary.fail(len(files), err)
		return
	}

	u.merge(context.WithoutCancel(ctx), ready, resp, summary)
}

// skipExisting asks the server which items it already holds and records them
// without sending bytes. Failures fall back to uploading everything.
func (u *BatchUploader) skipExisting(ctx context.Context, ready []pending, summary *UploadSummary) []pending {
	existing := make(map[string]string)
	for start := 0; start < len(ready); start += maxPreCheckHashes {
		end := start + maxPreCheckHashes
		if end > len(ready) {
			end = len(ready)
		}
		hashes := make([]string, 0, end-start)
		for _, p := range ready[start:end] {
			hashes = append(hashes, p.checksum)
		}

		resp, err := u.api.PreCheck(ctx, hashes)
		if err != nil {
			u.logger.WithContext(ctx).WithError(err).Debug("Pre-check failed, uploading batch")
			return ready
		}
		for hash, photo := range resp.ExistingPhotos {
			existing[hash] = photo.ID
		}
	}

	var entries []LedgerEntry
	var remaining []pending
	for _, p := range ready {
		if id, ok := existing[p.checksum]; ok {
			entries = append(entries, LedgerEntry{DeviceID: p.DeviceID, ServerPhotoID: id, Filename: p.Filename})
			continue
		}
		remaining = append(remaining, p)
	}
	if len(entries) == 0 {
		return ready
	}

	if err := u.ledger.BulkMarkUploaded(ctx, entries); err != nil {
		u.logger.WithContext(ctx).WithError(err).Warn("Failed to record pre-checked items")
	}
	summary.Uploaded += len(entries)
	summary.AlreadyPresent += len(entries)
	return remaining
}

// sendWithRetry retries network failures with exponential backoff. The
// request itself outlives a cancelled ctx; only further attempts stop.
func (u *BatchUploader) sendWithRetry(ctx context.Context, files []UploadFile) (*models.BulkUploadResponse, error) {
	requestCtx := context.WithoutCancel(ctx)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = u.baseDelay

	operation := func() (*models.BulkUploadResponse, error) {
		resp, err := u.api.BulkUpload(requestCtx, files)
		if err != nil && !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(u.maxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			u.logger.WithContext(ctx).WithError(err).Warnf("Upload attempt failed, retrying in %s", next)
		}),
	)
}

// merge records every successful item, duplicates included, and counts the rest
func (u *BatchUploader) merge(ctx context.Context, sent []pending, resp *models.BulkUploadResponse, summary *UploadSummary) {
	accounted := make([]bool, len(sent))

	var entries []LedgerEntry
	for _, item := range resp.Results.Successful {
		if item.Index < 0 || item.Index >= len(sent) || accounted[item.Index] {
			continue
		}
		accounted[item.Index] = true
		p := sent[item.Index]
		entries = append(entries, LedgerEntry{DeviceID: p.DeviceID, ServerPhotoID: item.Photo.ID, Filename: p.Filename})
	}
	if err := u.ledger.BulkMarkUploaded(ctx, entries); err != nil {
		u.logger.WithContext(ctx).WithError(err).Warn("Failed to record uploaded items")
	}
	summary.Uploaded += len(entries)

	for _, item := range resp.Results.Failed {
		if item.Index < 0 || item.Index >= len(sent) || accounted[item.Index] {
			continue
		}
		accounted[item.Index] = true
		summary.fail(1, fmt.Errorf("%s: %v", sent[item.Index].Filename, item.Errors))
	}

	for i, ok := range accounted {
		if !ok {
			summary.fail(1, fmt.Errorf("%s: %w", sent[i].Filename, ErrMalformedResponse))
		}
	}
}
