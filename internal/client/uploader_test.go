package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestBatchUploader_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("sends newest first in batches of three", func(t *testing.T) {
		state := setupState(t)
		api := &fakeAPI{}
		cfg := testClientConfig()
		cfg.PreCheck = false
		uploader := NewBatchUploader(api, state.ledger, cfg)

		candidates := writePhotos(t, t.TempDir(), 7)
		summary := uploader.Upload(ctx, candidates)

		assert.Equal(t, UploadSummary{Total: 7, Uploaded: 7}, summary)
		assert.Equal(t, [][]string{
			{"IMG_06.jpg", "IMG_05.jpg", "IMG_04.jpg"},
			{"IMG_03.jpg", "IMG_02.jpg", "IMG_01.jpg"},
			{"IMG_00.jpg"},
		}, api.sentBatches())

		entry, err := state.ledger.Get(ctx, "cam/IMG_03.jpg")
		require.NoError(t, err)
		assert.Equal(t, "srv-IMG_03.jpg", entry.ServerPhotoID)
	})

	t.Run("retries network failures until the batch converges", func(t *testing.T) {
		state := setupState(t)
		api := &fakeAPI{failures: []error{
			&NetworkError{Op: "bulk upload", StatusCode: http.StatusServiceUnavailable},
			&NetworkError{Op: "bulk upload", Err: errors.New("connection reset")},
		}}
		cfg := testClientConfig()
		cfg.PreCheck = false

		summary := NewBatchUploader(api, state.ledger, cfg).Upload(ctx, writePhotos(t, t.TempDir(), 3))

		assert.Equal(t, 3, summary.Uploaded)
		assert.Zero(t, summary.Failed)
		assert.Equal(t, int32(3), atomic.LoadInt32(&api.uploadCalls))
	})

	t.Run("an exhausted batch does not stop the next", func(t *testing.T) {
		state := setupState(t)
		retryable := &NetworkError{Op: "bulk upload", StatusCode: http.StatusBadGateway}
		api := &fakeAPI{failures: []error{retryable, retryable, retryable}}
		cfg := testClientConfig()
		cfg.PreCheck = false

		summary := NewBatchUploader(api, state.ledger, cfg).Upload(ctx, writePhotos(t, t.TempDir(), 5))

		assert.Equal(t, 5, summary.Total)
		assert.Equal(t, 3, summary.Failed)
		assert.Equal(t, 2, summary.Uploaded)
		require.Len(t, summary.Errors, 1)
		assert.True(t, IsRetryable(summary.Errors[0]))
		assert.Equal(t, int32(4), atomic.LoadInt32(&api.uploadCalls))

		count, err := state.ledger.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("terminal failures are not retried", func(t *testing.T) {
		state := setupState(t)
		api := &fakeAPI{failures: []error{&StatusError{Op: "bulk upload", StatusCode: http.StatusBadRequest}}}
		cfg := testClientConfig()
		cfg.PreCheck = false

		summary := NewBatchUploader(api, state.ledger, cfg).Upload(ctx, writePhotos(t, t.TempDir(), 3))

		assert.Equal(t, 3, summary.Failed)
		assert.Equal(t, int32(1), atomic.LoadInt32(&api.uploadCalls))
		var statusErr *StatusError
		require.Len(t, summary.Errors, 1)
		assert.ErrorAs(t, summary.Errors[0], &statusErr)
	})

	t.Run("per-item failures are isolated", func(t *testing.T) {
		state := setupState(t)
		api := &fakeAPI{failItems: map[string]bool{"IMG_01.jpg": true}}
		cfg := testClientConfig()
		cfg.PreCheck = false

		summary := NewBatchUploader(api, state.ledger, cfg).Upload(ctx, writePhotos(t, t.TempDir(), 3))

		assert.Equal(t, 2, summary.Uploaded)
		assert.Equal(t, 1, summary.Failed)
		ok, err := state.ledger.IsUploaded(ctx, "cam/IMG_01.jpg")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("pre-check skips items the server holds", func(t *testing.T) {
		state := setupState(t)
		candidates := writePhotos(t, t.TempDir(), 3)
		api := &fakeAPI{existing: map[string]string{hashFile(t, candidates[1].Path): "server-1"}}

		summary := NewBatchUploader(api, state.ledger, testClientConfig()).Upload(ctx, candidates)

		assert.Equal(t, 3, summary.Uploaded)
		assert.Equal(t, 1, summary.AlreadyPresent)
		assert.Equal(t, [][]string{{"IMG_02.jpg", "IMG_00.jpg"}}, api.sentBatches())

		entry, err := state.ledger.Get(ctx, "cam/IMG_01.jpg")
		require.NoError(t, err)
		assert.Equal(t, "server-1", entry.ServerPhotoID)
	})

	t.Run("a failed pre-check falls back to uploading", func(t *testing.T) {
		state := setupState(t)
		api := &fakeAPI{preCheckErr: &NetworkError{Op: "pre-check", StatusCode: http.StatusServiceUnavailable}}

		summary := NewBatchUploader(api, state.ledger, testClientConfig()).Upload(ctx, writePhotos(t, t.TempDir(), 2))

		assert.Equal(t, 2, summary.Uploaded)
		assert.Equal(t, int32(1), atomic.LoadInt32(&api.preCheckCalls))
		assert.Len(t, api.sentBatches(), 1)
	})

	t.Run("unreadable files fail alone", func(t *testing.T) {
		state := setupState(t)
		candidates := writePhotos(t, t.TempDir(), 2)
		candidates = append(candidates, Candidate{DeviceID: "cam/gone.jpg", Filename: "gone.jpg", Path: "/nonexistent/gone.jpg", CapturedAt: baseTime})
		cfg := testClientConfig()
		cfg.PreCheck = false

		summary := NewBatchUploader(&fakeAPI{}, state.ledger, cfg).Upload(ctx, candidates)

		assert.Equal(t, 2, summary.Uploaded)
		assert.Equal(t, 1, summary.Failed)
	})

	t.Run("a cancelled context schedules nothing", func(t *testing.T) {
		state := setupState(t)
		api := &fakeAPI{}
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		summary := NewBatchUploader(api, state.ledger, testClientConfig()).Upload(cancelled, writePhotos(t, t.TempDir(), 4))

		assert.Equal(t, 4, summary.Failed)
		assert.Zero(t, atomic.LoadInt32(&api.uploadCalls))
	})
}
