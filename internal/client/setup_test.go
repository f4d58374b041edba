package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testState struct {
	ledger    *Ledger
	baselines *BaselineStore
}

func setupState(t *testing.T) *testState {
	t.Helper()

	db, err := OpenState(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &testState{ledger: NewLedger(db), baselines: NewBaselineStore(db)}
}

func testClientConfig() *config.ClientConfig {
	cfg := config.DefaultClientConfig()
	cfg.RetryBaseDelay = config.Duration{Duration: time.Millisecond}
	return cfg
}

// writePhoto creates a photo file whose modification time is capturedAt
func writePhoto(t *testing.T, dir, name string, capturedAt time.Time) Candidate {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("pixels of "+name), 0644))
	require.NoError(t, os.Chtimes(path, capturedAt, capturedAt))
	return Candidate{
		DeviceID:   "cam/" + name,
		Filename:   name,
		Path:       path,
		CapturedAt: capturedAt,
	}
}

// writePhotos creates n photos captured one minute apart, oldest first
func writePhotos(t *testing.T, dir string, n int) []Candidate {
	t.Helper()

	var out []Candidate
	for i := 0; i < n; i++ {
		out = append(out, writePhoto(t, dir, fmt.Sprintf("IMG_%02d.jpg", i), baseTime.Add(time.Duration(i)*time.Minute)))
	}
	return out
}

// fakeAPI is a scripted UploadAPI
type fakeAPI struct {
	mu       sync.Mutex
	batches  [][]string
	existing map[string]string

	preCheckErr error
	failures    []error
	failItems   map[string]bool

	uploadCalls   int32
	preCheckCalls int32
}

func (f *fakeAPI) PreCheck(_ context.Context, checksums []string) (*models.PreCheckResponse, error) {
	atomic.AddInt32(&f.preCheckCalls, 1)
	if f.preCheckErr != nil {
		return nil, f.preCheckErr
	}

	resp := &models.PreCheckResponse{ExistingPhotos: map[string]models.ExistingPhoto{}, TotalChecked: len(checksums)}
	for _, c := range checksums {
		if id, ok := f.existing[c]; ok {
			resp.ExistingHashes = append(resp.ExistingHashes, c)
			resp.ExistingPhotos[c] = models.ExistingPhoto{ID: id}
		}
	}
	resp.ExistingCount = len(resp.ExistingHashes)
	resp.NewCount = resp.TotalChecked - resp.ExistingCount
	return resp, nil
}

func (f *fakeAPI) BulkUpload(_ context.Context, files []UploadFile) (*models.BulkUploadResponse, error) {
	atomic.AddInt32(&f.uploadCalls, 1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}

	names := make([]string, len(files))
	resp := &models.BulkUploadResponse{}
	for i, file := range files {
		names[i] = file.Filename
		if f.failItems[file.Filename] {
			resp.Results.Failed = append(resp.Results.Failed, models.FailedItem{Index: i, Filename: file.Filename, Errors: []string{"failed to store file"}})
			continue
		}
		resp.Results.Successful = append(resp.Results.Successful, models.SuccessfulItem{
			Index:    i,
			Filename: file.Filename,
			Photo:    models.PhotoResponse{ID: "srv-" + file.Filename},
		})
	}
	f.batches = append(f.batches, names)
	resp.Summary = models.BulkSummary{Total: len(files), Successful: len(resp.Results.Successful), Failed: len(resp.Results.Failed)}
	return resp, nil
}

func (f *fakeAPI) sentBatches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.batches...)
}
