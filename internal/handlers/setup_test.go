package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/repository"
	"github.com/ravin1227/photonix-sub000/internal/services"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key"

type noopJobs struct{}

func (noopJobs) Enqueue(context.Context, services.JobKind, string) error { return nil }

// brokenWriter fails every store write of one checksum
type brokenWriter struct {
	*services.ContentStore
	failOn string
}

func (w *brokenWriter) WriteIfAbsent(r io.Reader, checksum, ext string, uploadedAt time.Time) (string, bool, error) {
	if checksum == w.failOn {
		return "", false, &models.StorageWriteError{Path: checksum, Err: fmt.Errorf("disk full")}
	}
	return w.ContentStore.WriteIfAbsent(r, checksum, ext, uploadedAt)
}

type testServer struct {
	*httptest.Server
	photos *repository.PhotoRepository
	store  *services.ContentStore
	user   *models.User
}

// newTestServer assembles the full HTTP stack on a temp SQLite database.
// wrap may replace the content writer used by ingestion.
func newTestServer(t *testing.T, wrap func(*services.ContentStore) services.ContentWriter) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.Root = t.TempDir()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	users := repository.NewUserRepository(db, repository.DialectSQLite)
	user, err := repository.EnsureUser(context.Background(), users, "owner@example.com", testAPIKey)
	require.NoError(t, err)

	store, err := services.NewContentStore(cfg.Storage)
	require.NoError(t, err)
	var writer services.ContentWriter = store
	if wrap != nil {
		writer = wrap(store)
	}

	photos := repository.NewPhotoRepository(db)
	photoService := services.NewPhotoService(photos, store)
	autoSync := services.NewAutoSyncService(
		repository.NewDeviceAlbumRepository(db, repository.DialectSQLite),
		repository.NewAutoSyncRepository(db, repository.DialectSQLite),
		nil,
	)

	router := NewRouter(RouterConfig{
		ServiceName:  "photonix-test",
		APIKeyHeader: cfg.Security.APIKeyHeader,
		Users:        users,
		Photos: NewPhotoHandler(
			services.NewIngestionService(photos, writer, noopJobs{}, nil, nil, cfg.Ingestion),
			services.NewPreCheckService(photos, cfg.PreCheck, nil),
			photoService,
			cfg.Ingestion,
			cfg.Storage.MaxFileSizeBytes(),
		),
		DeviceAlbums: NewDeviceAlbumHandler(autoSync),
		Health:       NewHealthHandler(db, nil),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, photos: photos, store: store, user: user}
}

type upload struct {
	filename   string
	content    []byte
	capturedAt string
}

func multipartBody(t *testing.T, field string, files []upload) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i, f := range files {
		part, err := mw.CreateFormFile(field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
		if f.capturedAt != "" {
			require.NoError(t, mw.WriteField(fmt.Sprintf("captured_at[%d]", i), f.capturedAt))
		}
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, s.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testAPIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
