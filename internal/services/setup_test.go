package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/repository"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db     *sql.DB
	photos *repository.PhotoRepository
	users  *repository.UserRepository
	albums *repository.DeviceAlbumRepository
	syncs  *repository.AutoSyncRepository
	faces  *repository.FaceRepository
}

func setupTestDB(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	return &testEnv{
		db:     db,
		photos: repository.NewPhotoRepository(db),
		users:  repository.NewUserRepository(db, repository.DialectSQLite),
		albums: repository.NewDeviceAlbumRepository(db, repository.DialectSQLite),
		syncs:  repository.NewAutoSyncRepository(db, repository.DialectSQLite),
		faces:  repository.NewFaceRepository(db, repository.DialectSQLite),
	}
}

func (e *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()

	user, err := models.NewUser(email, "", "")
	require.NoError(t, err)
	require.NoError(t, e.users.Add(context.Background(), user))
	return user
}

// recordingEnqueuer remembers every enqueued job
type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, kind JobKind, photoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, Job{Kind: kind, PhotoID: photoID})
	return nil
}

func (r *recordingEnqueuer) forPhoto(photoID string) []JobKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kinds []JobKind
	for _, j := range r.jobs {
		if j.PhotoID == photoID {
			kinds = append(kinds, j.Kind)
		}
	}
	return kinds
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
