package services

import (
	"context"
	"testing"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceService_RunNow(t *testing.T) {
	ctx := context.Background()

	t.Run("requeues stale pending and failed photos", func(t *testing.T) {
		env := setupTestDB(t)
		owner := env.createUser(t, "a@example.com")

		pending := seedPhoto(t, env, owner.ID, []byte("pending"))
		failed := seedPhoto(t, env, owner.ID, []byte("failed"))
		done := seedPhoto(t, env, owner.ID, []byte("done"))
		require.NoError(t, env.photos.UpdateStatus(ctx, failed.ID, models.StatusFailed))
		require.NoError(t, env.photos.UpdateStatus(ctx, done.ID, models.StatusCompleted))

		jobs := &recordingEnqueuer{}
		svc := NewMaintenanceService(env.photos, jobs, config.Default().Jobs)
		svc.now = func() time.Time { return time.Now().Add(time.Hour) }

		status := svc.RunNow(ctx)
		assert.Equal(t, 2, status.Requeued)
		assert.Empty(t, status.Errors)
		assert.False(t, status.Running)

		assert.ElementsMatch(t, NewPhotoJobs, jobs.forPhoto(pending.ID))
		assert.ElementsMatch(t, NewPhotoJobs, jobs.forPhoto(failed.ID))
		assert.Empty(t, jobs.forPhoto(done.ID))

		reloaded, err := env.photos.GetByID(ctx, failed.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, reloaded.ProcessingStatus)
	})

	t.Run("recent uploads are left alone", func(t *testing.T) {
		env := setupTestDB(t)
		owner := env.createUser(t, "a@example.com")
		seedPhoto(t, env, owner.ID, []byte("fresh"))

		jobs := &recordingEnqueuer{}
		status := NewMaintenanceService(env.photos, jobs, config.Default().Jobs).RunNow(ctx)

		assert.Zero(t, status.Requeued)
		assert.Zero(t, jobs.count())
	})

	t.Run("tombstoned photos are skipped", func(t *testing.T) {
		env := setupTestDB(t)
		owner := env.createUser(t, "a@example.com")
		photo := seedPhoto(t, env, owner.ID, []byte("deleted"))
		_, err := env.photos.Tombstone(ctx, owner.ID, photo.ID, time.Now())
		require.NoError(t, err)

		jobs := &recordingEnqueuer{}
		svc := NewMaintenanceService(env.photos, jobs, config.Default().Jobs)
		svc.now = func() time.Time { return time.Now().Add(time.Hour) }

		assert.Zero(t, svc.RunNow(ctx).Requeued)
	})

	t.Run("a full queue ends the sweep", func(t *testing.T) {
		env := setupTestDB(t)
		owner := env.createUser(t, "a@example.com")
		seedPhoto(t, env, owner.ID, []byte("one"))
		seedPhoto(t, env, owner.ID, []byte("two"))

		jobs := &recordingEnqueuer{err: ErrQueueFull}
		svc := NewMaintenanceService(env.photos, jobs, config.Default().Jobs)
		svc.now = func() time.Time { return time.Now().Add(time.Hour) }

		status := svc.RunNow(ctx)
		assert.Zero(t, status.Requeued)
		assert.Len(t, status.Errors, 1)
	})
}
