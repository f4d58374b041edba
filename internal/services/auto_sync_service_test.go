package services

import (
	"context"
	"testing"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAutoSync(t *testing.T) (*AutoSyncService, *testEnv, *models.User) {
	t.Helper()

	env := setupTestDB(t)
	user := env.createUser(t, "a@example.com")
	svc := NewAutoSyncService(env.albums, env.syncs, nil)
	return svc, env, user
}

func trackCamera(t *testing.T, svc *AutoSyncService, userID string, total int) *models.DeviceAlbumUpload {
	t.Helper()

	album, err := svc.TrackDeviceAlbum(context.Background(), userID, models.TrackDeviceAlbumRequest{
		DeviceAlbumID:    "camera-roll",
		DeviceAlbumName:  "Camera Roll",
		DeviceType:       "android",
		TotalDeviceCount: total,
	})
	require.NoError(t, err)
	return album
}

func TestAutoSyncService_TrackDeviceAlbum(t *testing.T) {
	ctx := context.Background()

	t.Run("finds or creates by device album and type", func(t *testing.T) {
		svc, _, user := setupAutoSync(t)

		first := trackCamera(t, svc, user.ID, 10)
		uploaded := 4
		second, err := svc.TrackDeviceAlbum(ctx, user.ID, models.TrackDeviceAlbumRequest{
			DeviceAlbumID:    "camera-roll",
			DeviceAlbumName:  "Camera",
			DeviceType:       "android",
			TotalDeviceCount: 13,
			UploadedCount:    &uploaded,
		})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Camera", second.DeviceAlbumName)
		assert.Equal(t, 13, second.TotalDeviceCount)
		assert.Equal(t, 4, second.UploadedCount)
		assert.NotNil(t, second.LastUploadAt)

		albums, err := svc.ListDeviceAlbums(ctx, user.ID, "")
		require.NoError(t, err)
		assert.Len(t, albums, 1)
	})

	t.Run("another device type is another album", func(t *testing.T) {
		svc, _, user := setupAutoSync(t)

		android := trackCamera(t, svc, user.ID, 1)
		ios, err := svc.TrackDeviceAlbum(ctx, user.ID, models.TrackDeviceAlbumRequest{
			DeviceAlbumID:   "camera-roll",
			DeviceAlbumName: "Camera Roll",
			DeviceType:      "ios",
		})
		require.NoError(t, err)
		assert.NotEqual(t, android.ID, ios.ID)

		onlyIOS, err := svc.ListDeviceAlbums(ctx, user.ID, "ios")
		require.NoError(t, err)
		require.Len(t, onlyIOS, 1)
		assert.Equal(t, ios.ID, onlyIOS[0].ID)
	})

	t.Run("validates input", func(t *testing.T) {
		svc, _, user := setupAutoSync(t)

		_, err := svc.TrackDeviceAlbum(ctx, user.ID, models.TrackDeviceAlbumRequest{
			DeviceAlbumID:   "x",
			DeviceAlbumName: "X",
			DeviceType:      "palm",
		})
		assert.True(t, models.IsValidationError(err))
	})
}

func TestAutoSyncService_GetDeviceAlbum(t *testing.T) {
	svc, env, user := setupAutoSync(t)
	other := env.createUser(t, "b@example.com")
	album := trackCamera(t, svc, user.ID, 3)

	_, err := svc.GetDeviceAlbum(context.Background(), other.ID, album.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.GetDeviceAlbum(context.Background(), user.ID, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAutoSyncService_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("enabling twice updates in place", func(t *testing.T) {
		svc, _, user := setupAutoSync(t)
		album := trackCamera(t, svc, user.ID, 10)

		first, err := svc.EnableSync(ctx, user.ID, album.ID, "server-1", "")
		require.NoError(t, err)
		assert.Equal(t, models.FrequencyManual, first.SyncFrequency)

		second, err := svc.EnableSync(ctx, user.ID, album.ID, "server-1", "daily")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, models.FrequencyDaily, second.SyncFrequency)

		status, err := svc.SyncStatus(ctx, user.ID, album.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, status.Health.TotalSyncs)
	})

	t.Run("rejects an invalid frequency", func(t *testing.T) {
		svc, _, user := setupAutoSync(t)
		album := trackCamera(t, svc, user.ID, 10)

		_, err := svc.EnableSync(ctx, user.ID, album.ID, "server-1", "weekly")
		assert.ErrorIs(t, err, models.ErrInvalidFrequency)
		assert.True(t, models.IsValidationError(err))
	})

	t.Run("disable requires an existing pairing", func(t *testing.T) {
		svc, _, user := setupAutoSync(t)
		album := trackCamera(t, svc, user.ID, 10)

		_, err := svc.DisableSync(ctx, user.ID, album.ID, "server-1")
		assert.ErrorIs(t, err, models.ErrNotFound)

		_, err = svc.EnableSync(ctx, user.ID, album.ID, "server-1", "hourly")
		require.NoError(t, err)
		disabled, err := svc.DisableSync(ctx, user.ID, album.ID, "server-1")
		require.NoError(t, err)
		assert.False(t, disabled.Enabled)
	})

	t.Run("tracks new photos and records syncs", func(t *testing.T) {
		svc, _, user := setupAutoSync(t)
		album := trackCamera(t, svc, user.ID, 10)
		_, err := svc.MarkUploaded(ctx, user.ID, album.ID, 10, 10)
		require.NoError(t, err)

		_, err = svc.EnableSync(ctx, user.ID, album.ID, "server-1", "daily")
		require.NoError(t, err)
		_, err = svc.EnableSync(ctx, user.ID, album.ID, "server-2", "daily")
		require.NoError(t, err)
		_, err = svc.DisableSync(ctx, user.ID, album.ID, "server-2")
		require.NoError(t, err)

		configs, err := svc.UpdateSyncStatus(ctx, user.ID, album.ID, 13)
		require.NoError(t, err)
		require.Len(t, configs, 2)
		assert.Equal(t, 3, configs[0].NewPhotosSinceSync)

		status, err := svc.SyncStatus(ctx, user.ID, album.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncHealth{TotalSyncs: 2, ActiveSyncs: 1, PendingSyncs: 1}, status.Health)

		before := time.Now().Add(-time.Second)
		updated, err := svc.RecordSync(ctx, user.ID, album.ID, 3)
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Equal(t, "server-1", updated[0].ServerAlbumID)
		assert.Equal(t, 13, updated[0].LastPhotoCount)
		assert.Zero(t, updated[0].NewPhotosSinceSync)
		require.NotNil(t, updated[0].LastSyncAt)
		assert.True(t, updated[0].LastSyncAt.After(before))

		status, err = svc.SyncStatus(ctx, user.ID, album.ID)
		require.NoError(t, err)
		assert.Zero(t, status.Health.PendingSyncs)
	})

	t.Run("a smaller count leaves pending photos unchanged", func(t *testing.T) {
		svc, _, user := setupAutoSync(t)
		album := trackCamera(t, svc, user.ID, 10)
		_, err := svc.MarkUploaded(ctx, user.ID, album.ID, 10, 10)
		require.NoError(t, err)
		_, err = svc.EnableSync(ctx, user.ID, album.ID, "server-1", "")
		require.NoError(t, err)

		configs, err := svc.UpdateSyncStatus(ctx, user.ID, album.ID, 8)
		require.NoError(t, err)
		assert.Zero(t, configs[0].NewPhotosSinceSync)
	})
}
