package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()

	user, err := models.NewUser(email, "", "")
	require.NoError(t, err)
	require.NoError(t, NewUserRepository(db, DialectSQLite).Add(context.Background(), user))
	return user
}

func newTestPhoto(t *testing.T, ownerID, checksum, legacy string) *models.PhotoRecord {
	t.Helper()

	photo, err := models.NewPhotoRecord(ownerID, "IMG.jpg", "originals/2024/01/"+checksum[:2]+"/"+checksum+".jpg", checksum, legacy, 100, time.Now())
	require.NoError(t, err)
	return photo
}

func TestDialect_Rebind(t *testing.T) {
	query := "SELECT * FROM photos WHERE owner_id = ? AND checksum IN (?,?)"

	assert.Equal(t, query, DialectSQLite.Rebind(query))
	assert.Equal(t, "SELECT * FROM photos WHERE owner_id = $1 AND checksum IN ($2,$3)", DialectPostgres.Rebind(query))
	assert.Equal(t, "?,?,?", Placeholders(3))
	assert.Empty(t, Placeholders(0))
}

func TestPhotoRepository_ActiveUniqueness(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewPhotoRepository(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	sum := strings.Repeat("ab", 32)

	first := newTestPhoto(t, alice.ID, sum, "")
	require.NoError(t, repo.Create(ctx, first))

	t.Run("same owner and checksum is rejected", func(t *testing.T) {
		err := repo.Create(ctx, newTestPhoto(t, alice.ID, sum, ""))
		assert.ErrorIs(t, err, ErrDuplicateChecksum)
	})

	t.Run("another owner may hold the same checksum", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newTestPhoto(t, bob.ID, sum, "")))

		found, err := repo.FindActiveByChecksum(ctx, bob.ID, strings.ToUpper(sum))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, bob.ID, found.OwnerID)
	})

	t.Run("a tombstoned checksum can be uploaded again", func(t *testing.T) {
		ok, err := repo.Tombstone(ctx, alice.ID, first.ID, time.Now())
		require.NoError(t, err)
		require.True(t, ok)

		found, err := repo.FindActiveByChecksum(ctx, alice.ID, sum)
		require.NoError(t, err)
		assert.Nil(t, found)

		second := newTestPhoto(t, alice.ID, sum, "")
		require.NoError(t, repo.Create(ctx, second))

		_, err = repo.Restore(ctx, alice.ID, first.ID)
		assert.ErrorIs(t, err, ErrDuplicateChecksum)

		refs, err := repo.CountByStoragePath(ctx, first.StoragePath)
		require.NoError(t, err)
		assert.Equal(t, 3, refs)
	})

	t.Run("tombstone is scoped to the owner", func(t *testing.T) {
		found, err := repo.FindActiveByChecksum(ctx, bob.ID, sum)
		require.NoError(t, err)

		ok, err := repo.Tombstone(ctx, alice.ID, found.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPhotoRepository_FindActiveByHashes(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewPhotoRepository(db)
	owner := createTestUser(t, db, "a@example.com")

	withLegacy := newTestPhoto(t, owner.ID, strings.Repeat("11", 32), strings.Repeat("aa", 20))
	plain := newTestPhoto(t, owner.ID, strings.Repeat("22", 32), "")
	require.NoError(t, repo.Create(ctx, withLegacy))
	require.NoError(t, repo.Create(ctx, plain))

	matches, err := repo.FindActiveByHashes(ctx, owner.ID,
		[]string{plain.Checksum, strings.Repeat("33", 32)},
		[]string{withLegacy.LegacyHash},
	)
	require.NoError(t, err)

	assert.ElementsMatch(t, []HashMatch{
		{Hash: plain.Checksum, PhotoID: plain.ID},
		{Hash: withLegacy.LegacyHash, PhotoID: withLegacy.ID},
	}, matches)

	empty, err := repo.FindActiveByHashes(ctx, owner.ID, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPhotoRepository_ListAndMetadata(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewPhotoRepository(db)
	owner := createTestUser(t, db, "a@example.com")

	older := newTestPhoto(t, owner.ID, strings.Repeat("01", 32), "")
	captured := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := newTestPhoto(t, owner.ID, strings.Repeat("02", 32), "")
	newer.CapturedAt = &captured
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	photos, err := repo.List(ctx, owner.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, newer.ID, photos[0].ID)

	t.Run("metadata keeps the uploader's capture time", func(t *testing.T) {
		exifTime := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
		width := 4032
		cameraMake := "Canon"
		require.NoError(t, repo.UpdateMetadata(ctx, newer.ID, models.PhotoMetadata{
			CapturedAt: &exifTime,
			Width:      &width,
			CameraMake: &cameraMake,
		}))

		stored, err := repo.GetByID(ctx, newer.ID)
		require.NoError(t, err)
		assert.True(t, captured.Equal(*stored.CapturedAt))
		assert.Equal(t, 4032, *stored.Width)
		assert.Equal(t, "Canon", *stored.CameraMake)
		assert.Nil(t, stored.Height)
	})

	t.Run("counts by status", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, older.ID, models.StatusCompleted))
		assert.Error(t, repo.UpdateStatus(ctx, older.ID, "bogus"))

		counts, err := repo.CountByStatus(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, map[models.ProcessingStatus]int{
			models.StatusCompleted: 1,
			models.StatusPending:   1,
		}, counts)
	})
}

func TestFaceRepository_ReplaceForPhoto(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	owner := createTestUser(t, db, "a@example.com")
	photo := newTestPhoto(t, owner.ID, strings.Repeat("cd", 32), "")
	require.NoError(t, NewPhotoRepository(db).Create(ctx, photo))

	repo := NewFaceRepository(db, DialectSQLite)
	face := func(id string) models.Face {
		return models.Face{ID: id, PhotoID: photo.ID, Width: 10, Height: 10, Confidence: 0.9, CreatedAt: time.Now()}
	}

	require.NoError(t, repo.ReplaceForPhoto(ctx, photo.ID, []models.Face{face("f1"), face("f2")}))
	require.NoError(t, repo.ReplaceForPhoto(ctx, photo.ID, []models.Face{face("f3")}))

	faces, err := repo.ListByPhoto(ctx, photo.ID)
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Equal(t, "f3", faces[0].ID)
}
