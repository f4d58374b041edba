package services

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *ContentStore {
	t.Helper()

	cfg := config.Default().Storage
	cfg.Root = t.TempDir()

	store, err := NewContentStore(cfg)
	require.NoError(t, err)
	return store
}

func checksumOf(content []byte) string {
	return NewChecksumService().ComputeBytes(content).Primary
}

func TestContentStore_PathFor(t *testing.T) {
	store := setupTestStore(t)
	sum := strings.Repeat("ab", 32)

	t.Run("is deterministic", func(t *testing.T) {
		at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

		first, err := store.PathFor(sum, "JPG", at)
		require.NoError(t, err)
		second, err := store.PathFor(sum, ".jpg", at.Add(time.Hour))
		require.NoError(t, err)

		assert.Equal(t, "originals/2024/03/ab/"+sum+".jpg", first)
		assert.Equal(t, first, second)
	})

	t.Run("uses the UTC month", func(t *testing.T) {
		zone := time.FixedZone("UTC+5", 5*3600)
		at := time.Date(2024, 4, 1, 2, 0, 0, 0, zone)

		p, err := store.PathFor(sum, "png", at)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(p, "originals/2024/03/"))
	})

	t.Run("rejects invalid checksum", func(t *testing.T) {
		_, err := store.PathFor("not-a-hash", "jpg", time.Now())
		assert.ErrorIs(t, err, models.ErrInvalidChecksum)
	})

	t.Run("rejects empty extension", func(t *testing.T) {
		_, err := store.PathFor(sum, "", time.Now())
		assert.ErrorIs(t, err, models.ErrInvalidExtension)
	})
}

func TestContentStore_ThumbnailPathFor(t *testing.T) {
	store := setupTestStore(t)
	sum := strings.Repeat("cd", 32)

	p, err := store.ThumbnailPathFor("originals/2024/03/cd/"+sum+".heic", "medium")
	require.NoError(t, err)
	assert.Equal(t, "thumbnails/medium/2024/03/cd/"+sum+".heic", p)

	p, err = store.ThumbnailPathFor("originals/2024/03/cd/"+sum+".png", "small")
	require.NoError(t, err)
	assert.Equal(t, "thumbnails/small/2024/03/cd/"+sum+".png", p)

	_, err = store.ThumbnailPathFor("originals/2024/03/cd/"+sum+".heic", "huge")
	assert.ErrorIs(t, err, models.ErrInvalidVariant)
}

func TestContentStore_WriteIfAbsent(t *testing.T) {
	uploadedAt := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)

	t.Run("writes once and reports created", func(t *testing.T) {
		store := setupTestStore(t)
		content := []byte("fake image content")
		sum := checksumOf(content)

		p1, created, err := store.WriteIfAbsent(bytes.NewReader(content), sum, "jpg", uploadedAt)
		require.NoError(t, err)
		assert.True(t, created)
		assert.True(t, store.ExistsAt(p1))

		p2, created, err := store.WriteIfAbsent(bytes.NewReader(content), sum, "jpg", uploadedAt)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, p1, p2)

		data, err := os.ReadFile(filepath.Join(store.Root(), p1))
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("concurrent writers create exactly one file", func(t *testing.T) {
		store := setupTestStore(t)
		content := []byte("same bytes from every goroutine")
		sum := checksumOf(content)

		var wg sync.WaitGroup
		var mu sync.Mutex
		createdCount := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, created, err := store.WriteIfAbsent(bytes.NewReader(content), sum, "jpg", uploadedAt)
				assert.NoError(t, err)
				if created {
					mu.Lock()
					createdCount++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, createdCount)
		stats, err := store.AggregateStats()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.ItemCount)
	})

	t.Run("failed stream leaves nothing behind", func(t *testing.T) {
		store := setupTestStore(t)
		sum := strings.Repeat("ef", 32)
		broken := io.MultiReader(strings.NewReader("partial"), failingReader{})

		_, created, err := store.WriteIfAbsent(broken, sum, "jpg", uploadedAt)
		require.Error(t, err)
		assert.False(t, created)

		var writeErr *models.StorageWriteError
		assert.True(t, errors.As(err, &writeErr))

		_, found := store.Exists(sum)
		assert.False(t, found)

		dir := filepath.Join(store.Root(), "originals", "2024", "06", "ef")
		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries, "temp file should be removed")
	})
}

func TestContentStore_Exists(t *testing.T) {
	store := setupTestStore(t)
	content := []byte("exists check")
	sum := checksumOf(content)

	_, found := store.Exists(sum)
	assert.False(t, found)

	stored, _, err := store.WriteIfAbsent(bytes.NewReader(content), sum, "png", time.Now())
	require.NoError(t, err)

	p, found := store.Exists(sum)
	assert.True(t, found)
	assert.Equal(t, stored, p)
}

func TestContentStore_Open(t *testing.T) {
	store := setupTestStore(t)
	content := []byte("openable")
	sum := checksumOf(content)
	stored, _, err := store.WriteIfAbsent(bytes.NewReader(content), sum, "jpg", time.Now())
	require.NoError(t, err)

	t.Run("opens the original", func(t *testing.T) {
		f, err := store.Open(stored, VariantOriginal)
		require.NoError(t, err)
		defer f.Close()

		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("missing thumbnail is not found", func(t *testing.T) {
		_, err := store.Open(stored, "small")
		assert.ErrorIs(t, err, models.ErrContentNotFound)
	})

	t.Run("written thumbnail opens", func(t *testing.T) {
		_, err := store.WriteVariant(stored, "small", strings.NewReader("thumb"))
		require.NoError(t, err)

		f, err := store.Open(stored, "small")
		require.NoError(t, err)
		f.Close()
	})

	t.Run("unknown size is invalid", func(t *testing.T) {
		_, err := store.Open(stored, "gigantic")
		assert.ErrorIs(t, err, models.ErrInvalidVariant)
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		_, err := store.Open("../../etc/passwd", VariantOriginal)
		assert.ErrorIs(t, err, models.ErrPathTraversal)
	})
}

func TestContentStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	content := []byte("to be deleted")
	sum := checksumOf(content)
	stored, _, err := store.WriteIfAbsent(bytes.NewReader(content), sum, "jpg", time.Now())
	require.NoError(t, err)
	_, err = store.WriteVariant(stored, "medium", strings.NewReader("m"))
	require.NoError(t, err)

	report := store.Delete(stored)

	assert.Len(t, report.Removed, 2)
	assert.Len(t, report.Missing, 2)
	assert.Empty(t, report.Failed)
	assert.False(t, store.ExistsAt(stored))
}

func TestContentStore_AggregateStats(t *testing.T) {
	store := setupTestStore(t)

	for _, body := range []string{"one", "three"} {
		content := []byte(body)
		_, _, err := store.WriteIfAbsent(bytes.NewReader(content), checksumOf(content), "jpg", time.Now())
		require.NoError(t, err)
	}

	stats, err := store.AggregateStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ItemCount)
	assert.Equal(t, int64(8), stats.TotalBytes)

	assert.Equal(t, 1.5, StoreStats{TotalBytes: 1536 * 1024}.TotalSizeMB())
}
