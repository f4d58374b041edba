package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPhoto(t *testing.T, env *testEnv, ownerID string, content []byte) *models.PhotoRecord {
	t.Helper()

	sums := NewChecksumService().ComputeBytes(content)
	photo, err := models.NewPhotoRecord(ownerID, "seed.jpg", "originals/seed/"+sums.Primary+".jpg", sums.Primary, sums.Legacy, int64(len(content)), time.Now())
	require.NoError(t, err)
	require.NoError(t, env.photos.Create(context.Background(), photo))
	return photo
}

func TestPreCheckService_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("splits existing and new hashes", func(t *testing.T) {
		env := setupTestDB(t)
		owner := env.createUser(t, "a@example.com")
		svc := NewPreCheckService(env.photos, config.Default().PreCheck, nil)

		var hashes []string
		existing := map[string]string{}
		for i := 0; i < 10; i++ {
			content := []byte(fmt.Sprintf("photo %d", i))
			if i%3 == 0 {
				photo := seedPhoto(t, env, owner.ID, content)
				existing[photo.Checksum] = photo.ID
			}
			hashes = append(hashes, checksumOf(content))
		}
		require.Len(t, existing, 4)

		resp, err := svc.Check(ctx, owner.ID, hashes)
		require.NoError(t, err)

		assert.Equal(t, 10, resp.TotalChecked)
		assert.Equal(t, 4, resp.ExistingCount)
		assert.Equal(t, 6, resp.NewCount)
		assert.Len(t, resp.ExistingHashes, 4)
		for hash, id := range existing {
			assert.Equal(t, id, resp.ExistingPhotos[hash].ID)
		}
		assert.Equal(t, []string{hashes[0], hashes[3], hashes[6], hashes[9]}, resp.ExistingHashes)
	})

	t.Run("only sees the caller's active photos", func(t *testing.T) {
		env := setupTestDB(t)
		alice := env.createUser(t, "alice@example.com")
		bob := env.createUser(t, "bob@example.com")
		svc := NewPreCheckService(env.photos, config.Default().PreCheck, nil)

		mine := seedPhoto(t, env, alice.ID, []byte("mine"))
		theirs := seedPhoto(t, env, bob.ID, []byte("theirs"))
		gone := seedPhoto(t, env, alice.ID, []byte("gone"))
		_, err := env.photos.Tombstone(ctx, alice.ID, gone.ID, time.Now())
		require.NoError(t, err)

		resp, err := svc.Check(ctx, alice.ID, []string{mine.Checksum, theirs.Checksum, gone.Checksum})
		require.NoError(t, err)

		assert.Equal(t, []string{mine.Checksum}, resp.ExistingHashes)
		assert.Equal(t, 2, resp.NewCount)
	})

	t.Run("matches legacy hashes", func(t *testing.T) {
		env := setupTestDB(t)
		owner := env.createUser(t, "a@example.com")
		svc := NewPreCheckService(env.photos, config.Default().PreCheck, nil)

		photo := seedPhoto(t, env, owner.ID, []byte("from an old client"))

		resp, err := svc.Check(ctx, owner.ID, []string{"sha1:" + strings.ToUpper(photo.LegacyHash)})
		require.NoError(t, err)

		assert.Equal(t, 1, resp.ExistingCount)
		assert.Equal(t, photo.ID, resp.ExistingPhotos[photo.LegacyHash].ID)
	})

	t.Run("counts repeated hashes once", func(t *testing.T) {
		env := setupTestDB(t)
		owner := env.createUser(t, "a@example.com")
		svc := NewPreCheckService(env.photos, config.Default().PreCheck, nil)

		h := checksumOf([]byte("x"))
		resp, err := svc.Check(ctx, owner.ID, []string{h, strings.ToUpper(h), "sha256:" + h})
		require.NoError(t, err)

		assert.Equal(t, 1, resp.TotalChecked)
		assert.Equal(t, 1, resp.NewCount)
	})

	t.Run("rejects malformed requests", func(t *testing.T) {
		env := setupTestDB(t)
		owner := env.createUser(t, "a@example.com")
		svc := NewPreCheckService(env.photos, config.Default().PreCheck, nil)

		tooMany := make([]string, 51)
		for i := range tooMany {
			tooMany[i] = checksumOf([]byte(fmt.Sprint(i)))
		}

		tests := map[string][]string{
			"empty":       {},
			"too many":    tooMany,
			"not hex":     {strings.Repeat("zz", 32)},
			"wrong width": {"abc123"},
			"one bad":     {checksumOf([]byte("ok")), "nope"},
		}
		for name, hashes := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := svc.Check(ctx, owner.ID, hashes)
				assert.ErrorIs(t, err, models.ErrPrecheckMalformed)
			})
		}
	})
}
