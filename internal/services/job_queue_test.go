package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobQueue(t *testing.T) {
	t.Run("runs every enqueued job before Stop returns", func(t *testing.T) {
		q := NewJobQueue(config.Jobs{Workers: 3, QueueSize: 32, JobTimeoutSeconds: 5}, nil)

		var mu sync.Mutex
		seen := map[JobKind][]string{}
		for _, kind := range NewPhotoJobs {
			kind := kind
			q.Register(kind, func(ctx context.Context, photoID string) error {
				mu.Lock()
				defer mu.Unlock()
				seen[kind] = append(seen[kind], photoID)
				return nil
			})
		}

		q.Start(context.Background())
		for _, id := range []string{"p1", "p2"} {
			for _, kind := range NewPhotoJobs {
				require.NoError(t, q.Enqueue(context.Background(), kind, id))
			}
		}
		q.Stop()

		for _, kind := range NewPhotoJobs {
			assert.ElementsMatch(t, []string{"p1", "p2"}, seen[kind], string(kind))
		}
	})

	t.Run("full buffer returns ErrQueueFull", func(t *testing.T) {
		q := NewJobQueue(config.Jobs{Workers: 1, QueueSize: 1}, nil)

		require.NoError(t, q.Enqueue(context.Background(), JobMetadata, "a"))
		err := q.Enqueue(context.Background(), JobMetadata, "b")
		assert.ErrorIs(t, err, ErrQueueFull)
		assert.Equal(t, 1, q.Pending())
	})

	t.Run("stopped queue refuses jobs", func(t *testing.T) {
		q := NewJobQueue(config.Jobs{Workers: 1, QueueSize: 4}, nil)
		q.Start(context.Background())
		q.Stop()

		err := q.Enqueue(context.Background(), JobThumbnail, "a")
		assert.ErrorIs(t, err, ErrQueueStopped)
	})

	t.Run("failing and panicking handlers do not stop the workers", func(t *testing.T) {
		q := NewJobQueue(config.Jobs{Workers: 1, QueueSize: 8}, nil)

		var done atomic.Int32
		q.Register(JobMetadata, func(ctx context.Context, photoID string) error {
			return errors.New("corrupt exif")
		})
		q.Register(JobThumbnail, func(ctx context.Context, photoID string) error {
			panic("decoder exploded")
		})
		q.Register(JobFaceDetection, func(ctx context.Context, photoID string) error {
			done.Add(1)
			return nil
		})

		q.Start(context.Background())
		require.NoError(t, q.Enqueue(context.Background(), JobMetadata, "a"))
		require.NoError(t, q.Enqueue(context.Background(), JobThumbnail, "a"))
		require.NoError(t, q.Enqueue(context.Background(), JobFaceDetection, "a"))
		q.Stop()

		assert.Equal(t, int32(1), done.Load())
	})
}
