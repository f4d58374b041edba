package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/observability"
)

// JobKind names a piece of downstream work on a new photo
type JobKind string

const (
	JobMetadata      JobKind = "metadata"
	JobThumbnail     JobKind = "thumbnail"
	JobFaceDetection JobKind = "face_detection"
)

// NewPhotoJobs is enqueued once per newly created record
var NewPhotoJobs = []JobKind{JobMetadata, JobThumbnail, JobFaceDetection}

var (
	ErrQueueFull    = errors.New("job queue is full")
	ErrQueueStopped = errors.New("job queue is stopped")
)

// JobEnqueuer accepts downstream work by photo id
type JobEnqueuer interface {
	Enqueue(ctx context.Context, kind JobKind, photoID string) error
}

// JobHandler processes one job
type JobHandler func(ctx context.Context, photoID string) error

// Job is a queued unit of work
type Job struct {
	Kind       JobKind
	PhotoID    string
	EnqueuedAt time.Time
}

// JobQueue is an in-process worker pool fed by a buffered channel.
// Jobs are not persisted and not retried.
type JobQueue struct {
	jobs     chan Job
	handlers map[JobKind]JobHandler
	workers  int
	timeout  time.Duration
	metrics  *observability.IngestionMetrics
	logger   *observability.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewJobQueue creates a JobQueue sized by cfg
func NewJobQueue(cfg config.Jobs, metrics *observability.IngestionMetrics) *JobQueue {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	timeout := time.Duration(cfg.JobTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &JobQueue{
		jobs:     make(chan Job, size),
		handlers: make(map[JobKind]JobHandler),
		workers:  workers,
		timeout:  timeout,
		metrics:  metrics,
		logger:   observability.WithField("component", "job_queue"),
	}
}

// Register sets the handler for kind. It must be called before Start.
func (q *JobQueue) Register(kind JobKind, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = handler
}

// Enqueue adds a job without blocking
func (q *JobQueue) Enqueue(ctx context.Context, kind JobKind, photoID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrQueueStopped
	}

	select {
	case q.jobs <- Job{Kind: kind, PhotoID: photoID, EnqueuedAt: time.Now()}:
		return nil
	default:
		return fmt.Errorf("%w: %s for photo %s", ErrQueueFull, kind, photoID)
	}
}

// Pending returns the number of queued jobs
func (q *JobQueue) Pending() int {
	return len(q.jobs)
}

// Start launches the workers. Jobs run under ctx.
func (q *JobQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.logger.Infof("Started %d job workers", q.workers)
}

// Stop refuses new jobs, lets the workers drain the queue and waits for them
func (q *JobQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *JobQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.run(ctx, job)
	}
	q.logger.Debugf("Job worker %d exited", id)
}

func (q *JobQueue) run(ctx context.Context, job Job) {
	q.mu.RLock()
	handler, ok := q.handlers[job.Kind]
	q.mu.RUnlock()

	log := q.logger.WithFields(map[string]interface{}{
		"job_kind": job.Kind,
		"photo_id": job.PhotoID,
	})
	if !ok {
		log.Warn("No handler registered for job")
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	jobCtx, span := observability.StartServiceSpan(jobCtx, "JobQueue", string(job.Kind))
	span.SetAttributes(observability.PhotoID(job.PhotoID), observability.JobKind(string(job.Kind)))
	defer span.End()

	start := time.Now()
	err := safeRun(jobCtx, handler, job.PhotoID)
	span.SetAttributes(observability.Duration(time.Since(start)))
	q.metrics.RecordJob(jobCtx, string(job.Kind), err == nil)

	if err != nil {
		observability.RecordError(span, err)
		log.WithError(err).Error("Job failed")
		return
	}
	observability.SetSuccess(span)
	log.Debugf("Job completed in %s", time.Since(start))
}

func safeRun(ctx context.Context, handler JobHandler, photoID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(ctx, photoID)
}
