package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/observability"
	"github.com/ravin1227/photonix-sub000/internal/repository"
)

const maintenanceBatchSize = 50

// MaintenanceStatus reports the last requeue sweep
type MaintenanceStatus struct {
	Running          bool      `json:"running"`
	LastRun          time.Time `json:"last_run,omitempty"`
	LastRunDuration  string    `json:"last_run_duration,omitempty"`
	Requeued         int       `json:"requeued"`
	Errors           []string  `json:"errors,omitempty"`
	NextScheduledRun time.Time `json:"next_scheduled_run,omitempty"`
}

// MaintenanceService re-enqueues processing for photos whose jobs were lost
// or failed. The job queue is in memory, so a restart or a full queue leaves
// records pending.
type MaintenanceService struct {
	photos     repository.PhotoRepo
	jobs       JobEnqueuer
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
	logger     *observability.Logger

	mu      sync.RWMutex
	running bool
	status  MaintenanceStatus
}

// NewMaintenanceService creates a new MaintenanceService
func NewMaintenanceService(photos repository.PhotoRepo, jobs JobEnqueuer, cfg config.Jobs) *MaintenanceService {
	return &MaintenanceService{
		photos:     photos,
		jobs:       jobs,
		interval:   time.Duration(cfg.MaintenanceIntervalMinutes) * time.Minute,
		staleAfter: time.Duration(cfg.RequeueAfterMinutes) * time.Minute,
		now:        time.Now,
		logger:     observability.GetLogger().WithField("component", "maintenance"),
	}
}

// Start runs a sweep now and then on every interval until ctx is done.
// A zero interval disables the loop.
func (s *MaintenanceService) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Maintenance disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Infof("Maintenance running every %s", s.interval)
		for {
			s.setNextRun(s.now().Add(s.interval))
			s.RunNow(ctx)

			select {
			case <-ctx.Done():
				s.logger.Info("Maintenance stopped")
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *MaintenanceService) setNextRun(t time.Time) {
	s.mu.Lock()
	s.status.NextScheduledRun = t
	s.mu.Unlock()
}

// GetStatus returns the current maintenance status
func (s *MaintenanceService) GetStatus() MaintenanceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// RunNow performs one sweep and returns its status. A sweep already in
// progress is not doubled.
func (s *MaintenanceService) RunNow(ctx context.Context) MaintenanceStatus {
	s.mu.Lock()
	if s.running {
		status := s.status
		s.mu.Unlock()
		return status
	}
	s.running = true
	s.status.Running = true
	s.mu.Unlock()

	start := s.now()
	requeued, errs := s.requeueStale(ctx, start.Add(-s.staleAfter))
	duration := s.now().Sub(start)

	s.mu.Lock()
	s.running = false
	s.status.Running = false
	s.status.LastRun = start
	s.status.LastRunDuration = duration.Round(time.Millisecond).String()
	s.status.Requeued = requeued
	s.status.Errors = errs
	status := s.status
	s.mu.Unlock()

	if requeued > 0 || len(errs) > 0 {
		s.logger.WithFields(map[string]interface{}{
			"requeued": requeued,
			"errors":   len(errs),
		}).Info("Maintenance sweep finished")
	}
	return status
}

func (s *MaintenanceService) requeueStale(ctx context.Context, cutoff time.Time) (int, []string) {
	var errs []string
	requeued := 0

	for _, status := range []models.ProcessingStatus{models.StatusPending, models.StatusFailed} {
		photos, err := s.photos.ListByStatus(ctx, status, cutoff, maintenanceBatchSize)
		if err != nil {
			errs = append(errs, fmt.Sprintf("list %s photos: %v", status, err))
			continue
		}

		for _, photo := range photos {
			if err := s.requeue(ctx, photo); err != nil {
				errs = append(errs, err.Error())
				if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueStopped) {
					return requeued, errs
				}
				continue
			}
			requeued++
		}
	}
	return requeued, errs
}

// requeue resets photo to pending and enqueues every processing job again
func (s *MaintenanceService) requeue(ctx context.Context, photo *models.PhotoRecord) error {
	if photo.ProcessingStatus != models.StatusPending {
		if err := s.photos.UpdateStatus(ctx, photo.ID, models.StatusPending); err != nil {
			return fmt.Errorf("reset %s: %w", photo.ID, err)
		}
	}
	for _, kind := range NewPhotoJobs {
		if err := s.jobs.Enqueue(ctx, kind, photo.ID); err != nil {
			return fmt.Errorf("enqueue %s for %s: %w", kind, photo.ID, err)
		}
	}
	return nil
}
