// Package jobs runs periodic background work next to the HTTP server.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of periodic background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs every job once at start and then on a fixed interval.
// A job never overlaps with another execution.
type Scheduler struct {
	logger   *slog.Logger
	interval time.Duration
	jobs     []Job

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool
}

// NewScheduler creates a scheduler. An interval of zero or less disables it.
func NewScheduler(logger *slog.Logger, interval time.Duration, jobs ...Job) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:   logger,
		interval: interval,
		jobs:     jobs,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(job Job) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", job.Name()))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", job.Name()),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
	}
}

// Start begins all background jobs (implements cartridge.BackgroundWorker).
func (s *Scheduler) Start() error {
	if s.interval <= 0 || len(s.jobs) == 0 {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}
	s.isRunning = true

	for _, job := range s.jobs {
		s.logger.Info("Starting background job",
			slog.String("job", job.Name()),
			slog.Duration("interval", s.interval))

		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()

			s.executeJobSafely(job)
			for {
				select {
				case <-ticker.C:
					s.executeJobSafely(job)
				case <-s.ctx.Done():
					s.logger.Info("Background job stopped", slog.String("job", job.Name()))
					return
				}
			}
		}(job)
	}
	return nil
}

// Stop halts all background jobs and waits for running executions to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.isRunning = false
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}
