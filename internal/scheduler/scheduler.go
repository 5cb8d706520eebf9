// Package scheduler runs a poll task immediately and then at a fixed interval.
package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/buildwatch/internal/logfields"
)

// ErrAlreadyRunning is returned by Start on a scheduler that is already running.
var ErrAlreadyRunning = stderrors.New("scheduler already running")

// Task is one unit of scheduled work. Its error is logged, never propagated.
type Task func(ctx context.Context) error

// Scheduler owns a gocron scheduler with a single interval job.
// Each monitor gets its own Scheduler.
type Scheduler struct {
	name     string
	interval time.Duration
	task     Task
	logger   *slog.Logger

	scheduler gocron.Scheduler

	mu      sync.Mutex
	running bool
	gen     uint64 // bumped by Stop; a Start arms its job only if unchanged
	job     gocron.Job
	runs    int
}

// New creates a stopped scheduler for task. name identifies the monitored server in logs.
func New(name string, interval time.Duration, task Task) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	if task == nil {
		return nil, fmt.Errorf("task is required")
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	s.Start()

	return &Scheduler{
		name:      name,
		interval:  interval,
		task:      task,
		logger:    slog.Default().With(logfields.Server(name)),
		scheduler: s,
	}, nil
}

// Start runs the task once synchronously and then every interval. A tick that
// falls while the previous run is still going is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	gen := s.gen
	s.mu.Unlock()

	s.run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// Stopped while the first run was in flight.
		return nil
	}
	tickCtx := context.WithoutCancel(ctx)
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.run(tickCtx) }),
		gocron.WithName(s.name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.running = false
		return fmt.Errorf("failed to schedule poll job: %w", err)
	}
	s.job = job
	s.logger.InfoContext(ctx, "Scheduled polling", slog.Duration("interval", s.interval))
	return nil
}

// Stop cancels future ticks. A run already in progress completes.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.gen++
	if s.job == nil {
		return nil
	}
	err := s.scheduler.RemoveJob(s.job.ID())
	s.job = nil
	if err != nil && !stderrors.Is(err, gocron.ErrJobNotFound) {
		return fmt.Errorf("failed to remove poll job: %w", err)
	}
	return nil
}

// Restart stops the scheduler and starts it again, resetting the tick phase.
func (s *Scheduler) Restart(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start(ctx)
}

// Shutdown stops the scheduler for good and waits for running tasks.
func (s *Scheduler) Shutdown() error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.scheduler.Shutdown()
}

// Running reports whether ticks are armed or the first run is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Runs returns the number of completed task runs.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// NextRun returns the time of the next tick, if one is armed.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return time.Time{}, false
	}
	next, err := job.NextRun()
	if err != nil || next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "Poll task panicked", slog.Any("panic", r))
		}
		s.mu.Lock()
		s.runs++
		s.mu.Unlock()
	}()
	if err := s.task(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Poll cycle failed", logfields.Error(err))
	}
}
