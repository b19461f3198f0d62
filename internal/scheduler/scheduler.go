// Package scheduler runs a job on a cron schedule with an injectable clock.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"fbadmin/internal/admin"
)

// Clock is the time source of a Scheduler
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

// Job is the unit of work a Scheduler runs
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler fires a job at every activation of a cron schedule. Runs never
// overlap and failed runs are not retried.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	job      Job
	clock    Clock
	logger   admin.Logger
	metrics  admin.Metrics

	running atomic.Bool
	lastRun atomic.Pointer[runResult]
}

type runResult struct {
	id  string
	at  time.Time
	err error
}

// New parses spec (standard five-field cron, CRON_TZ= prefix allowed) and
// creates a scheduler for job
func New(spec string, job Job, clock Clock, logger admin.Logger, metrics admin.Metrics) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cron expression %q: %v", admin.ErrConfigurationError, spec, err)
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Scheduler{
		spec:     spec,
		schedule: schedule,
		job:      job,
		clock:    clock,
		logger:   logger.With("job", job.Name()),
		metrics:  metrics,
	}, nil
}

// Next returns the next activation after now
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(s.clock.Now())
}

// Run waits for each activation and runs the job until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)

	for {
		next := s.Next()
		if next.IsZero() {
			return fmt.Errorf("%w: cron expression %q never fires", admin.ErrConfigurationError, s.spec)
		}
		s.logger.Info("next run scheduled", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(next.Sub(s.clock.Now())):
		}

		_ = s.RunOnce(ctx)
	}
}

// RunOnce runs the job now and records the outcome
func (s *Scheduler) RunOnce(ctx context.Context) error {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	start := s.clock.Now()

	logger.Info("job started")
	err := s.job.Run(ctx)
	s.lastRun.Store(&runResult{id: runID, at: start, err: err})

	if err != nil {
		s.metrics.IncJobRuns(s.job.Name(), admin.OutcomeFailure)
		logger.Error("job failed", "error", err)
		return err
	}
	s.metrics.IncJobRuns(s.job.Name(), admin.OutcomeSuccess)
	logger.Info("job finished", "duration", s.clock.Now().Sub(start).String())
	return nil
}

// LastRun returns the ID, start time and error of the most recent run
func (s *Scheduler) LastRun() (string, time.Time, error) {
	last := s.lastRun.Load()
	if last == nil {
		return "", time.Time{}, nil
	}
	return last.id, last.at, last.err
}

// Name identifies the scheduler in health reports
func (s *Scheduler) Name() string {
	return "scheduler_" + s.job.Name()
}

// Health fails when the loop is not running. A failed last run is reported
// only in logs.
func (s *Scheduler) Health(context.Context) error {
	if !s.running.Load() {
		return errors.New("scheduler is not running")
	}
	return nil
}
