package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fbadmin/internal/admin"
	"fbadmin/internal/testutil"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.waiters = append(c.waiters, waiter{at: c.now.Add(d), ch: ch})
	return ch
}

// deadlines returns the times callers are waiting for
func (c *fakeClock) deadlines() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Time
	for _, w := range c.waiters {
		out = append(out, w.at)
	}
	return out
}

// AdvanceTo moves the clock and fires every due waiter
func (c *fakeClock) AdvanceTo(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(t) {
			w.ch <- t
			continue
		}
		pending = append(pending, w)
	}
	c.waiters = pending
}

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "weekly_email" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

// Sunday 2024-01-07 14:00 UTC
var sundayAfternoon = time.Date(2024, 1, 7, 14, 0, 0, 0, time.UTC)

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every sunday", &countingJob{}, nil, testutil.NopLogger{}, testutil.MockMetrics())
	assert.ErrorIs(t, err, admin.ErrConfigurationError)
}

func TestScheduler_Next(t *testing.T) {
	clock := newFakeClock(sundayAfternoon)
	s, err := New("30 14 * * SUN", &countingJob{}, clock, testutil.NopLogger{}, testutil.MockMetrics())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 7, 14, 30, 0, 0, time.UTC), s.Next())

	clock.AdvanceTo(time.Date(2024, 1, 7, 14, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 1, 14, 14, 30, 0, 0, time.UTC), s.Next())
}

func TestScheduler_RunFiresWeekly(t *testing.T) {
	clock := newFakeClock(sundayAfternoon)
	job := &countingJob{}
	metrics := testutil.MockMetrics()
	metrics.On("IncJobRuns", "weekly_email", admin.OutcomeSuccess).Twice()

	s, err := New("30 14 * * SUN", job, clock, testutil.NopLogger{}, metrics)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	firstRun := time.Date(2024, 1, 7, 14, 30, 0, 0, time.UTC)
	require.Eventually(t, func() bool {
		d := clock.deadlines()
		return len(d) == 1 && d[0].Equal(firstRun)
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, s.Health(ctx))

	clock.AdvanceTo(firstRun)
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	secondRun := time.Date(2024, 1, 14, 14, 30, 0, 0, time.UTC)
	require.Eventually(t, func() bool {
		d := clock.deadlines()
		return len(d) == 1 && d[0].Equal(secondRun)
	}, time.Second, 5*time.Millisecond)

	clock.AdvanceTo(secondRun)
	require.Eventually(t, func() bool { return job.runs.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Error(t, s.Health(context.Background()))
	metrics.AssertExpectations(t)
}

func TestScheduler_FailedRunIsNotRetried(t *testing.T) {
	clock := newFakeClock(sundayAfternoon)
	job := &countingJob{err: errors.New("database unavailable")}
	metrics := testutil.MockMetrics()
	metrics.On("IncJobRuns", "weekly_email", admin.OutcomeFailure).Once()

	s, err := New("30 14 * * SUN", job, clock, testutil.NopLogger{}, metrics)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(clock.deadlines()) == 1 }, time.Second, 5*time.Millisecond)
	clock.AdvanceTo(time.Date(2024, 1, 7, 14, 30, 0, 0, time.UTC))

	require.Eventually(t, func() bool {
		d := clock.deadlines()
		return len(d) == 1 && d[0].Equal(time.Date(2024, 1, 14, 14, 30, 0, 0, time.UTC))
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	id, at, lastErr := s.LastRun()
	assert.NotEmpty(t, id)
	assert.Equal(t, time.Date(2024, 1, 7, 14, 30, 0, 0, time.UTC), at)
	assert.EqualError(t, lastErr, "database unavailable")
	metrics.AssertExpectations(t)
}

func TestScheduler_RunOnceUsesNewRunIDs(t *testing.T) {
	logger := testutil.MockLogger()
	runLogger := testutil.MockLogger()
	logger.On("With", []any{"job", "weekly_email"}).Return(logger)
	logger.On("With", mock.MatchedBy(func(kv []any) bool { return len(kv) == 2 && kv[0] == "run_id" })).Return(runLogger)
	runLogger.On("Info", mock.Anything).Maybe()
	runLogger.On("Info", mock.Anything, mock.Anything, mock.Anything).Maybe()

	s, err := New("@daily", &countingJob{}, newFakeClock(sundayAfternoon), logger, testutil.MockMetrics().AllowAll())
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	first, _, _ := s.LastRun()
	require.NoError(t, s.RunOnce(context.Background()))
	second, _, _ := s.LastRun()

	assert.NotEqual(t, first, second)
	assert.Equal(t, "scheduler_weekly_email", s.Name())
}
