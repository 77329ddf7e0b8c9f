package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/service"
	"github.com/vidyahq/fees-api/pkg/config"
)

type lockerStub struct {
	denied   bool
	err      error
	acquired []string
	released []string
}

func (s *lockerStub) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.denied {
		return false, nil
	}
	s.acquired = append(s.acquired, key)
	return true, nil
}

func (s *lockerStub) ReleaseLock(ctx context.Context, key string) {
	s.released = append(s.released, key)
}

type sweepRunnerStub struct {
	calls int
	days  []time.Time
	err   error
}

func (s *sweepRunnerStub) RunSweep(ctx context.Context, today time.Time) (*models.SweepSummary, error) {
	s.calls++
	s.days = append(s.days, today)
	if s.err != nil {
		return nil, s.err
	}
	return &models.SweepSummary{Date: today.Format("2006-01-02"), Sent: 2}, nil
}

type feeGeneratorStub struct {
	calls int
	reqs  []service.GenerateRequest
}

func (s *feeGeneratorStub) GenerateMonthlyFees(ctx context.Context, req service.GenerateRequest) (*models.GenerationSummary, error) {
	s.calls++
	s.reqs = append(s.reqs, req)
	return &models.GenerationSummary{Year: req.Year, Month: req.Month, Created: 10}, nil
}

type reportCleanerStub struct {
	calls int
}

func (s *reportCleanerStub) Cleanup(ttl time.Duration) (int, error) {
	s.calls++
	return 0, nil
}

type jobObserverStub struct {
	jobs []string
}

func (s *jobObserverStub) ObserveJob(job string, duration time.Duration) {
	s.jobs = append(s.jobs, job)
}

func schedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:        true,
		ReminderHour:   9,
		GenerationDay:  1,
		GenerationHour: 6,
		LockTTL:        10 * time.Minute,
	}
}

func newTestScheduler(clock func() time.Time, sweeps *sweepRunnerStub, gens *feeGeneratorStub, cleaner reportCleaner, locks *lockerStub, observer jobObserver) *Scheduler {
	return New(schedulerConfig(), sweeps, gens, cleaner, time.Hour, locks, observer, clock, nil)
}

func TestEvaluateRunsSweepOnceADay(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	sweeps := &sweepRunnerStub{}
	locks := &lockerStub{}
	observer := &jobObserverStub{}
	s := newTestScheduler(func() time.Time { return now }, sweeps, &feeGeneratorStub{}, nil, locks, observer)

	s.evaluate(context.Background())
	s.evaluate(context.Background())

	assert.Equal(t, 1, sweeps.calls)
	require.Len(t, sweeps.days, 1)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), sweeps.days[0])
	assert.Contains(t, locks.acquired, LockKeySweep)
	assert.Contains(t, locks.released, LockKeySweep)
	assert.Contains(t, observer.jobs, JobReminderSweep)
}

func TestEvaluateFiresAgainNextDay(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	sweeps := &sweepRunnerStub{}
	s := newTestScheduler(func() time.Time { return now }, sweeps, &feeGeneratorStub{}, nil, &lockerStub{}, nil)

	s.evaluate(context.Background())
	now = now.AddDate(0, 0, 1)
	s.evaluate(context.Background())

	assert.Equal(t, 2, sweeps.calls)
}

func TestEvaluateLateStartStillFires(t *testing.T) {
	// Well past the scheduled hour: the job still runs that day.
	now := time.Date(2024, 1, 15, 22, 45, 0, 0, time.UTC)
	sweeps := &sweepRunnerStub{}
	s := newTestScheduler(func() time.Time { return now }, sweeps, &feeGeneratorStub{}, nil, &lockerStub{}, nil)

	s.evaluate(context.Background())
	assert.Equal(t, 1, sweeps.calls)
}

func TestEvaluateBeforeScheduledHourDoesNothing(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 59, 0, 0, time.UTC)
	sweeps := &sweepRunnerStub{}
	s := newTestScheduler(func() time.Time { return now }, sweeps, &feeGeneratorStub{}, nil, &lockerStub{}, nil)

	s.evaluate(context.Background())
	assert.Equal(t, 0, sweeps.calls)
}

func TestEvaluateGenerationOnlyOnConfiguredDay(t *testing.T) {
	gens := &feeGeneratorStub{}
	now := time.Date(2024, 2, 1, 6, 5, 0, 0, time.UTC)
	s := newTestScheduler(func() time.Time { return now }, &sweepRunnerStub{}, gens, nil, &lockerStub{}, nil)

	s.evaluate(context.Background())
	require.Equal(t, 1, gens.calls)
	assert.Equal(t, service.GenerateRequest{Year: 2024, Month: 2}, gens.reqs[0])

	// The 2nd of the month is not a generation day.
	now = time.Date(2024, 2, 2, 6, 5, 0, 0, time.UTC)
	s.evaluate(context.Background())
	assert.Equal(t, 1, gens.calls)
}

func TestEvaluateSkipsWhenLockHeldElsewhere(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	sweeps := &sweepRunnerStub{}
	s := newTestScheduler(func() time.Time { return now }, sweeps, &feeGeneratorStub{}, nil, &lockerStub{denied: true}, nil)

	s.evaluate(context.Background())

	// The other instance's run counts as done for today.
	assert.Equal(t, 0, sweeps.calls)
	s.evaluate(context.Background())
	assert.Equal(t, 0, sweeps.calls)
}

func TestEvaluateRecordsFailedRun(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	sweeps := &sweepRunnerStub{err: errors.New("db unavailable")}
	s := newTestScheduler(func() time.Time { return now }, sweeps, &feeGeneratorStub{}, nil, &lockerStub{}, nil)

	s.evaluate(context.Background())

	runs := s.Status()
	require.NotEmpty(t, runs)
	var sweepRun *JobRun
	for i := range runs {
		if runs[i].Job == JobReminderSweep {
			sweepRun = &runs[i]
		}
	}
	require.NotNil(t, sweepRun)
	assert.False(t, sweepRun.Succeeded)
	assert.Contains(t, sweepRun.Error, "db unavailable")
}

func TestEvaluateCleanupRuns(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	cleaner := &reportCleanerStub{}
	s := newTestScheduler(func() time.Time { return now }, &sweepRunnerStub{}, &feeGeneratorStub{}, cleaner, &lockerStub{}, nil)

	s.evaluate(context.Background())
	assert.Equal(t, 1, cleaner.calls)
}

func TestStartDisabledIsNoop(t *testing.T) {
	cfg := schedulerConfig()
	cfg.Enabled = false
	s := New(cfg, &sweepRunnerStub{}, &feeGeneratorStub{}, nil, time.Hour, &lockerStub{}, nil, nil, nil)

	s.Start(context.Background())
	s.Stop()
}
