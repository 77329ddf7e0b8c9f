package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/service"
	"github.com/vidyahq/fees-api/pkg/config"
)

// Lock keys serializing job runs across instances. LockKeySweep and
// LockKeyGeneration are shared with the HTTP triggers so a manual run
// and a scheduled run never overlap.
const (
	LockKeySweep      = "fees:lock:reminder_sweep"
	LockKeyGeneration = "fees:lock:fee_generation"
	lockKeyCleanup    = "fees:lock:report_cleanup"
)

// Job names used in status reporting and metrics.
const (
	JobReminderSweep = "reminder_sweep"
	JobFeeGeneration = "fee_generation"
	JobReportCleanup = "report_cleanup"
)

type runLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string)
}

type sweepRunner interface {
	RunSweep(ctx context.Context, today time.Time) (*models.SweepSummary, error)
}

type feeGenerator interface {
	GenerateMonthlyFees(ctx context.Context, req service.GenerateRequest) (*models.GenerationSummary, error)
}

type reportCleaner interface {
	Cleanup(ttl time.Duration) (int, error)
}

type jobObserver interface {
	ObserveJob(job string, duration time.Duration)
}

// JobRun is the last recorded outcome of a scheduled job.
type JobRun struct {
	Job       string      `json:"job"`
	RanAt     time.Time   `json:"ran_at"`
	Duration  string      `json:"duration"`
	Succeeded bool        `json:"succeeded"`
	Error     string      `json:"error,omitempty"`
	Result    interface{} `json:"result,omitempty"`
}

// Scheduler drives the calendar-based jobs: the daily reminder sweep, the
// monthly fee generation, and report cleanup. A Redis lock keeps multiple
// instances from running the same job concurrently; runs are tracked per
// calendar day so a late start still fires that day's jobs.
type Scheduler struct {
	cfg       config.SchedulerConfig
	reminders sweepRunner
	fees      feeGenerator
	reports   reportCleaner
	reportTTL time.Duration
	locks     runLocker
	metrics   jobObserver
	clock     func() time.Time
	logger    *zap.Logger

	tick   time.Duration
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lastDay map[string]string
	runs    map[string]JobRun
}

// New constructs the scheduler.
func New(cfg config.SchedulerConfig, reminders sweepRunner, fees feeGenerator, reports reportCleaner, reportTTL time.Duration, locks runLocker, metrics jobObserver, clock func() time.Time, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if reportTTL <= 0 {
		reportTTL = 7 * 24 * time.Hour
	}
	return &Scheduler{
		cfg:       cfg,
		reminders: reminders,
		fees:      fees,
		reports:   reports,
		reportTTL: reportTTL,
		locks:     locks,
		metrics:   metrics,
		clock:     clock,
		logger:    logger,
		tick:      time.Minute,
		lastDay:   make(map[string]string),
		runs:      make(map[string]JobRun),
	}
}

// Start launches the tick loop. It is a no-op when scheduling is disabled.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Sugar().Infow("scheduler disabled")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Sugar().Infow("scheduler started",
		"reminder_hour", s.cfg.ReminderHour, "generation_day", s.cfg.GenerationDay, "generation_hour", s.cfg.GenerationHour)
}

// Stop halts the loop and waits for an in-flight job to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped")
}

// Status returns the last run of every job that has fired.
func (s *Scheduler) Status() []JobRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobRun, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	return out
}

// NextRuns reports when each job will next fire, relative to the injected
// clock.
func (s *Scheduler) NextRuns() map[string]time.Time {
	now := s.clock()
	day := now.Format("2006-01-02")

	next := make(map[string]time.Time, 3)

	sweepAt := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.ReminderHour, 0, 0, 0, time.UTC)
	if now.Hour() >= s.cfg.ReminderHour || !s.shouldRun(JobReminderSweep, day) {
		sweepAt = sweepAt.AddDate(0, 0, 1)
	}
	next[JobReminderSweep] = sweepAt
	next[JobReportCleanup] = sweepAt

	genAt := time.Date(now.Year(), now.Month(), s.cfg.GenerationDay, s.cfg.GenerationHour, 0, 0, 0, time.UTC)
	if !genAt.After(now) {
		genAt = genAt.AddDate(0, 1, 0)
	}
	next[JobFeeGeneration] = genAt
	return next
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evaluate(ctx)
		}
	}
}

// evaluate fires every job whose scheduled time has passed and which has not
// yet run today.
func (s *Scheduler) evaluate(ctx context.Context) {
	now := s.clock()
	day := now.Format("2006-01-02")

	if now.Hour() >= s.cfg.ReminderHour && s.shouldRun(JobReminderSweep, day) {
		s.run(ctx, JobReminderSweep, LockKeySweep, day, func(ctx context.Context) (interface{}, error) {
			return s.reminders.RunSweep(ctx, dateOf(now))
		})
	}

	if now.Day() == s.cfg.GenerationDay && now.Hour() >= s.cfg.GenerationHour && s.shouldRun(JobFeeGeneration, day) {
		s.run(ctx, JobFeeGeneration, LockKeyGeneration, day, func(ctx context.Context) (interface{}, error) {
			return s.fees.GenerateMonthlyFees(ctx, service.GenerateRequest{Year: now.Year(), Month: int(now.Month())})
		})
	}

	if s.reports != nil && now.Hour() >= s.cfg.ReminderHour && s.shouldRun(JobReportCleanup, day) {
		s.run(ctx, JobReportCleanup, lockKeyCleanup, day, func(ctx context.Context) (interface{}, error) {
			deleted, err := s.reports.Cleanup(s.reportTTL)
			return map[string]int{"deleted": deleted}, err
		})
	}
}

func (s *Scheduler) shouldRun(job, day string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDay[job] != day
}

func (s *Scheduler) run(ctx context.Context, job, lockKey, day string, fn func(context.Context) (interface{}, error)) {
	// Mark the day before acquiring the lock: a lost lock race means another
	// instance ran the job, which counts as done for this instance too.
	s.mu.Lock()
	s.lastDay[job] = day
	s.mu.Unlock()

	acquired, err := s.locks.AcquireLock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		s.logger.Sugar().Errorw("failed to acquire job lock", "job", job, "error", err)
		return
	}
	if !acquired {
		s.logger.Sugar().Infow("job already running elsewhere", "job", job)
		return
	}
	defer s.locks.ReleaseLock(ctx, lockKey)

	start := s.clock()
	result, err := fn(ctx)
	elapsed := s.clock().Sub(start)
	if s.metrics != nil {
		s.metrics.ObserveJob(job, elapsed)
	}

	run := JobRun{Job: job, RanAt: start, Duration: elapsed.String(), Succeeded: err == nil, Result: result}
	if err != nil {
		run.Error = err.Error()
		s.logger.Sugar().Errorw("scheduled job failed", "job", job, "error", err)
	} else {
		s.logger.Sugar().Infow("scheduled job finished", "job", job, "duration", elapsed.String())
	}

	s.mu.Lock()
	s.runs[job] = run
	s.mu.Unlock()
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
