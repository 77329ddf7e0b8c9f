package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/repository"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
)

const statsCacheKey = "fees:reminder_stats"

type reminderStatsSource interface {
	Stats(ctx context.Context, now time.Time) (*models.ReminderStats, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ReminderStatsService serves reminder effectiveness aggregates with a short
// redis cache in front of the aggregate query.
type ReminderStatsService struct {
	reminders reminderStatsSource
	cache     statsCache
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewReminderStatsService constructs the stats service.
func NewReminderStatsService(reminders reminderStatsSource, cache statsCache, ttl time.Duration, now func() time.Time, logger *zap.Logger) *ReminderStatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ReminderStatsService{reminders: reminders, cache: cache, ttl: ttl, now: now, logger: logger}
}

// Stats returns effectiveness aggregates, cached.
func (s *ReminderStatsService) Stats(ctx context.Context) (*models.ReminderStats, error) {
	if s.cache != nil {
		var cached models.ReminderStats
		err := s.cache.Get(ctx, statsCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Sugar().Warnw("reminder stats cache read failed", "error", err)
		}
	}

	stats, err := s.reminders.Stats(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute reminder stats")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.ttl); err != nil {
			s.logger.Sugar().Warnw("reminder stats cache write failed", "error", err)
		}
	}
	return stats, nil
}

// Invalidate drops the cached aggregate, used after sweeps.
func (s *ReminderStatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		s.logger.Sugar().Warnw("reminder stats cache invalidation failed", "error", err)
	}
}
