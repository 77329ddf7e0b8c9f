package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/repository"
)

type statsSourceStub struct {
	stats *models.ReminderStats
	calls int
	err   error
}

func (s *statsSourceStub) Stats(ctx context.Context, now time.Time) (*models.ReminderStats, error) {
	s.calls++
	return s.stats, s.err
}

type statsCacheStub struct {
	entries map[string][]byte
	sets    int
	deletes int
}

func newStatsCacheStub() *statsCacheStub {
	return &statsCacheStub{entries: make(map[string][]byte)}
}

func (s *statsCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.entries[key]
	if !ok {
		return repository.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *statsCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = raw
	s.sets++
	return nil
}

func (s *statsCacheStub) Delete(ctx context.Context, key string) error {
	delete(s.entries, key)
	s.deletes++
	return nil
}

func TestReminderStatsCacheMissThenHit(t *testing.T) {
	source := &statsSourceStub{stats: &models.ReminderStats{
		TotalReminders:       12,
		ByType:               map[string]int{models.ReminderTypeDue: 5},
		PaymentAfterReminder: 7,
		EffectivenessRate:    58.33,
	}}
	cache := newStatsCacheStub()
	svc := NewReminderStatsService(source, cache, time.Minute, nil, nil)

	first, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, first.TotalReminders)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, second.TotalReminders)
	assert.Equal(t, 5, second.ByType[models.ReminderTypeDue])
	// Second read served from cache, not the aggregate query.
	assert.Equal(t, 1, source.calls)
}

func TestReminderStatsInvalidate(t *testing.T) {
	source := &statsSourceStub{stats: &models.ReminderStats{TotalReminders: 3}}
	cache := newStatsCacheStub()
	svc := NewReminderStatsService(source, cache, time.Minute, nil, nil)

	_, err := svc.Stats(context.Background())
	require.NoError(t, err)

	svc.Invalidate(context.Background())
	assert.Equal(t, 1, cache.deletes)

	_, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestReminderStatsNilCache(t *testing.T) {
	source := &statsSourceStub{stats: &models.ReminderStats{TotalReminders: 1}}
	svc := NewReminderStatsService(source, nil, 0, nil, nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalReminders)

	svc.Invalidate(context.Background())
}
