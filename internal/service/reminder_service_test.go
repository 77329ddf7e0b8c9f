package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/sms"
	"github.com/vidyahq/fees-api/pkg/config"
)

type unpaidFeeListerStub struct {
	// dueOn maps "2006-01-02" due dates to candidate fees.
	dueOn   map[string][]models.MonthlyFeeDetail
	current map[string]*models.MonthlyFee
	listErr error
}

func (s *unpaidFeeListerStub) ListUnpaidDueOn(ctx context.Context, dueDate time.Time) ([]models.MonthlyFeeDetail, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.dueOn[dueDate.Format("2006-01-02")], nil
}

func (s *unpaidFeeListerStub) FindByID(ctx context.Context, id string) (*models.MonthlyFee, error) {
	if fee, ok := s.current[id]; ok {
		return fee, nil
	}
	return nil, errors.New("fee not found")
}

type reminderLogStub struct {
	created  []*models.FeeReminder
	counts   map[string]int
	lastSent map[string]time.Time
}

func (s *reminderLogStub) Create(ctx context.Context, reminder *models.FeeReminder) error {
	reminder.ID = "rem-1"
	s.created = append(s.created, reminder)
	return nil
}

func (s *reminderLogStub) CountForFee(ctx context.Context, monthlyFeeID string) (int, error) {
	return s.counts[monthlyFeeID], nil
}

func (s *reminderLogStub) LastOfType(ctx context.Context, monthlyFeeID, reminderType string) (*time.Time, error) {
	if last, ok := s.lastSent[monthlyFeeID+"/"+reminderType]; ok {
		return &last, nil
	}
	return nil, nil
}

func (s *reminderLogStub) List(ctx context.Context, filter models.ReminderFilter) ([]models.FeeReminder, int, error) {
	return nil, 0, nil
}

type smsLogStub struct {
	rows []*models.SMSLog
}

func (s *smsLogStub) Create(ctx context.Context, log *models.SMSLog) error {
	s.rows = append(s.rows, log)
	return nil
}

type senderStub struct {
	outcome  sms.Outcome
	err      error
	messages []string
	phones   []string
}

func (s *senderStub) Send(ctx context.Context, phone, message string) (sms.Outcome, error) {
	s.phones = append(s.phones, phone)
	s.messages = append(s.messages, message)
	return s.outcome, s.err
}

type sweepMetricsStub struct {
	sent   map[string]int
	failed int
}

func (s *sweepMetricsStub) ReminderSent(reminderType string) {
	if s.sent == nil {
		s.sent = make(map[string]int)
	}
	s.sent[reminderType]++
}

func (s *sweepMetricsStub) ReminderFailed() { s.failed++ }

func unpaidFee(id string, dueDate time.Time) models.MonthlyFeeDetail {
	return models.MonthlyFeeDetail{
		MonthlyFee: models.MonthlyFee{
			ID:            id,
			StudentID:     "stu-" + id,
			Month:         1,
			Year:          2024,
			TotalFee:      100000,
			AmountPending: 100000,
			DueDate:       dueDate,
			Status:        models.FeeStatusPending,
		},
		StudentFirstName: "Asha",
		ParentName:       "Ravi",
		ParentPhone:      "+919800000001",
	}
}

func enabledReminderConfig() config.ReminderConfig {
	return config.ReminderConfig{Enabled: true}
}

func TestRunSweepEscalationTimeline(t *testing.T) {
	// Due date 2024-01-10 walks through every bucket as "today" advances.
	dueDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		today    time.Time
		wantType string
	}{
		{"advance three days before", time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), models.ReminderTypeAdvance},
		{"due on the day", dueDate, models.ReminderTypeDue},
		{"overdue after three days", time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC), models.ReminderTypeOverdue},
		{"overdue after seven days", time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), models.ReminderTypeOverdue},
		{"final after fifteen days", time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC), models.ReminderTypeFinal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee := unpaidFee("f1", dueDate)
			fees := &unpaidFeeListerStub{
				dueOn:   map[string][]models.MonthlyFeeDetail{dueDate.Format("2006-01-02"): {fee}},
				current: map[string]*models.MonthlyFee{"f1": {ID: "f1", Status: models.FeeStatusPending, AmountPending: 100000}},
			}
			log := &reminderLogStub{}
			sender := &senderStub{outcome: sms.Outcome{Result: sms.ResultDelivered}}
			metrics := &sweepMetricsStub{}
			svc := NewReminderService(fees, log, &smsLogStub{}, sender, metrics, enabledReminderConfig(), nil)

			summary, err := svc.RunSweep(context.Background(), tc.today)
			require.NoError(t, err)

			assert.Equal(t, 1, summary.Sent)
			assert.Equal(t, 0, summary.Failed)
			assert.Equal(t, 1, summary.ByType[tc.wantType])
			require.Len(t, log.created, 1)
			assert.Equal(t, tc.wantType, log.created[0].ReminderType)
			assert.Equal(t, models.ReminderStatusDelivered, log.created[0].SMSStatus)
			assert.Equal(t, 1, metrics.sent[tc.wantType])
		})
	}
}

func TestRunSweepDisabled(t *testing.T) {
	svc := NewReminderService(&unpaidFeeListerStub{}, &reminderLogStub{}, nil, &senderStub{}, nil, config.ReminderConfig{Enabled: false}, nil)

	summary, err := svc.RunSweep(context.Background(), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 0, summary.Skipped)
}

func TestRunSweepSkipsFeePaidSinceQuery(t *testing.T) {
	dueDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	fees := &unpaidFeeListerStub{
		dueOn:   map[string][]models.MonthlyFeeDetail{"2024-01-10": {unpaidFee("f1", dueDate)}},
		current: map[string]*models.MonthlyFee{"f1": {ID: "f1", Status: models.FeeStatusPaid, AmountPending: 0}},
	}
	log := &reminderLogStub{}
	sender := &senderStub{outcome: sms.Outcome{Result: sms.ResultDelivered}}
	svc := NewReminderService(fees, log, nil, sender, nil, enabledReminderConfig(), nil)

	summary, err := svc.RunSweep(context.Background(), dueDate)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, sender.messages)
	assert.Empty(t, log.created)
}

func TestRunSweepMaxPerFeeCap(t *testing.T) {
	dueDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	fees := &unpaidFeeListerStub{
		dueOn:   map[string][]models.MonthlyFeeDetail{"2024-01-10": {unpaidFee("f1", dueDate)}},
		current: map[string]*models.MonthlyFee{"f1": {ID: "f1", Status: models.FeeStatusPending, AmountPending: 100000}},
	}
	log := &reminderLogStub{counts: map[string]int{"f1": 4}}
	sender := &senderStub{outcome: sms.Outcome{Result: sms.ResultDelivered}}
	svc := NewReminderService(fees, log, nil, sender, nil, enabledReminderConfig(), nil)

	summary, err := svc.RunSweep(context.Background(), dueDate)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, sender.messages)
}

func TestRunSweepThrottlesRecentSameType(t *testing.T) {
	dueDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	fees := &unpaidFeeListerStub{
		dueOn:   map[string][]models.MonthlyFeeDetail{"2024-01-10": {unpaidFee("f1", dueDate)}},
		current: map[string]*models.MonthlyFee{"f1": {ID: "f1", Status: models.FeeStatusPending, AmountPending: 100000}},
	}
	log := &reminderLogStub{lastSent: map[string]time.Time{
		"f1/" + models.ReminderTypeDue: dueDate.Add(-24 * time.Hour),
	}}
	sender := &senderStub{outcome: sms.Outcome{Result: sms.ResultDelivered}}
	svc := NewReminderService(fees, log, nil, sender, nil, enabledReminderConfig(), nil)

	summary, err := svc.RunSweep(context.Background(), dueDate)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRunSweepSendFailureRecorded(t *testing.T) {
	dueDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	fees := &unpaidFeeListerStub{
		dueOn:   map[string][]models.MonthlyFeeDetail{"2024-01-10": {unpaidFee("f1", dueDate)}},
		current: map[string]*models.MonthlyFee{"f1": {ID: "f1", Status: models.FeeStatusPending, AmountPending: 100000}},
	}
	log := &reminderLogStub{}
	sender := &senderStub{outcome: sms.Outcome{Result: sms.ResultFailed}, err: errors.New("gateway timeout")}
	metrics := &sweepMetricsStub{}
	svc := NewReminderService(fees, log, nil, sender, metrics, enabledReminderConfig(), nil)

	summary, err := svc.RunSweep(context.Background(), dueDate)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "f1", summary.Errors[0].MonthlyFeeID)

	// The failed attempt is still logged for the audit trail.
	require.Len(t, log.created, 1)
	assert.Equal(t, models.ReminderStatusFailed, log.created[0].SMSStatus)
	assert.Equal(t, 1, metrics.failed)
}

func TestRunSweepMessageContent(t *testing.T) {
	dueDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	fee := unpaidFee("f1", dueDate)
	fee.AmountPending = 123450
	fees := &unpaidFeeListerStub{
		dueOn:   map[string][]models.MonthlyFeeDetail{"2024-01-10": {fee}},
		current: map[string]*models.MonthlyFee{"f1": {ID: "f1", Status: models.FeeStatusPending, AmountPending: 123450}},
	}
	sender := &senderStub{outcome: sms.Outcome{Result: sms.ResultDelivered}}
	svc := NewReminderService(fees, &reminderLogStub{}, nil, sender, nil, enabledReminderConfig(), nil)

	_, err := svc.RunSweep(context.Background(), time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Contains(t, msg, "Dear Ravi")
	assert.Contains(t, msg, "Rs. 1234.50")
	assert.Contains(t, msg, "Asha")
	assert.Contains(t, msg, "10-Jan-2024")
	assert.Equal(t, "+919800000001", sender.phones[0])
}

func TestRunSweepOverdueMessageCountsDays(t *testing.T) {
	dueDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	fees := &unpaidFeeListerStub{
		dueOn:   map[string][]models.MonthlyFeeDetail{"2024-01-10": {unpaidFee("f1", dueDate)}},
		current: map[string]*models.MonthlyFee{"f1": {ID: "f1", Status: models.FeeStatusPending, AmountPending: 100000}},
	}
	sender := &senderStub{outcome: sms.Outcome{Result: sms.ResultDelivered}}
	svc := NewReminderService(fees, &reminderLogStub{}, nil, sender, nil, enabledReminderConfig(), nil)

	_, err := svc.RunSweep(context.Background(), time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "overdue by 7 days")
}

func TestRunSweepListFailureAbortsRun(t *testing.T) {
	fees := &unpaidFeeListerStub{listErr: errors.New("db down")}
	svc := NewReminderService(fees, &reminderLogStub{}, nil, &senderStub{}, nil, enabledReminderConfig(), nil)

	_, err := svc.RunSweep(context.Background(), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}
