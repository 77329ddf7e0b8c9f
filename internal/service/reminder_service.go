package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/sms"
	"github.com/vidyahq/fees-api/pkg/config"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
)

type unpaidFeeLister interface {
	ListUnpaidDueOn(ctx context.Context, dueDate time.Time) ([]models.MonthlyFeeDetail, error)
	FindByID(ctx context.Context, id string) (*models.MonthlyFee, error)
}

type reminderLog interface {
	Create(ctx context.Context, reminder *models.FeeReminder) error
	CountForFee(ctx context.Context, monthlyFeeID string) (int, error)
	LastOfType(ctx context.Context, monthlyFeeID, reminderType string) (*time.Time, error)
	List(ctx context.Context, filter models.ReminderFilter) ([]models.FeeReminder, int, error)
}

type sweepRecorder interface {
	ReminderSent(reminderType string)
	ReminderFailed()
}

// reminderBucket pairs a reminder type with its day offset from the due date.
type reminderBucket struct {
	Type   string
	Offset int
}

// ReminderService runs the daily fee reminder sweep.
type ReminderService struct {
	fees      unpaidFeeLister
	reminders reminderLog
	smsLogs   smsLogWriter
	sender    sms.Sender
	metrics   sweepRecorder
	cfg       config.ReminderConfig
	logger    *zap.Logger
}

// NewReminderService constructs the reminder service.
func NewReminderService(fees unpaidFeeLister, reminders reminderLog, smsLogs smsLogWriter, sender sms.Sender, metrics sweepRecorder, cfg config.ReminderConfig, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DaysBefore <= 0 {
		cfg.DaysBefore = 3
	}
	if len(cfg.OverdueDays) == 0 {
		cfg.OverdueDays = []int{3, 7}
	}
	if cfg.FinalDay <= 0 {
		cfg.FinalDay = 15
	}
	if cfg.MaxPerFee <= 0 {
		cfg.MaxPerFee = 4
	}
	if cfg.MinGap <= 0 {
		cfg.MinGap = 48 * time.Hour
	}
	return &ReminderService{
		fees:      fees,
		reminders: reminders,
		smsLogs:   smsLogs,
		sender:    sender,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// buckets lists the reminder classes fired by one sweep, in escalation order.
func (s *ReminderService) buckets() []reminderBucket {
	out := []reminderBucket{
		{Type: models.ReminderTypeAdvance, Offset: -s.cfg.DaysBefore},
		{Type: models.ReminderTypeDue, Offset: 0},
	}
	for _, d := range s.cfg.OverdueDays {
		out = append(out, reminderBucket{Type: models.ReminderTypeOverdue, Offset: d})
	}
	out = append(out, reminderBucket{Type: models.ReminderTypeFinal, Offset: s.cfg.FinalDay})
	return out
}

// RunSweep evaluates every outstanding fee against the reminder schedule for
// the given date. One failing fee never aborts the sweep; its error lands in
// the summary. The date is an explicit parameter so the scheduler, the HTTP
// trigger and tests all control "today".
func (s *ReminderService) RunSweep(ctx context.Context, today time.Time) (*models.SweepSummary, error) {
	today = dateOf(today)
	summary := &models.SweepSummary{
		Date:   today.Format("2006-01-02"),
		ByType: make(map[string]int),
	}

	if !s.cfg.Enabled {
		s.logger.Info("reminder sweep disabled, skipping")
		return summary, nil
	}

	for _, bucket := range s.buckets() {
		dueDate := today.AddDate(0, 0, -bucket.Offset)
		fees, err := s.fees.ListUnpaidDueOn(ctx, dueDate)
		if err != nil {
			// Infrastructure failure is fatal for the whole run.
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fees for reminder sweep")
		}

		for _, fee := range fees {
			sent, err := s.processFee(ctx, fee, bucket, today)
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, models.ItemError{
					StudentID:    fee.StudentID,
					MonthlyFeeID: fee.ID,
					Reason:       err.Error(),
				})
				continue
			}
			if sent {
				summary.Sent++
				summary.ByType[bucket.Type]++
			} else {
				summary.Skipped++
			}
		}
	}

	s.logger.Sugar().Infow("reminder sweep completed",
		"date", summary.Date, "sent", summary.Sent, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// processFee applies the anti-spam guards and sends one reminder. Returns
// (false, nil) when a guard suppressed the send.
func (s *ReminderService) processFee(ctx context.Context, fee models.MonthlyFeeDetail, bucket reminderBucket, today time.Time) (bool, error) {
	// The candidate query filters paid fees, but a payment may land between
	// the query and the send. Re-read rather than remind a settled fee.
	current, err := s.fees.FindByID(ctx, fee.ID)
	if err != nil {
		return false, fmt.Errorf("reload fee: %w", err)
	}
	if current.Status == models.FeeStatusPaid || current.AmountPending <= 0 {
		return false, nil
	}

	count, err := s.reminders.CountForFee(ctx, fee.ID)
	if err != nil {
		return false, fmt.Errorf("count reminders: %w", err)
	}
	if count >= s.cfg.MaxPerFee {
		return false, nil
	}

	last, err := s.reminders.LastOfType(ctx, fee.ID, bucket.Type)
	if err != nil {
		return false, fmt.Errorf("check reminder throttle: %w", err)
	}
	if last != nil && today.Sub(*last) < s.cfg.MinGap {
		return false, nil
	}

	message := s.composeMessage(fee, current.AmountPending, bucket, today)
	outcome, sendErr := s.sender.Send(ctx, fee.ParentPhone, message)

	status := models.ReminderStatusSent
	switch outcome.Result {
	case sms.ResultDelivered:
		status = models.ReminderStatusDelivered
	case sms.ResultPending:
		status = models.ReminderStatusPending
	case sms.ResultFailed:
		status = models.ReminderStatusFailed
	}

	reminder := &models.FeeReminder{
		StudentID:     fee.StudentID,
		MonthlyFeeID:  fee.ID,
		ReminderType:  bucket.Type,
		DaysOffset:    bucket.Offset,
		AmountPending: current.AmountPending,
		DueDate:       fee.DueDate,
		SentAt:        today,
		SMSStatus:     status,
		SMSID:         outcome.MessageID,
	}
	if err := s.reminders.Create(ctx, reminder); err != nil {
		return false, fmt.Errorf("log reminder: %w", err)
	}

	s.logSMS(ctx, fee, message, status, outcome.Raw)

	if sendErr != nil {
		// Delivery failure is recorded, not retried here; the gateway owns
		// any retry policy.
		if s.metrics != nil {
			s.metrics.ReminderFailed()
		}
		return false, appErrors.Wrap(sendErr, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "sms gateway send failed")
	}

	if s.metrics != nil {
		s.metrics.ReminderSent(bucket.Type)
	}
	return true, nil
}

func (s *ReminderService) composeMessage(fee models.MonthlyFeeDetail, amountPending int64, bucket reminderBucket, today time.Time) string {
	amount := rupees(amountPending)
	due := fee.DueDate.Format("02-Jan-2006")

	switch bucket.Type {
	case models.ReminderTypeAdvance:
		return fmt.Sprintf("Dear %s, Reminder: Fee of Rs. %s for %s (%d/%d) is due on %s. Please pay on time to avoid late fees.",
			fee.ParentName, amount, fee.StudentFirstName, fee.Month, fee.Year, due)
	case models.ReminderTypeDue:
		return fmt.Sprintf("URGENT: Dear %s, Fee of Rs. %s for %s (%d/%d) is due TODAY (%s). Please pay immediately.",
			fee.ParentName, amount, fee.StudentFirstName, fee.Month, fee.Year, due)
	case models.ReminderTypeFinal:
		daysOverdue := daysBetween(fee.DueDate, today)
		return fmt.Sprintf("FINAL NOTICE: Dear %s, Fee of Rs. %s for %s (%d/%d) is overdue by %d days. This is the final reminder. Please contact the school office immediately.",
			fee.ParentName, amount, fee.StudentFirstName, fee.Month, fee.Year, daysOverdue)
	default:
		daysOverdue := daysBetween(fee.DueDate, today)
		return fmt.Sprintf("OVERDUE: Dear %s, Fee of Rs. %s for %s (%d/%d) is overdue by %d days. Please clear the dues urgently to avoid penalties.",
			fee.ParentName, amount, fee.StudentFirstName, fee.Month, fee.Year, daysOverdue)
	}
}

func (s *ReminderService) logSMS(ctx context.Context, fee models.MonthlyFeeDetail, message, status, raw string) {
	if s.smsLogs == nil {
		return
	}
	var gatewayResponse *string
	if raw != "" {
		gatewayResponse = &raw
	}
	studentID := fee.StudentID
	feeID := fee.ID
	row := &models.SMSLog{
		PhoneNumber:     fee.ParentPhone,
		Message:         message,
		SMSType:         models.SMSTypeReminder,
		StudentID:       &studentID,
		MonthlyFeeID:    &feeID,
		Status:          status,
		GatewayResponse: gatewayResponse,
	}
	if err := s.smsLogs.Create(ctx, row); err != nil {
		s.logger.Sugar().Warnw("failed to log reminder sms", "fee_id", fee.ID, "error", err)
	}
}

// ListReminders returns reminder log rows.
func (s *ReminderService) ListReminders(ctx context.Context, filter models.ReminderFilter) ([]models.FeeReminder, *models.Pagination, error) {
	reminders, total, err := s.reminders.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reminders")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return reminders, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
