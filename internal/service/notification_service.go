package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/sms"
	"github.com/vidyahq/fees-api/pkg/jobs"
)

type smsLogWriter interface {
	Create(ctx context.Context, log *models.SMSLog) error
}

type feeSMSMarker interface {
	MarkSMSSent(ctx context.Context, id string, sentAt time.Time) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// JobTypeFeeGenerated identifies fee-generated notification jobs on the queue.
const JobTypeFeeGenerated = "fee_generated_sms"

// FeeGeneratedNotification is the queue payload for a generation SMS.
type FeeGeneratedNotification struct {
	FeeID       string
	StudentID   string
	ParentName  string
	ParentPhone string
	StudentName string
	Month       int
	Year        int
	TotalFee    int64
	DueDate     time.Time
}

// NotificationService sends parent-facing SMS messages. Generation notices
// go through the background queue (fire-and-forget from the caller's view);
// the send itself logs its outcome and never propagates delivery failures.
type NotificationService struct {
	sender  sms.Sender
	smsLogs smsLogWriter
	fees    feeSMSMarker
	queue   jobEnqueuer
	logger  *zap.Logger
}

// NewNotificationService constructs a NotificationService. The queue is
// attached later via SetQueue because the queue handler needs the service.
func NewNotificationService(sender sms.Sender, smsLogs smsLogWriter, fees feeSMSMarker, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{sender: sender, smsLogs: smsLogs, fees: fees, logger: logger}
}

// SetQueue wires the background dispatch queue.
func (s *NotificationService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// QueueFeeGenerated enqueues a generation notice. Errors are logged, not
// returned: notification failure never fails fee generation.
func (s *NotificationService) QueueFeeGenerated(n FeeGeneratedNotification) {
	if s.queue == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: JobTypeFeeGenerated, Payload: n}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Sugar().Warnw("failed to enqueue fee notification", "fee_id", n.FeeID, "error", err)
	}
}

// HandleJob is the queue handler for notification jobs.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobTypeFeeGenerated:
		n, ok := job.Payload.(FeeGeneratedNotification)
		if !ok {
			return fmt.Errorf("unexpected payload for %s job", job.Type)
		}
		return s.sendFeeGenerated(ctx, n)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (s *NotificationService) sendFeeGenerated(ctx context.Context, n FeeGeneratedNotification) error {
	message := fmt.Sprintf(
		"Dear %s, Fee of Rs. %s for %d/%d is generated for %s. Due date: %s. Please pay on time.",
		n.ParentName, rupees(n.TotalFee), n.Month, n.Year, n.StudentName, n.DueDate.Format("02-Jan-2006"),
	)

	outcome, err := s.sender.Send(ctx, n.ParentPhone, message)
	status := string(outcome.Result)
	var gatewayResponse *string
	if outcome.Raw != "" {
		raw := outcome.Raw
		gatewayResponse = &raw
	}

	logRow := &models.SMSLog{
		PhoneNumber:     n.ParentPhone,
		Message:         message,
		SMSType:         models.SMSTypeFeeGenerated,
		StudentID:       &n.StudentID,
		MonthlyFeeID:    &n.FeeID,
		Status:          status,
		GatewayResponse: gatewayResponse,
	}
	if logErr := s.smsLogs.Create(ctx, logRow); logErr != nil {
		s.logger.Sugar().Warnw("failed to log fee notification", "fee_id", n.FeeID, "error", logErr)
	}

	if err != nil {
		return fmt.Errorf("send fee notification: %w", err)
	}
	if outcome.Result != sms.ResultFailed {
		if markErr := s.fees.MarkSMSSent(ctx, n.FeeID, time.Now().UTC()); markErr != nil {
			s.logger.Sugar().Warnw("failed to mark fee sms sent", "fee_id", n.FeeID, "error", markErr)
		}
	}
	return nil
}
