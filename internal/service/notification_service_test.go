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
	"github.com/vidyahq/fees-api/pkg/jobs"
)

type feeSMSMarkerStub struct {
	marked []string
	err    error
}

func (s *feeSMSMarkerStub) MarkSMSSent(ctx context.Context, id string, sentAt time.Time) error {
	s.marked = append(s.marked, id)
	return s.err
}

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (s *enqueuerStub) Enqueue(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func feeNotification() FeeGeneratedNotification {
	return FeeGeneratedNotification{
		FeeID:       "f1",
		StudentID:   "s1",
		ParentName:  "Ravi",
		ParentPhone: "+919800000001",
		StudentName: "Asha",
		Month:       1,
		Year:        2024,
		TotalFee:    100000,
		DueDate:     time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestQueueFeeGenerated(t *testing.T) {
	svc := NewNotificationService(sms.NopSender{}, &smsLogStub{}, &feeSMSMarkerStub{}, nil)
	queue := &enqueuerStub{}
	svc.SetQueue(queue)

	svc.QueueFeeGenerated(feeNotification())

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeFeeGenerated, queue.jobs[0].Type)
	payload, ok := queue.jobs[0].Payload.(FeeGeneratedNotification)
	require.True(t, ok)
	assert.Equal(t, "f1", payload.FeeID)
}

func TestQueueFeeGeneratedWithoutQueueIsNoop(t *testing.T) {
	svc := NewNotificationService(sms.NopSender{}, &smsLogStub{}, &feeSMSMarkerStub{}, nil)
	svc.QueueFeeGenerated(feeNotification())
}

func TestHandleJobSendsAndMarks(t *testing.T) {
	sender := &senderStub{outcome: sms.Outcome{Result: sms.ResultDelivered}}
	smsLogs := &smsLogStub{}
	marker := &feeSMSMarkerStub{}
	svc := NewNotificationService(sender, smsLogs, marker, nil)

	job := jobs.Job{ID: "j1", Type: JobTypeFeeGenerated, Payload: feeNotification()}
	err := svc.HandleJob(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "Dear Ravi")
	assert.Contains(t, sender.messages[0], "Rs. 1000.00")
	assert.Contains(t, sender.messages[0], "10-Jan-2024")

	require.Len(t, smsLogs.rows, 1)
	assert.Equal(t, models.SMSTypeFeeGenerated, smsLogs.rows[0].SMSType)
	assert.Equal(t, []string{"f1"}, marker.marked)
}

func TestHandleJobSendFailure(t *testing.T) {
	sender := &senderStub{outcome: sms.Outcome{Result: sms.ResultFailed}, err: errors.New("gateway timeout")}
	smsLogs := &smsLogStub{}
	marker := &feeSMSMarkerStub{}
	svc := NewNotificationService(sender, smsLogs, marker, nil)

	job := jobs.Job{ID: "j1", Type: JobTypeFeeGenerated, Payload: feeNotification()}
	err := svc.HandleJob(context.Background(), job)
	assert.Error(t, err)

	// The attempt is logged, but the fee is not marked as notified.
	assert.Len(t, smsLogs.rows, 1)
	assert.Empty(t, marker.marked)
}

func TestHandleJobUnknownType(t *testing.T) {
	svc := NewNotificationService(sms.NopSender{}, &smsLogStub{}, &feeSMSMarkerStub{}, nil)

	err := svc.HandleJob(context.Background(), jobs.Job{ID: "j1", Type: "unknown"})
	assert.Error(t, err)
}
