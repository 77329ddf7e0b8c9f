package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/repository"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
)

type paymentLedgerStub struct {
	fee       *models.MonthlyFee
	recordErr error
	recorded  *models.Payment
	payment   *models.Payment
	findErr   error
}

func (s *paymentLedgerStub) RecordPayment(ctx context.Context, payment *models.Payment) (*models.MonthlyFee, error) {
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	payment.ID = "pay-1"
	payment.ReceiptNumber = "RCP-20240115-00042"
	payment.CreatedAt = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	s.recorded = payment
	return s.fee, nil
}

func (s *paymentLedgerStub) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.payment, nil
}

func (s *paymentLedgerStub) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	return nil, 0, nil
}

type backfillerStub struct {
	feeID  string
	paidAt time.Time
	calls  int
	err    error
}

func (s *backfillerStub) MarkPaymentReceived(ctx context.Context, monthlyFeeID string, paidAt time.Time) error {
	s.calls++
	s.feeID = monthlyFeeID
	s.paidAt = paidAt
	return s.err
}

type paymentMetricsStub struct {
	amount int64
	calls  int
}

func (s *paymentMetricsStub) PaymentRecorded(amount int64) {
	s.calls++
	s.amount += amount
}

func validPaymentRequest() RecordPaymentRequest {
	return RecordPaymentRequest{
		MonthlyFeeID: "fee-1",
		StudentID:    "s1",
		Amount:       50000,
		PaymentMode:  "upi",
	}
}

func TestRecordPaymentSuccess(t *testing.T) {
	ledger := &paymentLedgerStub{fee: &models.MonthlyFee{
		ID: "fee-1", Status: models.FeeStatusPartial, AmountPaid: 50000, AmountPending: 50000,
	}}
	backfill := &backfillerStub{}
	metrics := &paymentMetricsStub{}
	now := func() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) }
	svc := NewPaymentService(ledger, backfill, metrics, now, nil, nil)

	receipt, err := svc.RecordPayment(context.Background(), validPaymentRequest(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "pay-1", receipt.PaymentID)
	assert.Equal(t, "RCP-20240115-00042", receipt.ReceiptNumber)
	assert.Equal(t, models.FeeStatusPartial, receipt.NewStatus)
	assert.Equal(t, int64(50000), receipt.AmountPending)

	require.NotNil(t, ledger.recorded)
	assert.Equal(t, "user-1", ledger.recorded.RecordedBy)
	// Zero payment date defaults to today.
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ledger.recorded.PaymentDate)

	assert.Equal(t, 1, backfill.calls)
	assert.Equal(t, "fee-1", backfill.feeID)
	assert.Equal(t, 1, metrics.calls)
	assert.Equal(t, int64(50000), metrics.amount)
}

func TestRecordPaymentInvalidAmount(t *testing.T) {
	svc := NewPaymentService(&paymentLedgerStub{}, nil, nil, nil, nil, nil)

	req := validPaymentRequest()
	req.Amount = -100
	_, err := svc.RecordPayment(context.Background(), req, "user-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidAmount.Code, appErr.Code)
}

func TestRecordPaymentSentinelMapping(t *testing.T) {
	cases := []struct {
		name     string
		repoErr  error
		wantCode string
	}{
		{"fee missing", repository.ErrFeeNotFound, appErrors.ErrNotFound.Code},
		{"overpayment", repository.ErrPaymentExceedsPending, appErrors.ErrOverpayment.Code},
		{"student mismatch", repository.ErrStudentMismatch, appErrors.ErrValidation.Code},
		{"other failure", errors.New("connection reset"), appErrors.ErrInternal.Code},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewPaymentService(&paymentLedgerStub{recordErr: tc.repoErr}, nil, nil, nil, nil, nil)

			_, err := svc.RecordPayment(context.Background(), validPaymentRequest(), "user-1")
			require.Error(t, err)

			var appErr *appErrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tc.wantCode, appErr.Code)
		})
	}
}

func TestRecordPaymentBackfillFailureIsNonFatal(t *testing.T) {
	ledger := &paymentLedgerStub{fee: &models.MonthlyFee{ID: "fee-1", Status: models.FeeStatusPaid}}
	backfill := &backfillerStub{err: errors.New("reminder table unavailable")}
	svc := NewPaymentService(ledger, backfill, nil, nil, nil, nil)

	receipt, err := svc.RecordPayment(context.Background(), validPaymentRequest(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, receipt.NewStatus)
	assert.Equal(t, 1, backfill.calls)
}

func TestRecordPaymentInvalidMode(t *testing.T) {
	svc := NewPaymentService(&paymentLedgerStub{}, nil, nil, nil, nil, nil)

	req := validPaymentRequest()
	req.PaymentMode = "barter"
	_, err := svc.RecordPayment(context.Background(), req, "user-1")
	assert.Error(t, err)
}

func TestPaymentListPaginationDefaults(t *testing.T) {
	svc := NewPaymentService(&paymentLedgerStub{}, nil, nil, nil, nil, nil)

	_, page, err := svc.List(context.Background(), models.PaymentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.PageSize)
}
