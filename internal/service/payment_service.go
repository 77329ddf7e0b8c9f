package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/repository"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
)

type paymentLedger interface {
	RecordPayment(ctx context.Context, payment *models.Payment) (*models.MonthlyFee, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
}

type reminderBackfiller interface {
	MarkPaymentReceived(ctx context.Context, monthlyFeeID string, paidAt time.Time) error
}

type paymentRecorder interface {
	PaymentRecorded(amount int64)
}

// RecordPaymentRequest is the payload for recording a payment.
type RecordPaymentRequest struct {
	MonthlyFeeID  string    `json:"monthly_fee_id" validate:"required"`
	StudentID     string    `json:"student_id"`
	Amount        int64     `json:"amount" validate:"required"`
	PaymentMode   string    `json:"payment_mode" validate:"required,oneof=cash upi cheque card"`
	PaymentDate   time.Time `json:"payment_date"`
	TransactionID *string   `json:"transaction_id,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
}

// PaymentService records payments against monthly fees.
type PaymentService struct {
	payments  paymentLedger
	reminders reminderBackfiller
	metrics   paymentRecorder
	now       func() time.Time
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(payments paymentLedger, reminders reminderBackfiller, metrics paymentRecorder, now func() time.Time, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &PaymentService{payments: payments, reminders: reminders, metrics: metrics, now: now, validator: validate, logger: logger}
}

// RecordPayment validates and applies one payment atomically. Overpayment is
// rejected, never clamped; the repository serializes concurrent payments on
// the fee row so the invariant amount_paid <= total_fee holds under races.
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest, recordedBy string) (*models.Receipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if req.Amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "")
	}

	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = dateOf(s.now())
	}

	payment := &models.Payment{
		MonthlyFeeID:  req.MonthlyFeeID,
		StudentID:     req.StudentID,
		Amount:        req.Amount,
		PaymentMode:   req.PaymentMode,
		PaymentDate:   paymentDate,
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
		RecordedBy:    recordedBy,
	}

	fee, err := s.payments.RecordPayment(ctx, payment)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrFeeNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "monthly fee not found")
		case errors.Is(err, repository.ErrPaymentExceedsPending):
			return nil, appErrors.Clone(appErrors.ErrOverpayment, "")
		case errors.Is(err, repository.ErrStudentMismatch):
			return nil, appErrors.Clone(appErrors.ErrValidation, "student does not match monthly fee")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
		}
	}

	// Effectiveness backfill is best-effort; the payment already committed.
	if s.reminders != nil {
		if err := s.reminders.MarkPaymentReceived(ctx, fee.ID, payment.CreatedAt); err != nil {
			s.logger.Sugar().Warnw("failed to backfill reminder effectiveness", "fee_id", fee.ID, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.PaymentRecorded(payment.Amount)
	}

	s.logger.Sugar().Infow("payment recorded",
		"fee_id", fee.ID, "receipt", payment.ReceiptNumber, "amount", payment.Amount, "status", fee.Status)

	return &models.Receipt{
		PaymentID:     payment.ID,
		ReceiptNumber: payment.ReceiptNumber,
		NewStatus:     fee.Status,
		AmountPaid:    fee.AmountPaid,
		AmountPending: fee.AmountPending,
	}, nil
}

// Get returns one payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// List returns payments and pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
