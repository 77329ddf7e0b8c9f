package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyahq/fees-api/internal/models"
)

// Sentinel errors surfaced from the payment transaction.
var (
	ErrFeeNotFound           = errors.New("monthly fee not found")
	ErrPaymentExceedsPending = errors.New("payment exceeds amount pending")
	ErrStudentMismatch       = errors.New("student does not match monthly fee")
)

// PaymentRepository owns the append-only payment ledger and the one
// serialization point in the system: all writers to a fee's amount_paid go
// through RecordPayment, which locks the fee row.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, monthly_fee_id, student_id, amount, payment_mode, payment_date, transaction_id,
        receipt_number, notes, recorded_by, created_at`

// RecordPayment atomically inserts the payment and advances the fee. The fee
// row is held under FOR UPDATE for the whole transaction, so concurrent
// payments serialize and amount_paid can never exceed total_fee: a racer that
// would overshoot fails with ErrPaymentExceedsPending after the lock clears.
func (r *PaymentRepository) RecordPayment(ctx context.Context, payment *models.Payment) (fee *models.MonthlyFee, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked models.MonthlyFee
	lockQuery := fmt.Sprintf(`SELECT %s FROM monthly_fees WHERE id = $1 FOR UPDATE`, monthlyFeeColumns)
	if err = tx.GetContext(ctx, &locked, lockQuery, payment.MonthlyFeeID); err != nil {
		if err == sql.ErrNoRows {
			err = ErrFeeNotFound
			return nil, err
		}
		return nil, fmt.Errorf("lock monthly fee: %w", err)
	}

	if payment.StudentID != "" && payment.StudentID != locked.StudentID {
		err = ErrStudentMismatch
		return nil, err
	}
	payment.StudentID = locked.StudentID

	if locked.AmountPaid+payment.Amount > locked.TotalFee {
		err = ErrPaymentExceedsPending
		return nil, err
	}

	// Receipt numbers come from a dedicated sequence: monotonic, never reused
	// even across deleted rows or concurrent transactions.
	var seq int64
	if err = tx.GetContext(ctx, &seq, `SELECT nextval('payment_receipt_seq')`); err != nil {
		return nil, fmt.Errorf("next receipt number: %w", err)
	}
	payment.ReceiptNumber = fmt.Sprintf("RCP-%s-%05d", payment.PaymentDate.Format("20060102"), seq)

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = time.Now().UTC()

	insertQuery := fmt.Sprintf(`INSERT INTO payments (%s)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, paymentColumns)
	if _, err = tx.ExecContext(ctx, insertQuery,
		payment.ID, payment.MonthlyFeeID, payment.StudentID, payment.Amount, payment.PaymentMode, payment.PaymentDate,
		payment.TransactionID, payment.ReceiptNumber, payment.Notes, payment.RecordedBy, payment.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	locked.AmountPaid += payment.Amount
	locked.AmountPending = locked.TotalFee - locked.AmountPaid
	locked.Status = models.FeeStatusFor(locked.AmountPaid, locked.TotalFee)
	locked.UpdatedAt = payment.CreatedAt

	const updateQuery = `UPDATE monthly_fees SET amount_paid = $1, amount_pending = $2, status = $3, updated_at = $4 WHERE id = $5`
	if _, err = tx.ExecContext(ctx, updateQuery,
		locked.AmountPaid, locked.AmountPending, locked.Status, locked.UpdatedAt, locked.ID,
	); err != nil {
		return nil, fmt.Errorf("update monthly fee: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment: %w", err)
	}
	return &locked, nil
}

// FindByID fetches a payment row.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// List returns payments matching the filter, newest first.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	base := "FROM payments p"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.PaymentMode != "" {
		conditions = append(conditions, fmt.Sprintf("p.payment_mode = $%d", len(args)+1))
		args = append(args, filter.PaymentMode)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.monthly_fee_id, p.student_id, p.amount, p.payment_mode, p.payment_date,
        p.transaction_id, p.receipt_number, p.notes, p.recorded_by, p.created_at
        %s ORDER BY p.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(p.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// SumForFee totals the ledger for one fee. Used by consistency checks: the
// result must always equal that fee's amount_paid.
func (r *PaymentRepository) SumForFee(ctx context.Context, monthlyFeeID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE monthly_fee_id = $1`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, monthlyFeeID); err != nil {
		return 0, fmt.Errorf("sum payments for fee: %w", err)
	}
	return total, nil
}
