package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyahq/fees-api/internal/models"
)

func newPaymentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var monthlyFeeMockColumns = []string{
	"id", "student_id", "academic_year_id", "month", "year", "tuition_fee", "hostel_fee", "transport_fee",
	"total_fee", "amount_paid", "amount_pending", "status", "due_date", "sms_sent", "sms_sent_at",
	"created_at", "updated_at",
}

func lockedFeeRow(amountPaid int64) *sqlmock.Rows {
	now := time.Now()
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(monthlyFeeMockColumns).
		AddRow("f1", "s1", "ay1", 1, 2024, int64(100000), int64(0), int64(0),
			int64(100000), amountPaid, int64(100000)-amountPaid, models.FeeStatusFor(amountPaid, 100000), due, false, nil,
			now, now)
}

func TestRecordPaymentCommitsAndAdvancesFee(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM monthly_fees WHERE id = \$1 FOR UPDATE`).
		WithArgs("f1").
		WillReturnRows(lockedFeeRow(0))
	mock.ExpectQuery(`SELECT nextval\('payment_receipt_seq'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(42)))
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), "f1", "s1", int64(40000), "cash", sqlmock.AnyArg(),
			sqlmock.AnyArg(), "RCP-20240115-00042", sqlmock.AnyArg(), "user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE monthly_fees SET").
		WithArgs(int64(40000), int64(60000), models.FeeStatusPartial, sqlmock.AnyArg(), "f1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	payment := &models.Payment{
		MonthlyFeeID: "f1",
		Amount:       40000,
		PaymentMode:  "cash",
		PaymentDate:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		RecordedBy:   "user-1",
	}
	fee, err := repo.RecordPayment(context.Background(), payment)
	require.NoError(t, err)

	assert.Equal(t, int64(40000), fee.AmountPaid)
	assert.Equal(t, int64(60000), fee.AmountPending)
	assert.Equal(t, models.FeeStatusPartial, fee.Status)
	assert.Equal(t, "RCP-20240115-00042", payment.ReceiptNumber)
	assert.Equal(t, "s1", payment.StudentID)
	assert.NotEmpty(t, payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentOverpaymentRollsBack(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM monthly_fees WHERE id = \$1 FOR UPDATE`).
		WithArgs("f1").
		WillReturnRows(lockedFeeRow(90000))
	mock.ExpectRollback()

	payment := &models.Payment{MonthlyFeeID: "f1", Amount: 20000, PaymentMode: "cash", PaymentDate: time.Now()}
	_, err := repo.RecordPayment(context.Background(), payment)
	assert.ErrorIs(t, err, ErrPaymentExceedsPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentExactSettlementMarksPaid(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM monthly_fees WHERE id = \$1 FOR UPDATE`).
		WithArgs("f1").
		WillReturnRows(lockedFeeRow(60000))
	mock.ExpectQuery(`SELECT nextval\('payment_receipt_seq'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(43)))
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE monthly_fees SET").
		WithArgs(int64(100000), int64(0), models.FeeStatusPaid, sqlmock.AnyArg(), "f1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	payment := &models.Payment{MonthlyFeeID: "f1", Amount: 40000, PaymentMode: "upi", PaymentDate: time.Now()}
	fee, err := repo.RecordPayment(context.Background(), payment)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, fee.Status)
	assert.Equal(t, int64(0), fee.AmountPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentFeeNotFound(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM monthly_fees WHERE id = \$1 FOR UPDATE`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	payment := &models.Payment{MonthlyFeeID: "missing", Amount: 1000, PaymentMode: "cash", PaymentDate: time.Now()}
	_, err := repo.RecordPayment(context.Background(), payment)
	assert.ErrorIs(t, err, ErrFeeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentStudentMismatch(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM monthly_fees WHERE id = \$1 FOR UPDATE`).
		WithArgs("f1").
		WillReturnRows(lockedFeeRow(0))
	mock.ExpectRollback()

	payment := &models.Payment{MonthlyFeeID: "f1", StudentID: "someone-else", Amount: 1000, PaymentMode: "cash", PaymentDate: time.Now()}
	_, err := repo.RecordPayment(context.Background(), payment)
	assert.ErrorIs(t, err, ErrStudentMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumForFee(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM payments WHERE monthly_fee_id = \$1`).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(75000)))

	total, err := repo.SumForFee(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(75000), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
