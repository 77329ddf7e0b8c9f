package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyahq/fees-api/internal/models"
)

func newMonthlyFeeMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMonthlyFeeCreate(t *testing.T) {
	db, mock, cleanup := newMonthlyFeeMock(t)
	defer cleanup()
	repo := NewMonthlyFeeRepository(db)

	mock.ExpectExec("INSERT INTO monthly_fees").
		WithArgs(sqlmock.AnyArg(), "s1", "ay1", 1, 2024, int64(100000), int64(0), int64(0),
			int64(100000), int64(0), int64(100000), models.FeeStatusPending, sqlmock.AnyArg(), false, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	fee := &models.MonthlyFee{
		StudentID:      "s1",
		AcademicYearID: "ay1",
		Month:          1,
		Year:           2024,
		TuitionFee:     100000,
		TotalFee:       100000,
		AmountPending:  100000,
		Status:         models.FeeStatusPending,
		DueDate:        time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	err := repo.Create(context.Background(), fee)
	require.NoError(t, err)
	assert.NotEmpty(t, fee.ID)
	assert.False(t, fee.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonthlyFeeCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMonthlyFeeMock(t)
	defer cleanup()
	repo := NewMonthlyFeeRepository(db)

	mock.ExpectExec("INSERT INTO monthly_fees").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "monthly_fees_student_id_year_month_key"})

	fee := &models.MonthlyFee{StudentID: "s1", Month: 1, Year: 2024, Status: models.FeeStatusPending}
	err := repo.Create(context.Background(), fee)
	assert.ErrorIs(t, err, ErrDuplicateMonthlyFee)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingStudentIDs(t *testing.T) {
	db, mock, cleanup := newMonthlyFeeMock(t)
	defer cleanup()
	repo := NewMonthlyFeeRepository(db)

	mock.ExpectQuery(`SELECT student_id FROM monthly_fees WHERE year = \$1 AND month = \$2`).
		WithArgs(2024, 1).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("s1").AddRow("s2"))

	ids, err := repo.ExistingStudentIDs(context.Background(), 2024, 1)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	_, ok := ids["s1"]
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUnpaidDueOn(t *testing.T) {
	db, mock, cleanup := newMonthlyFeeMock(t)
	defer cleanup()
	repo := NewMonthlyFeeRepository(db)

	now := time.Now()
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "student_id", "academic_year_id", "month", "year", "tuition_fee", "hostel_fee", "transport_fee",
		"total_fee", "amount_paid", "amount_pending", "status", "due_date", "sms_sent", "sms_sent_at",
		"created_at", "updated_at", "admission_number", "first_name", "last_name", "parent_name", "parent_phone",
	}).AddRow("f1", "s1", "ay1", 1, 2024, int64(100000), int64(0), int64(0),
		int64(100000), int64(0), int64(100000), models.FeeStatusPending, due, false, nil,
		now, now, "ADM-001", "Asha", "Kumar", "Ravi", "+919800000001")

	mock.ExpectQuery(`f\.due_date = \$3`).
		WithArgs(models.FeeStatusPending, models.FeeStatusPartial, due).
		WillReturnRows(rows)

	fees, err := repo.ListUnpaidDueOn(context.Background(), due)
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.Equal(t, "f1", fees[0].ID)
	assert.Equal(t, "Ravi", fees[0].ParentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
