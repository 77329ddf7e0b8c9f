package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vidyahq/fees-api/internal/models"
)

// ErrDuplicateMonthlyFee maps the (student, year, month) uniqueness violation.
var ErrDuplicateMonthlyFee = errors.New("monthly fee already exists for student and month")

const pqUniqueViolation = "23505"

// MonthlyFeeRepository manages monthly fee obligations.
type MonthlyFeeRepository struct {
	db *sqlx.DB
}

// NewMonthlyFeeRepository constructs a MonthlyFeeRepository.
func NewMonthlyFeeRepository(db *sqlx.DB) *MonthlyFeeRepository {
	return &MonthlyFeeRepository{db: db}
}

const monthlyFeeColumns = `id, student_id, academic_year_id, month, year, tuition_fee, hostel_fee, transport_fee,
        total_fee, amount_paid, amount_pending, status, due_date, sms_sent, sms_sent_at, created_at, updated_at`

const monthlyFeeDetailColumns = `f.id, f.student_id, f.academic_year_id, f.month, f.year, f.tuition_fee, f.hostel_fee,
        f.transport_fee, f.total_fee, f.amount_paid, f.amount_pending, f.status, f.due_date, f.sms_sent, f.sms_sent_at,
        f.created_at, f.updated_at, s.admission_number, s.first_name, s.last_name, s.parent_name, s.parent_phone`

// Create inserts a generated fee. The unique index on (student_id, year,
// month) makes generation idempotent; a violation surfaces as
// ErrDuplicateMonthlyFee so batch callers can count it as a skip.
func (r *MonthlyFeeRepository) Create(ctx context.Context, fee *models.MonthlyFee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	fee.CreatedAt = now
	fee.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO monthly_fees (%s)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`, monthlyFeeColumns)
	if _, err := r.db.ExecContext(ctx, query,
		fee.ID, fee.StudentID, fee.AcademicYearID, fee.Month, fee.Year, fee.TuitionFee, fee.HostelFee, fee.TransportFee,
		fee.TotalFee, fee.AmountPaid, fee.AmountPending, fee.Status, fee.DueDate, fee.SMSSent, fee.SMSSentAt,
		fee.CreatedAt, fee.UpdatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateMonthlyFee
		}
		return fmt.Errorf("insert monthly fee: %w", err)
	}
	return nil
}

// ExistingStudentIDs returns the set of students that already have a fee for
// the given month, letting generation skip them without attempting inserts.
func (r *MonthlyFeeRepository) ExistingStudentIDs(ctx context.Context, year, month int) (map[string]struct{}, error) {
	const query = `SELECT student_id FROM monthly_fees WHERE year = $1 AND month = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, year, month); err != nil {
		return nil, fmt.Errorf("list existing fee students: %w", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// FindByID fetches a fee row.
func (r *MonthlyFeeRepository) FindByID(ctx context.Context, id string) (*models.MonthlyFee, error) {
	query := fmt.Sprintf(`SELECT %s FROM monthly_fees WHERE id = $1`, monthlyFeeColumns)
	var fee models.MonthlyFee
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		return nil, err
	}
	return &fee, nil
}

// FindDetailByID fetches a fee with joined student context.
func (r *MonthlyFeeRepository) FindDetailByID(ctx context.Context, id string) (*models.MonthlyFeeDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM monthly_fees f JOIN students s ON s.id = f.student_id WHERE f.id = $1`, monthlyFeeDetailColumns)
	var detail models.MonthlyFeeDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns fees matching the filter with student context.
func (r *MonthlyFeeRepository) List(ctx context.Context, filter models.MonthlyFeeFilter) ([]models.MonthlyFeeDetail, int, error) {
	base := `FROM monthly_fees f JOIN students s ON s.id = f.student_id`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("f.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Month > 0 {
		conditions = append(conditions, fmt.Sprintf("f.month = $%d", len(args)+1))
		args = append(args, filter.Month)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("f.year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY f.due_date DESC, s.admission_number LIMIT %d OFFSET %d",
		monthlyFeeDetailColumns, base, size, offset)

	var fees []models.MonthlyFeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list monthly fees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(f.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count monthly fees: %w", err)
	}
	return fees, total, nil
}

// ListUnpaidDueOn returns pending/partial fees with the exact due date,
// the candidate set for one reminder bucket.
func (r *MonthlyFeeRepository) ListUnpaidDueOn(ctx context.Context, dueDate time.Time) ([]models.MonthlyFeeDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM monthly_fees f JOIN students s ON s.id = f.student_id
        WHERE f.status IN ($1, $2) AND f.amount_pending > 0 AND f.due_date = $3
        ORDER BY s.admission_number`, monthlyFeeDetailColumns)
	var fees []models.MonthlyFeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, models.FeeStatusPending, models.FeeStatusPartial, dueDate); err != nil {
		return nil, fmt.Errorf("list unpaid fees due on %s: %w", dueDate.Format("2006-01-02"), err)
	}
	return fees, nil
}

// ListDefaulters returns unpaid fees whose due date has passed asOf.
func (r *MonthlyFeeRepository) ListDefaulters(ctx context.Context, asOf time.Time) ([]models.MonthlyFeeDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM monthly_fees f JOIN students s ON s.id = f.student_id
        WHERE f.status IN ($1, $2) AND f.amount_pending > 0 AND f.due_date < $3
        ORDER BY f.due_date, s.admission_number`, monthlyFeeDetailColumns)
	var fees []models.MonthlyFeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, models.FeeStatusPending, models.FeeStatusPartial, asOf); err != nil {
		return nil, fmt.Errorf("list defaulters: %w", err)
	}
	return fees, nil
}

// MarkSMSSent flags the generation notification as delivered.
func (r *MonthlyFeeRepository) MarkSMSSent(ctx context.Context, id string, sentAt time.Time) error {
	const query = `UPDATE monthly_fees SET sms_sent = TRUE, sms_sent_at = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, sentAt, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark fee sms sent: %w", err)
	}
	return nil
}
