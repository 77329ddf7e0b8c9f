package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyahq/fees-api/internal/models"
)

// ReminderRepository owns the append-only fee reminder log.
type ReminderRepository struct {
	db *sqlx.DB
}

// NewReminderRepository constructs a ReminderRepository.
func NewReminderRepository(db *sqlx.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

const reminderColumns = `id, student_id, monthly_fee_id, reminder_type, days_offset, amount_pending, due_date,
        sent_at, sms_status, sms_id, payment_received_after, days_to_payment, created_at`

// Create appends one reminder attempt.
func (r *ReminderRepository) Create(ctx context.Context, reminder *models.FeeReminder) error {
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	reminder.CreatedAt = time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO fee_reminders (%s)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, reminderColumns)
	if _, err := r.db.ExecContext(ctx, query,
		reminder.ID, reminder.StudentID, reminder.MonthlyFeeID, reminder.ReminderType, reminder.DaysOffset,
		reminder.AmountPending, reminder.DueDate, reminder.SentAt, reminder.SMSStatus, reminder.SMSID,
		reminder.PaymentReceivedAfter, reminder.DaysToPayment, reminder.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert fee reminder: %w", err)
	}
	return nil
}

// CountForFee returns how many reminders a fee has already received.
func (r *ReminderRepository) CountForFee(ctx context.Context, monthlyFeeID string) (int, error) {
	const query = `SELECT COUNT(id) FROM fee_reminders WHERE monthly_fee_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, monthlyFeeID); err != nil {
		return 0, fmt.Errorf("count reminders for fee: %w", err)
	}
	return count, nil
}

// LastOfType returns the most recent send time of a reminder type for a fee,
// or nil when none was ever sent. Drives the same-type throttle.
func (r *ReminderRepository) LastOfType(ctx context.Context, monthlyFeeID, reminderType string) (*time.Time, error) {
	const query = `SELECT sent_at FROM fee_reminders WHERE monthly_fee_id = $1 AND reminder_type = $2
        ORDER BY sent_at DESC LIMIT 1`
	var sentAt time.Time
	if err := r.db.GetContext(ctx, &sentAt, query, monthlyFeeID, reminderType); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("last reminder of type: %w", err)
	}
	return &sentAt, nil
}

// List returns reminder log rows matching the filter, newest first.
func (r *ReminderRepository) List(ctx context.Context, filter models.ReminderFilter) ([]models.FeeReminder, int, error) {
	base := "FROM fee_reminders fr"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("fr.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.MonthlyFeeID != "" {
		conditions = append(conditions, fmt.Sprintf("fr.monthly_fee_id = $%d", len(args)+1))
		args = append(args, filter.MonthlyFeeID)
	}
	if filter.ReminderType != "" {
		conditions = append(conditions, fmt.Sprintf("fr.reminder_type = $%d", len(args)+1))
		args = append(args, filter.ReminderType)
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

	query := fmt.Sprintf(`SELECT fr.id, fr.student_id, fr.monthly_fee_id, fr.reminder_type, fr.days_offset,
        fr.amount_pending, fr.due_date, fr.sent_at, fr.sms_status, fr.sms_id, fr.payment_received_after,
        fr.days_to_payment, fr.created_at
        %s ORDER BY fr.sent_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var reminders []models.FeeReminder
	if err := r.db.SelectContext(ctx, &reminders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee reminders: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(fr.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee reminders: %w", err)
	}
	return reminders, total, nil
}

// MarkPaymentReceived backfills effectiveness data on every reminder for the
// fee that has not yet seen a payment. Called after a payment commits.
func (r *ReminderRepository) MarkPaymentReceived(ctx context.Context, monthlyFeeID string, paidAt time.Time) error {
	const query = `UPDATE fee_reminders
        SET payment_received_after = TRUE,
            days_to_payment = GREATEST(0, EXTRACT(DAY FROM ($1::timestamptz - sent_at))::int)
        WHERE monthly_fee_id = $2 AND payment_received_after = FALSE`
	if _, err := r.db.ExecContext(ctx, query, paidAt, monthlyFeeID); err != nil {
		return fmt.Errorf("mark payment received: %w", err)
	}
	return nil
}

// reminderStatsRow scans the single aggregate query backing Stats.
type reminderStatsRow struct {
	Total            int             `db:"total"`
	PaidAfter        int             `db:"paid_after"`
	AvgDaysToPayment sql.NullFloat64 `db:"avg_days_to_payment"`
	Recent7Days      int             `db:"recent_7_days"`
}

// Stats aggregates reminder effectiveness across the whole log.
func (r *ReminderRepository) Stats(ctx context.Context, now time.Time) (*models.ReminderStats, error) {
	const aggregateQuery = `SELECT
        COUNT(id) AS total,
        COUNT(id) FILTER (WHERE payment_received_after) AS paid_after,
        AVG(days_to_payment) FILTER (WHERE days_to_payment IS NOT NULL) AS avg_days_to_payment,
        COUNT(id) FILTER (WHERE sent_at >= $1) AS recent_7_days
        FROM fee_reminders`
	var row reminderStatsRow
	if err := r.db.GetContext(ctx, &row, aggregateQuery, now.Add(-7*24*time.Hour)); err != nil {
		return nil, fmt.Errorf("aggregate reminder stats: %w", err)
	}

	const byTypeQuery = `SELECT reminder_type, COUNT(id) AS count FROM fee_reminders GROUP BY reminder_type`
	var typeRows []struct {
		ReminderType string `db:"reminder_type"`
		Count        int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &typeRows, byTypeQuery); err != nil {
		return nil, fmt.Errorf("reminder stats by type: %w", err)
	}

	stats := &models.ReminderStats{
		TotalReminders:       row.Total,
		ByType:               make(map[string]int, len(typeRows)),
		PaymentAfterReminder: row.PaidAfter,
		RecentReminders7Days: row.Recent7Days,
	}
	for _, tr := range typeRows {
		stats.ByType[tr.ReminderType] = tr.Count
	}
	if row.Total > 0 {
		stats.EffectivenessRate = float64(row.PaidAfter) / float64(row.Total) * 100
	}
	if row.AvgDaysToPayment.Valid {
		avg := row.AvgDaysToPayment.Float64
		stats.AvgDaysToPayment = &avg
	}
	return stats, nil
}
