package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyahq/fees-api/internal/models"
)

// SMSLogRepository appends outbound SMS attempts for auditing.
type SMSLogRepository struct {
	db *sqlx.DB
}

// NewSMSLogRepository constructs an SMSLogRepository.
func NewSMSLogRepository(db *sqlx.DB) *SMSLogRepository {
	return &SMSLogRepository{db: db}
}

// Create appends one SMS log row.
func (r *SMSLogRepository) Create(ctx context.Context, log *models.SMSLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO sms_logs (id, phone_number, message, sms_type, student_id, monthly_fee_id, status, gateway_response, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		log.ID, log.PhoneNumber, log.Message, log.SMSType, log.StudentID, log.MonthlyFeeID,
		log.Status, log.GatewayResponse, log.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert sms log: %w", err)
	}
	return nil
}
