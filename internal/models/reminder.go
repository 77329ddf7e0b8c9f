package models

import "time"

// Reminder types in escalation order. The 15-day overdue reminder goes out
// as a final notice, matching the SMS template wording.
const (
	ReminderTypeAdvance = "advance"
	ReminderTypeDue     = "due"
	ReminderTypeOverdue = "overdue"
	ReminderTypeFinal   = "final"
)

// Delivery states reported by the SMS gateway.
const (
	ReminderStatusSent      = "sent"
	ReminderStatusDelivered = "delivered"
	ReminderStatusFailed    = "failed"
	ReminderStatusPending   = "pending"
)

// FeeReminder is an append-only log of one reminder attempt for one fee.
// payment_received_after and days_to_payment are backfilled when a payment
// lands, feeding the effectiveness metric.
type FeeReminder struct {
	ID                   string    `db:"id" json:"id"`
	StudentID            string    `db:"student_id" json:"student_id"`
	MonthlyFeeID         string    `db:"monthly_fee_id" json:"monthly_fee_id"`
	ReminderType         string    `db:"reminder_type" json:"reminder_type"`
	DaysOffset           int       `db:"days_offset" json:"days_offset"`
	AmountPending        int64     `db:"amount_pending" json:"amount_pending"`
	DueDate              time.Time `db:"due_date" json:"due_date"`
	SentAt               time.Time `db:"sent_at" json:"sent_at"`
	SMSStatus            string    `db:"sms_status" json:"sms_status"`
	SMSID                *string   `db:"sms_id" json:"sms_id,omitempty"`
	PaymentReceivedAfter bool      `db:"payment_received_after" json:"payment_received_after"`
	DaysToPayment        *int      `db:"days_to_payment" json:"days_to_payment,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// ReminderFilter restricts reminder log listings.
type ReminderFilter struct {
	StudentID    string
	MonthlyFeeID string
	ReminderType string
	Page         int
	PageSize     int
}

// ReminderStats aggregates reminder effectiveness.
type ReminderStats struct {
	TotalReminders       int            `json:"total_reminders"`
	ByType               map[string]int `json:"by_type"`
	PaymentAfterReminder int            `json:"payment_after_reminder"`
	EffectivenessRate    float64        `json:"effectiveness_rate"`
	AvgDaysToPayment     *float64       `json:"avg_days_to_payment,omitempty"`
	RecentReminders7Days int            `json:"recent_reminders_7_days"`
}
