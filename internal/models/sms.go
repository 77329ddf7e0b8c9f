package models

import "time"

// SMS message categories.
const (
	SMSTypeFeeGenerated = "fee_generated"
	SMSTypeReminder     = "reminder"
	SMSTypeReceipt      = "receipt"
)

// SMSLog records every outbound SMS attempt with the gateway verdict.
type SMSLog struct {
	ID              string    `db:"id" json:"id"`
	PhoneNumber     string    `db:"phone_number" json:"phone_number"`
	Message         string    `db:"message" json:"message"`
	SMSType         string    `db:"sms_type" json:"sms_type"`
	StudentID       *string   `db:"student_id" json:"student_id,omitempty"`
	MonthlyFeeID    *string   `db:"monthly_fee_id" json:"monthly_fee_id,omitempty"`
	Status          string    `db:"status" json:"status"`
	GatewayResponse *string   `db:"gateway_response" json:"gateway_response,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
