package models

import "time"

// Accepted payment modes.
const (
	PaymentModeCash   = "cash"
	PaymentModeUPI    = "upi"
	PaymentModeCheque = "cheque"
	PaymentModeCard   = "card"
)

// Payment is an append-only ledger entry against a monthly fee. Rows are
// never updated or deleted; the sum of a fee's payments always equals that
// fee's amount_paid.
type Payment struct {
	ID            string    `db:"id" json:"id"`
	MonthlyFeeID  string    `db:"monthly_fee_id" json:"monthly_fee_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	Amount        int64     `db:"amount" json:"amount"`
	PaymentMode   string    `db:"payment_mode" json:"payment_mode"`
	PaymentDate   time.Time `db:"payment_date" json:"payment_date"`
	TransactionID *string   `db:"transaction_id" json:"transaction_id,omitempty"`
	ReceiptNumber string    `db:"receipt_number" json:"receipt_number"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	RecordedBy    string    `db:"recorded_by" json:"recorded_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PaymentFilter restricts payment listings.
type PaymentFilter struct {
	StudentID   string
	PaymentMode string
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}

// Receipt is the caller-facing result of recording a payment.
type Receipt struct {
	PaymentID     string `json:"payment_id"`
	ReceiptNumber string `json:"receipt_number"`
	NewStatus     string `json:"new_status"`
	AmountPaid    int64  `json:"amount_paid"`
	AmountPending int64  `json:"amount_pending"`
}
