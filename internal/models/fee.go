package models

import "time"

// Fee payment states. Status is never stored independently of the amounts:
// every write recomputes it through FeeStatusFor.
const (
	FeeStatusPending = "pending"
	FeeStatusPartial = "partial"
	FeeStatusPaid    = "paid"
)

// FeeStatusFor derives the payment status from paid vs total amount.
func FeeStatusFor(amountPaid, totalFee int64) string {
	switch {
	case amountPaid >= totalFee:
		return FeeStatusPaid
	case amountPaid > 0:
		return FeeStatusPartial
	default:
		return FeeStatusPending
	}
}

// FeeStructure defines per class, per academic year fee amounts in paise.
// Exactly one structure is active per (class, year) pair.
type FeeStructure struct {
	ID             string    `db:"id" json:"id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	TuitionFee     int64     `db:"tuition_fee" json:"tuition_fee"`
	HostelFee      int64     `db:"hostel_fee" json:"hostel_fee"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// MonthlyFee is one student's obligation for one calendar month. The amount
// breakdown is fixed at generation time; only amount_paid, amount_pending and
// status move afterwards, and amount_paid is monotonically non-decreasing.
type MonthlyFee struct {
	ID             string     `db:"id" json:"id"`
	StudentID      string     `db:"student_id" json:"student_id"`
	AcademicYearID string     `db:"academic_year_id" json:"academic_year_id"`
	Month          int        `db:"month" json:"month"`
	Year           int        `db:"year" json:"year"`
	TuitionFee     int64      `db:"tuition_fee" json:"tuition_fee"`
	HostelFee      int64      `db:"hostel_fee" json:"hostel_fee"`
	TransportFee   int64      `db:"transport_fee" json:"transport_fee"`
	TotalFee       int64      `db:"total_fee" json:"total_fee"`
	AmountPaid     int64      `db:"amount_paid" json:"amount_paid"`
	AmountPending  int64      `db:"amount_pending" json:"amount_pending"`
	Status         string     `db:"status" json:"status"`
	DueDate        time.Time  `db:"due_date" json:"due_date"`
	SMSSent        bool       `db:"sms_sent" json:"sms_sent"`
	SMSSentAt      *time.Time `db:"sms_sent_at" json:"sms_sent_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// MonthlyFeeDetail joins the student context needed for reminders and reports.
type MonthlyFeeDetail struct {
	MonthlyFee
	AdmissionNumber  string `db:"admission_number" json:"admission_number"`
	StudentFirstName string `db:"first_name" json:"student_first_name"`
	StudentLastName  string `db:"last_name" json:"student_last_name"`
	ParentName       string `db:"parent_name" json:"parent_name"`
	ParentPhone      string `db:"parent_phone" json:"parent_phone"`
}

// MonthlyFeeFilter restricts fee listings.
type MonthlyFeeFilter struct {
	StudentID string
	ClassID   string
	Status    string
	Month     int
	Year      int
	Page      int
	PageSize  int
}
