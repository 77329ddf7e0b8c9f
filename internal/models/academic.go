package models

import "time"

// Class is a teaching group students are assigned to (e.g. "Grade 5 A").
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Section   *string   `db:"section" json:"section,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AcademicYear bounds a fee cycle (e.g. "2024-25").
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
}

// TransportRoute carries the per-route monthly transport fee in paise.
type TransportRoute struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	MonthlyFee int64     `db:"monthly_fee" json:"monthly_fee"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
