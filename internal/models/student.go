package models

import "time"

// Student lifecycle states. Withdrawal is a soft delete: the row stays,
// status flips to inactive and fee generation skips it.
const (
	StudentStatusActive    = "active"
	StudentStatusInactive  = "inactive"
	StudentStatusGraduated = "graduated"
)

// Student represents a learner registered in the institution, including the
// fee configuration flags that drive monthly fee computation.
type Student struct {
	ID               string    `db:"id" json:"id"`
	AdmissionNumber  string    `db:"admission_number" json:"admission_number"`
	FirstName        string    `db:"first_name" json:"first_name"`
	LastName         string    `db:"last_name" json:"last_name"`
	DateOfBirth      time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender           string    `db:"gender" json:"gender"`
	ClassID          string    `db:"class_id" json:"class_id"`
	AcademicYearID   string    `db:"academic_year_id" json:"academic_year_id"`
	ParentName       string    `db:"parent_name" json:"parent_name"`
	ParentPhone      string    `db:"parent_phone" json:"parent_phone"`
	ParentEmail      *string   `db:"parent_email" json:"parent_email,omitempty"`
	Address          *string   `db:"address" json:"address,omitempty"`
	HasHostel        bool      `db:"has_hostel" json:"has_hostel"`
	TransportRouteID *string   `db:"transport_route_id" json:"transport_route_id,omitempty"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display and SMS templates.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains student information with class context.
type StudentDetail struct {
	Student
	ClassName        *string `db:"class_name" json:"class_name,omitempty"`
	TransportRoute   *string `db:"transport_route" json:"transport_route,omitempty"`
	AcademicYearName *string `db:"academic_year_name" json:"academic_year_name,omitempty"`
}
