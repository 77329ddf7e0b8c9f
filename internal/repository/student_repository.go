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

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentDetailColumns = `s.id, s.admission_number, s.first_name, s.last_name, s.date_of_birth, s.gender,
        s.class_id, s.academic_year_id, s.parent_name, s.parent_phone, s.parent_email, s.address,
        s.has_hostel, s.transport_route_id, s.status, s.created_at, s.updated_at,
        c.name AS class_name, tr.name AS transport_route, ay.name AS academic_year_name`

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := `FROM students s
        LEFT JOIN classes c ON c.id = s.class_id
        LEFT JOIN transport_routes tr ON tr.id = s.transport_route_id
        LEFT JOIN academic_years ay ON ay.id = s.academic_year_id`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name || ' ' || s.last_name) LIKE $%d OR LOWER(s.admission_number) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"first_name":       "s.first_name",
		"admission_number": "s.admission_number",
		"created_at":       "s.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentDetailColumns, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(s.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student detail by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM students s
        LEFT JOIN classes c ON c.id = s.class_id
        LEFT JOIN transport_routes tr ON tr.id = s.transport_route_id
        LEFT JOIN academic_years ay ON ay.id = s.academic_year_id
        WHERE s.id = $1`, studentDetailColumns)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListActive returns all active students for an academic year, the input set
// for monthly fee generation.
func (r *StudentRepository) ListActive(ctx context.Context, academicYearID string) ([]models.Student, error) {
	query := `SELECT s.id, s.admission_number, s.first_name, s.last_name, s.date_of_birth, s.gender,
        s.class_id, s.academic_year_id, s.parent_name, s.parent_phone, s.parent_email, s.address,
        s.has_hostel, s.transport_route_id, s.status, s.created_at, s.updated_at
        FROM students s WHERE s.academic_year_id = $1 AND s.status = $2 ORDER BY s.admission_number`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, academicYearID, models.StudentStatusActive); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return students, nil
}

// ExistsByAdmissionNumber checks uniqueness optionally excluding an ID.
func (r *StudentRepository) ExistsByAdmissionNumber(ctx context.Context, admissionNumber string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE admission_number = $1"
	args := []interface{}{admissionNumber}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check admission number: %w", err)
	}
	return true, nil
}

// Create inserts a new student row.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	query := `INSERT INTO students (id, admission_number, first_name, last_name, date_of_birth, gender,
        class_id, academic_year_id, parent_name, parent_phone, parent_email, address,
        has_hostel, transport_route_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	if _, err := r.db.ExecContext(ctx, query,
		student.ID, student.AdmissionNumber, student.FirstName, student.LastName, student.DateOfBirth, student.Gender,
		student.ClassID, student.AcademicYearID, student.ParentName, student.ParentPhone, student.ParentEmail, student.Address,
		student.HasHostel, student.TransportRouteID, student.Status, student.CreatedAt, student.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// Update modifies mutable student fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	query := `UPDATE students SET first_name = $1, last_name = $2, date_of_birth = $3, gender = $4,
        class_id = $5, parent_name = $6, parent_phone = $7, parent_email = $8, address = $9,
        has_hostel = $10, transport_route_id = $11, status = $12, updated_at = $13
        WHERE id = $14`
	if _, err := r.db.ExecContext(ctx, query,
		student.FirstName, student.LastName, student.DateOfBirth, student.Gender,
		student.ClassID, student.ParentName, student.ParentPhone, student.ParentEmail, student.Address,
		student.HasHostel, student.TransportRouteID, student.Status, student.UpdatedAt,
		student.ID,
	); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a student by moving it to inactive status.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE students SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, models.StudentStatusInactive, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
