package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyahq/fees-api/internal/models"
)

// FeeStructureRepository manages per-class fee definitions.
type FeeStructureRepository struct {
	db *sqlx.DB
}

// NewFeeStructureRepository constructs a FeeStructureRepository.
func NewFeeStructureRepository(db *sqlx.DB) *FeeStructureRepository {
	return &FeeStructureRepository{db: db}
}

// FindForClassYear returns the single active structure for a (class, year) pair.
func (r *FeeStructureRepository) FindForClassYear(ctx context.Context, classID, academicYearID string) (*models.FeeStructure, error) {
	const query = `SELECT id, class_id, academic_year_id, tuition_fee, hostel_fee, created_at, updated_at
        FROM fee_structures WHERE class_id = $1 AND academic_year_id = $2`
	var structure models.FeeStructure
	if err := r.db.GetContext(ctx, &structure, query, classID, academicYearID); err != nil {
		return nil, err
	}
	return &structure, nil
}

// List returns all structures for an academic year.
func (r *FeeStructureRepository) List(ctx context.Context, academicYearID string) ([]models.FeeStructure, error) {
	const query = `SELECT id, class_id, academic_year_id, tuition_fee, hostel_fee, created_at, updated_at
        FROM fee_structures WHERE academic_year_id = $1 ORDER BY class_id`
	var structures []models.FeeStructure
	if err := r.db.SelectContext(ctx, &structures, query, academicYearID); err != nil {
		return nil, fmt.Errorf("list fee structures: %w", err)
	}
	return structures, nil
}

// Upsert creates or replaces the structure for the class-year combination,
// holding the existing row locked so two concurrent writers cannot both insert.
func (r *FeeStructureRepository) Upsert(ctx context.Context, structure *models.FeeStructure) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fee structure transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var currentID string
	const selectQuery = `SELECT id FROM fee_structures WHERE class_id = $1 AND academic_year_id = $2 FOR UPDATE`
	if err = tx.GetContext(ctx, &currentID, selectQuery, structure.ClassID, structure.AcademicYearID); err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("lock fee structure: %w", err)
		}
		structure.ID = uuid.NewString()
		structure.CreatedAt = now
		structure.UpdatedAt = now
		const insertQuery = `INSERT INTO fee_structures (id, class_id, academic_year_id, tuition_fee, hostel_fee, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err = tx.ExecContext(ctx, insertQuery, structure.ID, structure.ClassID, structure.AcademicYearID,
			structure.TuitionFee, structure.HostelFee, now, now); err != nil {
			return fmt.Errorf("insert fee structure: %w", err)
		}
	} else {
		structure.ID = currentID
		structure.UpdatedAt = now
		const updateQuery = `UPDATE fee_structures SET tuition_fee = $1, hostel_fee = $2, updated_at = $3 WHERE id = $4`
		if _, err = tx.ExecContext(ctx, updateQuery, structure.TuitionFee, structure.HostelFee, now, currentID); err != nil {
			return fmt.Errorf("update fee structure: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit fee structure: %w", err)
	}
	return nil
}
