package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vidyahq/fees-api/internal/models"
)

// AcademicRepository serves class, academic year and transport route lookups.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs an AcademicRepository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// CurrentAcademicYear returns the academic year flagged as current.
func (r *AcademicRepository) CurrentAcademicYear(ctx context.Context) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, end_date, is_current FROM academic_years WHERE is_current = TRUE LIMIT 1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query); err != nil {
		return nil, err
	}
	return &year, nil
}

// ListClasses returns all classes ordered by name.
func (r *AcademicRepository) ListClasses(ctx context.Context) ([]models.Class, error) {
	const query = `SELECT id, name, section, created_at FROM classes ORDER BY name`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindTransportRoute fetches a transport route by ID.
func (r *AcademicRepository) FindTransportRoute(ctx context.Context, id string) (*models.TransportRoute, error) {
	const query = `SELECT id, name, monthly_fee, active, created_at FROM transport_routes WHERE id = $1`
	var route models.TransportRoute
	if err := r.db.GetContext(ctx, &route, query, id); err != nil {
		return nil, err
	}
	return &route, nil
}

// ListTransportRoutes returns all active transport routes.
func (r *AcademicRepository) ListTransportRoutes(ctx context.Context) ([]models.TransportRoute, error) {
	const query = `SELECT id, name, monthly_fee, active, created_at FROM transport_routes WHERE active = TRUE ORDER BY name`
	var routes []models.TransportRoute
	if err := r.db.SelectContext(ctx, &routes, query); err != nil {
		return nil, fmt.Errorf("list transport routes: %w", err)
	}
	return routes, nil
}
