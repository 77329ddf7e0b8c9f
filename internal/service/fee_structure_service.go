package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidyahq/fees-api/internal/models"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
)

type feeStructureRepository interface {
	FindForClassYear(ctx context.Context, classID, academicYearID string) (*models.FeeStructure, error)
	List(ctx context.Context, academicYearID string) ([]models.FeeStructure, error)
	Upsert(ctx context.Context, structure *models.FeeStructure) error
}

// UpsertFeeStructureRequest sets the fee amounts for a class-year pair.
type UpsertFeeStructureRequest struct {
	ClassID        string `json:"class_id" validate:"required"`
	AcademicYearID string `json:"academic_year_id" validate:"required"`
	TuitionFee     int64  `json:"tuition_fee" validate:"required,min=0"`
	HostelFee      int64  `json:"hostel_fee" validate:"min=0"`
}

// FeeStructureService manages per-class fee definitions.
type FeeStructureService struct {
	repo      feeStructureRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeStructureService constructs the fee structure service.
func NewFeeStructureService(repo feeStructureRepository, validate *validator.Validate, logger *zap.Logger) *FeeStructureService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeStructureService{repo: repo, validator: validate, logger: logger}
}

// List returns all structures for an academic year.
func (s *FeeStructureService) List(ctx context.Context, academicYearID string) ([]models.FeeStructure, error) {
	if academicYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academic_year_id is required")
	}
	structures, err := s.repo.List(ctx, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee structures")
	}
	return structures, nil
}

// Get returns the structure for a class-year pair.
func (s *FeeStructureService) Get(ctx context.Context, classID, academicYearID string) (*models.FeeStructure, error) {
	structure, err := s.repo.FindForClassYear(ctx, classID, academicYearID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}
	return structure, nil
}

// Upsert creates or replaces the structure for the class-year pair.
func (s *FeeStructureService) Upsert(ctx context.Context, req UpsertFeeStructureRequest) (*models.FeeStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee structure payload")
	}
	structure := &models.FeeStructure{
		ClassID:        req.ClassID,
		AcademicYearID: req.AcademicYearID,
		TuitionFee:     req.TuitionFee,
		HostelFee:      req.HostelFee,
	}
	if err := s.repo.Upsert(ctx, structure); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save fee structure")
	}
	return structure, nil
}
