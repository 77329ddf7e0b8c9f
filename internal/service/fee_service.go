package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/repository"
	"github.com/vidyahq/fees-api/pkg/config"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
)

type activeStudentLister interface {
	ListActive(ctx context.Context, academicYearID string) ([]models.Student, error)
}

type feeStructureReader interface {
	FindForClassYear(ctx context.Context, classID, academicYearID string) (*models.FeeStructure, error)
}

type academicReader interface {
	CurrentAcademicYear(ctx context.Context) (*models.AcademicYear, error)
	FindTransportRoute(ctx context.Context, id string) (*models.TransportRoute, error)
}

type monthlyFeeStore interface {
	Create(ctx context.Context, fee *models.MonthlyFee) error
	ExistingStudentIDs(ctx context.Context, year, month int) (map[string]struct{}, error)
	List(ctx context.Context, filter models.MonthlyFeeFilter) ([]models.MonthlyFeeDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.MonthlyFeeDetail, error)
}

type feeNotifier interface {
	QueueFeeGenerated(n FeeGeneratedNotification)
}

type generationRecorder interface {
	FeeGenerated()
}

// FeeService generates monthly fee obligations.
type FeeService struct {
	students  activeStudentLister
	structs   feeStructureReader
	academics academicReader
	fees      monthlyFeeStore
	notifier  feeNotifier
	metrics   generationRecorder
	cfg       config.FeesConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeService constructs the fee generation service.
func NewFeeService(
	students activeStudentLister,
	structs feeStructureReader,
	academics academicReader,
	fees monthlyFeeStore,
	notifier feeNotifier,
	metrics generationRecorder,
	cfg config.FeesConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DueDay <= 0 {
		cfg.DueDay = 10
	}
	return &FeeService{
		students:  students,
		structs:   structs,
		academics: academics,
		fees:      fees,
		notifier:  notifier,
		metrics:   metrics,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
}

// GenerateRequest identifies the target month.
type GenerateRequest struct {
	Year  int `json:"year" validate:"required,min=2000,max=2100"`
	Month int `json:"month" validate:"required,min=1,max=12"`
}

// GenerateMonthlyFees creates one fee per active student lacking one for the
// month. Idempotent: students with an existing fee are skipped, and the
// unique index backstops the pre-check against concurrent runs. A missing
// fee structure fails only that student; the batch continues.
func (s *FeeService) GenerateMonthlyFees(ctx context.Context, req GenerateRequest) (*models.GenerationSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation request")
	}

	year, err := s.academics.CurrentAcademicYear(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current academic year configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}

	students, err := s.students.ListActive(ctx, year.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active students")
	}

	existing, err := s.fees.ExistingStudentIDs(ctx, req.Year, req.Month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing fees")
	}

	summary := &models.GenerationSummary{Year: req.Year, Month: req.Month}
	dueDate := s.dueDateFor(req.Year, req.Month)

	for _, student := range students {
		if _, ok := existing[student.ID]; ok {
			summary.Skipped++
			continue
		}

		fee, err := s.buildFee(ctx, student, year.ID, req.Year, req.Month, dueDate)
		if err != nil {
			summary.Errors = append(summary.Errors, models.ItemError{StudentID: student.ID, Reason: err.Error()})
			continue
		}

		if err := s.fees.Create(ctx, fee); err != nil {
			if errors.Is(err, repository.ErrDuplicateMonthlyFee) {
				summary.Skipped++
				continue
			}
			summary.Errors = append(summary.Errors, models.ItemError{StudentID: student.ID, Reason: err.Error()})
			continue
		}

		summary.Created++
		if s.metrics != nil {
			s.metrics.FeeGenerated()
		}
		if s.notifier != nil {
			s.notifier.QueueFeeGenerated(FeeGeneratedNotification{
				FeeID:       fee.ID,
				StudentID:   student.ID,
				ParentName:  student.ParentName,
				ParentPhone: student.ParentPhone,
				StudentName: student.FirstName,
				Month:       req.Month,
				Year:        req.Year,
				TotalFee:    fee.TotalFee,
				DueDate:     fee.DueDate,
			})
		}
	}

	s.logger.Sugar().Infow("fee generation completed",
		"year", req.Year, "month", req.Month,
		"created", summary.Created, "skipped", summary.Skipped, "errors", len(summary.Errors))
	return summary, nil
}

func (s *FeeService) buildFee(ctx context.Context, student models.Student, academicYearID string, year, month int, dueDate time.Time) (*models.MonthlyFee, error) {
	structure, err := s.structs.FindForClassYear(ctx, student.ClassID, academicYearID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no fee structure for class %s", student.ClassID)
		}
		return nil, fmt.Errorf("load fee structure: %w", err)
	}

	tuition := structure.TuitionFee
	var hostel int64
	if student.HasHostel {
		hostel = structure.HostelFee
	}
	var transport int64
	if student.TransportRouteID != nil {
		route, err := s.academics.FindTransportRoute(ctx, *student.TransportRouteID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("load transport route: %w", err)
			}
		} else {
			transport = route.MonthlyFee
		}
	}

	total := tuition + hostel + transport
	return &models.MonthlyFee{
		StudentID:      student.ID,
		AcademicYearID: academicYearID,
		Month:          month,
		Year:           year,
		TuitionFee:     tuition,
		HostelFee:      hostel,
		TransportFee:   transport,
		TotalFee:       total,
		AmountPaid:     0,
		AmountPending:  total,
		Status:         models.FeeStatusPending,
		DueDate:        dueDate,
	}, nil
}

// dueDateFor clamps the configured due day to the 28th so every month has a
// valid date.
func (s *FeeService) dueDateFor(year, month int) time.Time {
	day := s.cfg.DueDay
	if day > 28 {
		day = 28
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// List returns monthly fees with student context.
func (s *FeeService) List(ctx context.Context, filter models.MonthlyFeeFilter) ([]models.MonthlyFeeDetail, *models.Pagination, error) {
	fees, total, err := s.fees.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list monthly fees")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return fees, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one monthly fee with student context.
func (s *FeeService) Get(ctx context.Context, id string) (*models.MonthlyFeeDetail, error) {
	fee, err := s.fees.FindDetailByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "monthly fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load monthly fee")
	}
	return fee, nil
}
