package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/scheduler"
	"github.com/vidyahq/fees-api/internal/service"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
	"github.com/vidyahq/fees-api/pkg/response"
)

// FeeHandler exposes monthly fee endpoints.
type FeeHandler struct {
	fees    *service.FeeService
	locks   runLocker
	lockTTL time.Duration
}

// NewFeeHandler constructs handler. Manual generation shares the
// scheduler's run lock, so a triggered batch never overlaps the
// scheduled one.
func NewFeeHandler(fees *service.FeeService, locks runLocker, lockTTL time.Duration) *FeeHandler {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &FeeHandler{fees: fees, locks: locks, lockTTL: lockTTL}
}

// Generate godoc
// @Summary Generate monthly fees
// @Description Creates one fee per active student for the month; already generated students are skipped
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.GenerateRequest true "Generation target"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/generate [post]
func (h *FeeHandler) Generate(c *gin.Context) {
	var req service.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if h.locks != nil {
		acquired, err := h.locks.AcquireLock(c.Request.Context(), scheduler.LockKeyGeneration, h.lockTTL)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to acquire generation lock"))
			return
		}
		if !acquired {
			response.Error(c, appErrors.Clone(appErrors.ErrConflict, "a fee generation run is already in progress"))
			return
		}
		defer h.locks.ReleaseLock(c.Request.Context(), scheduler.LockKeyGeneration)
	}

	summary, err := h.fees.GenerateMonthlyFees(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// List godoc
// @Summary List monthly fees
// @Tags Fees
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param status query string false "Filter by status (pending|partial|paid)"
// @Param month query int false "Filter by month"
// @Param year query int false "Filter by year"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	filter := models.MonthlyFeeFilter{
		StudentID: c.Query("studentId"),
		ClassID:   c.Query("classId"),
		Status:    c.Query("status"),
		Month:     queryInt(c, "month", 0),
		Year:      queryInt(c, "year", 0),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 20),
	}
	fees, pagination, err := h.fees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, pagination)
}

// Get godoc
// @Summary Get monthly fee
// @Tags Fees
// @Produce json
// @Param id path string true "Monthly fee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/{id} [get]
func (h *FeeHandler) Get(c *gin.Context) {
	fee, err := h.fees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}
