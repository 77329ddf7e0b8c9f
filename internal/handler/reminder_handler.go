package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/scheduler"
	"github.com/vidyahq/fees-api/internal/service"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
	"github.com/vidyahq/fees-api/pkg/response"
)

// runLocker serializes manually triggered runs against the scheduler's,
// using the same redis lock keys.
type runLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string)
}

// ReminderHandler exposes reminder sweep and history endpoints.
type ReminderHandler struct {
	reminders *service.ReminderService
	stats     *service.ReminderStatsService
	locks     runLocker
	lockTTL   time.Duration
}

// NewReminderHandler constructs handler. Manual sweeps share the scheduler's
// run lock, so a triggered run never overlaps a scheduled one.
func NewReminderHandler(reminders *service.ReminderService, stats *service.ReminderStatsService, locks runLocker, lockTTL time.Duration) *ReminderHandler {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &ReminderHandler{reminders: reminders, stats: stats, locks: locks, lockTTL: lockTTL}
}

// RunSweep godoc
// @Summary Run the reminder sweep
// @Description Evaluates every reminder window against unpaid fees and sends due SMS
// @Tags Reminders
// @Produce json
// @Param date query string false "Sweep date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reminders/sweep [post]
func (h *ReminderHandler) RunSweep(c *gin.Context) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		today = parsed
	}

	if h.locks != nil {
		acquired, err := h.locks.AcquireLock(c.Request.Context(), scheduler.LockKeySweep, h.lockTTL)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to acquire sweep lock"))
			return
		}
		if !acquired {
			response.Error(c, appErrors.Clone(appErrors.ErrConflict, "a reminder sweep is already running"))
			return
		}
		defer h.locks.ReleaseLock(c.Request.Context(), scheduler.LockKeySweep)
	}

	summary, err := h.reminders.RunSweep(c.Request.Context(), today)
	if err != nil {
		response.Error(c, err)
		return
	}
	if summary.Sent > 0 {
		h.stats.Invalidate(c.Request.Context())
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// List godoc
// @Summary List sent reminders
// @Tags Reminders
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param feeId query string false "Filter by monthly fee"
// @Param type query string false "Filter by reminder type"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reminders [get]
func (h *ReminderHandler) List(c *gin.Context) {
	filter := models.ReminderFilter{
		StudentID:    c.Query("studentId"),
		MonthlyFeeID: c.Query("feeId"),
		ReminderType: c.Query("type"),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "pageSize", 50),
	}
	reminders, pagination, err := h.reminders.ListReminders(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reminders, pagination)
}

// Stats godoc
// @Summary Reminder effectiveness statistics
// @Tags Reminders
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reminders/stats [get]
func (h *ReminderHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
