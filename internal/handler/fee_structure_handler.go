package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidyahq/fees-api/internal/service"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
	"github.com/vidyahq/fees-api/pkg/response"
)

// FeeStructureHandler exposes fee structure endpoints.
type FeeStructureHandler struct {
	structures *service.FeeStructureService
}

// NewFeeStructureHandler constructs handler.
func NewFeeStructureHandler(structures *service.FeeStructureService) *FeeStructureHandler {
	return &FeeStructureHandler{structures: structures}
}

// List godoc
// @Summary List fee structures
// @Tags FeeStructures
// @Produce json
// @Param academicYearId query string false "Filter by academic year"
// @Success 200 {object} response.Envelope
// @Router /fee-structures [get]
func (h *FeeStructureHandler) List(c *gin.Context) {
	structures, err := h.structures.List(c.Request.Context(), c.Query("academicYearId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structures, nil)
}

// Get godoc
// @Summary Get fee structure for a class and year
// @Tags FeeStructures
// @Produce json
// @Param classId query string true "Class ID"
// @Param academicYearId query string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fee-structures/lookup [get]
func (h *FeeStructureHandler) Get(c *gin.Context) {
	classID := c.Query("classId")
	academicYearID := c.Query("academicYearId")
	if classID == "" || academicYearID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId and academicYearId required"))
		return
	}
	structure, err := h.structures.Get(c.Request.Context(), classID, academicYearID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure, nil)
}

// Upsert godoc
// @Summary Create or update a fee structure
// @Tags FeeStructures
// @Accept json
// @Produce json
// @Param payload body service.UpsertFeeStructureRequest true "Fee structure payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fee-structures [put]
func (h *FeeStructureHandler) Upsert(c *gin.Context) {
	var req service.UpsertFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	structure, err := h.structures.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure, nil)
}
