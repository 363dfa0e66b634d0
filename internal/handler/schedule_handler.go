package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rotaops/rota-api/internal/dto"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
	"github.com/rotaops/rota-api/pkg/response"
)

type scheduleService interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.ScheduleResponse, error)
	Current(ctx context.Context) (*dto.ScheduleResponse, error)
	AddAssignment(ctx context.Context, shiftID string, req dto.AddAssignmentRequest) (*dto.ShiftResponse, error)
	RemoveAssignment(ctx context.Context, shiftID, employeeID string) (*dto.ShiftResponse, error)
}

type scheduleExporter interface {
	ScheduleCSV(ctx context.Context, delimiter string) ([]byte, string, error)
}

// ScheduleHandler manages schedule endpoints.
type ScheduleHandler struct {
	service  scheduleService
	exporter scheduleExporter
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(service scheduleService, exporter scheduleExporter) *ScheduleHandler {
	return &ScheduleHandler{service: service, exporter: exporter}
}

// Generate godoc
// @Summary Generate the weekly schedule
// @Description Expands the shift templates for the anchored week and
// @Description assigns eligible employees. Replaces the stored schedule.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Week anchor"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}

	schedule, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, schedule)
}

// Current godoc
// @Summary Get the current schedule
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/current [get]
func (h *ScheduleHandler) Current(c *gin.Context) {
	schedule, err := h.service.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, schedule)
}

// AddAssignment godoc
// @Summary Assign an employee to a shift
// @Description Manual assignment; duplicate or full shifts are rejected,
// @Description role and availability rules are not enforced here.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Shift ID"
// @Param payload body dto.AddAssignmentRequest true "Employee"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/shifts/{id}/assignments [post]
func (h *ScheduleHandler) AddAssignment(c *gin.Context) {
	var req dto.AddAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	shift, err := h.service.AddAssignment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, shift)
}

// RemoveAssignment godoc
// @Summary Remove an employee from a shift
// @Description Removing an employee who is not assigned is a no-op and
// @Description still returns the shift.
// @Tags Schedules
// @Produce json
// @Param id path string true "Shift ID"
// @Param employeeId path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/shifts/{id}/assignments/{employeeId} [delete]
func (h *ScheduleHandler) RemoveAssignment(c *gin.Context) {
	shift, err := h.service.RemoveAssignment(c.Request.Context(), c.Param("id"), c.Param("employeeId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, shift)
}

// ExportCSV godoc
// @Summary Download the current schedule as CSV
// @Tags Schedules
// @Produce text/csv
// @Param delimiter query string false "Single-character CSV delimiter"
// @Success 200 {string} string "CSV payload"
// @Failure 404 {object} response.Envelope
// @Router /schedules/export.csv [get]
func (h *ScheduleHandler) ExportCSV(c *gin.Context) {
	payload, filename, err := h.exporter.ScheduleCSV(c.Request.Context(), c.Query("delimiter"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}
