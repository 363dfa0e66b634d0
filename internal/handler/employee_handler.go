package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rotaops/rota-api/internal/dto"
	"github.com/rotaops/rota-api/internal/models"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
	"github.com/rotaops/rota-api/pkg/response"
)

type rosterService interface {
	List(ctx context.Context, query dto.EmployeeListQuery) ([]models.Employee, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Employee, error)
	Create(ctx context.Context, req dto.EmployeeRequest) (*models.Employee, error)
	Update(ctx context.Context, id string, req dto.EmployeeRequest) (*models.Employee, error)
	Delete(ctx context.Context, id string) error
}

// EmployeeHandler manages roster HTTP endpoints.
type EmployeeHandler struct {
	service rosterService
}

// NewEmployeeHandler constructs the handler.
func NewEmployeeHandler(service rosterService) *EmployeeHandler {
	return &EmployeeHandler{service: service}
}

// List godoc
// @Summary List employees
// @Tags Employees
// @Produce json
// @Param role query string false "Filter by qualified role"
// @Param search query string false "Case-insensitive name search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /employees [get]
func (h *EmployeeHandler) List(c *gin.Context) {
	var query dto.EmployeeListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid list query"))
		return
	}

	employees, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, employees, pagination)
}

// Get godoc
// @Summary Get employee by id
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/{id} [get]
func (h *EmployeeHandler) Get(c *gin.Context) {
	employee, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, employee)
}

// Create godoc
// @Summary Create employee
// @Tags Employees
// @Accept json
// @Produce json
// @Param payload body dto.EmployeeRequest true "Employee payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /employees [post]
func (h *EmployeeHandler) Create(c *gin.Context) {
	var req dto.EmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid employee payload"))
		return
	}

	employee, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, employee)
}

// Update godoc
// @Summary Update employee
// @Tags Employees
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body dto.EmployeeRequest true "Employee payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/{id} [put]
func (h *EmployeeHandler) Update(c *gin.Context) {
	var req dto.EmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid employee payload"))
		return
	}

	employee, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, employee)
}

// Delete godoc
// @Summary Delete employee
// @Description Removes the employee from the roster. Existing schedule
// @Description assignments keep the id and render as "Unknown".
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/{id} [delete]
func (h *EmployeeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
