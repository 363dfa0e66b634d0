package dto

import "github.com/rotaops/rota-api/internal/models"

// EmployeeRequest carries create/update payloads for roster members.
// A zero MaxHoursPerWeek falls back to the default of 40.
type EmployeeRequest struct {
	Name            string                                `json:"name" validate:"required"`
	MaxHoursPerWeek int                                   `json:"max_hours_per_week" validate:"omitempty,min=1"`
	Roles           []string                              `json:"roles"`
	Availability    map[models.Weekday][]models.TimeRange `json:"availability"`
}

// EmployeeListQuery captures list filtering and pagination.
type EmployeeListQuery struct {
	Role     string `form:"role"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
