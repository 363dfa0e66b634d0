package dto

import (
	"time"

	"github.com/rotaops/rota-api/internal/models"
)

// GenerateScheduleRequest asks for a week to be planned. The anchor
// accepts a calendar date (2006-01-02) or RFC3339 timestamp; any day
// inside the target week works.
type GenerateScheduleRequest struct {
	WeekAnchor string `json:"week_anchor" validate:"required"`
}

// AddAssignmentRequest puts an employee on a shift manually.
type AddAssignmentRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
}

// AssignmentResponse resolves an assignment to a display name. Name is
// "Unknown" when the employee has left the roster.
type AssignmentResponse struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
}

// ShiftResponse is one concrete shift with derived coverage.
type ShiftResponse struct {
	ID            string                `json:"id"`
	Start         time.Time             `json:"start"`
	End           time.Time             `json:"end"`
	Role          models.RoleFilter     `json:"role"`
	RequiredStaff int                   `json:"required_staff"`
	Assignments   []AssignmentResponse  `json:"assignments"`
	Coverage      models.CoverageStatus `json:"coverage"`
}

// ScheduleResponse is the current week plus a coverage summary.
type ScheduleResponse struct {
	ID        string                 `json:"id"`
	WeekStart time.Time              `json:"week_start"`
	Shifts    []ShiftResponse        `json:"shifts"`
	Summary   models.ScheduleSummary `json:"summary"`
}
