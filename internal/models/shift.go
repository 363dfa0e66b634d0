package models

import (
	"time"
)

// CoverageStatus labels how staffed a shift is relative to its required
// count. It is always derived from the assignment list, never stored.
type CoverageStatus string

const (
	CoverageEmpty   CoverageStatus = "empty"
	CoveragePartial CoverageStatus = "partial"
	CoverageFull    CoverageStatus = "full"
	CoverageOver    CoverageStatus = "over"
)

// Shift is one concrete staffed slot on a calendar day, produced by
// expanding a template. Assignments hold employee ids in assignment
// order; entries are weak references and may outlive the employee.
type Shift struct {
	ID            string     `json:"id"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Role          RoleFilter `json:"role"`
	RequiredStaff int        `json:"required_staff"`
	Assignments   []string   `json:"assignments"`
}

// Coverage derives the staffing status. Over is only reachable through
// manual edits or loaded snapshots; generation never exceeds capacity.
func (s Shift) Coverage() CoverageStatus {
	n := len(s.Assignments)
	switch {
	case n == 0:
		return CoverageEmpty
	case n < s.RequiredStaff:
		return CoveragePartial
	case n == s.RequiredStaff:
		return CoverageFull
	default:
		return CoverageOver
	}
}

// DurationHours is the shift length in whole hours, fractional part
// truncated. Panics on a non-positive span: templates are validated
// before expansion, so that indicates a bug upstream.
func (s Shift) DurationHours() int {
	d := s.End.Sub(s.Start)
	if d <= 0 {
		panic("shift with non-positive duration reached the engine")
	}
	return int(d / time.Hour)
}

// HasAssignment reports whether the employee is already on the shift.
func (s Shift) HasAssignment(employeeID string) bool {
	for _, id := range s.Assignments {
		if id == employeeID {
			return true
		}
	}
	return false
}

// Weekday resolves the shift's day in its own location.
func (s Shift) Weekday() Weekday {
	return WeekdayOf(s.Start)
}

// StartMinute is the shift start as minutes since midnight.
func (s Shift) StartMinute() int {
	return s.Start.Hour()*60 + s.Start.Minute()
}

// EndMinute is the shift end as minutes since midnight.
func (s Shift) EndMinute() int {
	return s.End.Hour()*60 + s.End.Minute()
}
