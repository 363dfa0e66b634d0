package models

import (
	"sort"
	"time"
)

// Schedule is one generated week: the normalized week-start date plus
// the ordered shifts for its seven days. A roster holds at most one
// current schedule; regenerating the same week replaces it wholesale.
//
// Schedule and shift ids are deterministic functions of the week and
// template layout so that regenerating identical inputs yields an
// identical document.
type Schedule struct {
	ID        string    `json:"id"`
	WeekStart time.Time `json:"week_start"`
	Shifts    []Shift   `json:"shifts"`
}

// FindShift returns a pointer into the shift slice for in-place edits.
func (s *Schedule) FindShift(shiftID string) (*Shift, bool) {
	for i := range s.Shifts {
		if s.Shifts[i].ID == shiftID {
			return &s.Shifts[i], true
		}
	}
	return nil, false
}

// ShiftsByStart returns a copy of the shifts ordered by start time,
// preserving generation order for equal starts.
func (s Schedule) ShiftsByStart() []Shift {
	sorted := make([]Shift, len(s.Shifts))
	copy(sorted, s.Shifts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	return sorted
}

// ScheduleSummary aggregates coverage for responses.
type ScheduleSummary struct {
	TotalShifts   int `json:"total_shifts"`
	FullShifts    int `json:"full_shifts"`
	PartialShifts int `json:"partial_shifts"`
	EmptyShifts   int `json:"empty_shifts"`
	OverShifts    int `json:"over_shifts"`
	OpenSlots     int `json:"open_slots"`
}

// Summarize tallies coverage across all shifts.
func (s Schedule) Summarize() ScheduleSummary {
	summary := ScheduleSummary{TotalShifts: len(s.Shifts)}
	for _, shift := range s.Shifts {
		switch shift.Coverage() {
		case CoverageFull:
			summary.FullShifts++
		case CoveragePartial:
			summary.PartialShifts++
		case CoverageEmpty:
			summary.EmptyShifts++
		case CoverageOver:
			summary.OverShifts++
		}
		if open := shift.RequiredStaff - len(shift.Assignments); open > 0 {
			summary.OpenSlots += open
		}
	}
	return summary
}
