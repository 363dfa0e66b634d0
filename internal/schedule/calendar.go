// Package schedule holds the shift assignment engine: template expansion
// into a concrete week, the eligibility rules, and the fair-rotation fill.
// Everything here is pure computation over roster and settings values;
// persistence and transport live with the callers.
package schedule

import (
	"fmt"
	"time"

	"github.com/rotaops/rota-api/internal/models"
)

// NormalizeWeekStart truncates the anchor to midnight in the given
// location and steps back to the most recent configured week-start
// weekday. An anchor already on that weekday normalizes to its own
// midnight.
func NormalizeWeekStart(anchor time.Time, weekStart models.Weekday, loc *time.Location) time.Time {
	t := anchor.In(loc)
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	target := weekStart.TimeWeekday()
	for t.Weekday() != target {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// Expand instantiates the seven days of the anchor's week from the
// per-weekday templates. Shifts come out ordered by day offset, then by
// template declaration order, with empty assignment lists. Ids derive
// from the week date and template position so that identical inputs
// expand to identical shifts.
//
// Templates are validated at settings-edit time; Expand assumes every
// template it sees is well formed.
func Expand(settings models.ScheduleSettings, weekAnchor time.Time) (time.Time, []models.Shift) {
	loc := settings.Location()
	weekStart := NormalizeWeekStart(weekAnchor, settings.WeekStart, loc)
	weekTag := weekStart.Format("20060102")

	shifts := make([]models.Shift, 0)
	for offset := 0; offset < 7; offset++ {
		day := weekStart.AddDate(0, 0, offset)
		for idx, tpl := range settings.TemplatesFor(models.WeekdayOf(day)) {
			shifts = append(shifts, models.Shift{
				ID:            fmt.Sprintf("%s-d%d-t%d", weekTag, offset, idx),
				Start:         time.Date(day.Year(), day.Month(), day.Day(), tpl.StartHour, 0, 0, 0, loc),
				End:           time.Date(day.Year(), day.Month(), day.Day(), tpl.EndHour, 0, 0, 0, loc),
				Role:          tpl.Role,
				RequiredStaff: tpl.RequiredStaff,
				Assignments:   []string{},
			})
		}
	}
	return weekStart, shifts
}

// ScheduleID names the week's schedule deterministically.
func ScheduleID(weekStart time.Time) string {
	return "week-" + weekStart.Format("2006-01-02")
}
