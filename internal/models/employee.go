package models

import (
	"fmt"
	"time"
)

// Weekday names a day of the week in configuration and availability maps.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists all days in ISO order, Monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayFromTime = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

var weekdayToTime = map[Weekday]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// WeekdayOf maps a timestamp to its weekday name.
func WeekdayOf(t time.Time) Weekday {
	return weekdayFromTime[t.Weekday()]
}

// ParseWeekday validates a weekday name.
func ParseWeekday(raw string) (Weekday, error) {
	d := Weekday(raw)
	if _, ok := weekdayToTime[d]; !ok {
		return "", fmt.Errorf("unknown weekday %q", raw)
	}
	return d, nil
}

// TimeWeekday converts to the standard library representation.
func (d Weekday) TimeWeekday() time.Weekday {
	return weekdayToTime[d]
}

// Valid reports whether the weekday name is one of the seven.
func (d Weekday) Valid() bool {
	_, ok := weekdayToTime[d]
	return ok
}

const minutesPerDay = 24 * 60

// TimeRange is a half-open [start, end) span within one day, in minutes
// since midnight.
type TimeRange struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Contains reports whether the range fully covers the [start, end) span.
func (r TimeRange) Contains(startMinute, endMinute int) bool {
	return r.StartMinute <= startMinute && endMinute <= r.EndMinute
}

// Validate checks range bounds. Ranges on the same day may overlap.
func (r TimeRange) Validate() error {
	if r.StartMinute < 0 || r.EndMinute > minutesPerDay {
		return fmt.Errorf("availability range %d-%d outside day bounds", r.StartMinute, r.EndMinute)
	}
	if r.EndMinute <= r.StartMinute {
		return fmt.Errorf("availability range %d-%d must end after it starts", r.StartMinute, r.EndMinute)
	}
	return nil
}

// Employee is a roster member eligible for shift assignment.
//
// Roles is the set of role names the employee is qualified for; an empty
// set qualifies only for shifts without a role requirement. Availability
// maps weekday to the ranges the employee can work; a shift fits a day
// only when a single range fully contains its span.
type Employee struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	MaxHoursPerWeek int                     `json:"max_hours_per_week"`
	Roles           []string                `json:"roles"`
	Availability    map[Weekday][]TimeRange `json:"availability"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// HasRole reports whether the employee is qualified for the named role.
func (e Employee) HasRole(role string) bool {
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Validate checks hour cap, weekday keys and range bounds.
func (e Employee) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("employee name required")
	}
	if e.MaxHoursPerWeek <= 0 {
		return fmt.Errorf("max hours per week must be positive")
	}
	for day, ranges := range e.Availability {
		if !day.Valid() {
			return fmt.Errorf("unknown weekday %q in availability", day)
		}
		for _, r := range ranges {
			if err := r.Validate(); err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
		}
	}
	return nil
}

// UnknownEmployeeName is used when an assignment references an employee
// that no longer exists on the roster.
const UnknownEmployeeName = "Unknown"
