package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RoleFilterKind tags the two RoleFilter variants.
type RoleFilterKind string

const (
	RoleFilterAny      RoleFilterKind = "any"
	RoleFilterRequires RoleFilterKind = "requires"
)

// RoleFilter restricts which employees may take a shift. It is a tagged
// variant so that "intentionally unrestricted" is distinct from an unset
// field: either Any, or Requires with a role name.
type RoleFilter struct {
	Kind RoleFilterKind `json:"kind"`
	Role string         `json:"role,omitempty"`
}

// AnyRole builds the unrestricted filter.
func AnyRole() RoleFilter {
	return RoleFilter{Kind: RoleFilterAny}
}

// RequireRole builds a filter demanding the named role.
func RequireRole(role string) RoleFilter {
	return RoleFilter{Kind: RoleFilterRequires, Role: role}
}

// IsAny reports whether the filter imposes no role requirement. The zero
// value counts as unrestricted so that snapshots written before the tag
// existed still load.
func (f RoleFilter) IsAny() bool {
	return f.Kind == RoleFilterAny || f.Kind == ""
}

// Matches reports whether an employee with the given qualified roles
// passes the filter.
func (f RoleFilter) Matches(e Employee) bool {
	if f.IsAny() {
		return true
	}
	return e.HasRole(f.Role)
}

// Label renders the filter for exports: the role name, or empty for Any.
func (f RoleFilter) Label() string {
	if f.IsAny() {
		return ""
	}
	return f.Role
}

// Validate rejects unknown kinds and Requires without a role.
func (f RoleFilter) Validate() error {
	switch f.Kind {
	case RoleFilterAny, "":
		return nil
	case RoleFilterRequires:
		if f.Role == "" {
			return fmt.Errorf("role filter requires a role name")
		}
		return nil
	default:
		return fmt.Errorf("unknown role filter kind %q", f.Kind)
	}
}

// UnmarshalJSON enforces the tagged form at the decode boundary.
func (f *RoleFilter) UnmarshalJSON(data []byte) error {
	type alias RoleFilter
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*f = RoleFilter(decoded)
	return f.Validate()
}

// ShiftTemplate is a recurring weekday-scoped shift definition expanded
// into concrete shifts each week.
type ShiftTemplate struct {
	StartHour     int        `json:"start_hour"`
	EndHour       int        `json:"end_hour"`
	RequiredStaff int        `json:"required_staff"`
	Role          RoleFilter `json:"role"`
}

// Validate enforces same-day bounds. Cross-midnight templates are
// rejected here rather than mishandled downstream.
func (t ShiftTemplate) Validate() error {
	if t.StartHour < 0 || t.StartHour > 23 {
		return fmt.Errorf("start hour %d out of range", t.StartHour)
	}
	if t.EndHour < 1 || t.EndHour > 24 {
		return fmt.Errorf("end hour %d out of range", t.EndHour)
	}
	if t.EndHour <= t.StartHour {
		return fmt.Errorf("template %02d:00-%02d:00 must end after it starts within one day", t.StartHour, t.EndHour)
	}
	if t.RequiredStaff < 1 {
		return fmt.Errorf("required staff must be at least 1")
	}
	return t.Role.Validate()
}

// DurationHours is the template length in whole hours.
func (t ShiftTemplate) DurationHours() int {
	return t.EndHour - t.StartHour
}

// ScheduleSettings is the weekly planning configuration: the week-start
// convention, the rest rule, the timezone all date arithmetic uses, and
// the per-weekday templates.
type ScheduleSettings struct {
	WeekStart    Weekday                     `json:"week_start"`
	MinRestHours int                         `json:"min_rest_hours"`
	Timezone     string                      `json:"timezone"`
	Templates    map[Weekday][]ShiftTemplate `json:"templates"`
}

// Validate checks every field including each template.
func (s ScheduleSettings) Validate() error {
	if !s.WeekStart.Valid() {
		return fmt.Errorf("unknown week start %q", s.WeekStart)
	}
	if s.MinRestHours < 0 {
		return fmt.Errorf("min rest hours must not be negative")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q", s.Timezone)
	}
	for day, templates := range s.Templates {
		if !day.Valid() {
			return fmt.Errorf("unknown weekday %q in templates", day)
		}
		for i, tpl := range templates {
			if err := tpl.Validate(); err != nil {
				return fmt.Errorf("%s template %d: %w", day, i, err)
			}
		}
	}
	return nil
}

// Location resolves the configured timezone. Settings must have been
// validated first; an unknown zone here is a programmer error.
func (s ScheduleSettings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		panic(fmt.Sprintf("schedule settings hold unvalidated timezone %q: %v", s.Timezone, err))
	}
	return loc
}

// TemplatesFor returns the templates of one weekday in declaration order.
func (s ScheduleSettings) TemplatesFor(day Weekday) []ShiftTemplate {
	return s.Templates[day]
}

// DefaultScheduleSettings seeds a fresh store: Monday weeks, 10h rest,
// UTC, no templates.
func DefaultScheduleSettings(weekStart Weekday, minRestHours int, timezone string) ScheduleSettings {
	if !weekStart.Valid() {
		weekStart = Monday
	}
	if minRestHours < 0 {
		minRestHours = 10
	}
	if timezone == "" {
		timezone = "UTC"
	}
	return ScheduleSettings{
		WeekStart:    weekStart,
		MinRestHours: minRestHours,
		Timezone:     timezone,
		Templates:    map[Weekday][]ShiftTemplate{},
	}
}
