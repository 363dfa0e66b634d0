package schedule

import (
	"time"

	"github.com/rotaops/rota-api/internal/models"
)

// DefaultAttemptFactor bounds dequeue attempts per shift at
// DefaultAttemptFactor * queue size. The bound prevents spinning on a
// queue with no eligible candidate left; the trade-off is that a shift
// can stay understaffed when an eligible employee sits deeper in a long
// queue than the budget reaches. Raise the factor to trade work for
// fill rate.
const DefaultAttemptFactor = 2

// Engine fills a week of shifts from the roster. It carries only
// tunables; all per-run state lives inside Generate.
type Engine struct {
	attemptFactor int
}

// NewEngine builds an engine. A non-positive attemptFactor falls back
// to DefaultAttemptFactor.
func NewEngine(attemptFactor int) *Engine {
	if attemptFactor <= 0 {
		attemptFactor = DefaultAttemptFactor
	}
	return &Engine{attemptFactor: attemptFactor}
}

// Generate expands the anchor's week and runs one fill pass over all
// shifts in expansion order. It is a pure function of its inputs: no
// clock reads, no randomness, so identical inputs produce an identical
// schedule. Unfillable slots are left open and surface only through
// coverage, never as an error.
//
// The caller serializes concurrent generations and manual edits for the
// same roster; the engine holds no locks.
func (e *Engine) Generate(employees []models.Employee, settings models.ScheduleSettings, weekAnchor time.Time) models.Schedule {
	weekStart, shifts := Expand(settings, weekAnchor)

	queue := newRotationQueue(employees)
	state := newWeekState(employees)

	for i := range shifts {
		e.fill(&shifts[i], queue, state, settings)
	}

	return models.Schedule{
		ID:        ScheduleID(weekStart),
		WeekStart: weekStart,
		Shifts:    shifts,
	}
}

// fill staffs one shift from the rotation queue. Every popped employee
// is requeued at the back whether or not they were assigned; assignment
// pushes them behind everyone still waiting, which is what spreads work
// across the roster over the week.
func (e *Engine) fill(shift *models.Shift, queue *rotationQueue, state *weekState, settings models.ScheduleSettings) {
	needed := shift.RequiredStaff
	budget := e.attemptFactor * queue.size()

	for attempts := 0; needed > 0 && attempts < budget; attempts++ {
		id, ok := queue.pop()
		if !ok {
			return
		}
		if emp, found := state.employees[id]; found && state.eligible(emp, *shift, settings) {
			shift.Assignments = append(shift.Assignments, id)
			state.hoursAssigned[id] += shift.DurationHours()
			state.lastShiftEnd[id] = shift.End
			needed--
		}
		queue.requeue(id)
	}
}

// --- Week state ---

const endOfDayMinutes = 24 * 60

// weekState tracks cumulative per-employee load across one fill pass.
type weekState struct {
	employees     map[string]models.Employee
	hoursAssigned map[string]int
	lastShiftEnd  map[string]time.Time
}

func newWeekState(employees []models.Employee) *weekState {
	state := &weekState{
		employees:     make(map[string]models.Employee, len(employees)),
		hoursAssigned: make(map[string]int, len(employees)),
		lastShiftEnd:  make(map[string]time.Time),
	}
	for _, emp := range employees {
		state.employees[emp.ID] = emp
		state.hoursAssigned[emp.ID] = 0
	}
	return state
}

// eligible applies the four assignment rules in order: role filter,
// availability containment, weekly hour cap, minimum rest gap.
func (s *weekState) eligible(emp models.Employee, shift models.Shift, settings models.ScheduleSettings) bool {
	if !shift.Role.Matches(emp) {
		return false
	}
	if !s.available(emp, shift) {
		return false
	}
	if s.hoursAssigned[emp.ID]+shift.DurationHours() > emp.MaxHoursPerWeek {
		return false
	}
	if last, worked := s.lastShiftEnd[emp.ID]; worked {
		rest := time.Duration(settings.MinRestHours) * time.Hour
		if shift.Start.Sub(last) < rest {
			return false
		}
	}
	return true
}

// available checks that a single range on the shift's weekday fully
// contains the shift span, compared at minute-of-day granularity. A
// shift ending exactly at midnight counts as minute 1440 of its own day.
func (s *weekState) available(emp models.Employee, shift models.Shift) bool {
	startMin := shift.StartMinute()
	endMin := shift.EndMinute()
	if endMin == 0 {
		endMin = endOfDayMinutes
	}
	for _, r := range emp.Availability[shift.Weekday()] {
		if r.Contains(startMin, endMin) {
			return true
		}
	}
	return false
}

// --- Rotation queue ---

// rotationQueue is the FIFO carried across the whole week. It owns its
// backing slice; queue length stays constant because every pop is
// followed by a requeue.
type rotationQueue struct {
	ids []string
}

func newRotationQueue(employees []models.Employee) *rotationQueue {
	ids := make([]string, 0, len(employees))
	for _, emp := range employees {
		ids = append(ids, emp.ID)
	}
	return &rotationQueue{ids: ids}
}

func (q *rotationQueue) size() int {
	return len(q.ids)
}

func (q *rotationQueue) pop() (string, bool) {
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true
}

func (q *rotationQueue) requeue(id string) {
	q.ids = append(q.ids, id)
}
