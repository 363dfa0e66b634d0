package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rotaops/rota-api/internal/dto"
	"github.com/rotaops/rota-api/internal/models"
	"github.com/rotaops/rota-api/internal/store"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
)

type scheduleStore interface {
	View(fn func(store.Snapshot) error) error
	Update(fn func(*store.Snapshot) error) error
}

type planEngine interface {
	Generate(employees []models.Employee, settings models.ScheduleSettings, weekAnchor time.Time) models.Schedule
}

type generationRecorder interface {
	RecordGeneration(totalShifts, filledSlots, openSlots int)
}

// errUnchanged aborts a store update without treating it as a failure.
var errUnchanged = errors.New("no change")

// ScheduleService drives week generation and manual assignment edits.
// Every mutating operation runs inside a single store update, so
// generation and edits against the same snapshot are serialized by the
// store's writer lock.
type ScheduleService struct {
	store     scheduleStore
	engine    planEngine
	metrics   generationRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(store scheduleStore, engine planEngine, metrics generationRecorder, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{store: store, engine: engine, metrics: metrics, validator: validate, logger: logger}
}

// Generate plans the week containing the anchor date and replaces the
// stored schedule wholesale. Regenerating the same week with an
// unchanged roster and settings produces an identical document.
func (s *ScheduleService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.ScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	var response *dto.ScheduleResponse
	err := s.store.Update(func(snap *store.Snapshot) error {
		anchor, err := parseWeekAnchor(req.WeekAnchor, snap.Settings.Location())
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid week anchor")
		}

		generated := s.engine.Generate(snap.Employees, snap.Settings, anchor)
		snap.Schedule = &generated
		response = buildScheduleResponse(*snap)
		return nil
	})
	if err != nil {
		return nil, err
	}

	filled := 0
	for _, shift := range response.Shifts {
		filled += len(shift.Assignments)
	}
	if s.metrics != nil {
		s.metrics.RecordGeneration(response.Summary.TotalShifts, filled, response.Summary.OpenSlots)
	}
	s.logger.Info("schedule generated",
		zap.String("schedule_id", response.ID),
		zap.Int("shifts", response.Summary.TotalShifts),
		zap.Int("filled_slots", filled),
		zap.Int("open_slots", response.Summary.OpenSlots))
	return response, nil
}

// Current returns the stored schedule with assignment names resolved.
func (s *ScheduleService) Current(ctx context.Context) (*dto.ScheduleResponse, error) {
	var response *dto.ScheduleResponse
	err := s.store.View(func(snap store.Snapshot) error {
		if snap.Schedule == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "no schedule generated yet")
		}
		response = buildScheduleResponse(snap)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

// AddAssignment puts an employee on a shift. Rejected when the employee
// is unknown, already on the shift, or the shift is at required
// capacity.
func (s *ScheduleService) AddAssignment(ctx context.Context, shiftID string, req dto.AddAssignmentRequest) (*dto.ShiftResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	var response *dto.ShiftResponse
	err := s.store.Update(func(snap *store.Snapshot) error {
		shift, err := findShift(snap, shiftID)
		if err != nil {
			return err
		}
		if _, ok := snap.EmployeeByID(req.EmployeeID); !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		if shift.HasAssignment(req.EmployeeID) {
			return appErrors.Clone(appErrors.ErrConflict, "employee already assigned to this shift")
		}
		if len(shift.Assignments) >= shift.RequiredStaff {
			return appErrors.ErrShiftFull
		}

		shift.Assignments = append(shift.Assignments, req.EmployeeID)
		resolved := buildShiftResponse(*shift, *snap)
		response = &resolved
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("assignment added",
		zap.String("shift_id", shiftID),
		zap.String("employee_id", req.EmployeeID))
	return response, nil
}

// RemoveAssignment takes an employee off a shift. Removing an employee
// who is not on the shift is a no-op and does not rewrite the snapshot.
func (s *ScheduleService) RemoveAssignment(ctx context.Context, shiftID, employeeID string) (*dto.ShiftResponse, error) {
	var response *dto.ShiftResponse
	err := s.store.Update(func(snap *store.Snapshot) error {
		shift, err := findShift(snap, shiftID)
		if err != nil {
			return err
		}

		removed := false
		for i, id := range shift.Assignments {
			if id == employeeID {
				shift.Assignments = append(shift.Assignments[:i], shift.Assignments[i+1:]...)
				removed = true
				break
			}
		}
		resolved := buildShiftResponse(*shift, *snap)
		response = &resolved
		if !removed {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errUnchanged) {
			return response, nil
		}
		return nil, err
	}

	s.logger.Info("assignment removed",
		zap.String("shift_id", shiftID),
		zap.String("employee_id", employeeID))
	return response, nil
}

func findShift(snap *store.Snapshot, shiftID string) (*models.Shift, error) {
	if snap.Schedule == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no schedule generated yet")
	}
	shift, ok := snap.Schedule.FindShift(shiftID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "shift not found")
	}
	return shift, nil
}

// --- Projection helpers ---

func buildScheduleResponse(snap store.Snapshot) *dto.ScheduleResponse {
	schedule := snap.Schedule
	shifts := make([]dto.ShiftResponse, 0, len(schedule.Shifts))
	for _, shift := range schedule.Shifts {
		shifts = append(shifts, buildShiftResponse(shift, snap))
	}
	return &dto.ScheduleResponse{
		ID:        schedule.ID,
		WeekStart: schedule.WeekStart,
		Shifts:    shifts,
		Summary:   schedule.Summarize(),
	}
}

func buildShiftResponse(shift models.Shift, snap store.Snapshot) dto.ShiftResponse {
	assignments := make([]dto.AssignmentResponse, 0, len(shift.Assignments))
	for _, id := range shift.Assignments {
		assignments = append(assignments, dto.AssignmentResponse{
			EmployeeID: id,
			Name:       snap.EmployeeName(id),
		})
	}
	return dto.ShiftResponse{
		ID:            shift.ID,
		Start:         shift.Start,
		End:           shift.End,
		Role:          shift.Role,
		RequiredStaff: shift.RequiredStaff,
		Assignments:   assignments,
		Coverage:      shift.Coverage(),
	}
}

func parseWeekAnchor(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", raw, loc)
}
