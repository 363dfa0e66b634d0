package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rotaops/rota-api/internal/dto"
	"github.com/rotaops/rota-api/internal/models"
	"github.com/rotaops/rota-api/internal/schedule"
	"github.com/rotaops/rota-api/internal/store"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
)

type generationRecorderStub struct {
	calls       int
	totalShifts int
	filledSlots int
	openSlots   int
}

func (g *generationRecorderStub) RecordGeneration(totalShifts, filledSlots, openSlots int) {
	g.calls++
	g.totalShifts = totalShifts
	g.filledSlots = filledSlots
	g.openSlots = openSlots
}

func seedRoster(t *testing.T, st *store.Store, employees ...models.Employee) {
	t.Helper()
	err := st.Update(func(snap *store.Snapshot) error {
		snap.Employees = append(snap.Employees, employees...)
		return nil
	})
	require.NoError(t, err)
}

func testRoster() []models.Employee {
	return []models.Employee{
		{ID: "emp-ada", Name: "Ada", MaxHoursPerWeek: 40, Availability: weekAvailability(540, 1020)},
		{ID: "emp-grace", Name: "Grace", MaxHoursPerWeek: 40, Roles: []string{"nurse"}, Availability: weekAvailability(540, 1020)},
	}
}

func newScheduleServiceForTest(t *testing.T) (*ScheduleService, *store.Store, *generationRecorderStub) {
	t.Helper()
	st := newSnapshotStore(t)
	seedRoster(t, st, testRoster()...)
	metrics := &generationRecorderStub{}
	svc := NewScheduleService(st, schedule.NewEngine(0), metrics, nil, zap.NewNop())
	return svc, st, metrics
}

// The fixture settings stage a Monday 09-17 open shift and a Tuesday
// 09-17 shift needing two nurses; only Grace is a nurse, so Tuesday
// always comes out one short.
func TestScheduleServiceGenerateAndCurrent(t *testing.T) {
	svc, _, metrics := newScheduleServiceForTest(t)

	generated, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{WeekAnchor: "2026-01-21"})
	require.NoError(t, err)
	assert.Equal(t, "week-2026-01-19", generated.ID)
	require.Len(t, generated.Shifts, 2)

	monday := generated.Shifts[0]
	assert.Equal(t, "20260119-d0-t0", monday.ID)
	require.Len(t, monday.Assignments, 1)
	assert.Equal(t, "emp-ada", monday.Assignments[0].EmployeeID)
	assert.Equal(t, "Ada", monday.Assignments[0].Name)
	assert.Equal(t, models.CoverageFull, monday.Coverage)

	tuesday := generated.Shifts[1]
	assert.Equal(t, "20260119-d1-t0", tuesday.ID)
	require.Len(t, tuesday.Assignments, 1)
	assert.Equal(t, "emp-grace", tuesday.Assignments[0].EmployeeID)
	assert.Equal(t, models.CoveragePartial, tuesday.Coverage)

	assert.Equal(t, 2, generated.Summary.TotalShifts)
	assert.Equal(t, 1, generated.Summary.FullShifts)
	assert.Equal(t, 1, generated.Summary.PartialShifts)
	assert.Equal(t, 1, generated.Summary.OpenSlots)

	assert.Equal(t, 1, metrics.calls)
	assert.Equal(t, 2, metrics.totalShifts)
	assert.Equal(t, 2, metrics.filledSlots)
	assert.Equal(t, 1, metrics.openSlots)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, generated, current)
}

func TestScheduleServiceGenerateRejectsBadAnchor(t *testing.T) {
	svc, _, _ := newScheduleServiceForTest(t)

	for _, anchor := range []string{"", "not-a-date", "21-01-2026"} {
		_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{WeekAnchor: anchor})
		require.Error(t, err, "anchor %q", anchor)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
}

func TestScheduleServiceGeneratePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rota.json")
	st, err := store.Open(path, testSettings(), zap.NewNop())
	require.NoError(t, err)
	seedRoster(t, st, testRoster()...)
	svc := NewScheduleService(st, schedule.NewEngine(0), nil, nil, zap.NewNop())

	_, err = svc.Generate(context.Background(), dto.GenerateScheduleRequest{WeekAnchor: "2026-01-19"})
	require.NoError(t, err)

	reopened, err := store.Open(path, testSettings(), zap.NewNop())
	require.NoError(t, err)
	err = reopened.View(func(snap store.Snapshot) error {
		require.NotNil(t, snap.Schedule)
		assert.Equal(t, "week-2026-01-19", snap.Schedule.ID)
		assert.Len(t, snap.Schedule.Shifts, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestScheduleServiceCurrentWithoutSchedule(t *testing.T) {
	svc, _, _ := newScheduleServiceForTest(t)

	_, err := svc.Current(context.Background())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestScheduleServiceAddAssignment(t *testing.T) {
	svc, st, _ := newScheduleServiceForTest(t)
	seedRoster(t, st, models.Employee{ID: "emp-bo", Name: "Bo", MaxHoursPerWeek: 40, Availability: weekAvailability(540, 1020)})

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{WeekAnchor: "2026-01-19"})
	require.NoError(t, err)

	// Manual edits skip the engine's role rule, so Ada can cover the
	// nurse shift alongside Grace.
	shift, err := svc.AddAssignment(context.Background(), "20260119-d1-t0", dto.AddAssignmentRequest{EmployeeID: "emp-ada"})
	require.NoError(t, err)
	require.Len(t, shift.Assignments, 2)
	assert.Equal(t, models.CoverageFull, shift.Coverage)

	_, err = svc.AddAssignment(context.Background(), "20260119-d1-t0", dto.AddAssignmentRequest{EmployeeID: "emp-ada"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.AddAssignment(context.Background(), "20260119-d1-t0", dto.AddAssignmentRequest{EmployeeID: "emp-bo"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrShiftFull.Code, appErrors.FromError(err).Code)

	_, err = svc.AddAssignment(context.Background(), "20260119-d1-t0", dto.AddAssignmentRequest{EmployeeID: "ghost"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.AddAssignment(context.Background(), "20260119-d9-t9", dto.AddAssignmentRequest{EmployeeID: "emp-bo"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceRemoveAssignment(t *testing.T) {
	svc, st, _ := newScheduleServiceForTest(t)

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{WeekAnchor: "2026-01-19"})
	require.NoError(t, err)

	shift, err := svc.RemoveAssignment(context.Background(), "20260119-d0-t0", "emp-ada")
	require.NoError(t, err)
	assert.Empty(t, shift.Assignments)
	assert.Equal(t, models.CoverageEmpty, shift.Coverage)

	// Removing an absent assignment succeeds without changing anything.
	shift, err = svc.RemoveAssignment(context.Background(), "20260119-d0-t0", "emp-ada")
	require.NoError(t, err)
	assert.Empty(t, shift.Assignments)

	err = st.View(func(snap store.Snapshot) error {
		stored, ok := snap.Schedule.FindShift("20260119-d0-t0")
		require.True(t, ok)
		assert.Empty(t, stored.Assignments)
		return nil
	})
	require.NoError(t, err)

	_, err = svc.RemoveAssignment(context.Background(), "20260119-d9-t9", "emp-ada")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceResolvesDeletedEmployeeToUnknown(t *testing.T) {
	svc, st, _ := newScheduleServiceForTest(t)

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{WeekAnchor: "2026-01-19"})
	require.NoError(t, err)

	err = st.Update(func(snap *store.Snapshot) error {
		for i := range snap.Employees {
			if snap.Employees[i].ID == "emp-ada" {
				snap.Employees = append(snap.Employees[:i], snap.Employees[i+1:]...)
				break
			}
		}
		return nil
	})
	require.NoError(t, err)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, current.Shifts[0].Assignments, 1)
	assert.Equal(t, "emp-ada", current.Shifts[0].Assignments[0].EmployeeID)
	assert.Equal(t, models.UnknownEmployeeName, current.Shifts[0].Assignments[0].Name)
}
