package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotaops/rota-api/internal/models"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rota.json")

	s, err := Open(path, testSettings(), nil)
	require.NoError(t, err)

	err = s.View(func(snap Snapshot) error {
		assert.Empty(t, snap.Employees)
		assert.Empty(t, snap.Users)
		assert.Nil(t, snap.Schedule)
		assert.Equal(t, models.Monday, snap.Settings.WeekStart)
		return nil
	})
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "open alone must not create the file")
}

func TestUpdatePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rota.json")

	s, err := Open(path, testSettings(), nil)
	require.NoError(t, err)

	employee := models.Employee{
		ID:              "emp-1",
		Name:            "Alice",
		MaxHoursPerWeek: 40,
		Availability: map[models.Weekday][]models.TimeRange{
			models.Monday: {{StartMinute: 540, EndMinute: 1020}},
		},
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	err = s.Update(func(snap *Snapshot) error {
		snap.Employees = append(snap.Employees, employee)
		snap.Schedule = &models.Schedule{
			ID:        "week-2025-01-06",
			WeekStart: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			Shifts: []models.Shift{{
				ID:            "20250106-d0-t0",
				Start:         time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
				End:           time.Date(2025, 1, 6, 17, 0, 0, 0, time.UTC),
				Role:          models.AnyRole(),
				RequiredStaff: 1,
				Assignments:   []string{"emp-1"},
			}},
		}
		return nil
	})
	require.NoError(t, err)

	reopened, err := Open(path, testSettings(), nil)
	require.NoError(t, err)

	err = reopened.View(func(snap Snapshot) error {
		require.Len(t, snap.Employees, 1)
		assert.Equal(t, "Alice", snap.Employees[0].Name)
		require.NotNil(t, snap.Schedule)
		require.Len(t, snap.Schedule.Shifts, 1)
		assert.Equal(t, []string{"emp-1"}, snap.Schedule.Shifts[0].Assignments)
		return nil
	})
	require.NoError(t, err)
}

func TestOpenRejectsMalformedSnapshot(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rota.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		_, err := Open(path, testSettings(), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCorrupt))
	})

	t.Run("invalid settings", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rota.json")
		doc := `{"employees":[],"settings":{"week_start":"someday","min_rest_hours":10,"timezone":"UTC"},"users":[]}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		_, err := Open(path, testSettings(), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCorrupt))
	})
}

func TestUpdateRollsBackOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rota.json")

	s, err := Open(path, testSettings(), nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Update(func(snap *Snapshot) error {
		snap.Employees = append(snap.Employees, models.Employee{ID: "emp-x", Name: "X", MaxHoursPerWeek: 10})
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(func(snap Snapshot) error {
		assert.Empty(t, snap.Employees)
		return nil
	})
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "failed update must not write the file")
}

func TestUpdateLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rota.json")

	s, err := Open(path, testSettings(), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Update(func(snap *Snapshot) error { return nil }))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Falsef(t, strings.Contains(entry.Name(), ".tmp-"), "leftover temp file %s", entry.Name())
	}
}

func TestViewHandsOutCopies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rota.json")

	s, err := Open(path, testSettings(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Update(func(snap *Snapshot) error {
		snap.Employees = append(snap.Employees, models.Employee{ID: "emp-1", Name: "Alice", MaxHoursPerWeek: 40, Roles: []string{"nurse"}})
		return nil
	}))

	err = s.View(func(snap Snapshot) error {
		snap.Employees[0].Name = "mutated"
		snap.Employees[0].Roles[0] = "mutated"
		return nil
	})
	require.NoError(t, err)

	err = s.View(func(snap Snapshot) error {
		assert.Equal(t, "Alice", snap.Employees[0].Name)
		assert.Equal(t, "nurse", snap.Employees[0].Roles[0])
		return nil
	})
	require.NoError(t, err)
}

func TestEmployeeNameFallsBackToUnknown(t *testing.T) {
	snap := Snapshot{Employees: []models.Employee{{ID: "emp-1", Name: "Alice"}}}

	assert.Equal(t, "Alice", snap.EmployeeName("emp-1"))
	assert.Equal(t, models.UnknownEmployeeName, snap.EmployeeName("emp-gone"))
}

// --- Fixtures ---

func testSettings() models.ScheduleSettings {
	return models.DefaultScheduleSettings(models.Monday, 10, "UTC")
}
