package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotaops/rota-api/internal/models"
)

func TestNormalizeWeekStart(t *testing.T) {
	utc := time.UTC

	t.Run("mid-week anchor steps back to monday", func(t *testing.T) {
		// 2025-01-09 is a Thursday.
		anchor := time.Date(2025, 1, 9, 15, 30, 0, 0, utc)
		got := NormalizeWeekStart(anchor, models.Monday, utc)
		require.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, utc), got)
	})

	t.Run("anchor on week start keeps its own day", func(t *testing.T) {
		anchor := time.Date(2025, 1, 6, 23, 59, 0, 0, utc)
		got := NormalizeWeekStart(anchor, models.Monday, utc)
		require.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, utc), got)
	})

	t.Run("sunday start convention", func(t *testing.T) {
		anchor := time.Date(2025, 1, 9, 8, 0, 0, 0, utc)
		got := NormalizeWeekStart(anchor, models.Sunday, utc)
		require.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, utc), got)
	})

	t.Run("normalization happens in the configured zone", func(t *testing.T) {
		jakarta, err := time.LoadLocation("Asia/Jakarta")
		require.NoError(t, err)

		// 2025-01-06 23:30 UTC is already Tuesday in Jakarta (+7).
		anchor := time.Date(2025, 1, 6, 23, 30, 0, 0, utc)
		got := NormalizeWeekStart(anchor, models.Monday, jakarta)
		require.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, jakarta).Unix(), got.Unix())
		require.Equal(t, jakarta.String(), got.Location().String())
	})
}

func TestExpand(t *testing.T) {
	settings := expandSettings()
	anchor := time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC) // Wednesday

	weekStart, shifts := Expand(settings, anchor)
	require.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), weekStart)

	t.Run("one shift per template in day then declaration order", func(t *testing.T) {
		require.Len(t, shifts, 3)
		assert.Equal(t, "20250106-d0-t0", shifts[0].ID)
		assert.Equal(t, "20250106-d0-t1", shifts[1].ID)
		assert.Equal(t, "20250106-d2-t0", shifts[2].ID)
	})

	t.Run("template hours applied to the calendar day", func(t *testing.T) {
		require.Equal(t, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC), shifts[0].Start)
		require.Equal(t, time.Date(2025, 1, 6, 17, 0, 0, 0, time.UTC), shifts[0].End)
		require.Equal(t, time.Date(2025, 1, 8, 22, 0, 0, 0, time.UTC), shifts[2].Start)
		require.Equal(t, time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC), shifts[2].End)
	})

	t.Run("assignments start empty but not nil", func(t *testing.T) {
		for _, shift := range shifts {
			require.NotNil(t, shift.Assignments)
			require.Empty(t, shift.Assignments)
		}
	})

	t.Run("carries the template role filter and staff count", func(t *testing.T) {
		assert.True(t, shifts[0].Role.IsAny())
		assert.Equal(t, "nurse", shifts[1].Role.Role)
		assert.Equal(t, 2, shifts[1].RequiredStaff)
	})

	t.Run("re-expansion is idempotent", func(t *testing.T) {
		weekStart2, shifts2 := Expand(settings, anchor)
		require.Equal(t, weekStart, weekStart2)
		require.Equal(t, shifts, shifts2)
	})

	t.Run("any anchor inside the week expands the same skeleton", func(t *testing.T) {
		_, fromSunday := Expand(settings, time.Date(2025, 1, 12, 23, 0, 0, 0, time.UTC))
		require.Equal(t, shifts, fromSunday)
	})
}

func TestScheduleID(t *testing.T) {
	weekStart := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "week-2025-01-06", ScheduleID(weekStart))
}

// --- Fixtures ---

func expandSettings() models.ScheduleSettings {
	return models.ScheduleSettings{
		WeekStart:    models.Monday,
		MinRestHours: 10,
		Timezone:     "UTC",
		Templates: map[models.Weekday][]models.ShiftTemplate{
			models.Monday: {
				{StartHour: 9, EndHour: 17, RequiredStaff: 1, Role: models.AnyRole()},
				{StartHour: 12, EndHour: 20, RequiredStaff: 2, Role: models.RequireRole("nurse")},
			},
			models.Wednesday: {
				{StartHour: 22, EndHour: 24, RequiredStaff: 1, Role: models.AnyRole()},
			},
		},
	}
}
