package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/rotaops/rota-api/internal/models"
	"github.com/rotaops/rota-api/internal/store"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
)

type settingsStore interface {
	View(fn func(store.Snapshot) error) error
	Update(fn func(*store.Snapshot) error) error
}

// SettingsService reads and replaces the schedule settings. Replacing
// settings never touches an already generated schedule; the next
// generation picks the new configuration up.
type SettingsService struct {
	store  settingsStore
	logger *zap.Logger
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(store settingsStore, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{store: store, logger: logger}
}

// Get returns the current settings.
func (s *SettingsService) Get(ctx context.Context) (*models.ScheduleSettings, error) {
	var settings models.ScheduleSettings
	err := s.store.View(func(snap store.Snapshot) error {
		settings = snap.Settings
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	return &settings, nil
}

// Replace validates and stores a full settings document. Templates with
// end at or before start, cross-midnight spans, unknown weekdays and
// unknown timezones are all rejected here, so the engine never sees
// them.
func (s *SettingsService) Replace(ctx context.Context, settings models.ScheduleSettings) (*models.ScheduleSettings, error) {
	if settings.Templates == nil {
		settings.Templates = map[models.Weekday][]models.ShiftTemplate{}
	}
	if err := settings.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	err := s.store.Update(func(snap *store.Snapshot) error {
		snap.Settings = settings
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
	}

	s.logger.Info("settings replaced",
		zap.String("week_start", string(settings.WeekStart)),
		zap.Int("min_rest_hours", settings.MinRestHours),
		zap.String("timezone", settings.Timezone))
	return &settings, nil
}
