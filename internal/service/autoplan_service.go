package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rotaops/rota-api/internal/dto"
)

type autoPlanGenerator interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.ScheduleResponse, error)
}

// AutoPlanService generates the upcoming week's schedule on a cron
// spec, going through the same generation path as the API so the
// store's writer lock serializes it against manual edits.
type AutoPlanService struct {
	schedules autoPlanGenerator
	logger    *zap.Logger
	cron      *cron.Cron
	spec      string
}

// NewAutoPlanService constructs an AutoPlanService. An empty spec
// falls back to Friday 18:00.
func NewAutoPlanService(schedules autoPlanGenerator, spec string, logger *zap.Logger) *AutoPlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spec == "" {
		spec = "0 18 * * FRI"
	}
	return &AutoPlanService{
		schedules: schedules,
		logger:    logger,
		cron:      cron.New(),
		spec:      spec,
	}
}

// Start registers the cron entry and begins scheduling.
func (s *AutoPlanService) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("invalid autoplan cron spec %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("auto planning started", zap.String("spec", s.spec))
	return nil
}

// Stop halts scheduling and waits for a running generation to finish.
func (s *AutoPlanService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("auto planning stopped")
}

func (s *AutoPlanService) run() {
	anchor := time.Now().UTC().AddDate(0, 0, 7).Format(time.RFC3339)
	resp, err := s.schedules.Generate(context.Background(), dto.GenerateScheduleRequest{WeekAnchor: anchor})
	if err != nil {
		s.logger.Error("auto planning failed", zap.Error(err))
		return
	}
	s.logger.Info("auto planning generated schedule",
		zap.String("schedule_id", resp.ID),
		zap.Int("shifts", resp.Summary.TotalShifts),
		zap.Int("open_slots", resp.Summary.OpenSlots))
}
