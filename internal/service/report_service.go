package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rotaops/rota-api/internal/dto"
	"github.com/rotaops/rota-api/internal/models"
	"github.com/rotaops/rota-api/internal/store"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
	"github.com/rotaops/rota-api/pkg/jobs"
)

type reportStore interface {
	View(fn func(store.Snapshot) error) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

type reportRecorder interface {
	RecordReport(format models.ReportFormat, success bool)
}

// ReportService orchestrates report job lifecycle management. Jobs
// live in the in-memory registry and do not survive a restart; only
// the rendered files on disk do, and those are reaped by the cleanup
// loop.
type ReportService struct {
	store    reportStore
	registry *JobRegistry
	queue    jobDispatcher
	exporter *ExportService
	logger   *zap.Logger
	cfg      ReportServiceConfig
}

// ReportServiceConfig governs job retention and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(store reportStore, registry *JobRegistry, queue jobDispatcher, exporter *ExportService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ReportService{
		store:    store,
		registry: registry,
		queue:    queue,
		exporter: exporter,
		logger:   logger,
		cfg:      cfg,
	}
}

// CreateJob validates the request, registers the job, and enqueues
// processing.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest, actorID string) (*dto.ReportJobResponse, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	job := &models.ReportJob{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Params:    models.ReportJobParams{Format: req.Format, Delimiter: req.Delimiter},
		Status:    models.ReportStatusQueued,
		Progress:  0,
		CreatedBy: actorID,
		CreatedAt: time.Now().UTC(),
	}
	s.registry.Save(job)
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		s.registry.Mutate(job.ID, func(j *models.ReportJob) {
			j.Status = models.ReportStatusFailed
			j.Progress = 100
			j.ErrorMessage = &msg
			j.FinishedAt = &now
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients. Non-admins only see their
// own jobs.
func (s *ReportService) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.ReportStatusResponse, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	if role != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ReportStatusResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, ok := s.registry.Get(jobID)
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	filename := filepath.Base(relPath)
	return &ReportDownload{
		File:      file,
		Filename:  filename,
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired jobs and exports
// periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired()
			}
		}
	}()
}

func (s *ReportService) cleanupExpired() {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	for _, job := range s.registry.ExpireFinishedBefore(cutoff) {
		if job.ResultURL == nil {
			continue
		}
		token := extractToken(*job.ResultURL)
		if token == "" {
			continue
		}
		_, relPath, _, err := s.exporter.ParseToken(token, true)
		if err != nil {
			continue
		}
		if err := s.exporter.Delete(relPath); err != nil {
			s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
		}
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
}

func (s *ReportService) validateRequest(req dto.ReportRequest) error {
	if !isValidReportType(req.Type) {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
	}
	if !isValidFormat(req.Format) {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	if len(req.Delimiter) > 1 {
		return appErrors.Clone(appErrors.ErrValidation, "delimiter must be a single character")
	}
	if req.Type == models.ReportTypeSchedule {
		return s.store.View(func(snap store.Snapshot) error {
			if snap.Schedule == nil {
				return appErrors.Clone(appErrors.ErrNotFound, "no schedule generated yet")
			}
			return nil
		})
	}
	return nil
}

func isValidReportType(t models.ReportType) bool {
	return t == models.ReportTypeSchedule || t == models.ReportTypeRoster
}

func isValidFormat(f models.ReportFormat) bool {
	return f == models.ReportFormatCSV || f == models.ReportFormatPDF
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// --- Job registry ---

// JobRegistry tracks report jobs in memory. Finished jobs expire after
// the TTL; the registry starts empty on every boot.
type JobRegistry struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]*models.ReportJob
}

// NewJobRegistry builds an empty registry.
func NewJobRegistry(ttl time.Duration) *JobRegistry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JobRegistry{
		ttl:   ttl,
		items: make(map[string]*models.ReportJob),
	}
}

// Save registers a job under its id.
func (r *JobRegistry) Save(job *models.ReportJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[job.ID] = job
}

// Get returns a copy of the job. Finished jobs past the TTL are
// dropped on access.
func (r *JobRegistry) Get(id string) (models.ReportJob, bool) {
	r.mu.RLock()
	job, ok := r.items[id]
	if !ok {
		r.mu.RUnlock()
		return models.ReportJob{}, false
	}
	copied := *job
	r.mu.RUnlock()

	if copied.FinishedAt != nil && time.Since(*copied.FinishedAt) > r.ttl {
		r.Delete(id)
		return models.ReportJob{}, false
	}
	return copied, true
}

// Mutate applies fn to the stored job under the write lock. Field
// updates must assign fresh pointer values so copies handed out by Get
// stay race-free.
func (r *JobRegistry) Mutate(id string, fn func(*models.ReportJob)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.items[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}

// Delete removes a job.
func (r *JobRegistry) Delete(id string) {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
}

// ExpireFinishedBefore removes and returns terminal jobs finished
// before the cutoff.
func (r *JobRegistry) ExpireFinishedBefore(cutoff time.Time) []models.ReportJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []models.ReportJob
	for id, job := range r.items {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			expired = append(expired, *job)
			delete(r.items, id)
		}
	}
	return expired
}

// --- Worker ---

// ReportWorker bridges queue jobs to the exporter.
type ReportWorker struct {
	registry   *JobRegistry
	exporter   exportGenerator
	metrics    reportRecorder
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(registry *JobRegistry, exporter exportGenerator, metrics reportRecorder, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		registry:   registry,
		exporter:   exporter,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, ok := w.registry.Get(job.ID)
	if !ok {
		return fmt.Errorf("report job %s not found", job.ID)
	}
	w.registry.Mutate(job.ID, func(j *models.ReportJob) {
		j.Status = models.ReportStatusProcessing
		j.Progress = 10
	})

	result, err := w.exporter.Generate(ctx, &record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			now := time.Now().UTC()
			w.registry.Mutate(job.ID, func(j *models.ReportJob) {
				j.Status = models.ReportStatusFailed
				j.Progress = 100
				j.ErrorMessage = &msg
				j.FinishedAt = &now
			})
			if w.metrics != nil {
				w.metrics.RecordReport(record.Params.Format, false)
			}
		} else {
			w.registry.Mutate(job.ID, func(j *models.ReportJob) {
				j.Status = models.ReportStatusQueued
				j.Progress = 0
				j.ErrorMessage = &msg
			})
		}
		return err
	}

	now := time.Now().UTC()
	url := result.URL
	w.registry.Mutate(job.ID, func(j *models.ReportJob) {
		j.Status = models.ReportStatusFinished
		j.Progress = 100
		j.ResultURL = &url
		j.ErrorMessage = nil
		j.FinishedAt = &now
	})
	if w.metrics != nil {
		w.metrics.RecordReport(record.Params.Format, true)
	}
	return nil
}
