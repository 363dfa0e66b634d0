package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rotaops/rota-api/internal/dto"
	"github.com/rotaops/rota-api/internal/models"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
	"github.com/rotaops/rota-api/pkg/jobs"
)

type queueStub struct {
	enqueued []jobs.Job
	err      error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

type exportGenStub struct {
	result *ExportResult
	err    error
	calls  int
}

func (e *exportGenStub) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

type reportRecorderStub struct {
	succeeded int
	failed    int
}

func (r *reportRecorderStub) RecordReport(format models.ReportFormat, success bool) {
	if success {
		r.succeeded++
	} else {
		r.failed++
	}
}

func newReportServiceForTest(t *testing.T) (*ReportService, *JobRegistry, *queueStub, *ExportService) {
	t.Helper()
	exporter, st := newExportServiceForTest(t)
	seedSchedule(t, st)
	registry := NewJobRegistry(time.Hour)
	queue := &queueStub{}
	svc := NewReportService(st, registry, queue, exporter, zap.NewNop(), ReportServiceConfig{
		ResultTTL:  time.Hour,
		MaxRetries: 3,
	})
	return svc, registry, queue, exporter
}

func TestReportServiceCreateJobQueuesRosterReport(t *testing.T) {
	svc, registry, queue, _ := newReportServiceForTest(t)

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeRoster,
		Format: models.ReportFormatCSV,
	}, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	assert.Equal(t, 0, resp.Progress)

	stored, ok := registry.Get(resp.ID)
	require.True(t, ok)
	assert.Equal(t, "user-1", stored.CreatedBy)
	assert.Equal(t, models.ReportTypeRoster, stored.Type)

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)
	assert.Equal(t, "roster", queue.enqueued[0].Type)
}

func TestReportServiceCreateJobRejectsInvalidRequests(t *testing.T) {
	svc, _, _, _ := newReportServiceForTest(t)

	cases := map[string]struct {
		req  dto.ReportRequest
		code string
	}{
		"unknown type": {
			req:  dto.ReportRequest{Type: "payroll", Format: models.ReportFormatCSV},
			code: appErrors.ErrValidation.Code,
		},
		"unknown format": {
			req:  dto.ReportRequest{Type: models.ReportTypeRoster, Format: "xlsx"},
			code: appErrors.ErrValidation.Code,
		},
		"multi-char delimiter": {
			req:  dto.ReportRequest{Type: models.ReportTypeRoster, Format: models.ReportFormatCSV, Delimiter: ";;"},
			code: appErrors.ErrValidation.Code,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateJob(context.Background(), tc.req, "user-1")
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestReportServiceCreateScheduleJobWithoutSchedule(t *testing.T) {
	exporter, st := newExportServiceForTest(t) // no schedule seeded
	svc := NewReportService(st, NewJobRegistry(time.Hour), &queueStub{}, exporter, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeSchedule,
		Format: models.ReportFormatPDF,
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, registry, queue, _ := newReportServiceForTest(t)
	queue.err = errors.New("queue stopped")

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeRoster,
		Format: models.ReportFormatCSV,
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	// The job id is not returned on failure; sweep the registry to
	// find the record it kept for post-mortem.
	var failedID string
	for _, job := range registry.ExpireFinishedBefore(time.Now().Add(time.Minute)) {
		failedID = job.ID
		assert.Equal(t, models.ReportStatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
		assert.Equal(t, "failed to enqueue job", *job.ErrorMessage)
	}
	assert.NotEmpty(t, failedID)
}

func TestReportServiceGetStatusOwnership(t *testing.T) {
	svc, _, _, _ := newReportServiceForTest(t)

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeRoster,
		Format: models.ReportFormatCSV,
	}, "user-1")
	require.NoError(t, err)

	status, err := svc.GetStatus(context.Background(), resp.ID, "user-1", models.RolePlanner)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, status.Status)

	_, err = svc.GetStatus(context.Background(), resp.ID, "user-2", models.RolePlanner)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Admins can inspect anyone's job.
	_, err = svc.GetStatus(context.Background(), resp.ID, "user-2", models.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "missing", "user-1", models.RolePlanner)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceDownloadFlow(t *testing.T) {
	svc, registry, queue, exporter := newReportServiceForTest(t)

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeSchedule,
		Format: models.ReportFormatCSV,
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, queue.enqueued, 1)

	worker := NewReportWorker(registry, exporter, nil, 3, zap.NewNop())
	queued := queue.enqueued[0]
	queued.Attempt = 1
	require.NoError(t, worker.Handle(context.Background(), queued))

	status, err := svc.GetStatus(context.Background(), resp.ID, "user-1", models.RolePlanner)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.ResultURL)
	require.True(t, strings.HasPrefix(*status.ResultURL, "/downloads/"), "url %q", *status.ResultURL)

	token := strings.TrimPrefix(*status.ResultURL, "/downloads/")
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, models.ReportFormatCSV, download.Format)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Ada")
}

func TestReportServiceResolveDownloadRejectsBadToken(t *testing.T) {
	svc, _, _, _ := newReportServiceForTest(t)

	_, err := svc.ResolveDownload(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCleanupExpiredRemovesJobAndFile(t *testing.T) {
	svc, registry, queue, exporter := newReportServiceForTest(t)

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeRoster,
		Format: models.ReportFormatCSV,
	}, "user-1")
	require.NoError(t, err)

	worker := NewReportWorker(registry, exporter, nil, 3, zap.NewNop())
	require.NoError(t, worker.Handle(context.Background(), queue.enqueued[0]))

	finished, ok := registry.Get(resp.ID)
	require.True(t, ok)
	require.NotNil(t, finished.ResultURL)
	token := strings.TrimPrefix(*finished.ResultURL, "/downloads/")
	_, relPath, _, err := exporter.ParseToken(token, true)
	require.NoError(t, err)

	// Age the job past the retention window, then sweep.
	old := time.Now().Add(-2 * time.Hour)
	registry.Mutate(resp.ID, func(j *models.ReportJob) {
		j.FinishedAt = &old
	})
	svc.cleanupExpired()

	_, ok = registry.Get(resp.ID)
	assert.False(t, ok)
	_, err = exporter.Open(relPath)
	require.Error(t, err)
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	registry := NewJobRegistry(time.Hour)
	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeRoster,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
		Status: models.ReportStatusQueued,
	}
	registry.Save(job)

	gen := &exportGenStub{result: &ExportResult{URL: "/downloads/tok", Format: models.ReportFormatCSV}}
	recorder := &reportRecorderStub{}
	worker := NewReportWorker(registry, gen, recorder, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, recorder.succeeded)

	stored, ok := registry.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, models.ReportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.Equal(t, "/downloads/tok", *stored.ResultURL)
	require.NotNil(t, stored.FinishedAt)
}

func TestReportWorkerHandleRetriesThenFails(t *testing.T) {
	registry := NewJobRegistry(time.Hour)
	registry.Save(&models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeRoster,
		Params: models.ReportJobParams{Format: models.ReportFormatPDF},
		Status: models.ReportStatusQueued,
	})

	gen := &exportGenStub{err: errors.New("render blew up")}
	recorder := &reportRecorderStub{}
	worker := NewReportWorker(registry, gen, recorder, 3, zap.NewNop())

	// Early attempts requeue the job for the dispatcher to retry.
	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	stored, ok := registry.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, models.ReportStatusQueued, stored.Status)
	assert.Equal(t, 0, stored.Progress)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, 0, recorder.failed)

	// The final attempt marks the job failed for good.
	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 3})
	require.Error(t, err)
	stored, ok = registry.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.FinishedAt)
	assert.Equal(t, 1, recorder.failed)
}

func TestReportWorkerHandleUnknownJob(t *testing.T) {
	worker := NewReportWorker(NewJobRegistry(time.Hour), &exportGenStub{}, nil, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "ghost", Attempt: 1})
	require.Error(t, err)
}

func TestJobRegistryExpiresFinishedJobs(t *testing.T) {
	registry := NewJobRegistry(50 * time.Millisecond)
	old := time.Now().Add(-time.Minute)
	registry.Save(&models.ReportJob{ID: "done", Status: models.ReportStatusFinished, FinishedAt: &old})
	registry.Save(&models.ReportJob{ID: "pending", Status: models.ReportStatusQueued})

	_, ok := registry.Get("done")
	assert.False(t, ok, "finished job past ttl should be dropped on access")

	_, ok = registry.Get("pending")
	assert.True(t, ok, "jobs without a finish time never expire")
}

func TestJobRegistryExpireFinishedBefore(t *testing.T) {
	registry := NewJobRegistry(time.Hour)
	old := time.Now().Add(-2 * time.Hour)
	fresh := time.Now()
	registry.Save(&models.ReportJob{ID: "old", Status: models.ReportStatusFinished, FinishedAt: &old})
	registry.Save(&models.ReportJob{ID: "fresh", Status: models.ReportStatusFinished, FinishedAt: &fresh})
	registry.Save(&models.ReportJob{ID: "queued", Status: models.ReportStatusQueued})

	expired := registry.ExpireFinishedBefore(time.Now().Add(-time.Hour))
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].ID)

	_, ok := registry.Get("old")
	assert.False(t, ok)
	_, ok = registry.Get("fresh")
	assert.True(t, ok)
	_, ok = registry.Get("queued")
	assert.True(t, ok)
}
