package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rotaops/rota-api/internal/models"
	"github.com/rotaops/rota-api/internal/store"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
	"github.com/rotaops/rota-api/pkg/export"
	"github.com/rotaops/rota-api/pkg/storage"
)

type exportStore interface {
	View(fn func(store.Snapshot) error) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	DownloadPrefix string
	ResultTTL      time.Duration
	CSVDelimiter   rune
}

// ExportResult captures successful render metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService projects the snapshot into tabular datasets and
// persists rendered files.
type ExportService struct {
	store   exportStore
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(store exportStore, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadPrefix == "" {
		cfg.DownloadPrefix = "/downloads"
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter(cfg.CSVDelimiter)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		store:   store,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// ScheduleCSV renders the current schedule as CSV for synchronous
// download. The delimiter override must be a single character.
func (s *ExportService) ScheduleCSV(ctx context.Context, delimiter string) ([]byte, string, error) {
	if len(delimiter) > 1 {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "delimiter must be a single character")
	}

	var dataset export.Dataset
	var weekTag string
	err := s.store.View(func(snap store.Snapshot) error {
		var err error
		dataset, _, weekTag, err = buildScheduleDataset(snap)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	payload, err := s.csvFor(delimiter).Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule csv")
	}
	filename := fmt.Sprintf("schedule_%s.csv", sanitizeFilename(weekTag))
	return payload, filename, nil
}

// Generate builds the dataset for a report job and stores the rendered
// file, returning a signed download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}

	var dataset export.Dataset
	var title, scope string
	err := s.store.View(func(snap store.Snapshot) error {
		var err error
		dataset, title, scope, err = buildDataset(snap, job.Type)
		return err
	})
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csvFor(job.Params.Delimiter).Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job, scope)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := fmt.Sprintf("%s/%s", strings.TrimRight(s.cfg.DownloadPrefix, "/"), token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// csvFor resolves the per-request delimiter override; an empty override
// keeps the configured renderer.
func (s *ExportService) csvFor(delimiter string) csvRenderer {
	if delimiter == "" {
		return s.csv
	}
	return export.NewCSVExporter(rune(delimiter[0]))
}

func (s *ExportService) buildFilename(job *models.ReportJob, scope string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), sanitizeFilename(scope), timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// --- Dataset builders ---

func buildDataset(snap store.Snapshot, reportType models.ReportType) (export.Dataset, string, string, error) {
	switch reportType {
	case models.ReportTypeSchedule:
		return buildScheduleDataset(snap)
	case models.ReportTypeRoster:
		return buildRosterDataset(snap)
	default:
		return export.Dataset{}, "", "", fmt.Errorf("unsupported report type %s", reportType)
	}
}

func buildScheduleDataset(snap store.Snapshot) (export.Dataset, string, string, error) {
	if snap.Schedule == nil {
		return export.Dataset{}, "", "", appErrors.Clone(appErrors.ErrNotFound, "no schedule generated yet")
	}
	loc := snap.Settings.Location()
	weekTag := snap.Schedule.WeekStart.In(loc).Format("2006-01-02")

	shifts := snap.Schedule.ShiftsByStart()
	rows := make([]map[string]string, 0, len(shifts))
	for _, shift := range shifts {
		names := make([]string, 0, len(shift.Assignments))
		for _, id := range shift.Assignments {
			names = append(names, snap.EmployeeName(id))
		}
		rows = append(rows, map[string]string{
			"Start":          shift.Start.In(loc).Format("2006-01-02 15:04"),
			"End":            shift.End.In(loc).Format("2006-01-02 15:04"),
			"Role":           shift.Role.Label(),
			"Required Staff": fmt.Sprintf("%d", shift.RequiredStaff),
			"Assigned":       strings.Join(names, "|"),
			"Coverage":       string(shift.Coverage()),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Start", "End", "Role", "Required Staff", "Assigned", "Coverage"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Shift Schedule Week of %s", weekTag)
	return dataset, title, weekTag, nil
}

func buildRosterDataset(snap store.Snapshot) (export.Dataset, string, string, error) {
	rows := make([]map[string]string, 0, len(snap.Employees))
	for _, emp := range snap.Employees {
		days := make([]string, 0, len(models.Weekdays))
		for _, day := range models.Weekdays {
			if len(emp.Availability[day]) > 0 {
				days = append(days, string(day))
			}
		}
		rows = append(rows, map[string]string{
			"ID":                 emp.ID,
			"Name":               emp.Name,
			"Roles":              strings.Join(emp.Roles, "|"),
			"Max Hours Per Week": fmt.Sprintf("%d", emp.MaxHoursPerWeek),
			"Days Available":     strings.Join(days, "|"),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"ID", "Name", "Roles", "Max Hours Per Week", "Days Available"},
		Rows:    rows,
	}
	return dataset, "Employee Roster", "roster", nil
}
