package models

import "time"

// ReportType enumerates supported asynchronous report categories.
type ReportType string

const (
	ReportTypeSchedule ReportType = "schedule"
	ReportTypeRoster   ReportType = "roster"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob tracks one background render. Jobs live in memory with a
// TTL; only the rendered artifact on disk outlives the process.
type ReportJob struct {
	ID           string          `json:"id"`
	Type         ReportType      `json:"type"`
	Params       ReportJobParams `json:"params"`
	Status       ReportStatus    `json:"status"`
	Progress     int             `json:"progress"`
	ResultURL    *string         `json:"result_url,omitempty"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

// ReportJobParams stores request-scoped render options.
type ReportJobParams struct {
	Format    ReportFormat `json:"format"`
	Delimiter string       `json:"delimiter,omitempty"`
}
