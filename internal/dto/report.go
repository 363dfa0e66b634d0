package dto

import "github.com/rotaops/rota-api/internal/models"

// ReportRequest captures POST /reports payload. Delimiter only applies
// to CSV output and defaults to the configured one.
type ReportRequest struct {
	Type      models.ReportType   `json:"type"`
	Format    models.ReportFormat `json:"format"`
	Delimiter string              `json:"delimiter,omitempty"`
}

// ReportJobResponse acknowledges an enqueued render.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress. ResultURL appears once the
// render finished and points at the signed download route.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
