package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rotaops/rota-api/internal/dto"
	"github.com/rotaops/rota-api/internal/models"
	"github.com/rotaops/rota-api/internal/service"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
	"github.com/rotaops/rota-api/pkg/response"
)

type reportService interface {
	CreateJob(ctx context.Context, req dto.ReportRequest, actorID string) (*dto.ReportJobResponse, error)
	GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.ReportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// ReportHandler exposes the asynchronous report pipeline.
type ReportHandler struct {
	service reportService
	logger  *zap.Logger
}

// NewReportHandler constructs handler.
func NewReportHandler(service reportService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{service: service, logger: logger}
}

// GenerateReport godoc
// @Summary Queue a report render
// @Description Enqueues a schedule or roster report in CSV or PDF format.
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ReportRequest true "Report request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}

	job, err := h.service.CreateJob(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, job, nil)
}

// ReportStatus godoc
// @Summary Get report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) ReportStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, status)
}

// DownloadReport godoc
// @Summary Download a rendered report via signed token
// @Description Public route; the token embeds the job, path, and expiry.
// @Tags Reports
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file "Report file"
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /downloads/{token} [get]
func (h *ReportHandler) DownloadReport(c *gin.Context) {
	result, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	info, err := result.File.Stat()
	if err != nil {
		h.logger.Warn("failed to stat report file", zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to read report file"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.DataFromReader(http.StatusOK, info.Size(), contentTypeFor(result.Format), result.File, nil)
}

func contentTypeFor(format models.ReportFormat) string {
	switch format {
	case models.ReportFormatPDF:
		return "application/pdf"
	case models.ReportFormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
