package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rotaops/rota-api/internal/models"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
	"github.com/rotaops/rota-api/pkg/response"
)

type settingsService interface {
	Get(ctx context.Context) (*models.ScheduleSettings, error)
	Replace(ctx context.Context, settings models.ScheduleSettings) (*models.ScheduleSettings, error)
}

// SettingsHandler exposes the weekly planning configuration.
type SettingsHandler struct {
	service settingsService
}

// NewSettingsHandler constructs the handler.
func NewSettingsHandler(service settingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// Get godoc
// @Summary Get schedule settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, settings)
}

// Replace godoc
// @Summary Replace schedule settings
// @Description Replaces the full settings document. The previously
// @Description generated schedule is untouched until the next generation.
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body models.ScheduleSettings true "Settings payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /settings [put]
func (h *SettingsHandler) Replace(c *gin.Context) {
	var settings models.ScheduleSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}

	updated, err := h.service.Replace(c.Request.Context(), settings)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, updated)
}
