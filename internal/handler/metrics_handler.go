package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rotaops/rota-api/internal/service"
	"github.com/rotaops/rota-api/internal/store"
	"github.com/rotaops/rota-api/pkg/response"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	store   *store.Store
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, st *store.Store) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, store: st}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports readiness; the snapshot store must be reachable.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store not configured"})
		return
	}
	if err := h.store.View(func(store.Snapshot) error { return nil }); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Snapshot godoc
// @Summary In-process metrics snapshot
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system/metrics [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	response.OK(c, h.metrics.Snapshot())
}
