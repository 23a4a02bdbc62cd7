package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/statforge/statforge-go/internal/services"
)

// MonitoringServiceInterface defines the monitoring operations the handler
// depends on.
type MonitoringServiceInterface interface {
	Metrics() map[string]services.RouteMetrics
	Status(ctx context.Context) services.MonitoringStatus
	Reset()
}

// MonitoringHandler exposes request counters and service health.
type MonitoringHandler struct {
	monitoring MonitoringServiceInterface
}

// NewMonitoringHandler creates a new monitoring handler
func NewMonitoringHandler(monitoring MonitoringServiceInterface) *MonitoringHandler {
	return &MonitoringHandler{monitoring: monitoring}
}

// GetMetrics returns per-route request metrics
// @Summary Get request metrics
// @Description Get request count, error rate, and average latency per route
// @Tags monitoring
// @Produce json
// @Success 200 {object} map[string]services.RouteMetrics
// @Router /api/v1/monitoring/metrics [get]
func (h *MonitoringHandler) GetMetrics(c *gin.Context) {
	respondOK(c, h.monitoring.Metrics())
}

// GetStatus returns overall health derived from recent request outcomes
// @Summary Get service status
// @Description Get service health derived from error rates plus host resource stats
// @Tags monitoring
// @Produce json
// @Success 200 {object} services.MonitoringStatus
// @Router /api/v1/monitoring/status [get]
func (h *MonitoringHandler) GetStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	respondOK(c, h.monitoring.Status(ctx))
}

// ResetMetrics clears all request counters
// @Summary Reset request metrics
// @Tags monitoring
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/monitoring/metrics/reset [post]
func (h *MonitoringHandler) ResetMetrics(c *gin.Context) {
	h.monitoring.Reset()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Request metrics reset successfully",
	})
}
