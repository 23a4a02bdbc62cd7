package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// DependencyChecker reports whether a backing dependency is reachable.
type DependencyChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	db    DependencyChecker
	cache DependencyChecker
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

// NewHealthHandler creates a health handler. Either dependency may be nil
// when it is not configured.
func NewHealthHandler(db, cache DependencyChecker) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// HealthCheck reports overall service health
// @Summary Health check
// @Description Get per-dependency health. Returns 503 when the service is degraded or unhealthy.
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	overallStatus := "healthy"

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			services["database"] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "disabled"
	}

	// A lost cache backend degrades every computation to a miss but the
	// service keeps answering, so it lowers status to degraded only.
	if h.cache != nil {
		if err := h.cache.HealthCheck(ctx); err != nil {
			services["cache"] = "degraded: " + err.Error()
			if overallStatus == "healthy" {
				overallStatus = "degraded"
			}
		} else {
			services["cache"] = "healthy"
		}
	} else {
		services["cache"] = "degraded: not configured"
		if overallStatus == "healthy" {
			overallStatus = "degraded"
		}
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Services:  services,
		Version:   os.Getenv("APP_VERSION"),
		Uptime:    time.Since(startTime).String(),
	}

	code := http.StatusOK
	if overallStatus != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}

// ReadinessCheck reports whether the service can take traffic
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)

	// The database is the only hard dependency; the cache degrades to
	// misses and the in-process services need nothing else.
	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			services["database"] = "not ready"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":    false,
				"services": services,
			})
			return
		}
		services["database"] = "ready"
	}

	c.JSON(http.StatusOK, gin.H{
		"ready":    true,
		"services": services,
	})
}

// LivenessCheck reports that the process is responsive
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
