package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/statforge/statforge-go/internal/cache"
	"github.com/statforge/statforge-go/internal/services"
)

// CacheAnalyticsInterface defines the interface for cache analytics operations
type CacheAnalyticsInterface interface {
	GetStats(category string) services.CacheStats
	GetAllStats() map[string]services.CacheStats
	GetMetrics(ctx context.Context) (*services.CacheMetrics, error)
	ResetStats()
	RecordHit(category string)
	RecordMiss(category string)
}

// ResultCacheInterface defines the result cache operations the handler
// depends on.
type ResultCacheInterface interface {
	InvalidatePattern(ctx context.Context, pattern string) (int64, error)
	Stats(ctx context.Context) cache.ResultCacheStats
}

// CacheHandler handles cache monitoring, analytics, and invalidation
// endpoints.
type CacheHandler struct {
	cacheAnalytics CacheAnalyticsInterface
	resultCache    ResultCacheInterface
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cacheAnalytics CacheAnalyticsInterface, resultCache ResultCacheInterface) *CacheHandler {
	return &CacheHandler{
		cacheAnalytics: cacheAnalytics,
		resultCache:    resultCache,
	}
}

// GetCacheStats returns cache statistics for all categories
// @Summary Get cache statistics
// @Description Get cache hit/miss statistics for all analysis categories
// @Tags cache
// @Produce json
// @Success 200 {object} map[string]services.CacheStats
// @Router /api/v1/cache/stats [get]
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	respondOK(c, h.cacheAnalytics.GetAllStats())
}

// GetCacheStatsByCategory returns cache statistics for a specific category
// @Summary Get cache statistics by category
// @Description Get cache hit/miss statistics for one category (e.g. forecast, analysis:correlation)
// @Tags cache
// @Param category path string true "Cache category"
// @Produce json
// @Success 200 {object} services.CacheStats
// @Router /api/v1/cache/stats/{category} [get]
func (h *CacheHandler) GetCacheStatsByCategory(c *gin.Context) {
	category := c.Param("category")
	if category == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Category parameter is required",
		})
		return
	}
	respondOK(c, h.cacheAnalytics.GetStats(category))
}

// GetCacheMetrics returns comprehensive cache metrics including Redis info
// @Summary Get comprehensive cache metrics
// @Description Get detailed cache metrics including backend memory usage and key count
// @Tags cache
// @Produce json
// @Success 200 {object} services.CacheMetrics
// @Router /api/v1/cache/metrics [get]
func (h *CacheHandler) GetCacheMetrics(c *gin.Context) {
	metrics, err := h.cacheAnalytics.GetMetrics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get cache metrics: " + err.Error(),
		})
		return
	}
	respondOK(c, metrics)
}

// GetResultCacheStats returns the result cache's own counters and backend
// snapshot
// @Summary Get result cache status
// @Tags cache
// @Produce json
// @Success 200 {object} cache.ResultCacheStats
// @Router /api/v1/cache/status [get]
func (h *CacheHandler) GetResultCacheStats(c *gin.Context) {
	respondOK(c, h.resultCache.Stats(c.Request.Context()))
}

// ResetCacheStats resets all cache statistics
// @Summary Reset cache statistics
// @Description Reset all cache hit/miss statistics to zero
// @Tags cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/cache/stats/reset [post]
func (h *CacheHandler) ResetCacheStats(c *gin.Context) {
	h.cacheAnalytics.ResetStats()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache statistics reset successfully",
	})
}

// InvalidatePattern deletes all cache entries matching a glob pattern
// @Summary Invalidate cache entries
// @Description Delete every cache key matching the given glob pattern
// @Tags cache
// @Param pattern query string true "Glob pattern, e.g. forecast:*"
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/cache/invalidate [post]
func (h *CacheHandler) InvalidatePattern(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Pattern parameter is required",
		})
		return
	}

	deleted, err := h.resultCache.InvalidatePattern(c.Request.Context(), pattern)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to invalidate cache: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pattern": pattern,
		"deleted": deleted,
	})
}

// RecordCacheHit manually records a cache hit (for testing purposes)
// @Summary Record cache hit
// @Description Manually record a cache hit for testing purposes
// @Tags cache
// @Param category query string true "Cache category"
// @Param count query int false "Number of hits to record (default: 1)"
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/cache/hit [post]
func (h *CacheHandler) RecordCacheHit(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Category parameter is required",
		})
		return
	}

	count := parseCount(c.Query("count"))
	for i := 0; i < count; i++ {
		h.cacheAnalytics.RecordHit(category)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache hits recorded successfully",
		"count":   count,
	})
}

// RecordCacheMiss manually records a cache miss (for testing purposes)
// @Summary Record cache miss
// @Description Manually record a cache miss for testing purposes
// @Tags cache
// @Param category query string true "Cache category"
// @Param count query int false "Number of misses to record (default: 1)"
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/cache/miss [post]
func (h *CacheHandler) RecordCacheMiss(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Category parameter is required",
		})
		return
	}

	count := parseCount(c.Query("count"))
	for i := 0; i < count; i++ {
		h.cacheAnalytics.RecordMiss(category)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache misses recorded successfully",
		"count":   count,
	})
}

func parseCount(raw string) int {
	if raw == "" {
		return 1
	}
	if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
		return parsed
	}
	return 1
}
