package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/statforge/statforge-go/internal/database"
)

const defaultHistoryLimit = 50

// HistoryReader reads back persisted analysis runs and training logs.
type HistoryReader interface {
	RecentAnalyses(ctx context.Context, analysisType string, limit int) ([]database.AnalysisRecord, error)
	TrainingHistory(ctx context.Context, limit int) ([]database.TrainingLogEntry, error)
}

// HistoryHandler exposes the analysis history. A nil reader means the
// service runs without Postgres and history queries are unavailable.
type HistoryHandler struct {
	reader HistoryReader
}

// NewHistoryHandler creates a history handler
func NewHistoryHandler(reader HistoryReader) *HistoryHandler {
	return &HistoryHandler{reader: reader}
}

// RecentAnalyses returns the most recent analysis runs
// @Summary Recent analyses
// @Description List recently recorded analysis runs, optionally filtered by type
// @Tags history
// @Param type query string false "Analysis type filter, e.g. forecast"
// @Param limit query int false "Maximum rows to return (default: 50)"
// @Produce json
// @Success 200 {array} database.AnalysisRecord
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/history/analyses [get]
func (h *HistoryHandler) RecentAnalyses(c *gin.Context) {
	if h.reader == nil {
		respondHistoryDisabled(c)
		return
	}

	records, err := h.reader.RecentAnalyses(c.Request.Context(), c.Query("type"), parseLimit(c.Query("limit")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to query analysis history: " + err.Error(),
		})
		return
	}
	respondOK(c, records)
}

// TrainingHistory returns the most recent model training runs
// @Summary Training history
// @Description List recently recorded model training runs
// @Tags history
// @Param limit query int false "Maximum rows to return (default: 50)"
// @Produce json
// @Success 200 {array} database.TrainingLogEntry
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/history/training [get]
func (h *HistoryHandler) TrainingHistory(c *gin.Context) {
	if h.reader == nil {
		respondHistoryDisabled(c)
		return
	}

	entries, err := h.reader.TrainingHistory(c.Request.Context(), parseLimit(c.Query("limit")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to query training history: " + err.Error(),
		})
		return
	}
	respondOK(c, entries)
}

func respondHistoryDisabled(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"success": false,
		"error":   "Analysis history requires a configured database",
	})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultHistoryLimit
	}
	if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
		return parsed
	}
	return defaultHistoryLimit
}
