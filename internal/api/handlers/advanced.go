package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/statforge/statforge-go/internal/cache"
	"github.com/statforge/statforge-go/internal/models"
)

// AdvancedStatisticsServiceInterface defines the correlation and regression
// operations the handler depends on.
type AdvancedStatisticsServiceInterface interface {
	Correlation(ctx context.Context, req *models.CorrelationRequest) (*models.CorrelationResult, error)
	Regression(ctx context.Context, req *models.RegressionRequest) (*models.RegressionResult, error)
}

// AdvancedStatisticsHandler handles correlation and regression endpoints.
type AdvancedStatisticsHandler struct {
	correlation *cache.CachedComputation[*models.CorrelationRequest, *models.CorrelationResult]
	regression  *cache.CachedComputation[*models.RegressionRequest, *models.RegressionResult]
	history     HistoryRecorder
	logger      *logrus.Logger
}

// NewAdvancedStatisticsHandler creates an advanced statistics handler.
func NewAdvancedStatisticsHandler(
	svc AdvancedStatisticsServiceInterface,
	resultCache *cache.ResultCache,
	analytics cache.Recorder,
	history HistoryRecorder,
	logger *logrus.Logger,
) *AdvancedStatisticsHandler {
	if logger == nil {
		logger = logrus.New()
	}

	correlation := cache.NewCachedComputation(resultCache, "analysis:correlation", 0,
		func(r *models.CorrelationRequest) map[string]interface{} {
			return map[string]interface{}{
				"x_data":           r.XData,
				"y_data":           r.YData,
				"correlation_type": r.CorrelationType,
				"alpha":            r.Alpha,
			}
		}, svc.Correlation, logger)
	regression := cache.NewCachedComputation(resultCache, "analysis:regression", 0,
		func(r *models.RegressionRequest) map[string]interface{} {
			return map[string]interface{}{
				"x_data":            r.XData,
				"y_data":            r.YData,
				"regression_type":   r.RegressionType,
				"polynomial_degree": r.PolynomialDegree,
				"alpha":             r.Alpha,
			}
		}, svc.Regression, logger)
	if analytics != nil {
		correlation.WithRecorder(analytics)
		regression.WithRecorder(analytics)
	}

	return &AdvancedStatisticsHandler{
		correlation: correlation,
		regression:  regression,
		history:     history,
		logger:      logger,
	}
}

// Correlation analyzes the relationship between two samples
// @Summary Correlation analysis
// @Description Compute a correlation coefficient with p-value and interpretation
// @Tags advanced
// @Accept json
// @Produce json
// @Success 200 {object} models.CorrelationResult
// @Router /api/v1/advanced/correlation [post]
func (h *AdvancedStatisticsHandler) Correlation(c *gin.Context) {
	var req models.CorrelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	start := time.Now()
	result, err := h.correlation.Execute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordHistory(c, "correlation", &req, result, time.Since(start))
	respondOK(c, result)
}

// Regression fits a regression model of y on x
// @Summary Regression analysis
// @Description Fit a linear, polynomial, ridge, lasso, or logistic regression with diagnostics
// @Tags advanced
// @Accept json
// @Produce json
// @Success 200 {object} models.RegressionResult
// @Router /api/v1/advanced/regression [post]
func (h *AdvancedStatisticsHandler) Regression(c *gin.Context) {
	var req models.RegressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	start := time.Now()
	result, err := h.regression.Execute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordHistory(c, "regression", &req, result, time.Since(start))
	respondOK(c, result)
}

func (h *AdvancedStatisticsHandler) recordHistory(c *gin.Context, analysisType string, input, result interface{}, elapsed time.Duration) {
	if h.history == nil {
		return
	}
	if _, err := h.history.RecordAnalysis(c.Request.Context(), analysisType, input, result, elapsed, requestID(c)); err != nil {
		h.logger.WithError(err).WithField("analysis_type", analysisType).
			Warn("Failed to record analysis history")
	}
}
