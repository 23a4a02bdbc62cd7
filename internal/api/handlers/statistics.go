package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/statforge/statforge-go/internal/cache"
	"github.com/statforge/statforge-go/internal/models"
)

// StatisticsServiceInterface defines the descriptive statistics and
// hypothesis testing operations the handler depends on.
type StatisticsServiceInterface interface {
	Descriptive(ctx context.Context, req *models.StatisticalDataRequest) (*models.DescriptiveStatistics, error)
	HypothesisTest(ctx context.Context, req *models.HypothesisTestRequest) (*models.HypothesisTestResult, error)
}

// StatisticsHandler handles descriptive statistics and hypothesis testing
// endpoints.
type StatisticsHandler struct {
	descriptive *cache.CachedComputation[*models.StatisticalDataRequest, *models.DescriptiveStatistics]
	hypothesis  *cache.CachedComputation[*models.HypothesisTestRequest, *models.HypothesisTestResult]
	history     HistoryRecorder
	logger      *logrus.Logger
}

// NewStatisticsHandler creates a statistics handler.
func NewStatisticsHandler(
	svc StatisticsServiceInterface,
	resultCache *cache.ResultCache,
	analytics cache.Recorder,
	history HistoryRecorder,
	logger *logrus.Logger,
) *StatisticsHandler {
	if logger == nil {
		logger = logrus.New()
	}

	descriptive := cache.NewCachedComputation(resultCache, "analysis:descriptive", 0,
		func(r *models.StatisticalDataRequest) map[string]interface{} {
			return map[string]interface{}{"data": r.Data, "confidence_level": r.ConfidenceLevel}
		}, svc.Descriptive, logger)
	hypothesis := cache.NewCachedComputation(resultCache, "analysis:hypothesis", 0,
		func(r *models.HypothesisTestRequest) map[string]interface{} {
			return map[string]interface{}{
				"sample_data":           r.SampleData,
				"test_type":             r.TestType,
				"null_hypothesis_value": r.NullHypothesisValue,
				"alternative":           r.Alternative,
				"alpha":                 r.Alpha,
			}
		}, svc.HypothesisTest, logger)
	if analytics != nil {
		descriptive.WithRecorder(analytics)
		hypothesis.WithRecorder(analytics)
	}

	return &StatisticsHandler{
		descriptive: descriptive,
		hypothesis:  hypothesis,
		history:     history,
		logger:      logger,
	}
}

// Descriptive computes summary statistics for a sample
// @Summary Descriptive statistics
// @Description Compute central tendency, dispersion, quartiles, shape, and a confidence interval for the mean
// @Tags statistics
// @Accept json
// @Produce json
// @Success 200 {object} models.DescriptiveStatistics
// @Router /api/v1/stats/descriptive [post]
func (h *StatisticsHandler) Descriptive(c *gin.Context) {
	var req models.StatisticalDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	start := time.Now()
	result, err := h.descriptive.Execute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordHistory(c, "descriptive_statistics", &req, result, time.Since(start))
	respondOK(c, result)
}

// HypothesisTest runs a one-sample t test
// @Summary Hypothesis test
// @Description Run a one-sample t test against a hypothesized mean
// @Tags statistics
// @Accept json
// @Produce json
// @Success 200 {object} models.HypothesisTestResult
// @Router /api/v1/stats/hypothesis [post]
func (h *StatisticsHandler) HypothesisTest(c *gin.Context) {
	var req models.HypothesisTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	start := time.Now()
	result, err := h.hypothesis.Execute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordHistory(c, "hypothesis_test", &req, result, time.Since(start))
	respondOK(c, result)
}

// SupportedTests lists the available hypothesis test types
// @Summary Supported hypothesis tests
// @Tags statistics
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/stats/supported-tests [get]
func (h *StatisticsHandler) SupportedTests(c *gin.Context) {
	respondOK(c, gin.H{
		"supported_tests": []gin.H{
			{
				"type":        "one_sample_t",
				"name":        "One-sample t test",
				"description": "Tests whether a sample mean equals a hypothesized value",
			},
		},
	})
}

func (h *StatisticsHandler) recordHistory(c *gin.Context, analysisType string, input, result interface{}, elapsed time.Duration) {
	if h.history == nil {
		return
	}
	if _, err := h.history.RecordAnalysis(c.Request.Context(), analysisType, input, result, elapsed, requestID(c)); err != nil {
		h.logger.WithError(err).WithField("analysis_type", analysisType).
			Warn("Failed to record analysis history")
	}
}
