package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/statforge/statforge-go/internal/cache"
	"github.com/statforge/statforge-go/internal/database"
	"github.com/statforge/statforge-go/internal/models"
	"github.com/statforge/statforge-go/internal/utils"
)

// TimeSeriesServiceInterface defines the forecasting and anomaly detection
// operations the handler depends on.
type TimeSeriesServiceInterface interface {
	Forecast(ctx context.Context, req *models.ForecastRequest) (*models.ForecastResult, error)
	DetectAnomalies(ctx context.Context, req *models.AnomalyDetectionRequest) (*models.AnomalyDetectionResult, error)
}

// HistoryRecorder persists completed analyses. Implementations must treat
// writes as best-effort; the handler never fails a request over a history
// error.
type HistoryRecorder interface {
	RecordAnalysis(ctx context.Context, analysisType string, input, results interface{}, executionTime time.Duration, requestID string) (*database.AnalysisRecord, error)
}

// TimeSeriesHandler handles forecasting and anomaly detection endpoints.
// Both computations run behind the result cache.
type TimeSeriesHandler struct {
	forecasts *cache.CachedComputation[*models.ForecastRequest, *models.ForecastResult]
	anomalies *cache.CachedComputation[*models.AnomalyDetectionRequest, *models.AnomalyDetectionResult]
	history   HistoryRecorder
	logger    *logrus.Logger
}

// NewTimeSeriesHandler creates a time series handler. history may be nil when
// the service runs without Postgres; analytics may be nil to skip hit/miss
// accounting.
func NewTimeSeriesHandler(
	svc TimeSeriesServiceInterface,
	resultCache *cache.ResultCache,
	analytics cache.Recorder,
	history HistoryRecorder,
	logger *logrus.Logger,
) *TimeSeriesHandler {
	if logger == nil {
		logger = logrus.New()
	}

	forecasts := cache.NewCachedComputation(resultCache, cache.CategoryForecast, 0,
		forecastKeyFields, svc.Forecast, logger)
	anomalies := cache.NewCachedComputation(resultCache, "analysis:anomaly", 0,
		anomalyKeyFields, svc.DetectAnomalies, logger)
	if analytics != nil {
		forecasts.WithRecorder(analytics)
		anomalies.WithRecorder(analytics)
	}

	return &TimeSeriesHandler{
		forecasts: forecasts,
		anomalies: anomalies,
		history:   history,
		logger:    logger,
	}
}

func forecastKeyFields(r *models.ForecastRequest) map[string]interface{} {
	return map[string]interface{}{
		"series_id":        r.TimeSeries.SeriesID,
		"data":             r.TimeSeries.Data,
		"model_type":       r.ModelType,
		"forecast_periods": r.ForecastPeriods,
		"confidence_level": r.ConfidenceLevel,
		"ma_window":        r.MAWindow,
	}
}

func anomalyKeyFields(r *models.AnomalyDetectionRequest) map[string]interface{} {
	return map[string]interface{}{
		"series_id":        r.TimeSeries.SeriesID,
		"data":             r.TimeSeries.Data,
		"detection_method": r.DetectionMethod,
		"sensitivity":      r.Sensitivity,
		"window_size":      r.WindowSize,
	}
}

// Forecast generates a time series forecast
// @Summary Forecast a time series
// @Description Produce point forecasts with confidence intervals using the selected model
// @Tags timeseries
// @Accept json
// @Produce json
// @Success 200 {object} models.ForecastResult
// @Router /api/v1/timeseries/forecast [post]
func (h *TimeSeriesHandler) Forecast(c *gin.Context) {
	var req models.ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// Reject unknown model tags before touching the cache.
	switch req.ModelType {
	case "", models.ForecastLinearTrend, models.ForecastMovingAverage,
		models.ForecastExponentialSmoothing, models.ForecastARIMA:
	default:
		respondError(c, utils.NewUnsupportedModelError(string(req.ModelType)))
		return
	}

	start := time.Now()
	result, err := h.forecasts.Execute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordHistory(c, "forecast", &req, result, time.Since(start))
	respondOK(c, result)
}

// DetectAnomalies finds anomalous points in a time series
// @Summary Detect anomalies
// @Description Flag anomalous observations using the selected detection method
// @Tags timeseries
// @Accept json
// @Produce json
// @Success 200 {object} models.AnomalyDetectionResult
// @Router /api/v1/timeseries/anomalies [post]
func (h *TimeSeriesHandler) DetectAnomalies(c *gin.Context) {
	var req models.AnomalyDetectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	switch req.DetectionMethod {
	case "", models.DetectionStatistical, models.DetectionIQR, models.DetectionZScore:
	default:
		respondError(c, utils.NewUnsupportedMethodError(string(req.DetectionMethod)))
		return
	}

	start := time.Now()
	result, err := h.anomalies.Execute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordHistory(c, "anomaly_detection", &req, result, time.Since(start))
	respondOK(c, result)
}

func (h *TimeSeriesHandler) recordHistory(c *gin.Context, analysisType string, input, result interface{}, elapsed time.Duration) {
	if h.history == nil {
		return
	}
	if _, err := h.history.RecordAnalysis(c.Request.Context(), analysisType, input, result, elapsed, requestID(c)); err != nil {
		h.logger.WithError(err).WithField("analysis_type", analysisType).
			Warn("Failed to record analysis history")
	}
}
