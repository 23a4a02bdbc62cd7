package models

import (
	"time"
)

// ForecastModel identifies a forecasting strategy. The set is closed; dispatch
// happens through an explicit switch rather than a lookup table.
type ForecastModel string

const (
	ForecastLinearTrend          ForecastModel = "linear_trend"
	ForecastMovingAverage        ForecastModel = "moving_average"
	ForecastExponentialSmoothing ForecastModel = "exponential_smoothing"
	ForecastARIMA                ForecastModel = "arima"
)

// DetectionMethod identifies an anomaly detection algorithm.
type DetectionMethod string

const (
	DetectionStatistical DetectionMethod = "statistical"
	DetectionIQR         DetectionMethod = "iqr"
	DetectionZScore      DetectionMethod = "zscore"
)

// TimeSeriesPoint is a single observation in a time series.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp" binding:"required"`
	Value     float64   `json:"value"`
}

// TimeSeriesData is an identified series of observations. Points are sorted
// ascending by timestamp before any strategy consumes them.
type TimeSeriesData struct {
	SeriesID string                 `json:"series_id" binding:"required"`
	Data     []TimeSeriesPoint      `json:"data" binding:"required,min=10"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ForecastRequest asks for a forecast over a time series.
type ForecastRequest struct {
	TimeSeries      TimeSeriesData `json:"timeseries" binding:"required"`
	ModelType       ForecastModel  `json:"model_type"`
	ForecastPeriods int            `json:"forecast_periods"`
	ConfidenceLevel float64        `json:"confidence_level"`
	// MAWindow is the averaging window for the moving_average model.
	MAWindow int `json:"ma_window"`
}

// ConfidenceInterval is a symmetric band around a point forecast.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ForecastResult holds the forecast values, their timestamps, per-point
// confidence intervals, and strategy-specific fit metrics.
type ForecastResult struct {
	SeriesID            string               `json:"series_id"`
	ModelType           string               `json:"model_type"`
	ForecastValues      []float64            `json:"forecast_values"`
	ForecastDates       []time.Time          `json:"forecast_dates"`
	ConfidenceIntervals []ConfidenceInterval `json:"confidence_intervals"`
	ModelMetrics        map[string]float64   `json:"model_metrics"`
	ModelSummary        string               `json:"model_summary"`
}

// AnomalyDetectionRequest asks for anomaly detection over a time series.
// WindowSize is accepted for interface compatibility but the detectors
// currently scan the full series; see services.TimeSeriesService.
type AnomalyDetectionRequest struct {
	TimeSeries      TimeSeriesData  `json:"timeseries" binding:"required"`
	DetectionMethod DetectionMethod `json:"detection_method"`
	Sensitivity     float64         `json:"sensitivity"`
	WindowSize      int             `json:"window_size"`
}

// AnomalyPoint is a flagged observation with its score and the range the
// detector expected the value to fall into.
type AnomalyPoint struct {
	Timestamp     time.Time          `json:"timestamp"`
	Value         float64            `json:"value"`
	AnomalyScore  float64            `json:"anomaly_score"`
	ExpectedRange ConfidenceInterval `json:"expected_range"`
}

// AnomalyDetectionResult holds the flagged points and the overall anomaly rate.
type AnomalyDetectionResult struct {
	SeriesID        string         `json:"series_id"`
	DetectionMethod string         `json:"detection_method"`
	AnomalyPoints   []AnomalyPoint `json:"anomaly_points"`
	AnomalyRate     float64        `json:"anomaly_rate"`
	Summary         string         `json:"summary"`
}
