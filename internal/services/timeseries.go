package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/statforge/statforge-go/internal/config"
	"github.com/statforge/statforge-go/internal/models"
	"github.com/statforge/statforge-go/internal/telemetry"
	"github.com/statforge/statforge-go/internal/utils"
)

// TimeSeriesService dispatches forecasting and anomaly detection over
// time-indexed data. The strategy sets are closed; dispatch is an explicit
// switch on the request's model/method tag.
type TimeSeriesService struct {
	cfg    config.ForecastConfig
	logger *logrus.Logger
	tracer *telemetry.AnalysisTracer
}

// NewTimeSeriesService creates a new time series service.
func NewTimeSeriesService(cfg config.ForecastConfig, logger *logrus.Logger) *TimeSeriesService {
	if logger == nil {
		logger = logrus.New()
	}
	return &TimeSeriesService{
		cfg:    cfg,
		logger: logger,
		tracer: telemetry.NewAnalysisTracer(),
	}
}

// preparedSeries is a series after validation: points sorted ascending by
// timestamp, values extracted, and the canonical forecast step derived from
// the last inter-point gap.
type preparedSeries struct {
	points []models.TimeSeriesPoint
	values []float64
	step   time.Duration
}

func (s *TimeSeriesService) prepare(ts models.TimeSeriesData) (*preparedSeries, error) {
	if ts.SeriesID == "" {
		return nil, utils.NewValidationError("series_id is required")
	}
	if len(ts.Data) < 2 {
		return nil, utils.NewValidationErrorf("time series needs at least 2 points, got %d", len(ts.Data))
	}

	points := make([]models.TimeSeriesPoint, len(ts.Data))
	copy(points, ts.Data)
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	// The last observed gap is the forecast step. Irregularly spaced series
	// degrade silently rather than erroring.
	n := len(points)
	step := points[n-1].Timestamp.Sub(points[n-2].Timestamp)
	if step <= 0 {
		return nil, utils.NewValidationError("time series timestamps must be strictly increasing")
	}

	return &preparedSeries{points: points, values: values, step: step}, nil
}

// Forecast routes the request to one of the forecasting strategies and
// produces point forecasts with symmetric confidence intervals.
func (s *TimeSeriesService) Forecast(ctx context.Context, req *models.ForecastRequest) (*models.ForecastResult, error) {
	modelType := req.ModelType
	if modelType == "" {
		modelType = models.ForecastLinearTrend
	}

	periods := req.ForecastPeriods
	if periods <= 0 {
		periods = s.cfg.DefaultPeriods
	}
	if periods > s.cfg.MaxPeriods {
		return nil, utils.NewValidationErrorf("forecast_periods %d exceeds maximum %d", periods, s.cfg.MaxPeriods)
	}

	confidence := req.ConfidenceLevel
	if confidence == 0 {
		confidence = s.cfg.DefaultConfidenceLevel
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, utils.NewValidationErrorf("confidence_level must be in (0, 1), got %g", confidence)
	}

	series, err := s.prepare(req.TimeSeries)
	if err != nil {
		return nil, err
	}

	_, span := s.tracer.TraceForecast(ctx, req.TimeSeries.SeriesID, string(modelType), periods)
	defer span.End()

	var (
		values    []float64
		intervals []models.ConfidenceInterval
		metrics   map[string]float64
		summary   string
	)

	switch modelType {
	case models.ForecastLinearTrend:
		values, intervals, metrics, summary, err = s.forecastLinearTrend(series, periods, confidence)
	case models.ForecastMovingAverage:
		window := req.MAWindow
		if window <= 0 {
			window = s.cfg.DefaultMAWindow
		}
		values, intervals, metrics, summary, err = s.forecastMovingAverage(series, periods, confidence, window)
	case models.ForecastExponentialSmoothing:
		values, intervals, metrics, summary, err = s.forecastExponentialSmoothing(series, periods, confidence)
	case models.ForecastARIMA:
		values, intervals, metrics, summary, err = s.forecastARIMA(series, periods, confidence)
	default:
		return nil, utils.NewUnsupportedModelError(string(modelType))
	}
	if err != nil {
		return nil, err
	}

	last := series.points[len(series.points)-1].Timestamp
	dates := make([]time.Time, periods)
	for k := 0; k < periods; k++ {
		dates[k] = last.Add(time.Duration(k+1) * series.step)
	}

	s.tracer.RecordForecastMetrics(span, metrics)
	s.logger.WithFields(logrus.Fields{
		"series_id":  req.TimeSeries.SeriesID,
		"model_type": modelType,
		"periods":    periods,
	}).Debug("Forecast computed")

	return &models.ForecastResult{
		SeriesID:            req.TimeSeries.SeriesID,
		ModelType:           string(modelType),
		ForecastValues:      values,
		ForecastDates:       dates,
		ConfidenceIntervals: intervals,
		ModelMetrics:        metrics,
		ModelSummary:        summary,
	}, nil
}

func (s *TimeSeriesService) forecastLinearTrend(series *preparedSeries, periods int, confidence float64) ([]float64, []models.ConfidenceInterval, map[string]float64, string, error) {
	n := len(series.values)

	// Numeric time encoding: seconds elapsed since the first observation.
	x := make([]float64, n)
	origin := series.points[0].Timestamp
	for i, p := range series.points {
		x[i] = p.Timestamp.Sub(origin).Seconds()
	}
	y := series.values

	xMean, yMean := mean(x), mean(y)
	var sxx, sxy float64
	for i := 0; i < n; i++ {
		dx := x[i] - xMean
		sxx += dx * dx
		sxy += dx * (y[i] - yMean)
	}
	if sxx == 0 {
		return nil, nil, nil, "", utils.NewValidationError("time series timestamps are all identical")
	}
	slope := sxy / sxx
	intercept := yMean - slope*xMean

	residuals := make([]float64, n)
	var ssRes, ssTot, sumAbs float64
	for i := 0; i < n; i++ {
		fitted := intercept + slope*x[i]
		residuals[i] = y[i] - fitted
		ssRes += residuals[i] * residuals[i]
		sumAbs += math.Abs(residuals[i])
		dy := y[i] - yMean
		ssTot += dy * dy
	}

	r2 := 1.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	mse := ssRes / float64(n)
	mae := sumAbs / float64(n)

	// Half-width from the in-sample residual standard error and the normal
	// quantile; constant across the horizon.
	z := normalQuantile(1 - (1-confidence)/2)
	halfWidth := z * populationStdDev(residuals)

	stepSec := series.step.Seconds()
	lastX := x[n-1]
	values := make([]float64, periods)
	intervals := make([]models.ConfidenceInterval, periods)
	for k := 0; k < periods; k++ {
		v := intercept + slope*(lastX+float64(k+1)*stepSec)
		values[k] = v
		intervals[k] = models.ConfidenceInterval{Lower: v - halfWidth, Upper: v + halfWidth}
	}

	metrics := map[string]float64{
		"mae":       mae,
		"mse":       mse,
		"rmse":      math.Sqrt(mse),
		"r2":        r2,
		"slope":     slope,
		"intercept": intercept,
	}
	summary := fmt.Sprintf("Linear trend forecast: slope %.4f per step, R² %.4f", slope*stepSec, r2)
	return values, intervals, metrics, summary, nil
}

func (s *TimeSeriesService) forecastMovingAverage(series *preparedSeries, periods int, confidence float64, window int) ([]float64, []models.ConfidenceInterval, map[string]float64, string, error) {
	n := len(series.values)
	if window < 2 {
		return nil, nil, nil, "", utils.NewValidationErrorf("ma_window must be at least 2, got %d", window)
	}
	if window > n {
		return nil, nil, nil, "", utils.NewInsufficientDataErrorf(
			"moving average window %d exceeds series length %d", window, n)
	}

	tail := series.values[n-window:]
	avg := mean(tail)
	std := populationStdDev(tail)

	z := normalQuantile(1 - (1-confidence)/2)
	halfWidth := z * std

	// Flat forecast: every horizon step repeats the window mean.
	values := make([]float64, periods)
	intervals := make([]models.ConfidenceInterval, periods)
	for k := 0; k < periods; k++ {
		values[k] = avg
		intervals[k] = models.ConfidenceInterval{Lower: avg - halfWidth, Upper: avg + halfWidth}
	}

	metrics := map[string]float64{
		"window":      float64(window),
		"window_mean": avg,
		"window_std":  std,
	}
	summary := fmt.Sprintf("Moving average forecast: mean of last %d values = %.4f", window, avg)
	return values, intervals, metrics, summary, nil
}

func (s *TimeSeriesService) forecastExponentialSmoothing(series *preparedSeries, periods int, confidence float64) ([]float64, []models.ConfidenceInterval, map[string]float64, string, error) {
	alpha := s.cfg.SmoothingAlpha
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}

	y := series.values
	smoothed := y[0]
	residuals := make([]float64, 0, len(y)-1)
	for i := 1; i < len(y); i++ {
		// One-step-ahead residual: the previous smoothed level is the
		// forecast for this observation.
		residuals = append(residuals, y[i]-smoothed)
		smoothed = alpha*y[i] + (1-alpha)*smoothed
	}

	std := populationStdDev(residuals)
	z := normalQuantile(1 - (1-confidence)/2)
	halfWidth := z * std

	values := make([]float64, periods)
	intervals := make([]models.ConfidenceInterval, periods)
	for k := 0; k < periods; k++ {
		values[k] = smoothed
		intervals[k] = models.ConfidenceInterval{Lower: smoothed - halfWidth, Upper: smoothed + halfWidth}
	}

	metrics := map[string]float64{
		"alpha":        alpha,
		"final_level":  smoothed,
		"residual_std": std,
	}
	summary := fmt.Sprintf("Exponential smoothing forecast (alpha %.2f): level %.4f", alpha, smoothed)
	return values, intervals, metrics, summary, nil
}

// forecastARIMA is a simplified differencing heuristic, not a true ARIMA fit:
// no AR/MA coefficient estimation or stationarity handling. It averages the
// last 3 first differences as the trend increment and widens the interval by
// sqrt(k+1) to reflect compounding uncertainty.
func (s *TimeSeriesService) forecastARIMA(series *preparedSeries, periods int, confidence float64) ([]float64, []models.ConfidenceInterval, map[string]float64, string, error) {
	y := series.values
	n := len(y)
	if n < 10 {
		return nil, nil, nil, "", utils.NewInsufficientDataErrorf(
			"arima forecasting needs at least 10 points, got %d", n)
	}

	diffs := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diffs[i-1] = y[i] - y[i-1]
	}
	trend := mean(diffs[len(diffs)-3:])
	diffStd := populationStdDev(diffs)

	z := normalQuantile(1 - (1-confidence)/2)

	values := make([]float64, periods)
	intervals := make([]models.ConfidenceInterval, periods)
	last := y[n-1]
	for k := 0; k < periods; k++ {
		last += trend
		values[k] = last
		halfWidth := z * diffStd * math.Sqrt(float64(k+1))
		intervals[k] = models.ConfidenceInterval{Lower: last - halfWidth, Upper: last + halfWidth}
	}

	metrics := map[string]float64{
		"trend_increment": trend,
		"diff_std":        diffStd,
	}
	summary := fmt.Sprintf("ARIMA-style forecast: trend increment %.4f per step", trend)
	return values, intervals, metrics, summary, nil
}

// DetectAnomalies routes the request to one of the detection algorithms.
// Every detector scans the full series; the request's window_size is accepted
// for interface compatibility but does not window the scan.
func (s *TimeSeriesService) DetectAnomalies(ctx context.Context, req *models.AnomalyDetectionRequest) (*models.AnomalyDetectionResult, error) {
	method := req.DetectionMethod
	if method == "" {
		method = models.DetectionStatistical
	}

	sensitivity := req.Sensitivity
	if sensitivity == 0 {
		sensitivity = 2.0
	}
	if sensitivity < 0 {
		return nil, utils.NewValidationErrorf("sensitivity must be positive, got %g", sensitivity)
	}

	series, err := s.prepare(req.TimeSeries)
	if err != nil {
		return nil, err
	}

	_, span := s.tracer.TraceAnomalyDetection(ctx, req.TimeSeries.SeriesID, string(method), sensitivity)
	defer span.End()

	var anomalies []models.AnomalyPoint
	switch method {
	case models.DetectionStatistical:
		anomalies = s.detectStatistical(series, sensitivity)
	case models.DetectionZScore:
		anomalies = s.detectZScore(series, sensitivity)
	case models.DetectionIQR:
		anomalies = s.detectIQR(series, sensitivity)
	default:
		return nil, utils.NewUnsupportedMethodError(string(method))
	}

	rate := float64(len(anomalies)) / float64(len(series.points))
	s.tracer.RecordAnomalyOutcome(span, len(anomalies), rate)

	summary := fmt.Sprintf("%s detection flagged %d of %d points (%.1f%%) at sensitivity %.1f",
		method, len(anomalies), len(series.points), rate*100, sensitivity)

	return &models.AnomalyDetectionResult{
		SeriesID:        req.TimeSeries.SeriesID,
		DetectionMethod: string(method),
		AnomalyPoints:   anomalies,
		AnomalyRate:     rate,
		Summary:         summary,
	}, nil
}

func (s *TimeSeriesService) detectStatistical(series *preparedSeries, sensitivity float64) []models.AnomalyPoint {
	m := mean(series.values)
	std := populationStdDev(series.values)
	anomalies := []models.AnomalyPoint{}
	if std == 0 {
		return anomalies
	}

	threshold := sensitivity * std
	expected := models.ConfidenceInterval{Lower: m - threshold, Upper: m + threshold}
	for _, p := range series.points {
		dev := math.Abs(p.Value - m)
		if dev > threshold {
			anomalies = append(anomalies, models.AnomalyPoint{
				Timestamp:     p.Timestamp,
				Value:         p.Value,
				AnomalyScore:  dev / std,
				ExpectedRange: expected,
			})
		}
	}
	return anomalies
}

func (s *TimeSeriesService) detectZScore(series *preparedSeries, sensitivity float64) []models.AnomalyPoint {
	m := mean(series.values)
	std := populationStdDev(series.values)
	anomalies := []models.AnomalyPoint{}
	if std == 0 {
		return anomalies
	}

	expected := models.ConfidenceInterval{Lower: m - sensitivity*std, Upper: m + sensitivity*std}
	for _, p := range series.points {
		z := math.Abs(p.Value-m) / std
		if z > sensitivity {
			anomalies = append(anomalies, models.AnomalyPoint{
				Timestamp:     p.Timestamp,
				Value:         p.Value,
				AnomalyScore:  z,
				ExpectedRange: expected,
			})
		}
	}
	return anomalies
}

func (s *TimeSeriesService) detectIQR(series *preparedSeries, sensitivity float64) []models.AnomalyPoint {
	q1 := percentile(series.values, 25)
	q3 := percentile(series.values, 75)
	iqr := q3 - q1
	anomalies := []models.AnomalyPoint{}
	if iqr == 0 {
		return anomalies
	}

	lower := q1 - sensitivity*iqr
	upper := q3 + sensitivity*iqr
	mid := (q1 + q3) / 2
	expected := models.ConfidenceInterval{Lower: lower, Upper: upper}
	for _, p := range series.points {
		if p.Value < lower || p.Value > upper {
			anomalies = append(anomalies, models.AnomalyPoint{
				Timestamp:     p.Timestamp,
				Value:         p.Value,
				AnomalyScore:  math.Abs(p.Value-mid) / iqr,
				ExpectedRange: expected,
			})
		}
	}
	return anomalies
}
