package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AnalysisTracer provides utilities for tracing analytical computations.
// It allows detailed tracking of forecasting, anomaly detection, model
// training, and cache behavior.
type AnalysisTracer struct{}

// NewAnalysisTracer creates a new instance of AnalysisTracer.
func NewAnalysisTracer() *AnalysisTracer {
	return &AnalysisTracer{}
}

// TraceForecast starts a span for a forecasting computation.
func (at *AnalysisTracer) TraceForecast(ctx context.Context, seriesID, modelType string, periods int) (context.Context, trace.Span) {
	return GetAnalysisTracer().Start(ctx, "forecast",
		trace.WithAttributes(
			attribute.String("series_id", seriesID),
			attribute.String("model_type", modelType),
			attribute.Int("forecast_periods", periods),
		),
	)
}

// RecordForecastMetrics adds model fit metrics to a forecast span.
func (at *AnalysisTracer) RecordForecastMetrics(span trace.Span, metrics map[string]float64) {
	for name, value := range metrics {
		span.SetAttributes(attribute.Float64("metric."+name, value))
	}
}

// TraceAnomalyDetection starts a span for an anomaly detection run.
func (at *AnalysisTracer) TraceAnomalyDetection(ctx context.Context, seriesID, method string, sensitivity float64) (context.Context, trace.Span) {
	return GetAnalysisTracer().Start(ctx, "anomaly_detection",
		trace.WithAttributes(
			attribute.String("series_id", seriesID),
			attribute.String("method", method),
			attribute.Float64("sensitivity", sensitivity),
		),
	)
}

// RecordAnomalyOutcome records the detection outcome on a span.
func (at *AnalysisTracer) RecordAnomalyOutcome(span trace.Span, anomalies int, rate float64) {
	span.SetAttributes(
		attribute.Int("anomaly_count", anomalies),
		attribute.Float64("anomaly_rate", rate),
	)
}

// TraceModelTraining starts a span for a model training run.
func (at *AnalysisTracer) TraceModelTraining(ctx context.Context, modelType string, samples int) (context.Context, trace.Span) {
	return GetAnalysisTracer().Start(ctx, "model_training",
		trace.WithAttributes(
			attribute.String("model_type", modelType),
			attribute.Int("sample_count", samples),
		),
	)
}

// RecordTrainingOutcome records the trained model id and metrics on a span.
func (at *AnalysisTracer) RecordTrainingOutcome(span trace.Span, modelID string, metrics map[string]float64) {
	span.SetAttributes(attribute.String("model_id", modelID))
	for name, value := range metrics {
		span.SetAttributes(attribute.Float64("metric."+name, value))
	}
}

// TraceCacheLookup starts a span for a result cache lookup.
func (at *AnalysisTracer) TraceCacheLookup(ctx context.Context, key string) (context.Context, trace.Span) {
	return GetAnalysisTracer().Start(ctx, "cache_lookup",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
}

// RecordCacheOutcome records whether a cache lookup hit.
func (at *AnalysisTracer) RecordCacheOutcome(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool("cache.hit", hit))
}
