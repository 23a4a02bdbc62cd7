package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTelemetry_Disabled(t *testing.T) {
	err := InitTelemetry(TelemetryConfig{Enabled: false})
	assert.NoError(t, err)

	// Shutdown with nothing initialized is a no-op.
	assert.NoError(t, ShutdownTelemetry(context.Background()))
}

func TestInitTelemetry_StdoutExporter(t *testing.T) {
	err := InitTelemetry(TelemetryConfig{
		Enabled:     true,
		ServiceName: "statforge-test",
		Environment: "test",
	})
	require.NoError(t, err)

	tracer := GetAnalysisTracer()
	_, span := tracer.Start(context.Background(), "test-span")
	span.End()

	assert.NoError(t, ShutdownTelemetry(context.Background()))
}

func TestGetHTTPTracer(t *testing.T) {
	assert.NotNil(t, GetHTTPTracer())
	assert.NotNil(t, GetAnalysisTracer())
}

func TestAnalysisTracer_Spans(t *testing.T) {
	at := NewAnalysisTracer()
	ctx := context.Background()

	_, span := at.TraceForecast(ctx, "series-42", "linear_trend", 5)
	at.RecordForecastMetrics(span, map[string]float64{"r2": 0.99, "mae": 0.5})
	span.End()

	_, span = at.TraceAnomalyDetection(ctx, "series-42", "zscore", 2.0)
	at.RecordAnomalyOutcome(span, 1, 0.1)
	span.End()

	_, span = at.TraceModelTraining(ctx, "linear_regression", 100)
	at.RecordTrainingOutcome(span, "model-1", map[string]float64{"r2": 0.87})
	span.End()

	_, span = at.TraceCacheLookup(ctx, "forecast:abc")
	at.RecordCacheOutcome(span, true)
	span.End()
}
