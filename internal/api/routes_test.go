package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statforge/statforge-go/internal/api/handlers"
	"github.com/statforge/statforge-go/internal/cache"
	"github.com/statforge/statforge-go/internal/config"
	"github.com/statforge/statforge-go/internal/middleware"
	"github.com/statforge/statforge-go/internal/services"
)

const testAdminKey = "test-admin-key"

type routerFixture struct {
	router *gin.Engine
	mr     *miniredis.Miniredis
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	resultCache := cache.NewResultCache(client, cache.Options{}, logger)
	require.NoError(t, resultCache.Connect(context.Background()))

	analytics := services.NewCacheAnalyticsService(client)

	forecastCfg := config.ForecastConfig{
		DefaultPeriods:         10,
		MaxPeriods:             365,
		DefaultConfidenceLevel: 0.95,
		DefaultMAWindow:        5,
		SmoothingAlpha:         0.3,
	}
	timeseriesSvc := services.NewTimeSeriesService(forecastCfg, logger)
	statsSvc := services.NewStatisticsService(logger)
	advancedSvc := services.NewAdvancedStatisticsService(logger)
	modelManager, err := services.NewModelManager(config.MLConfig{
		ModelsDir:     t.TempDir(),
		MaxIterations: 1000,
	}, logger)
	require.NoError(t, err)

	monitoringSvc := services.NewMonitoringService(logger)

	router := gin.New()
	router.Use(middleware.RequestMetrics(monitoringSvc))

	SetupRoutes(router, Dependencies{
		TimeSeries: handlers.NewTimeSeriesHandler(timeseriesSvc, resultCache, analytics, nil, logger),
		Statistics: handlers.NewStatisticsHandler(statsSvc, resultCache, analytics, nil, logger),
		Advanced:   handlers.NewAdvancedStatisticsHandler(advancedSvc, resultCache, analytics, nil, logger),
		ML:         handlers.NewMLHandler(modelManager, nil, logger),
		History:    handlers.NewHistoryHandler(nil),
		Cache:      handlers.NewCacheHandler(analytics, resultCache),
		Monitoring: handlers.NewMonitoringHandler(monitoringSvc),
		Health:     handlers.NewHealthHandler(nil, resultCache),
		Admin:      middleware.NewAdminMiddleware(testAdminKey),
	})

	return &routerFixture{router: router, mr: mr}
}

func (f *routerFixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func forecastPayload(model string) map[string]interface{} {
	points := make([]map[string]interface{}, 0, 10)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		points = append(points, map[string]interface{}{
			"timestamp": base.AddDate(0, 0, i).Format(time.RFC3339),
			"value":     100.0 + float64(i)*5,
		})
	}
	return map[string]interface{}{
		"timeseries": map[string]interface{}{
			"series_id": "sensor-1",
			"data":      points,
		},
		"model_type":       model,
		"forecast_periods": 5,
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestRouter_ForecastEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/timeseries/forecast", forecastPayload("linear_trend"), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope["success"])

	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "sensor-1", data["series_id"])
	assert.Equal(t, "linear_trend", data["model_type"])
	assert.Len(t, data["forecast_values"], 5)
}

func TestRouter_ForecastSecondCallServedFromCache(t *testing.T) {
	f := newRouterFixture(t)
	payload := forecastPayload("linear_trend")

	first := f.do(t, http.MethodPost, "/api/v1/timeseries/forecast", payload, nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := f.do(t, http.MethodPost, "/api/v1/timeseries/forecast", payload, nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	stats := f.do(t, http.MethodGet, "/api/v1/cache/stats/forecast", nil, nil)
	require.Equal(t, http.StatusOK, stats.Code)
	data := decodeEnvelope(t, stats)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["hits"])
	assert.Equal(t, float64(1), data["misses"])
}

func TestRouter_UnsupportedModelNeverTouchesCache(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/timeseries/forecast", forecastPayload("prophet"), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, false, envelope["success"])
	assert.Empty(t, f.mr.Keys(), "rejected model must not create cache entries")
}

func TestRouter_UnsupportedDetectionMethodNeverTouchesCache(t *testing.T) {
	f := newRouterFixture(t)

	payload := forecastPayload("")
	delete(payload, "model_type")
	delete(payload, "forecast_periods")
	payload["detection_method"] = "isolation_forest"

	rec := f.do(t, http.MethodPost, "/api/v1/timeseries/anomalies", payload, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.mr.Keys())
}

func TestRouter_DescriptiveEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/stats/descriptive", map[string]interface{}{
		"data": []float64{2, 4, 4, 4, 5, 5, 7, 9},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(8), data["count"])
	assert.InDelta(t, 5.0, data["mean"].(float64), 1e-9)
}

func TestRouter_CorrelationEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/advanced/correlation", map[string]interface{}{
		"x_data": []float64{1, 2, 3, 4, 5},
		"y_data": []float64{2, 4, 6, 8, 10},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	assert.InDelta(t, 1.0, data["correlation_coefficient"].(float64), 1e-9)
}

func TestRouter_MLTrainPredictRoundTrip(t *testing.T) {
	f := newRouterFixture(t)

	features := make([][]float64, 0, 12)
	targets := make([]float64, 0, 12)
	for i := 0; i < 12; i++ {
		x := float64(i)
		features = append(features, []float64{x})
		targets = append(targets, 1+2*x)
	}

	trainRec := f.do(t, http.MethodPost, "/api/v1/ml/train", map[string]interface{}{
		"model_type": "linear_regression",
		"features":   features,
		"targets":    targets,
	}, nil)
	require.Equal(t, http.StatusOK, trainRec.Code, trainRec.Body.String())

	trainData := decodeEnvelope(t, trainRec)["data"].(map[string]interface{})
	modelID := trainData["model_id"].(string)
	require.NotEmpty(t, modelID)

	predictRec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/ml/predict/%s", modelID), map[string]interface{}{
		"features": [][]float64{{20}},
	}, nil)
	require.Equal(t, http.StatusOK, predictRec.Code, predictRec.Body.String())

	predictData := decodeEnvelope(t, predictRec)["data"].(map[string]interface{})
	predictions := predictData["predictions"].([]interface{})
	require.Len(t, predictions, 1)
	assert.InDelta(t, 41.0, predictions[0].(float64), 0.5)

	// Listing filters by model_type when the query param is set.
	listRec := f.do(t, http.MethodGet, "/api/v1/ml/models?model_type=linear_regression", nil, nil)
	require.Equal(t, http.StatusOK, listRec.Code, listRec.Body.String())
	listed := decodeEnvelope(t, listRec)["data"].([]interface{})
	assert.Len(t, listed, 1)

	emptyRec := f.do(t, http.MethodGet, "/api/v1/ml/models?model_type=logistic_regression", nil, nil)
	require.Equal(t, http.StatusOK, emptyRec.Code, emptyRec.Body.String())
	assert.Empty(t, decodeEnvelope(t, emptyRec)["data"])
}

func TestRouter_SupportedTestsEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/stats/supported-tests", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	tests := data["supported_tests"].([]interface{})
	require.Len(t, tests, 1)
	first := tests[0].(map[string]interface{})
	assert.Equal(t, "one_sample_t", first["type"])
}

func TestRouter_ModelDeleteRequiresAdmin(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodDelete, "/api/v1/ml/models/some-id", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_CacheInvalidateAdminGuard(t *testing.T) {
	f := newRouterFixture(t)

	unauthorized := f.do(t, http.MethodPost, "/api/v1/cache/invalidate?pattern=forecast:*", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, unauthorized.Code)

	authorized := f.do(t, http.MethodPost, "/api/v1/cache/invalidate?pattern=forecast:*", nil, map[string]string{
		"X-API-Key": testAdminKey,
	})
	require.Equal(t, http.StatusOK, authorized.Code, authorized.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(authorized.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "forecast:*", body["pattern"])
}

func TestRouter_InvalidateRemovesForecastEntries(t *testing.T) {
	f := newRouterFixture(t)
	payload := forecastPayload("linear_trend")

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/timeseries/forecast", payload, nil).Code)
	require.NotEmpty(t, f.mr.Keys())

	rec := f.do(t, http.MethodPost, "/api/v1/cache/invalidate?pattern=forecast:*", nil, map[string]string{
		"X-API-Key": testAdminKey,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, key := range f.mr.Keys() {
		assert.NotContains(t, key, "forecast:")
	}
}

func TestRouter_HealthEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	health := f.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, health.Code, health.Body.String())

	var healthBody map[string]interface{}
	require.NoError(t, json.Unmarshal(health.Body.Bytes(), &healthBody))
	assert.Equal(t, "healthy", healthBody["status"])

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/ready", nil, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/live", nil, nil).Code)
}

func TestRouter_HealthDegradedWhenCacheDown(t *testing.T) {
	f := newRouterFixture(t)
	f.mr.Close()

	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestRouter_MonitoringRecordsRequests(t *testing.T) {
	f := newRouterFixture(t)

	require.Equal(t, http.StatusOK,
		f.do(t, http.MethodPost, "/api/v1/timeseries/forecast", forecastPayload("linear_trend"), nil).Code)

	rec := f.do(t, http.MethodGet, "/api/v1/monitoring/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	route, ok := data["POST /api/v1/timeseries/forecast"].(map[string]interface{})
	require.True(t, ok, "expected forecast route in metrics: %v", data)
	assert.Equal(t, float64(1), route["requests"])
	assert.Equal(t, float64(0), route["errors"])
}

func TestRouter_MonitoringStatus(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/monitoring/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
}

func TestRouter_HistoryUnavailableWithoutDatabase(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/history/analyses", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_UnknownRouteReturns404(t *testing.T) {
	f := newRouterFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/nope", nil, nil).Code)
}
