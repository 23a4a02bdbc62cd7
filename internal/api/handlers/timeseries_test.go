package handlers

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/statforge/statforge-go/internal/cache"
	"github.com/statforge/statforge-go/internal/models"
	"github.com/statforge/statforge-go/internal/utils"
)

type countingTimeSeriesService struct {
	forecastCalls int
	anomalyCalls  int
	forecastErr   error
}

func (s *countingTimeSeriesService) Forecast(ctx context.Context, req *models.ForecastRequest) (*models.ForecastResult, error) {
	s.forecastCalls++
	if s.forecastErr != nil {
		return nil, s.forecastErr
	}
	return &models.ForecastResult{
		SeriesID:       req.TimeSeries.SeriesID,
		ModelType:      "linear_trend",
		ForecastValues: []float64{1, 2, 3},
	}, nil
}

func (s *countingTimeSeriesService) DetectAnomalies(ctx context.Context, req *models.AnomalyDetectionRequest) (*models.AnomalyDetectionResult, error) {
	s.anomalyCalls++
	return &models.AnomalyDetectionResult{
		SeriesID:        req.TimeSeries.SeriesID,
		DetectionMethod: "statistical",
	}, nil
}

type timeseriesHandlerFixture struct {
	router *gin.Engine
	mr     *miniredis.Miniredis
	svc    *countingTimeSeriesService
}

func newTimeseriesHandlerFixture(t *testing.T) *timeseriesHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	resultCache := cache.NewResultCache(client, cache.Options{}, logger)
	require.NoError(t, resultCache.Connect(context.Background()))

	svc := &countingTimeSeriesService{}
	handler := NewTimeSeriesHandler(svc, resultCache, nil, nil, logger)

	router := gin.New()
	router.POST("/forecast", handler.Forecast)
	router.POST("/anomalies", handler.DetectAnomalies)

	return &timeseriesHandlerFixture{router: router, mr: mr, svc: svc}
}

func (f *timeseriesHandlerFixture) post(t *testing.T, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func testSeriesRequest(model string) map[string]interface{} {
	points := make([]map[string]interface{}, 0, 10)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		points = append(points, map[string]interface{}{
			"timestamp": base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
			"value":     float64(10 + i),
		})
	}
	req := map[string]interface{}{
		"timeseries": map[string]interface{}{
			"series_id": "ts-1",
			"data":      points,
		},
	}
	if model != "" {
		req["model_type"] = model
	}
	return req
}

func TestForecastHandler_SuccessEnvelope(t *testing.T) {
	f := newTimeseriesHandlerFixture(t)

	rec := f.post(t, "/forecast", testSeriesRequest("linear_trend"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1, f.svc.forecastCalls)
}

func TestForecastHandler_UnknownModelSkipsServiceAndCache(t *testing.T) {
	f := newTimeseriesHandlerFixture(t)

	rec := f.post(t, "/forecast", testSeriesRequest("prophet"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.svc.forecastCalls, "rejected model must not reach the service")
	assert.Empty(t, f.mr.Keys(), "rejected model must not reach the cache")
}

func TestForecastHandler_SecondRequestSkipsService(t *testing.T) {
	f := newTimeseriesHandlerFixture(t)
	payload := testSeriesRequest("linear_trend")

	require.Equal(t, http.StatusOK, f.post(t, "/forecast", payload).Code)
	require.Equal(t, http.StatusOK, f.post(t, "/forecast", payload).Code)

	assert.Equal(t, 1, f.svc.forecastCalls, "second identical request should be served from cache")
}

func TestForecastHandler_ClientErrorMapsTo400(t *testing.T) {
	f := newTimeseriesHandlerFixture(t)
	f.svc.forecastErr = utils.NewValidationError("forecast_periods must be positive")

	rec := f.post(t, "/forecast", testSeriesRequest("linear_trend"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForecastHandler_BindErrorMapsTo400(t *testing.T) {
	f := newTimeseriesHandlerFixture(t)

	rec := f.post(t, "/forecast", map[string]interface{}{"timeseries": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.svc.forecastCalls)
}

func TestAnomalyHandler_UnknownMethodSkipsServiceAndCache(t *testing.T) {
	f := newTimeseriesHandlerFixture(t)

	payload := testSeriesRequest("")
	payload["detection_method"] = "isolation_forest"

	rec := f.post(t, "/anomalies", payload)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.svc.anomalyCalls)
	assert.Empty(t, f.mr.Keys())
}

func TestAnomalyHandler_Success(t *testing.T) {
	f := newTimeseriesHandlerFixture(t)

	payload := testSeriesRequest("")
	payload["detection_method"] = "zscore"

	rec := f.post(t, "/anomalies", payload)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, f.svc.anomalyCalls)
}
