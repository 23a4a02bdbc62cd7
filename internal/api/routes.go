package api

import (
	"github.com/gin-gonic/gin"

	"github.com/statforge/statforge-go/internal/api/handlers"
	"github.com/statforge/statforge-go/internal/middleware"
)

// Dependencies carries the handlers and middleware SetupRoutes wires into
// the router.
type Dependencies struct {
	TimeSeries *handlers.TimeSeriesHandler
	Statistics *handlers.StatisticsHandler
	Advanced   *handlers.AdvancedStatisticsHandler
	ML         *handlers.MLHandler
	History    *handlers.HistoryHandler
	Cache      *handlers.CacheHandler
	Monitoring *handlers.MonitoringHandler
	Health     *handlers.HealthHandler
	Admin      *middleware.AdminMiddleware
}

// SetupRoutes registers every endpoint on the router. Mutating cache and
// monitoring endpoints sit behind admin authentication.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health", deps.Health.HealthCheck)
	router.GET("/ready", deps.Health.ReadinessCheck)
	router.GET("/live", deps.Health.LivenessCheck)

	v1 := router.Group("/api/v1")
	{
		timeseries := v1.Group("/timeseries")
		{
			timeseries.POST("/forecast", deps.TimeSeries.Forecast)
			timeseries.POST("/anomalies", deps.TimeSeries.DetectAnomalies)
		}

		stats := v1.Group("/stats")
		{
			stats.POST("/descriptive", deps.Statistics.Descriptive)
			stats.POST("/hypothesis", deps.Statistics.HypothesisTest)
			stats.GET("/supported-tests", deps.Statistics.SupportedTests)
		}

		advanced := v1.Group("/advanced")
		{
			advanced.POST("/correlation", deps.Advanced.Correlation)
			advanced.POST("/regression", deps.Advanced.Regression)
		}

		ml := v1.Group("/ml")
		{
			ml.POST("/train", deps.ML.Train)
			ml.POST("/predict/:id", deps.ML.Predict)
			ml.GET("/models", deps.ML.ListModels)
			ml.GET("/models/:id", deps.ML.GetModel)
			ml.DELETE("/models/:id", deps.Admin.RequireAdminAuth(), deps.ML.DeleteModel)
		}

		history := v1.Group("/history")
		{
			history.GET("/analyses", deps.History.RecentAnalyses)
			history.GET("/training", deps.History.TrainingHistory)
		}

		cacheGroup := v1.Group("/cache")
		{
			cacheGroup.GET("/stats", deps.Cache.GetCacheStats)
			cacheGroup.GET("/stats/:category", deps.Cache.GetCacheStatsByCategory)
			cacheGroup.GET("/metrics", deps.Cache.GetCacheMetrics)
			cacheGroup.GET("/status", deps.Cache.GetResultCacheStats)

			cacheAdmin := cacheGroup.Group("", deps.Admin.RequireAdminAuth())
			{
				cacheAdmin.POST("/stats/reset", deps.Cache.ResetCacheStats)
				cacheAdmin.POST("/invalidate", deps.Cache.InvalidatePattern)
				cacheAdmin.POST("/hit", deps.Cache.RecordCacheHit)
				cacheAdmin.POST("/miss", deps.Cache.RecordCacheMiss)
			}
		}

		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/metrics", deps.Monitoring.GetMetrics)
			monitoring.GET("/status", deps.Monitoring.GetStatus)
			monitoring.POST("/metrics/reset", deps.Admin.RequireAdminAuth(), deps.Monitoring.ResetMetrics)
		}
	}
}
