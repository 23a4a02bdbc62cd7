package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/statforge/statforge-go/internal/api"
	"github.com/statforge/statforge-go/internal/api/handlers"
	"github.com/statforge/statforge-go/internal/cache"
	"github.com/statforge/statforge-go/internal/config"
	"github.com/statforge/statforge-go/internal/database"
	"github.com/statforge/statforge-go/internal/logging"
	"github.com/statforge/statforge-go/internal/middleware"
	"github.com/statforge/statforge-go/internal/services"
	"github.com/statforge/statforge-go/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; environment variables still override file config.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize telemetry first
	if err := telemetry.InitTelemetry(telemetry.TelemetryConfig{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	}); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.ShutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown telemetry: %v\n", err)
		}
	}()

	stdLogger := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
	logger := stdLogger.WithService(cfg.Telemetry.ServiceName)

	// Logrus logger for services that require it (backward compatibility)
	logrusLogger := logrus.New()
	logrusLogger.SetLevel(logging.ParseLogrusLevel(cfg.LogLevel))
	logrusLogger.SetFormatter(&logrus.JSONFormatter{})

	// Postgres is optional: without it analysis history is simply not kept.
	var (
		history       *database.HistoryRepository
		dbChecker     handlers.DependencyChecker
		historyRec    handlers.HistoryRecorder
		historyReader handlers.HistoryReader
		trainingLog   handlers.TrainingLogRecorder
	)
	if cfg.Database.Enabled {
		db, err := database.NewPostgresConnection(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		history = database.NewHistoryRepository(database.NewTracedDB(db.Pool))
		dbChecker = db
		historyRec = history
		historyReader = history
		trainingLog = history
	} else {
		logrusLogger.Info("Database disabled, analysis history will not be recorded")
	}

	// A Redis outage degrades caching to misses rather than failing startup.
	redisClient := database.NewRedisClient(cfg.Redis)
	resultCache := cache.NewResultCache(redisClient, cache.Options{
		AnalysisTTL: cfg.Cache.AnalysisTTLDuration(),
		ForecastTTL: cfg.Cache.ForecastTTLDuration(),
		OpTimeout:   cfg.Cache.OpTimeoutDuration(),
	}, logrusLogger)
	if err := resultCache.Connect(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize result cache: %w", err)
	}
	defer resultCache.Disconnect()

	cacheAnalytics := services.NewCacheAnalyticsService(redisClient)
	cacheAnalytics.StartPeriodicReporting(context.Background(), 5*time.Minute)

	timeseriesService := services.NewTimeSeriesService(cfg.Forecast, logrusLogger)
	statisticsService := services.NewStatisticsService(logrusLogger)
	advancedService := services.NewAdvancedStatisticsService(logrusLogger)
	modelManager, err := services.NewModelManager(cfg.ML, logrusLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize model manager: %w", err)
	}
	monitoringService := services.NewMonitoringService(logrusLogger)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(middleware.RequestMetrics(monitoringService))

	api.SetupRoutes(router, api.Dependencies{
		TimeSeries: handlers.NewTimeSeriesHandler(timeseriesService, resultCache, cacheAnalytics, historyRec, logrusLogger),
		Statistics: handlers.NewStatisticsHandler(statisticsService, resultCache, cacheAnalytics, historyRec, logrusLogger),
		Advanced:   handlers.NewAdvancedStatisticsHandler(advancedService, resultCache, cacheAnalytics, historyRec, logrusLogger),
		ML:         handlers.NewMLHandler(modelManager, trainingLog, logrusLogger),
		History:    handlers.NewHistoryHandler(historyReader),
		Cache:      handlers.NewCacheHandler(cacheAnalytics, resultCache),
		Monitoring: handlers.NewMonitoringHandler(monitoringService),
		Health:     handlers.NewHealthHandler(dbChecker, resultCache),
		Admin:      middleware.NewAdminMiddleware(cfg.Security.AdminAPIKey),
	})

	// Create HTTP server with security timeouts
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	go func() {
		logger.Info("Application startup",
			"version", "1.0.0",
			"port", cfg.Server.Port,
			"event", "startup",
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrusLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Application shutdown",
		"event", "shutdown",
		"reason", "signal received",
	)

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrusLogger.Info("Server exited gracefully")
	return nil
}
