package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Forecast    ForecastConfig   `mapstructure:"forecast"`
	ML          MLConfig         `mapstructure:"ml"`
	Telemetry   TelemetryConfig  `mapstructure:"telemetry"`
	Monitoring  MonitoringConfig `mapstructure:"monitoring"`
	Security    SecurityConfig   `mapstructure:"security"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
	// Enabled gates the analysis-history repository; the service runs
	// without Postgres when false.
	Enabled bool `mapstructure:"enabled"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	AnalysisTTL string `mapstructure:"analysis_ttl"`
	ForecastTTL string `mapstructure:"forecast_ttl"`
	OpTimeout   string `mapstructure:"op_timeout"`
}

type ForecastConfig struct {
	DefaultPeriods         int     `mapstructure:"default_periods"`
	MaxPeriods             int     `mapstructure:"max_periods"`
	DefaultConfidenceLevel float64 `mapstructure:"default_confidence_level"`
	DefaultMAWindow        int     `mapstructure:"default_ma_window"`
	SmoothingAlpha         float64 `mapstructure:"smoothing_alpha"`
}

type MLConfig struct {
	ModelsDir     string `mapstructure:"models_dir"`
	MaxIterations int    `mapstructure:"max_iterations"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type SecurityConfig struct {
	AdminAPIKey string `mapstructure:"admin_api_key" json:"-" yaml:"-"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind specific environment variables
	if err := viper.BindEnv("security.admin_api_key", "ADMIN_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind ADMIN_API_KEY environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	for name, raw := range map[string]string{
		"cache.analysis_ttl": cfg.Cache.AnalysisTTL,
		"cache.forecast_ttl": cfg.Cache.ForecastTTL,
		"cache.op_timeout":   cfg.Cache.OpTimeout,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, raw)
		}
	}

	if cfg.Forecast.DefaultConfidenceLevel <= 0 || cfg.Forecast.DefaultConfidenceLevel >= 1 {
		return fmt.Errorf("forecast confidence level must be in (0, 1), got %g",
			cfg.Forecast.DefaultConfidenceLevel)
	}
	if cfg.Forecast.SmoothingAlpha <= 0 || cfg.Forecast.SmoothingAlpha > 1 {
		return fmt.Errorf("forecast smoothing alpha must be in (0, 1], got %g",
			cfg.Forecast.SmoothingAlpha)
	}
	if cfg.Forecast.DefaultPeriods < 1 || cfg.Forecast.DefaultPeriods > cfg.Forecast.MaxPeriods {
		return fmt.Errorf("forecast default periods must be between 1 and %d, got %d",
			cfg.Forecast.MaxPeriods, cfg.Forecast.DefaultPeriods)
	}
	if cfg.Forecast.DefaultMAWindow < 2 {
		return fmt.Errorf("forecast moving-average window must be at least 2, got %d",
			cfg.Forecast.DefaultMAWindow)
	}

	if cfg.ML.ModelsDir == "" {
		return errors.New("ml.models_dir must not be empty")
	}
	if cfg.ML.MaxIterations < 1 {
		return fmt.Errorf("ml.max_iterations must be positive, got %d", cfg.ML.MaxIterations)
	}

	if cfg.Environment != "development" && cfg.Security.AdminAPIKey == "" {
		return errors.New("ADMIN_API_KEY environment variable is required in non-development environments")
	}

	return nil
}

// AnalysisTTLDuration returns the parsed analysis cache TTL. Call after
// Load, which validates the duration strings.
func (c CacheConfig) AnalysisTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.AnalysisTTL)
	return d
}

func (c CacheConfig) ForecastTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.ForecastTTL)
	return d
}

func (c CacheConfig) OpTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.OpTimeout)
	return d
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "statforge")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")
	viper.SetDefault("database.enabled", false)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Cache
	viper.SetDefault("cache.analysis_ttl", "1h")
	viper.SetDefault("cache.forecast_ttl", "30m")
	viper.SetDefault("cache.op_timeout", "2s")

	// Forecast
	viper.SetDefault("forecast.default_periods", 10)
	viper.SetDefault("forecast.max_periods", 365)
	viper.SetDefault("forecast.default_confidence_level", 0.95)
	viper.SetDefault("forecast.default_ma_window", 5)
	viper.SetDefault("forecast.smoothing_alpha", 0.3)

	// ML
	viper.SetDefault("ml.models_dir", "./models")
	viper.SetDefault("ml.max_iterations", 1000)

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.service_name", "statforge")
	viper.SetDefault("telemetry.otlp_endpoint", "")

	// Monitoring
	viper.SetDefault("monitoring.enabled", true)

	// Security
	viper.SetDefault("security.admin_api_key", "")
}
