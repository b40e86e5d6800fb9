package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"

	pkgconfig "github.com/mjasion/balena-home/climate/pkg/config"
)

// Config holds all configuration parameters for the climate collector
type Config struct {
	Tado       TadoConfig       `yaml:"tado"`
	Database   DatabaseConfig   `yaml:"database"`
	Backfill   BackfillConfig   `yaml:"backfill"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Health     HealthConfig     `yaml:"health"`

	Logging       pkgconfig.LoggingConfig       `yaml:"logging"`
	OpenTelemetry pkgconfig.OpenTelemetryConfig `yaml:"opentelemetry"`
	Profiling     pkgconfig.ProfilingConfig     `yaml:"profiling"`
}

// TadoConfig contains vendor account and transport settings
type TadoConfig struct {
	Username     string `yaml:"username" env:"TADO_USERNAME"`
	Password     string `yaml:"password" env:"TADO_PASSWORD"`
	ClientID     string `yaml:"clientId" env:"TADO_CLIENT_ID"`
	ClientSecret string `yaml:"clientSecret" env:"TADO_CLIENT_SECRET"`
	RefreshToken string `yaml:"refreshToken" env:"TADO_REFRESH_TOKEN"`
	// HomeIDs empty means every home of the account
	HomeIDs               []int64 `yaml:"homeIds" env:"TADO_HOME_IDS" env-separator:","`
	BaseURL               string  `yaml:"baseUrl" env:"TADO_BASE_URL" env-default:"https://my.tado.com/api/v2"`
	TokenURL              string  `yaml:"tokenUrl" env:"TADO_TOKEN_URL" env-default:"https://auth.tado.com/oauth/token"`
	RequestTimeoutSeconds float64 `yaml:"requestTimeoutSeconds" env:"TADO_REQUEST_TIMEOUT_SECONDS" env-default:"30"`
	MaxResponseBytes      int64   `yaml:"maxResponseBytes" env:"TADO_MAX_RESPONSE_BYTES" env-default:"8388608"`
}

// DatabaseConfig contains the measurement store settings
type DatabaseConfig struct {
	URL       string `yaml:"url" env:"DATABASE_URL"`
	MaxConns  int    `yaml:"maxConns" env:"DATABASE_MAX_CONNS" env-default:"4"`
	BatchSize int    `yaml:"batchSize" env:"DATABASE_BATCH_SIZE" env-default:"500"`
	// DryRun keeps every row in memory instead of the database
	DryRun bool `yaml:"dryRun" env:"DATABASE_DRY_RUN" env-default:"false"`
}

// BackfillConfig contains historical backfill settings
type BackfillConfig struct {
	Enabled             bool    `yaml:"enabled" env:"BACKFILL_ENABLED" env-default:"true"`
	MinGapMinutes       int     `yaml:"minGapMinutes" env:"BACKFILL_MIN_GAP_MINUTES" env-default:"240"`
	FloorDate           string  `yaml:"floorDate" env:"BACKFILL_FLOOR_DATE"`
	RequestsPerSecond   float64 `yaml:"requestsPerSecond" env:"BACKFILL_REQUESTS_PER_SECOND" env-default:"1"`
	SampleRate          int     `yaml:"sampleRate" env:"BACKFILL_SAMPLE_RATE" env-default:"1"`
	SentinelTemperature float64 `yaml:"sentinelTemperature" env:"BACKFILL_SENTINEL_TEMPERATURE" env-default:"20"`
	SentinelHumidity    float64 `yaml:"sentinelHumidity" env:"BACKFILL_SENTINEL_HUMIDITY" env-default:"0.5"`
}

// RealtimeConfig contains realtime polling settings
type RealtimeConfig struct {
	Enabled         bool `yaml:"enabled" env:"REALTIME_ENABLED" env-default:"true"`
	IntervalSeconds int  `yaml:"intervalSeconds" env:"REALTIME_INTERVAL_SECONDS" env-default:"60"`
}

// PrometheusConfig contains the optional remote-write mirror settings
type PrometheusConfig struct {
	Enabled             bool   `yaml:"enabled" env:"PROMETHEUS_ENABLED" env-default:"false"`
	URL                 string `yaml:"prometheusUrl" env:"PROMETHEUS_URL"`
	Username            string `yaml:"prometheusUsername" env:"PROMETHEUS_USERNAME"`
	Password            string `yaml:"prometheusPassword" env:"PROMETHEUS_PASSWORD"`
	PushIntervalSeconds int    `yaml:"pushIntervalSeconds" env:"PUSH_INTERVAL_SECONDS" env-default:"60"`
	BatchSize           int    `yaml:"batchSize" env:"PROMETHEUS_BATCH_SIZE" env-default:"500"`
	BufferSize          int    `yaml:"bufferSize" env:"BUFFER_SIZE" env-default:"1000"`
}

// HeartbeatConfig contains the dead-man's-switch ping settings
type HeartbeatConfig struct {
	URL    string `yaml:"url" env:"HEARTBEAT_URL"`
	Period string `yaml:"period" env:"HEARTBEAT_PERIOD" env-default:"5m"`
}

// HealthConfig contains the health server settings
type HealthConfig struct {
	// Port 0 disables the server
	Port int `yaml:"port" env:"HEALTH_CHECK_PORT" env-default:"8080"`
}

// Load reads configuration from the specified file path and applies environment variable overrides
func Load(configPath string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all configuration parameters are valid
func (c *Config) Validate() error {
	if c.Tado.RefreshToken == "" && (c.Tado.Username == "" || c.Tado.Password == "") {
		return fmt.Errorf("tado username and password are required without a refresh token")
	}
	for _, u := range []string{c.Tado.BaseURL, c.Tado.TokenURL} {
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("invalid tado url %q: %w", u, err)
		}
	}
	if c.Tado.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("tado requestTimeoutSeconds must be positive, got %f", c.Tado.RequestTimeoutSeconds)
	}
	if c.Tado.MaxResponseBytes <= 0 {
		return fmt.Errorf("tado maxResponseBytes must be positive, got %d", c.Tado.MaxResponseBytes)
	}
	for _, id := range c.Tado.HomeIDs {
		if id <= 0 {
			return fmt.Errorf("tado homeIds must be positive, got %d", id)
		}
	}

	if !c.Database.DryRun && c.Database.URL == "" {
		return fmt.Errorf("database url is required unless dryRun is set")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database maxConns must be positive, got %d", c.Database.MaxConns)
	}
	if c.Database.BatchSize <= 0 {
		return fmt.Errorf("database batchSize must be positive, got %d", c.Database.BatchSize)
	}

	if c.Backfill.MinGapMinutes < 0 {
		return fmt.Errorf("backfill minGapMinutes must be >= 0, got %d", c.Backfill.MinGapMinutes)
	}
	if _, err := c.FloorDate(); err != nil {
		return err
	}
	if c.Backfill.RequestsPerSecond < 0 {
		return fmt.Errorf("backfill requestsPerSecond must be >= 0, got %f", c.Backfill.RequestsPerSecond)
	}
	if c.Backfill.SampleRate < 0 {
		return fmt.Errorf("backfill sampleRate must be >= 0, got %d", c.Backfill.SampleRate)
	}
	if c.Backfill.SentinelHumidity < 0 || c.Backfill.SentinelHumidity > 1 {
		return fmt.Errorf("backfill sentinelHumidity is a fraction in [0, 1], got %f", c.Backfill.SentinelHumidity)
	}

	if c.Realtime.IntervalSeconds <= 0 {
		return fmt.Errorf("realtime intervalSeconds must be positive, got %d", c.Realtime.IntervalSeconds)
	}

	if c.Prometheus.Enabled {
		if _, err := url.ParseRequestURI(c.Prometheus.URL); err != nil {
			return fmt.Errorf("invalid prometheusUrl: %w", err)
		}
		if c.Prometheus.PushIntervalSeconds <= 0 {
			return fmt.Errorf("pushIntervalSeconds must be positive, got %d", c.Prometheus.PushIntervalSeconds)
		}
		if c.Prometheus.BufferSize <= 0 {
			return fmt.Errorf("bufferSize must be positive, got %d", c.Prometheus.BufferSize)
		}
		if c.Prometheus.BatchSize <= 0 {
			return fmt.Errorf("prometheus batchSize must be positive, got %d", c.Prometheus.BatchSize)
		}
	}

	if c.Heartbeat.URL != "" {
		if _, err := url.ParseRequestURI(c.Heartbeat.URL); err != nil {
			return fmt.Errorf("invalid heartbeat url: %w", err)
		}
		if d, err := time.ParseDuration(c.Heartbeat.Period); err != nil || d <= 0 {
			return fmt.Errorf("heartbeat period must be a positive duration, got %q", c.Heartbeat.Period)
		}
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health port must be between 0 and 65535, got %d", c.Health.Port)
	}

	if err := pkgconfig.ValidateLogging(&c.Logging); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}
	if err := pkgconfig.ValidateOpenTelemetry(&c.OpenTelemetry); err != nil {
		return fmt.Errorf("opentelemetry validation failed: %w", err)
	}
	if err := pkgconfig.ValidateProfiling(&c.Profiling); err != nil {
		return fmt.Errorf("profiling validation failed: %w", err)
	}

	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Tado.RequestTimeoutSeconds * float64(time.Second))
}

func (c *Config) MinGap() time.Duration {
	return time.Duration(c.Backfill.MinGapMinutes) * time.Minute
}

func (c *Config) RealtimeInterval() time.Duration {
	return time.Duration(c.Realtime.IntervalSeconds) * time.Second
}

// FloorDate parses backfill.floorDate as a UTC day; zero when unset
func (c *Config) FloorDate() (time.Time, error) {
	if c.Backfill.FloorDate == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, c.Backfill.FloorDate, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("backfill floorDate must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}

// NewLogger creates a zap logger based on the configuration
func (c *Config) NewLogger() (*zap.Logger, error) {
	return pkgconfig.NewLogger(&c.Logging)
}

// PrintConfig prints the configuration (masking sensitive fields)
func (c *Config) PrintConfig(logger *zap.Logger) {
	logger.Info("configuration loaded",
		zap.String("tado_username", c.Tado.Username),
		zap.Bool("tado_password_set", c.Tado.Password != ""),
		zap.Bool("tado_refresh_token_set", c.Tado.RefreshToken != ""),
		zap.String("tado_client_id", c.Tado.ClientID),
		zap.Int64s("tado_home_ids", c.Tado.HomeIDs),
		zap.String("tado_base_url", c.Tado.BaseURL),
		zap.Float64("tado_request_timeout_seconds", c.Tado.RequestTimeoutSeconds),
		zap.String("database_url", redactURL(c.Database.URL)),
		zap.Int("database_max_conns", c.Database.MaxConns),
		zap.Int("database_batch_size", c.Database.BatchSize),
		zap.Bool("database_dry_run", c.Database.DryRun),
		zap.Bool("backfill_enabled", c.Backfill.Enabled),
		zap.Int("backfill_min_gap_minutes", c.Backfill.MinGapMinutes),
		zap.String("backfill_floor_date", c.Backfill.FloorDate),
		zap.Float64("backfill_requests_per_second", c.Backfill.RequestsPerSecond),
		zap.Int("backfill_sample_rate", c.Backfill.SampleRate),
		zap.Bool("realtime_enabled", c.Realtime.Enabled),
		zap.Int("realtime_interval_seconds", c.Realtime.IntervalSeconds),
		zap.Bool("prometheus_enabled", c.Prometheus.Enabled),
		zap.String("prometheus_url", redactURL(c.Prometheus.URL)),
		zap.Bool("prometheus_password_set", c.Prometheus.Password != ""),
		zap.Bool("heartbeat_enabled", c.Heartbeat.URL != ""),
		zap.String("heartbeat_period", c.Heartbeat.Period),
		zap.Int("health_check_port", c.Health.Port),
		zap.Bool("otel_enabled", c.OpenTelemetry.Enabled),
		zap.String("otel_service_name", c.OpenTelemetry.ServiceName),
		zap.Bool("profiling_enabled", c.Profiling.Enabled),
		zap.String("log_format", c.Logging.Format),
		zap.String("log_level", c.Logging.Level),
	)
}

// redactURL removes credentials from URLs for logging
func redactURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword("***", "***")
	}
	return u.String()
}
