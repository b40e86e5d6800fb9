package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
tado:
  username: "user@example.com"
  password: "secret"
  homeIds: [12345, 678]
  requestTimeoutSeconds: 10
database:
  url: "postgres://collector:pw@db:5432/climate"
  maxConns: 8
backfill:
  minGapMinutes: 120
  floorDate: "2023-05-01"
  requestsPerSecond: 0.5
  sampleRate: 7
realtime:
  intervalSeconds: 30
prometheus:
  enabled: true
  prometheusUrl: "https://prometheus.example.com/api/prom/push"
  prometheusUsername: "123456"
  prometheusPassword: "test-password"
heartbeat:
  url: "https://hc-ping.com/abc"
  period: "2m"
logging:
  logFormat: "logfmt"
  logLevel: "debug"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(cfg.Tado.HomeIDs) != 2 || cfg.Tado.HomeIDs[0] != 12345 {
		t.Errorf("Expected home ids [12345 678], got %v", cfg.Tado.HomeIDs)
	}
	if cfg.RequestTimeout() != 10*time.Second {
		t.Errorf("Expected request timeout 10s, got %v", cfg.RequestTimeout())
	}
	if cfg.Tado.BaseURL != "https://my.tado.com/api/v2" {
		t.Errorf("Expected default base url, got %s", cfg.Tado.BaseURL)
	}
	if cfg.Database.MaxConns != 8 || cfg.Database.BatchSize != 500 {
		t.Errorf("Expected maxConns 8 and default batch 500, got %d and %d", cfg.Database.MaxConns, cfg.Database.BatchSize)
	}
	if cfg.MinGap() != 2*time.Hour {
		t.Errorf("Expected min gap 2h, got %v", cfg.MinGap())
	}
	floor, err := cfg.FloorDate()
	if err != nil || !floor.Equal(time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected floor 2023-05-01 UTC, got %v (%v)", floor, err)
	}
	if cfg.Backfill.SampleRate != 7 || cfg.Backfill.RequestsPerSecond != 0.5 {
		t.Errorf("Unexpected backfill config %+v", cfg.Backfill)
	}
	if cfg.Backfill.SentinelTemperature != 20 || cfg.Backfill.SentinelHumidity != 0.5 {
		t.Errorf("Expected default sentinel 20/0.5, got %v/%v", cfg.Backfill.SentinelTemperature, cfg.Backfill.SentinelHumidity)
	}
	if !cfg.Realtime.Enabled || cfg.RealtimeInterval() != 30*time.Second {
		t.Errorf("Expected realtime enabled every 30s, got %v %v", cfg.Realtime.Enabled, cfg.RealtimeInterval())
	}
	if cfg.Prometheus.PushIntervalSeconds != 60 || cfg.Prometheus.BufferSize != 1000 {
		t.Errorf("Unexpected prometheus defaults %+v", cfg.Prometheus)
	}
	if cfg.Health.Port != 8080 {
		t.Errorf("Expected health port 8080, got %d", cfg.Health.Port)
	}
	if cfg.Logging.Format != "logfmt" || cfg.Logging.Level != "debug" {
		t.Errorf("Unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/non/existent/path/config.yaml")
	if err == nil {
		t.Fatal("Expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
this is not: valid: yaml: content
`)
	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
}

func validConfig() *Config {
	return &Config{
		Tado: TadoConfig{
			Username:              "user",
			Password:              "pw",
			BaseURL:               "https://my.tado.com/api/v2",
			TokenURL:              "https://auth.tado.com/oauth/token",
			RequestTimeoutSeconds: 30,
			MaxResponseBytes:      1 << 20,
		},
		Database:   DatabaseConfig{URL: "postgres://localhost/climate", MaxConns: 4, BatchSize: 500},
		Backfill:   BackfillConfig{MinGapMinutes: 240, SampleRate: 1, SentinelTemperature: 20, SentinelHumidity: 0.5},
		Realtime:   RealtimeConfig{Enabled: true, IntervalSeconds: 60},
		Heartbeat:  HeartbeatConfig{Period: "5m"},
		Health:     HealthConfig{Port: 8080},
		Prometheus: PrometheusConfig{PushIntervalSeconds: 60, BatchSize: 500, BufferSize: 1000},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"refresh token replaces password", func(c *Config) { c.Tado.Username, c.Tado.Password, c.Tado.RefreshToken = "", "", "rt" }, ""},
		{"missing credentials", func(c *Config) { c.Tado.Password = "" }, "username and password"},
		{"bad base url", func(c *Config) { c.Tado.BaseURL = "not a url" }, "invalid tado url"},
		{"negative home id", func(c *Config) { c.Tado.HomeIDs = []int64{-1} }, "homeIds"},
		{"dry run needs no database", func(c *Config) { c.Database.URL, c.Database.DryRun = "", true }, ""},
		{"missing database", func(c *Config) { c.Database.URL = "" }, "database url"},
		{"bad floor date", func(c *Config) { c.Backfill.FloorDate = "01/05/2023" }, "floorDate"},
		{"negative rate", func(c *Config) { c.Backfill.RequestsPerSecond = -1 }, "requestsPerSecond"},
		{"humidity as percent", func(c *Config) { c.Backfill.SentinelHumidity = 50 }, "sentinelHumidity"},
		{"zero interval", func(c *Config) { c.Realtime.IntervalSeconds = 0 }, "intervalSeconds"},
		{"mirror without url", func(c *Config) { c.Prometheus.Enabled = true }, "prometheusUrl"},
		{"bad heartbeat period", func(c *Config) { c.Heartbeat.URL, c.Heartbeat.Period = "https://hc.example.com", "often" }, "heartbeat period"},
		{"health disabled", func(c *Config) { c.Health.Port = 0 }, ""},
		{"bad health port", func(c *Config) { c.Health.Port = 70000 }, "health port"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logging.Format, cfg.Logging.Level = "console", "info"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("postgres://collector:hunter2@db:5432/climate")
	if strings.Contains(got, "hunter2") {
		t.Errorf("Expected password to be redacted, got %s", got)
	}
	if redactURL("") != "" {
		t.Error("Expected empty url to stay empty")
	}
}

func TestPrintConfig(t *testing.T) {
	cfg := validConfig()
	logger, _ := zap.NewDevelopment()
	cfg.PrintConfig(logger)
}
