package config

import (
	"testing"
)

func TestValidateLogging_NormalizesCase(t *testing.T) {
	cfg := &LoggingConfig{Format: "LOGFMT", Level: "Debug"}
	if err := ValidateLogging(cfg); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Format != "logfmt" {
		t.Errorf("Expected format logfmt, got %s", cfg.Format)
	}
	if cfg.Level != "debug" {
		t.Errorf("Expected level debug, got %s", cfg.Level)
	}
}

func TestValidateLogging_Invalid(t *testing.T) {
	tests := []LoggingConfig{
		{Format: "xml", Level: "info"},
		{Format: "json", Level: "trace"},
	}
	for _, tc := range tests {
		cfg := tc
		if err := ValidateLogging(&cfg); err == nil {
			t.Errorf("Expected error for %+v", tc)
		}
	}
}

func TestNewLogger_AllFormats(t *testing.T) {
	for _, format := range []string{"console", "json", "logfmt"} {
		logger, err := NewLogger(&LoggingConfig{Format: format, Level: "warn"})
		if err != nil {
			t.Fatalf("Expected no error for %s, got: %v", format, err)
		}
		if logger.Core().Enabled(-1) {
			t.Errorf("Expected debug disabled for %s at warn level", format)
		}
	}
}

func TestValidateOpenTelemetry_Disabled(t *testing.T) {
	if err := ValidateOpenTelemetry(&OpenTelemetryConfig{}); err != nil {
		t.Errorf("Expected disabled config to validate, got: %v", err)
	}
}

func TestValidateOpenTelemetry_EndpointFallback(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	cfg := &OpenTelemetryConfig{
		Enabled:     true,
		ServiceName: "tado-collector",
		Traces:      OTelTracesConfig{Enabled: true, SamplingRatio: 1, Batch: OTelBatchConfig{MaxQueueSize: 1, MaxExportBatchSize: 1}},
	}
	if err := ValidateOpenTelemetry(cfg); err == nil {
		t.Fatal("Expected error without any traces endpoint")
	}

	cfg.Endpoint = "localhost:4318"
	if err := ValidateOpenTelemetry(cfg); err != nil {
		t.Errorf("Expected general endpoint to satisfy traces, got: %v", err)
	}
	if got := cfg.TracesEndpoint(); got != "localhost:4318" {
		t.Errorf("Expected traces endpoint localhost:4318, got %s", got)
	}
}

func TestValidateProfiling(t *testing.T) {
	cfg := &ProfilingConfig{Enabled: true, ApplicationName: "app", ServerAddress: "http://pyroscope:4040"}
	if err := ValidateProfiling(cfg); err == nil {
		t.Error("Expected error when no profile type is enabled")
	}

	cfg.CPUProfile = true
	if err := ValidateProfiling(cfg); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}
