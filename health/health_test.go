package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mjasion/balena-home/climate/pkg/metrics"
)

type fakeLiveness struct {
	last time.Time
}

func (f fakeLiveness) LastTick() time.Time     { return f.last }
func (f fakeLiveness) Interval() time.Duration { return time.Minute }

type fakeBuffer int

func (b fakeBuffer) Size() int { return int(b) }

func TestHealth(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		phase      string
		last       time.Time
		wantCode   int
		wantStatus string
	}{
		{"backfill ignores ticks", PhaseBackfill, now.Add(-time.Hour), http.StatusOK, "healthy"},
		{"fresh tick", PhaseRealtime, now.Add(-2 * time.Minute), http.StatusOK, "healthy"},
		{"first tick pending", PhaseRealtime, time.Time{}, http.StatusOK, "healthy"},
		{"stale tick", PhaseRealtime, now.Add(-4 * time.Minute), http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(fakeLiveness{last: tt.last}, fakeBuffer(7), prometheus.NewRegistry(), 0, zap.NewNop())
			c.now = func() time.Time { return now }
			c.SetPhase(tt.phase)

			rec := httptest.NewRecorder()
			c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Expected status code %d, got %d", tt.wantCode, rec.Code)
			}
			var status Status
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if status.Status != tt.wantStatus || status.Phase != tt.phase {
				t.Errorf("Expected %s in %s, got %+v", tt.wantStatus, tt.phase, status)
			}
			if status.BufferedSamples != 7 {
				t.Errorf("Expected 7 buffered samples, got %d", status.BufferedSamples)
			}
		})
	}
}

type fakePushes struct {
	last time.Time
}

func (f fakePushes) LastPushTime() time.Time { return f.last }

func TestHealth_PushFreshness(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		last       time.Time
		wantCode   int
		wantStatus string
	}{
		{"no push yet", time.Time{}, http.StatusOK, "healthy"},
		{"recent push", now.Add(-20 * time.Second), http.StatusOK, "healthy"},
		{"stalled push", now.Add(-2 * time.Minute), http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(fakeLiveness{last: now}, nil, prometheus.NewRegistry(), 0, zap.NewNop())
			c.now = func() time.Time { return now }
			c.SetPhase(PhaseRealtime)
			c.SetPusher(fakePushes{last: tt.last}, 15*time.Second)

			rec := httptest.NewRecorder()
			c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Expected status code %d, got %d", tt.wantCode, rec.Code)
			}
			var status Status
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("Expected %s, got %s", tt.wantStatus, status.Status)
			}
			if !status.LastPushTime.Equal(tt.last) {
				t.Errorf("Expected last push %v, got %v", tt.last, status.LastPushTime)
			}
		})
	}
}

func TestHealth_NoOptionalParts(t *testing.T) {
	c := NewChecker(nil, nil, prometheus.NewRegistry(), 0, zap.NewNop())
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "lastPushTime") {
		t.Errorf("Expected no push time without a pusher, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), PhaseStarting) {
		t.Errorf("Expected starting phase, got %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters := metrics.NewCounters(reg)
	counters.Tick()
	counters.RowsInserted("climate_measurements", "realtime", 3)

	c := NewChecker(nil, nil, reg, 0, zap.NewNop())
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{"tado_collector_ticks_total 1", `tado_collector_rows_inserted_total{source="realtime",table="climate_measurements"} 3`} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}
