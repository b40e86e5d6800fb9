package backfill

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mjasion/balena-home/climate/tado"
)

func TestSentinel_IsBogus(t *testing.T) {
	d := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := DefaultSentinel()

	onlyWeather := sentinelReport(d)
	state := tado.WeatherState("SUN")
	onlyWeather.Weather.Condition.DataIntervals = []tado.WeatherConditionInterval{
		{DataInterval: tado.DataInterval{From: tp(d)}, Value: &tado.WeatherCondition{State: &state}},
	}

	slotsOnly := &tado.DayReport{Weather: &tado.DayReportWeather{Slots: &tado.WeatherSlotTimeSeries{
		Slots: map[string]tado.WeatherCondition{"04:00": {Temperature: &tado.Temperature{Celsius: fp(3)}}},
	}}}

	humidityOnly := sentinelReport(d)
	humidityOnly.MeasuredData.Humidity.DataPoints[5].Value = fp(0.61)

	nearlySentinel := sentinelReport(d)
	nearlySentinel.MeasuredData.InsideTemperature.DataPoints[0].Value.Celsius = fp(20.0 + 1e-9)

	tests := []struct {
		name   string
		report *tado.DayReport
		bogus  bool
	}{
		{"nil report", nil, true},
		{"empty report", &tado.DayReport{}, true},
		{"flat sentinel", sentinelReport(d), true},
		{"within tolerance", nearlySentinel, true},
		{"genuine indoor", genuineReport(d), false},
		{"humidity deviation", humidityOnly, false},
		{"sentinel indoor with weather", onlyWeather, false},
		{"weather slots only", slotsOnly, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsBogus(tt.report); got != tt.bogus {
				t.Errorf("Expected bogus=%v, got %v", tt.bogus, got)
			}
		})
	}
}

func TestClassifier_FindsCutover(t *testing.T) {
	d0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	const span = 100

	for _, k := range []int{0, 1, 37, 50, 98, 99} {
		genuine := d0.AddDate(0, 0, k)
		api := newFakeAPI(genuine)
		c := NewClassifier(api, NewPacer(0), DefaultSentinel(), zap.NewNop())

		got, report, found, err := c.FirstGenuineDay(context.Background(), 1, 1, d0, d0.AddDate(0, 0, span-1))
		if err != nil {
			t.Fatalf("k=%d: expected no error, got: %v", k, err)
		}
		if !found || !got.Equal(genuine) {
			t.Errorf("k=%d: expected %s, got %s (found=%v)", k, genuine.Format(time.DateOnly), got.Format(time.DateOnly), found)
		}
		if report == nil || DefaultSentinel().IsBogus(report) {
			t.Errorf("k=%d: expected the genuine report of the found day", k)
		}
		maxProbes := int(math.Ceil(math.Log2(span))) + 1
		if n := len(api.requested(1)); n > maxProbes {
			t.Errorf("k=%d: expected at most %d probes, got %d", k, maxProbes, n)
		}
	}
}

func TestClassifier_AllBogus(t *testing.T) {
	d0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	api := newFakeAPI(d0.AddDate(1, 0, 0))
	c := NewClassifier(api, NewPacer(0), DefaultSentinel(), zap.NewNop())

	_, _, found, err := c.FirstGenuineDay(context.Background(), 1, 1, d0, d0.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if found {
		t.Error("Expected no genuine day in a placeholder-only span")
	}
}

func TestClassifier_ProbeFailure(t *testing.T) {
	d0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	api := newFakeAPI(d0)
	api.failZone = 9
	c := NewClassifier(api, NewPacer(0), DefaultSentinel(), zap.NewNop())

	_, _, _, err := c.FirstGenuineDay(context.Background(), 1, 9, d0, d0.AddDate(0, 0, 10))
	var statusErr *tado.StatusError
	if !errors.As(err, &statusErr) {
		t.Errorf("Expected the transport failure to propagate, got %v", err)
	}
}
