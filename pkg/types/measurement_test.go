package types

import (
	"testing"
	"time"
)

func TestNewZoneClimate_ExactlyOneScope(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	zone := NewZoneClimate(ts, 1, 7, SourceHistorical)
	if zone.ZoneID == nil || *zone.ZoneID != 7 {
		t.Fatalf("Expected zone id 7, got %v", zone.ZoneID)
	}
	if zone.DeviceID != nil {
		t.Errorf("Expected no device id on zone row, got %d", *zone.DeviceID)
	}

	dev := NewDeviceClimate(ts, 1, 9, SourceRealtime)
	if dev.DeviceID == nil || *dev.DeviceID != 9 {
		t.Fatalf("Expected device id 9, got %v", dev.DeviceID)
	}
	if dev.ZoneID != nil {
		t.Errorf("Expected no zone id on device row, got %d", *dev.ZoneID)
	}
}

func TestClimateMeasurement_HasValues(t *testing.T) {
	row := NewZoneClimate(time.Now(), 1, 2, SourceRealtime)
	if row.HasValues() {
		t.Error("Expected empty row to report no values")
	}

	row.WindowOpen = Bool(true)
	if !row.HasValues() {
		t.Error("Expected row with window flag to report values")
	}
}

func TestClimateMeasurement_KeyDistinguishesSource(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := NewZoneClimate(ts, 1, 2, SourceHistorical)
	b := NewZoneClimate(ts, 1, 2, SourceRealtime)
	c := NewZoneClimate(ts.In(time.FixedZone("CET", 3600)), 1, 2, SourceHistorical)

	if a.Key() == b.Key() {
		t.Error("Expected different keys for different sources")
	}
	if a.Key() != c.Key() {
		t.Error("Expected same instant in different zones to share a key")
	}
}

func TestWeatherMeasurement_HasValues(t *testing.T) {
	row := NewWeather(time.Now(), 1, SourceHistorical)
	if row.HasValues() {
		t.Error("Expected empty weather row to report no values")
	}
	row.WeatherState = String("SUN")
	if !row.HasValues() {
		t.Error("Expected weather row with state to report values")
	}
}
