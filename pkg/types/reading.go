package types

import "time"

// ReadingType identifies which measurement a Reading carries
type ReadingType string

const (
	ReadingTypeClimate ReadingType = "climate"
	ReadingTypeWeather ReadingType = "weather"
)

// Reading is a union of the measurement rows mirrored to Prometheus
type Reading struct {
	Type    ReadingType
	Climate *ClimateMeasurement
	Weather *WeatherMeasurement
}

// ClimateReading wraps a climate row
func ClimateReading(m *ClimateMeasurement) *Reading {
	return &Reading{Type: ReadingTypeClimate, Climate: m}
}

// WeatherReading wraps a weather row
func WeatherReading(m *WeatherMeasurement) *Reading {
	return &Reading{Type: ReadingTypeWeather, Weather: m}
}

// GetTimestamp returns the timestamp of the reading regardless of type
func (r *Reading) GetTimestamp() time.Time {
	switch r.Type {
	case ReadingTypeClimate:
		return r.Climate.Time
	case ReadingTypeWeather:
		return r.Weather.Time
	default:
		return time.Time{}
	}
}
