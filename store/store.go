package store

import (
	"context"
	"errors"
	"time"

	"github.com/mjasion/balena-home/climate/pkg/types"
)

const (
	ClimateTable = "climate_measurements"
	WeatherTable = "weather_measurements"
)

// ErrNotFound is returned when a reference row has not been synced yet
var ErrNotFound = errors.New("reference row not found")

// Store persists measurements and resolves vendor ids to row ids.
// Inserts are insert-or-skip on the natural key and return the number of new rows.
type Store interface {
	// HomeID maps a vendor home id to its row id
	HomeID(ctx context.Context, tadoHomeID int64) (int64, error)
	// ZoneIDs maps vendor zone ids of a home to row ids
	ZoneIDs(ctx context.Context, homeID int64) (map[int64]int64, error)
	// DeviceIDs maps device serial numbers of a home to row ids
	DeviceIDs(ctx context.Context, homeID int64) (map[string]int64, error)

	// HistoricalClimateTimes returns ascending timestamps of historical zone rows in [from, to)
	HistoricalClimateTimes(ctx context.Context, homeID, zoneID int64, from, to time.Time) ([]time.Time, error)
	// HistoricalWeatherTimes returns ascending timestamps of historical weather rows in [from, to)
	HistoricalWeatherTimes(ctx context.Context, homeID int64, from, to time.Time) ([]time.Time, error)

	InsertClimate(ctx context.Context, rows []*types.ClimateMeasurement) (int64, error)
	InsertWeather(ctx context.Context, rows []*types.WeatherMeasurement) (int64, error)

	Close()
}
