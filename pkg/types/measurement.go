package types

import "time"

// Source tags where a measurement row came from
type Source string

const (
	SourceHistorical Source = "historical"
	SourceRealtime   Source = "realtime"
	SourceDerived    Source = "derived"
)

// ClimateMeasurement is one sparse row of zone- or device-level climate data.
// Exactly one of ZoneID and DeviceID is set. Nil fields were not observed.
type ClimateMeasurement struct {
	Time     time.Time
	HomeID   int64
	ZoneID   *int64
	DeviceID *int64
	Source   Source

	InsideTempC     *float64
	HumidityPct     *float64
	SetpointTempC   *float64
	HeatingPowerPct *float64
	ACPowerOn       *bool
	ACMode          *string
	WindowOpen      *bool
	BatteryLow      *bool
	ConnectionUp    *bool
}

// ClimateKey is the natural uniqueness key of a climate row
type ClimateKey struct {
	Time     int64
	HomeID   int64
	Source   Source
	ZoneID   int64
	DeviceID int64
}

// NewZoneClimate creates an empty zone-scoped climate row
func NewZoneClimate(ts time.Time, homeID, zoneID int64, src Source) *ClimateMeasurement {
	return &ClimateMeasurement{Time: ts.UTC(), HomeID: homeID, ZoneID: &zoneID, Source: src}
}

// NewDeviceClimate creates an empty device-scoped climate row
func NewDeviceClimate(ts time.Time, homeID, deviceID int64, src Source) *ClimateMeasurement {
	return &ClimateMeasurement{Time: ts.UTC(), HomeID: homeID, DeviceID: &deviceID, Source: src}
}

// HasValues reports whether at least one measurement field is populated
func (m *ClimateMeasurement) HasValues() bool {
	return m.InsideTempC != nil || m.HumidityPct != nil || m.SetpointTempC != nil ||
		m.HeatingPowerPct != nil || m.ACPowerOn != nil || m.ACMode != nil ||
		m.WindowOpen != nil || m.BatteryLow != nil || m.ConnectionUp != nil
}

// Key returns the natural key. Absent zone or device ids map to zero, row ids start at 1.
func (m *ClimateMeasurement) Key() ClimateKey {
	k := ClimateKey{Time: m.Time.UnixNano(), HomeID: m.HomeID, Source: m.Source}
	if m.ZoneID != nil {
		k.ZoneID = *m.ZoneID
	}
	if m.DeviceID != nil {
		k.DeviceID = *m.DeviceID
	}
	return k
}

// WeatherMeasurement is one sparse row of home-level outdoor weather
type WeatherMeasurement struct {
	Time   time.Time
	HomeID int64
	Source Source

	OutsideTempC      *float64
	SolarIntensityPct *float64
	WeatherState      *string
}

// WeatherKey is the natural uniqueness key of a weather row
type WeatherKey struct {
	HomeID int64
	Time   int64
	Source Source
}

// NewWeather creates an empty weather row
func NewWeather(ts time.Time, homeID int64, src Source) *WeatherMeasurement {
	return &WeatherMeasurement{Time: ts.UTC(), HomeID: homeID, Source: src}
}

func (m *WeatherMeasurement) HasValues() bool {
	return m.OutsideTempC != nil || m.SolarIntensityPct != nil || m.WeatherState != nil
}

func (m *WeatherMeasurement) Key() WeatherKey {
	return WeatherKey{HomeID: m.HomeID, Time: m.Time.UnixNano(), Source: m.Source}
}

func Float64(v float64) *float64 { return &v }
func Bool(v bool) *bool          { return &v }
func String(v string) *string    { return &v }
