package realtime

import (
	"time"

	"github.com/mjasion/balena-home/climate/pkg/types"
	"github.com/mjasion/balena-home/climate/tado"
)

// firstTime returns the first non-nil timestamp, or fallback
func firstTime(fallback time.Time, candidates ...*time.Time) time.Time {
	for _, t := range candidates {
		if t != nil {
			return *t
		}
	}
	return fallback
}

// WeatherRow builds a realtime weather row, stamped with the outside temperature
// reading time when present, then the solar reading time, then now
func WeatherRow(w *tado.Weather, homeID int64, now time.Time) *types.WeatherMeasurement {
	var tempTS, solarTS *time.Time
	if w.OutsideTemperature != nil {
		tempTS = w.OutsideTemperature.Timestamp
	}
	if w.SolarIntensity != nil {
		solarTS = w.SolarIntensity.Timestamp
	}

	row := types.NewWeather(firstTime(now, tempTS, solarTS), homeID, types.SourceRealtime)
	if w.OutsideTemperature != nil && w.OutsideTemperature.Celsius != nil {
		row.OutsideTempC = types.Float64(*w.OutsideTemperature.Celsius)
	}
	if w.SolarIntensity != nil && w.SolarIntensity.Percentage != nil {
		row.SolarIntensityPct = types.Float64(*w.SolarIntensity.Percentage)
	}
	if w.WeatherState != nil && w.WeatherState.Value != nil {
		row.WeatherState = types.String(string(*w.WeatherState.Value))
	}
	return row
}

// ZoneRow builds a realtime zone row. The timestamp prefers inside temperature,
// then humidity, heating power and AC power reading times, then now.
func ZoneRow(s *tado.ZoneState, homeID, zoneID int64, now time.Time) *types.ClimateMeasurement {
	var (
		sensors  = s.SensorDataPoints
		activity = s.ActivityDataPoints
		stamps   []*time.Time
	)
	if sensors != nil {
		if sensors.InsideTemperature != nil {
			stamps = append(stamps, sensors.InsideTemperature.Timestamp)
		}
		if sensors.Humidity != nil {
			stamps = append(stamps, sensors.Humidity.Timestamp)
		}
	}
	if activity != nil {
		if activity.HeatingPower != nil {
			stamps = append(stamps, activity.HeatingPower.Timestamp)
		}
		if activity.ACPower != nil {
			stamps = append(stamps, activity.ACPower.Timestamp)
		}
	}

	row := types.NewZoneClimate(firstTime(now, stamps...), homeID, zoneID, types.SourceRealtime)
	if sensors != nil {
		if t := sensors.InsideTemperature; t != nil && t.Celsius != nil {
			row.InsideTempC = types.Float64(*t.Celsius)
		}
		if h := sensors.Humidity; h != nil && h.Percentage != nil {
			row.HumidityPct = types.Float64(*h.Percentage)
		}
	}
	if activity != nil {
		if hp := activity.HeatingPower; hp != nil && hp.Percentage != nil {
			row.HeatingPowerPct = types.Float64(*hp.Percentage)
		}
		if ac := activity.ACPower; ac != nil && ac.Value != nil {
			row.ACPowerOn = types.Bool(ac.Value.IsOn())
		}
	}
	if set := s.Setting; set != nil {
		if set.Temperature != nil && set.Temperature.Celsius != nil {
			row.SetpointTempC = types.Float64(*set.Temperature.Celsius)
		}
		if set.Mode != nil {
			row.ACMode = types.String(string(*set.Mode))
		}
	}
	if s.OpenWindow != nil {
		row.WindowOpen = types.Bool(true)
	}
	return row
}

// DeviceRow builds a realtime device row with battery and connectivity,
// stamped with the connection state time when present
func DeviceRow(d tado.Device, homeID, deviceID int64, now time.Time) *types.ClimateMeasurement {
	var ts *time.Time
	if d.ConnectionState != nil {
		ts = d.ConnectionState.Timestamp
	}

	row := types.NewDeviceClimate(firstTime(now, ts), homeID, deviceID, types.SourceRealtime)
	if d.ConnectionState != nil && d.ConnectionState.Value != nil {
		row.ConnectionUp = types.Bool(*d.ConnectionState.Value)
	}
	if d.BatteryState != nil {
		row.BatteryLow = types.Bool(*d.BatteryState == tado.BatteryLow)
	}
	return row
}
