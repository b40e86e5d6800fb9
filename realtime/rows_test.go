package realtime

import (
	"testing"
	"time"

	"github.com/mjasion/balena-home/climate/tado"
)

func TestZoneRow_TimestampPrecedence(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	temp := now.Add(-4 * time.Minute)
	hum := now.Add(-3 * time.Minute)
	heat := now.Add(-2 * time.Minute)
	ac := now.Add(-time.Minute)
	on := tado.PowerOn

	tests := []struct {
		name  string
		state *tado.ZoneState
		want  time.Time
	}{
		{
			name: "inside temperature first",
			state: &tado.ZoneState{
				SensorDataPoints:   &tado.SensorDataPoints{InsideTemperature: &tado.TemperatureDataPoint{Celsius: fp(20.5), Timestamp: tp(temp)}, Humidity: &tado.PercentageDataPoint{Percentage: fp(40), Timestamp: tp(hum)}},
				ActivityDataPoints: &tado.ActivityDataPoints{HeatingPower: &tado.PercentageDataPoint{Percentage: fp(10), Timestamp: tp(heat)}},
			},
			want: temp,
		},
		{
			name:  "humidity when temperature has no time",
			state: &tado.ZoneState{SensorDataPoints: &tado.SensorDataPoints{InsideTemperature: &tado.TemperatureDataPoint{Celsius: fp(20.5)}, Humidity: &tado.PercentageDataPoint{Percentage: fp(40), Timestamp: tp(hum)}}},
			want:  hum,
		},
		{
			name:  "heating power",
			state: &tado.ZoneState{ActivityDataPoints: &tado.ActivityDataPoints{HeatingPower: &tado.PercentageDataPoint{Percentage: fp(10), Timestamp: tp(heat)}, ACPower: &tado.PowerDataPoint{Value: &on, Timestamp: tp(ac)}}},
			want:  heat,
		},
		{
			name:  "ac power",
			state: &tado.ZoneState{ActivityDataPoints: &tado.ActivityDataPoints{ACPower: &tado.PowerDataPoint{Value: &on, Timestamp: tp(ac)}}},
			want:  ac,
		},
		{
			name:  "wall clock",
			state: &tado.ZoneState{OpenWindow: &tado.ZoneOpenWindow{}},
			want:  now,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := ZoneRow(tt.state, 1, 2, now)
			if !row.Time.Equal(tt.want) {
				t.Errorf("Expected %s, got %s", tt.want, row.Time)
			}
		})
	}
}

func TestZoneRow_Fields(t *testing.T) {
	now := time.Now()
	mode := tado.ACModeHeat
	off := tado.PowerOff
	state := &tado.ZoneState{
		Setting:            &tado.ZoneSetting{Mode: &mode, Temperature: &tado.Temperature{Celsius: fp(22)}},
		OpenWindow:         &tado.ZoneOpenWindow{DurationInSeconds: ip(900)},
		SensorDataPoints:   &tado.SensorDataPoints{Humidity: &tado.PercentageDataPoint{Percentage: fp(51.2)}},
		ActivityDataPoints: &tado.ActivityDataPoints{ACPower: &tado.PowerDataPoint{Value: &off}},
	}

	row := ZoneRow(state, 1, 2, now)
	if *row.SetpointTempC != 22 || *row.ACMode != "HEAT" || *row.HumidityPct != 51.2 {
		t.Errorf("Unexpected row %+v", row)
	}
	if !*row.WindowOpen || *row.ACPowerOn {
		t.Error("Expected window open and AC off")
	}
	if row.InsideTempC != nil || row.HeatingPowerPct != nil {
		t.Error("Expected absent readings to stay unset")
	}

	if empty := ZoneRow(&tado.ZoneState{}, 1, 2, now); empty.HasValues() {
		t.Error("Expected an empty state to produce an empty row")
	}
}

func TestWeatherRow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	solar := now.Add(-10 * time.Minute)
	state := tado.WeatherState("RAIN")
	w := &tado.Weather{
		SolarIntensity: &tado.PercentageDataPoint{Percentage: fp(12), Timestamp: tp(solar)},
		WeatherState:   &tado.WeatherStateDataPoint{Value: &state, Timestamp: tp(now.Add(-time.Hour))},
	}

	row := WeatherRow(w, 4, now)
	if !row.Time.Equal(solar) {
		t.Errorf("Expected solar timestamp without outside temperature, got %s", row.Time)
	}
	if *row.SolarIntensityPct != 12 || *row.WeatherState != "RAIN" || row.OutsideTempC != nil {
		t.Errorf("Unexpected weather row %+v", row)
	}
	if bare := WeatherRow(&tado.Weather{}, 4, now); !bare.Time.Equal(now) || bare.HasValues() {
		t.Error("Expected an empty weather payload to fall back to now with no values")
	}
}

func TestDeviceRow(t *testing.T) {
	now := time.Now().UTC()
	seen := now.Add(-30 * time.Second)
	normal := tado.BatteryNormal
	up := false

	row := DeviceRow(tado.Device{
		ConnectionState: &tado.DeviceConnectionState{Value: &up, Timestamp: tp(seen)},
		BatteryState:    &normal,
	}, 1, 9, now)
	if !row.Time.Equal(seen) || *row.ConnectionUp || *row.BatteryLow {
		t.Errorf("Unexpected device row %+v", row)
	}
	if row.DeviceID == nil || *row.DeviceID != 9 || row.ZoneID != nil {
		t.Error("Expected a device-scoped row")
	}
}
