package metrics

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/prometheus/prometheus/prompb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mjasion/balena-home/climate/pkg/types"
)

// seriesSet accumulates samples per metric name and label set
type seriesSet struct {
	order  []string
	series map[string]*prompb.TimeSeries
}

func newSeriesSet() *seriesSet {
	return &seriesSet{series: make(map[string]*prompb.TimeSeries)}
}

func (s *seriesSet) add(name string, labels []prompb.Label, value float64, tsMillis int64) {
	var key strings.Builder
	key.WriteString(name)
	for _, l := range labels {
		key.WriteString("," + l.Name + "=" + l.Value)
	}

	ts, ok := s.series[key.String()]
	if !ok {
		all := append([]prompb.Label{{Name: "__name__", Value: name}}, labels...)
		ts = &prompb.TimeSeries{Labels: all}
		s.series[key.String()] = ts
		s.order = append(s.order, key.String())
	}
	ts.Samples = append(ts.Samples, prompb.Sample{Value: value, Timestamp: tsMillis})
}

// result returns the series with samples ordered by time and duplicate timestamps removed
func (s *seriesSet) result() []prompb.TimeSeries {
	out := make([]prompb.TimeSeries, 0, len(s.order))
	for _, key := range s.order {
		ts := s.series[key]
		slices.SortStableFunc(ts.Samples, func(a, b prompb.Sample) int {
			return cmp.Compare(a.Timestamp, b.Timestamp)
		})
		ts.Samples = slices.CompactFunc(ts.Samples, func(a, b prompb.Sample) bool {
			return a.Timestamp == b.Timestamp
		})
		out = append(out, *ts)
	}
	return out
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// BuildClimateTimeSeries builds series for zone and device climate rows
func BuildClimateTimeSeries(ctx context.Context, readings []*types.Reading) ([]prompb.TimeSeries, error) {
	_, span := otel.Tracer("metrics").Start(ctx, "metrics.BuildClimateTimeSeries")
	defer span.End()

	set := newSeriesSet()
	for _, r := range readings {
		if r.Type != types.ReadingTypeClimate || r.Climate == nil {
			continue
		}
		m := r.Climate
		labels := []prompb.Label{
			{Name: "home_id", Value: strconv.FormatInt(m.HomeID, 10)},
			{Name: "source", Value: string(m.Source)},
		}
		if m.ZoneID != nil {
			labels = append(labels, prompb.Label{Name: "zone_id", Value: strconv.FormatInt(*m.ZoneID, 10)})
		}
		if m.DeviceID != nil {
			labels = append(labels, prompb.Label{Name: "device_id", Value: strconv.FormatInt(*m.DeviceID, 10)})
		}
		ts := m.Time.UnixMilli()

		if m.InsideTempC != nil {
			set.add("tado_inside_temperature_celsius", labels, *m.InsideTempC, ts)
		}
		if m.HumidityPct != nil {
			set.add("tado_humidity_percent", labels, *m.HumidityPct, ts)
		}
		if m.SetpointTempC != nil {
			set.add("tado_setpoint_temperature_celsius", labels, *m.SetpointTempC, ts)
		}
		if m.HeatingPowerPct != nil {
			set.add("tado_heating_power_percent", labels, *m.HeatingPowerPct, ts)
		}
		if m.ACPowerOn != nil {
			set.add("tado_ac_power_on", labels, boolValue(*m.ACPowerOn), ts)
		}
		if m.WindowOpen != nil {
			set.add("tado_window_open", labels, boolValue(*m.WindowOpen), ts)
		}
		if m.BatteryLow != nil {
			set.add("tado_battery_low", labels, boolValue(*m.BatteryLow), ts)
		}
		if m.ConnectionUp != nil {
			set.add("tado_connection_up", labels, boolValue(*m.ConnectionUp), ts)
		}
	}

	out := set.result()
	span.SetAttributes(attribute.Int("metrics.climate_time_series_count", len(out)))
	return out, nil
}

// BuildWeatherTimeSeries builds series for home weather rows
func BuildWeatherTimeSeries(ctx context.Context, readings []*types.Reading) ([]prompb.TimeSeries, error) {
	_, span := otel.Tracer("metrics").Start(ctx, "metrics.BuildWeatherTimeSeries")
	defer span.End()

	set := newSeriesSet()
	for _, r := range readings {
		if r.Type != types.ReadingTypeWeather || r.Weather == nil {
			continue
		}
		m := r.Weather
		labels := []prompb.Label{
			{Name: "home_id", Value: strconv.FormatInt(m.HomeID, 10)},
			{Name: "source", Value: string(m.Source)},
		}
		ts := m.Time.UnixMilli()

		if m.OutsideTempC != nil {
			set.add("tado_outside_temperature_celsius", labels, *m.OutsideTempC, ts)
		}
		if m.SolarIntensityPct != nil {
			set.add("tado_solar_intensity_percent", labels, *m.SolarIntensityPct, ts)
		}
	}

	out := set.result()
	span.SetAttributes(attribute.Int("metrics.weather_time_series_count", len(out)))
	return out, nil
}

// CombineBuilders combines multiple time series builders into one
func CombineBuilders(builders ...TimeSeriesBuilder) TimeSeriesBuilder {
	return func(ctx context.Context, readings []*types.Reading) ([]prompb.TimeSeries, error) {
		var all []prompb.TimeSeries
		for _, builder := range builders {
			if builder == nil {
				continue
			}
			ts, err := builder(ctx, readings)
			if err != nil {
				return nil, err
			}
			all = append(all, ts...)
		}
		return all, nil
	}
}
