package backfill

import (
	"slices"
	"time"

	"github.com/mjasion/balena-home/climate/pkg/types"
	"github.com/mjasion/balena-home/climate/tado"
)

// RowIDs are the store row ids a day report is written under
type RowIDs struct {
	HomeID int64
	ZoneID int64
}

// Result holds the reconciled rows of one day report, each slice ordered by time
type Result struct {
	Climate []*types.ClimateMeasurement
	Weather []*types.WeatherMeasurement
}

// climateRows is an ordered map from instant to the row accumulating fields at that instant
type climateRows struct {
	ids  RowIDs
	gaps []Gap
	rows map[int64]*types.ClimateMeasurement
}

// at returns the row for ts, or nil when ts lies outside every gap
func (c *climateRows) at(ts *time.Time) *types.ClimateMeasurement {
	if ts == nil || !containsAny(c.gaps, *ts) {
		return nil
	}
	key := ts.UnixNano()
	row, ok := c.rows[key]
	if !ok {
		row = types.NewZoneClimate(*ts, c.ids.HomeID, c.ids.ZoneID, types.SourceHistorical)
		c.rows[key] = row
	}
	return row
}

func (c *climateRows) sorted() []*types.ClimateMeasurement {
	out := make([]*types.ClimateMeasurement, 0, len(c.rows))
	for _, row := range c.rows {
		if row.HasValues() {
			out = append(out, row)
		}
	}
	slices.SortFunc(out, func(a, b *types.ClimateMeasurement) int { return a.Time.Compare(b.Time) })
	return out
}

// Reconcile merges the signal series of a day report into sparse rows, keeping only
// entries inside gaps. Weather intervals are merged only within weatherGaps, which is
// empty for every zone but the home's reference zone.
func Reconcile(report *tado.DayReport, gaps, weatherGaps []Gap, ids RowIDs, sentinel Sentinel) Result {
	if report == nil {
		return Result{}
	}

	acc := &climateRows{ids: ids, gaps: gaps, rows: make(map[int64]*types.ClimateMeasurement)}

	if md := report.MeasuredData; md != nil {
		if md.InsideTemperature != nil {
			for _, p := range md.InsideTemperature.DataPoints {
				if p.Value == nil || p.Value.Celsius == nil {
					continue
				}
				if row := acc.at(p.Timestamp); row != nil {
					row.InsideTempC = types.Float64(*p.Value.Celsius)
				}
			}
		}
		if md.Humidity != nil {
			for _, p := range md.Humidity.DataPoints {
				if p.Value == nil {
					continue
				}
				if row := acc.at(p.Timestamp); row != nil {
					row.HumidityPct = types.Float64(*p.Value * 100)
				}
			}
		}
		if md.MeasuringDeviceConnected != nil {
			for _, di := range md.MeasuringDeviceConnected.DataIntervals {
				if di.Value == nil {
					continue
				}
				if row := acc.at(di.From); row != nil {
					row.ConnectionUp = types.Bool(*di.Value)
				}
			}
		}
	}

	if report.CallForHeat != nil {
		for _, di := range report.CallForHeat.DataIntervals {
			if di.Value == nil {
				continue
			}
			pct, ok := di.Value.Percent()
			if !ok {
				continue
			}
			if row := acc.at(di.From); row != nil {
				row.HeatingPowerPct = types.Float64(pct)
			}
		}
	}

	if report.ACActivity != nil {
		for _, di := range report.ACActivity.DataIntervals {
			if di.Value == nil {
				continue
			}
			if row := acc.at(di.From); row != nil {
				row.ACPowerOn = types.Bool(di.Value.IsOn())
			}
		}
	}

	if report.Settings != nil {
		for _, di := range report.Settings.DataIntervals {
			applySetting(acc, di)
		}
	}

	return Result{
		Climate: stripLeadingSentinel(acc.sorted(), sentinel),
		Weather: reconcileWeather(report.Weather, weatherGaps, ids.HomeID),
	}
}

func applySetting(acc *climateRows, di tado.ZoneSettingInterval) {
	s := di.Value
	if s == nil {
		return
	}
	var setpoint *float64
	if s.Temperature != nil && s.Temperature.Celsius != nil {
		setpoint = types.Float64(*s.Temperature.Celsius)
	}
	var mode *string
	if s.Mode != nil {
		mode = types.String(string(*s.Mode))
	}
	var on *bool
	if s.Power != nil {
		on = types.Bool(s.Power.IsOn())
	}
	if setpoint == nil && mode == nil && on == nil {
		return
	}

	row := acc.at(di.From)
	if row == nil {
		return
	}
	if setpoint != nil {
		row.SetpointTempC = setpoint
	}
	if mode != nil {
		row.ACMode = mode
	}
	if on != nil {
		row.ACPowerOn = on
	}
}

func reconcileWeather(w *tado.DayReportWeather, gaps []Gap, homeID int64) []*types.WeatherMeasurement {
	if w == nil || w.Condition == nil || len(gaps) == 0 {
		return nil
	}

	rows := make(map[int64]*types.WeatherMeasurement)
	for _, di := range w.Condition.DataIntervals {
		c := di.Value
		if c == nil || di.From == nil || !containsAny(gaps, *di.From) {
			continue
		}
		key := di.From.UnixNano()
		row, ok := rows[key]
		if !ok {
			row = types.NewWeather(*di.From, homeID, types.SourceHistorical)
			rows[key] = row
		}
		if c.Temperature != nil && c.Temperature.Celsius != nil {
			row.OutsideTempC = types.Float64(*c.Temperature.Celsius)
		}
		if c.State != nil && *c.State != "" {
			row.WeatherState = types.String(string(*c.State))
		}
	}

	out := make([]*types.WeatherMeasurement, 0, len(rows))
	for _, row := range rows {
		if row.HasValues() {
			out = append(out, row)
		}
	}
	slices.SortFunc(out, func(a, b *types.WeatherMeasurement) int { return a.Time.Compare(b.Time) })
	return out
}

// isSentinelRow reports whether a row holds the placeholder temperature and humidity and nothing else
func isSentinelRow(m *types.ClimateMeasurement, s Sentinel) bool {
	if m.InsideTempC == nil || m.HumidityPct == nil {
		return false
	}
	if !s.isTemperature(*m.InsideTempC) || !s.isHumidity(*m.HumidityPct/100) {
		return false
	}
	return m.SetpointTempC == nil && m.HeatingPowerPct == nil && m.ACPowerOn == nil &&
		m.ACMode == nil && m.WindowOpen == nil && m.BatteryLow == nil && m.ConnectionUp == nil
}

func stripLeadingSentinel(rows []*types.ClimateMeasurement, s Sentinel) []*types.ClimateMeasurement {
	for i, row := range rows {
		if !isSentinelRow(row, s) {
			return rows[i:]
		}
	}
	return nil
}
