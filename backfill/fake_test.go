package backfill

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mjasion/balena-home/climate/tado"
)

var errNotImplemented = errors.New("not implemented")

// fakeAPI serves synthetic day reports: placeholder data before genuineFrom, real data after
type fakeAPI struct {
	mu          sync.Mutex
	zones       []tado.Zone
	genuineFrom time.Time
	failZone    int64
	requests    map[int64][]time.Time
}

func newFakeAPI(genuineFrom time.Time, zones ...tado.Zone) *fakeAPI {
	return &fakeAPI{zones: zones, genuineFrom: genuineFrom, requests: make(map[int64][]time.Time)}
}

func zone(id int64, created time.Time) tado.Zone {
	return tado.Zone{ID: &id, DateCreated: &created}
}

func (f *fakeAPI) requested(zoneID int64) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.requests[zoneID]...)
}

func (f *fakeAPI) Me(context.Context) (*tado.User, error) { return nil, errNotImplemented }

func (f *fakeAPI) Zones(context.Context, int64) ([]tado.Zone, error) { return f.zones, nil }

func (f *fakeAPI) ZoneState(context.Context, int64, int64) (*tado.ZoneState, error) {
	return nil, errNotImplemented
}

func (f *fakeAPI) Weather(context.Context, int64) (*tado.Weather, error) {
	return nil, errNotImplemented
}

func (f *fakeAPI) Devices(context.Context, int64) ([]tado.Device, error) {
	return nil, errNotImplemented
}

func (f *fakeAPI) DayReport(_ context.Context, _, zoneID int64, d time.Time) (*tado.DayReport, error) {
	f.mu.Lock()
	f.requests[zoneID] = append(f.requests[zoneID], startOfDay(d))
	f.mu.Unlock()

	if zoneID == f.failZone {
		return nil, &tado.StatusError{Op: "dayReport", StatusCode: 500}
	}
	if startOfDay(d).Before(f.genuineFrom) {
		return sentinelReport(startOfDay(d)), nil
	}
	return genuineReport(startOfDay(d)), nil
}

func tp(t time.Time) *time.Time { return &t }
func fp(v float64) *float64     { return &v }

// sentinelReport has hourly placeholder temperature and humidity and no weather
func sentinelReport(d time.Time) *tado.DayReport {
	temps := &tado.TemperatureTimeSeries{}
	hums := &tado.PercentageTimeSeries{}
	for h := 0; h < 24; h++ {
		ts := d.Add(time.Duration(h) * time.Hour)
		temps.DataPoints = append(temps.DataPoints, tado.TemperaturePoint{Timestamp: tp(ts), Value: &tado.Temperature{Celsius: fp(20.0)}})
		hums.DataPoints = append(hums.DataPoints, tado.PercentagePoint{Timestamp: tp(ts), Value: fp(0.5)})
	}
	return &tado.DayReport{
		MeasuredData: &tado.DayReportMeasuredData{InsideTemperature: temps, Humidity: hums},
		Weather:      &tado.DayReportWeather{Condition: &tado.WeatherConditionTimeSeries{}},
	}
}

// genuineReport has hourly varying readings, heat calls and outdoor conditions
func genuineReport(d time.Time) *tado.DayReport {
	temps := &tado.TemperatureTimeSeries{}
	hums := &tado.PercentageTimeSeries{}
	calls := &tado.CallForHeatTimeSeries{}
	weather := &tado.WeatherConditionTimeSeries{}
	state := tado.WeatherState("CLOUDY_MOSTLY")
	level := tado.CallForHeatLow
	for h := 0; h < 24; h++ {
		ts := d.Add(time.Duration(h) * time.Hour)
		temps.DataPoints = append(temps.DataPoints, tado.TemperaturePoint{Timestamp: tp(ts), Value: &tado.Temperature{Celsius: fp(19 + float64(h)/10)}})
		hums.DataPoints = append(hums.DataPoints, tado.PercentagePoint{Timestamp: tp(ts), Value: fp(0.42)})
		weather.DataIntervals = append(weather.DataIntervals, tado.WeatherConditionInterval{
			DataInterval: tado.DataInterval{From: tp(ts), To: tp(ts.Add(time.Hour))},
			Value:        &tado.WeatherCondition{State: &state, Temperature: &tado.Temperature{Celsius: fp(4 + float64(h)/6)}},
		})
		if h%6 == 0 {
			calls.DataIntervals = append(calls.DataIntervals, tado.CallForHeatInterval{
				DataInterval: tado.DataInterval{From: tp(ts), To: tp(ts.Add(6 * time.Hour))},
				Value:        &level,
			})
		}
	}
	return &tado.DayReport{
		MeasuredData: &tado.DayReportMeasuredData{InsideTemperature: temps, Humidity: hums},
		CallForHeat:  calls,
		Weather:      &tado.DayReportWeather{Condition: weather},
	}
}
