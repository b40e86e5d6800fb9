package backfill

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mjasion/balena-home/climate/tado"
)

const sentinelTolerance = 1e-6

// Sentinel is the placeholder reading the vendor reports before a sensor was active.
// Humidity is a unit-interval fraction, as in day reports.
type Sentinel struct {
	Temperature float64
	Humidity    float64
}

func DefaultSentinel() Sentinel {
	return Sentinel{Temperature: 20.0, Humidity: 0.5}
}

func (s Sentinel) isTemperature(c float64) bool {
	return math.Abs(c-s.Temperature) <= sentinelTolerance
}

func (s Sentinel) isHumidity(fraction float64) bool {
	return math.Abs(fraction-s.Humidity) <= sentinelTolerance
}

// IsBogus reports whether a day report carries only placeholder data.
// Any indoor deviation from the sentinel makes the day genuine without looking outdoors.
func (s Sentinel) IsBogus(r *tado.DayReport) bool {
	if r == nil {
		return true
	}
	if s.indoorDeviates(r.MeasuredData) {
		return false
	}
	return !outdoorPresent(r.Weather)
}

func (s Sentinel) indoorDeviates(md *tado.DayReportMeasuredData) bool {
	if md == nil {
		return false
	}
	if md.InsideTemperature != nil {
		for _, p := range md.InsideTemperature.DataPoints {
			if p.Value != nil && p.Value.Celsius != nil && !s.isTemperature(*p.Value.Celsius) {
				return true
			}
		}
	}
	if md.Humidity != nil {
		for _, p := range md.Humidity.DataPoints {
			if p.Value != nil && !s.isHumidity(*p.Value) {
				return true
			}
		}
	}
	return false
}

// outdoorPresent reports whether any weather interval or slot names a state or a temperature
func outdoorPresent(w *tado.DayReportWeather) bool {
	if w == nil {
		return false
	}
	if w.Condition != nil {
		for _, di := range w.Condition.DataIntervals {
			if conditionPresent(di.Value) {
				return true
			}
		}
	}
	if w.Slots != nil {
		for _, slot := range w.Slots.Slots {
			if conditionPresent(&slot) {
				return true
			}
		}
	}
	return false
}

func conditionPresent(c *tado.WeatherCondition) bool {
	if c == nil {
		return false
	}
	if c.State != nil && *c.State != "" {
		return true
	}
	return c.Temperature != nil && c.Temperature.Celsius != nil
}

// Classifier locates the first day of genuine data for a zone
type Classifier struct {
	api      tado.API
	pacer    *Pacer
	sentinel Sentinel
	logger   *zap.Logger
}

func NewClassifier(api tado.API, pacer *Pacer, sentinel Sentinel, logger *zap.Logger) *Classifier {
	return &Classifier{api: api, pacer: pacer, sentinel: sentinel, logger: logger}
}

// IsBogus reports whether r carries only placeholder data
func (c *Classifier) IsBogus(r *tado.DayReport) bool {
	return c.sentinel.IsBogus(r)
}

// FirstGenuineDay binary-searches the UTC days [d0, d1] for the earliest non-bogus day,
// assuming every bogus day precedes every genuine one. The report of the found day is returned.
func (c *Classifier) FirstGenuineDay(ctx context.Context, homeID, zoneID int64, d0, d1 time.Time) (time.Time, *tado.DayReport, bool, error) {
	d0, d1 = startOfDay(d0), startOfDay(d1)
	if d1.Before(d0) {
		return time.Time{}, nil, false, nil
	}

	var (
		found  time.Time
		report *tado.DayReport
		ok     bool
		probes int
	)
	lo, hi := 0, int(d1.Sub(d0)/day)
	for lo <= hi {
		mid := lo + (hi-lo)/2
		candidate := d0.Add(time.Duration(mid) * day)

		var r *tado.DayReport
		err := c.pacer.Do(ctx, func(ctx context.Context) error {
			var err error
			r, err = c.api.DayReport(ctx, homeID, zoneID, candidate)
			return err
		})
		if err != nil {
			return time.Time{}, nil, false, fmt.Errorf("probe %s: %w", candidate.Format(time.DateOnly), err)
		}
		probes++

		if c.IsBogus(r) {
			lo = mid + 1
		} else {
			found, report, ok = candidate, r, true
			hi = mid - 1
		}
	}

	c.logger.Debug("classified zone history",
		zap.Int64("tado_zone_id", zoneID),
		zap.String("from", d0.Format(time.DateOnly)),
		zap.String("to", d1.Format(time.DateOnly)),
		zap.Int("probes", probes),
		zap.Bool("found", ok),
	)
	return found, report, ok, nil
}
