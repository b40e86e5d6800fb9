package backfill

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/mjasion/balena-home/climate/pkg/metrics"
	"github.com/mjasion/balena-home/climate/pkg/telemetry"
	"github.com/mjasion/balena-home/climate/pkg/types"
	"github.com/mjasion/balena-home/climate/store"
	"github.com/mjasion/balena-home/climate/tado"
)

const tracerName = "backfill"

// Options tune a backfill run
type Options struct {
	MinGap time.Duration
	// FloorDate clamps zone start times when non-zero
	FloorDate time.Time
	// SampleRate keeps only days whose day-of-year is a multiple of it. 0 and 1 keep every day.
	SampleRate int
	Sentinel   Sentinel
}

// Scheduler fills historical gaps zone by zone
type Scheduler struct {
	api        tado.API
	store      store.Store
	pacer      *Pacer
	classifier *Classifier
	opts       Options
	counters   *metrics.Counters
	logger     *zap.Logger
	now        func() time.Time
}

func NewScheduler(api tado.API, st store.Store, pacer *Pacer, opts Options, counters *metrics.Counters, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		api:        api,
		store:      st,
		pacer:      pacer,
		classifier: NewClassifier(api, pacer, opts.Sentinel, logger),
		opts:       opts,
		counters:   counters,
		logger:     logger,
		now:        time.Now,
	}
}

// Run backfills every home. A failing home does not stop the others.
func (s *Scheduler) Run(ctx context.Context, tadoHomeIDs []int64) error {
	var errs []error
	for _, id := range tadoHomeIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.RunHome(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("home %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// zonePlan is a zone with the data needed to backfill it
type zonePlan struct {
	tadoID int64
	rowID  int64
	start  time.Time
}

// RunHome backfills every zone of a home. A failing zone stops only that zone;
// the failures are joined into the returned error.
func (s *Scheduler) RunHome(ctx context.Context, tadoHomeID int64) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "backfill.RunHome")
	defer span.End()
	span.SetAttributes(attribute.Int64("tado.home_id", tadoHomeID))

	zones, err := s.api.Zones(ctx, tadoHomeID)
	if err != nil {
		return fmt.Errorf("failed to list zones: %w", err)
	}
	homeID, err := s.store.HomeID(ctx, tadoHomeID)
	if err != nil {
		return err
	}
	zoneIDs, err := s.store.ZoneIDs(ctx, homeID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	var (
		plans []zonePlan
		errs  []error
	)
	for _, z := range zones {
		if z.ID == nil || z.DateCreated == nil {
			continue
		}
		rowID, ok := zoneIDs[*z.ID]
		if !ok {
			errs = append(errs, fmt.Errorf("zone %d: %w", *z.ID, store.ErrNotFound))
			continue
		}
		plans = append(plans, zonePlan{tadoID: *z.ID, rowID: rowID, start: s.clampStart(*z.DateCreated)})
	}
	if len(plans) == 0 {
		return errors.Join(errs...)
	}

	// weather rides on the reports of the earliest zone
	ref := 0
	for i, plan := range plans {
		if plan.start.Before(plans[ref].start) {
			ref = i
		}
	}
	weatherDays, err := s.weatherGaps(ctx, homeID, plans[ref].start, now)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}

	for i, plan := range plans {
		var wd map[time.Time][]Gap
		if i == ref {
			wd = weatherDays
		}
		if err := s.runZone(ctx, tadoHomeID, homeID, plan, wd, now); err != nil {
			telemetry.ErrorWithTrace(ctx, s.logger, "zone backfill aborted",
				zap.Int64("tado_home_id", tadoHomeID),
				zap.Int64("tado_zone_id", plan.tadoID),
				zap.Error(err),
			)
			s.counters.Error("backfill")
			errs = append(errs, fmt.Errorf("zone %d: %w", plan.tadoID, err))
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		span.SetStatus(codes.Error, "zone failures")
	}
	return err
}

func (s *Scheduler) clampStart(created time.Time) time.Time {
	created = created.UTC()
	if !s.opts.FloorDate.IsZero() && created.Before(s.opts.FloorDate) {
		return s.opts.FloorDate.UTC()
	}
	return created
}

func (s *Scheduler) weatherGaps(ctx context.Context, homeID int64, start, now time.Time) (map[time.Time][]Gap, error) {
	if !start.Before(now) {
		return nil, nil
	}
	existing, err := s.store.HistoricalWeatherTimes(ctx, homeID, start, now)
	if err != nil {
		return nil, err
	}
	byDay := make(map[time.Time][]Gap)
	for _, dg := range DetectGaps(existing, start, now, s.opts.MinGap) {
		byDay[dg.Day] = dg.Gaps
	}
	return byDay, nil
}

func (s *Scheduler) keepDay(d, firstDay time.Time) bool {
	if s.opts.SampleRate <= 1 || d.Equal(firstDay) {
		return true
	}
	return d.YearDay()%s.opts.SampleRate == 0
}

// gapDays returns the days missing climate or weather data, ascending
func gapDays(climate, weather map[time.Time][]Gap) []time.Time {
	days := make([]time.Time, 0, len(climate)+len(weather))
	for d := range climate {
		days = append(days, d)
	}
	for d := range weather {
		if _, ok := climate[d]; !ok {
			days = append(days, d)
		}
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	return days
}

func (s *Scheduler) runZone(ctx context.Context, tadoHomeID, homeID int64, plan zonePlan, weatherDays map[time.Time][]Gap, now time.Time) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "backfill.runZone")
	defer span.End()
	span.SetAttributes(attribute.Int64("tado.zone_id", plan.tadoID))

	log := s.logger.With(zap.Int64("tado_home_id", tadoHomeID), zap.Int64("tado_zone_id", plan.tadoID))

	if !plan.start.Before(now) {
		return nil
	}
	existing, err := s.store.HistoricalClimateTimes(ctx, homeID, plan.rowID, plan.start, now)
	if err != nil {
		return err
	}
	climateDays := DetectGaps(existing, plan.start, now, s.opts.MinGap)
	climateGaps := make(map[time.Time][]Gap, len(climateDays))
	for _, dg := range climateDays {
		climateGaps[dg.Day] = dg.Gaps
	}
	days := gapDays(climateGaps, weatherDays)
	if len(days) == 0 {
		log.Debug("zone has no gaps")
		return nil
	}

	firstDay, firstReport, found, err := s.classifier.FirstGenuineDay(ctx, tadoHomeID, plan.tadoID, days[0], days[len(days)-1])
	if err != nil {
		return err
	}
	if !found {
		log.Info("zone history is placeholder only, skipping", zap.Int("gap_days", len(days)))
		return nil
	}
	log.Info("backfilling zone",
		zap.String("first_day", firstDay.Format(time.DateOnly)),
		zap.Int("gap_days", len(days)),
		zap.Int("climate_gap_days", len(climateDays)),
	)

	ids := RowIDs{HomeID: homeID, ZoneID: plan.rowID}
	var fetched, climateRows, weatherRows int64
	for _, day := range days {
		if day.Before(firstDay) || !s.keepDay(day, firstDay) {
			continue
		}

		report := firstReport
		if !day.Equal(firstDay) || report == nil {
			err := s.pacer.Do(ctx, func(ctx context.Context) error {
				var err error
				report, err = s.api.DayReport(ctx, tadoHomeID, plan.tadoID, day)
				return err
			})
			if err != nil {
				return fmt.Errorf("day %s: %w", day.Format(time.DateOnly), err)
			}
		}
		fetched++

		res := Reconcile(report, climateGaps[day], weatherDays[day], ids, s.opts.Sentinel)
		c, w, err := s.write(ctx, res)
		if err != nil {
			return fmt.Errorf("day %s: %w", day.Format(time.DateOnly), err)
		}
		climateRows += c
		weatherRows += w
	}

	span.SetAttributes(
		attribute.Int64("backfill.days_fetched", fetched),
		attribute.Int64("backfill.climate_rows", climateRows),
	)
	log.Info("zone backfill complete",
		zap.Int64("days_fetched", fetched),
		zap.Int64("climate_rows", climateRows),
		zap.Int64("weather_rows", weatherRows),
	)
	return nil
}

func (s *Scheduler) write(ctx context.Context, res Result) (int64, int64, error) {
	var climate, weather int64
	if len(res.Climate) > 0 {
		n, err := s.store.InsertClimate(ctx, res.Climate)
		if err != nil {
			return 0, 0, err
		}
		climate = n
		s.counters.RowsInserted(store.ClimateTable, string(types.SourceHistorical), n)
	}
	if len(res.Weather) > 0 {
		n, err := s.store.InsertWeather(ctx, res.Weather)
		if err != nil {
			return climate, 0, err
		}
		weather = n
		s.counters.RowsInserted(store.WeatherTable, string(types.SourceHistorical), n)
	}
	return climate, weather, nil
}
