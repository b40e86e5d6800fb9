package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mjasion/balena-home/climate/pkg/metrics"
	"github.com/mjasion/balena-home/climate/pkg/types"
	"github.com/mjasion/balena-home/climate/store"
	"github.com/mjasion/balena-home/climate/tado"
)

// Sink receives every realtime row that was written
type Sink interface {
	Add(r *types.Reading)
}

// homeRefs holds the row ids of one home, loaded once
type homeRefs struct {
	tadoID  int64
	rowID   int64
	zones   map[int64]int64
	devices map[string]int64
}

// Poller collects current weather, zone and device state at a steady cadence
type Poller struct {
	api      tado.API
	store    store.Store
	homeIDs  []int64
	interval time.Duration
	sink     Sink
	counters *metrics.Counters
	logger   *zap.Logger

	homes []homeRefs

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.RWMutex
	lastTick time.Time
}

// NewPoller creates a poller for the given vendor home ids. sink may be nil.
func NewPoller(api tado.API, st store.Store, homeIDs []int64, interval time.Duration, sink Sink, counters *metrics.Counters, logger *zap.Logger) *Poller {
	return &Poller{
		api:      api,
		store:    st,
		homeIDs:  homeIDs,
		interval: interval,
		sink:     sink,
		counters: counters,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

// LastTick returns when the most recent tick finished, zero before the first
func (p *Poller) LastTick() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastTick
}

// Prepare loads the home, zone and device row ids. Homes not yet synced are skipped.
func (p *Poller) Prepare(ctx context.Context) error {
	p.homes = p.homes[:0]
	for _, tadoID := range p.homeIDs {
		rowID, err := p.store.HomeID(ctx, tadoID)
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("home not synced, skipping", zap.Int64("tado_home_id", tadoID))
			continue
		}
		if err != nil {
			return err
		}
		zones, err := p.store.ZoneIDs(ctx, rowID)
		if err != nil {
			return err
		}
		devices, err := p.store.DeviceIDs(ctx, rowID)
		if err != nil {
			return err
		}
		p.homes = append(p.homes, homeRefs{tadoID: tadoID, rowID: rowID, zones: zones, devices: devices})
	}
	if len(p.homes) == 0 {
		return fmt.Errorf("no synced homes among %v", p.homeIDs)
	}
	return nil
}

// Run ticks until ctx is cancelled. Each tick is followed by a sleep for whatever
// remains of the interval; an overrun tick is followed immediately by the next.
func (p *Poller) Run(ctx context.Context) error {
	if len(p.homes) == 0 {
		if err := p.Prepare(ctx); err != nil {
			return err
		}
	}

	p.logger.Info("starting realtime poller",
		zap.Duration("interval", p.interval),
		zap.Int("homes", len(p.homes)),
	)

	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("stopping realtime poller")
			return err
		}

		started := p.now()
		p.Tick(ctx)
		elapsed := p.now().Sub(started)

		if remaining := p.interval - elapsed; remaining > 0 {
			if err := p.sleep(ctx, remaining); err != nil {
				p.logger.Info("stopping realtime poller")
				return err
			}
		} else {
			p.logger.Warn("realtime tick overran interval",
				zap.Duration("elapsed", elapsed),
				zap.Duration("interval", p.interval),
			)
		}
	}
}

// Tick visits every home once. Failures are logged and skipped.
func (p *Poller) Tick(ctx context.Context) {
	ctx, span := otel.Tracer("realtime").Start(ctx, "realtime.Tick")
	defer span.End()

	started := p.now()
	var written int
	for _, h := range p.homes {
		written += p.collectHome(ctx, h)
	}

	finished := p.now()
	p.mu.Lock()
	p.lastTick = finished
	p.mu.Unlock()
	p.counters.Tick()

	span.SetAttributes(attribute.Int("realtime.rows", written))
	p.logger.Debug("realtime tick completed",
		zap.Int("rows", written),
		zap.Duration("duration", finished.Sub(started)),
	)
}

func (p *Poller) collectHome(ctx context.Context, h homeRefs) int {
	log := p.logger.With(zap.Int64("tado_home_id", h.tadoID))
	written := 0

	if w, err := p.api.Weather(ctx, h.tadoID); err != nil {
		p.fetchFailed(log, "weather", err)
	} else if row := WeatherRow(w, h.rowID, p.now()); row.HasValues() {
		written += p.writeWeather(ctx, log, row)
	}

	zones, err := p.api.Zones(ctx, h.tadoID)
	if err != nil {
		p.fetchFailed(log, "zones", err)
	}
	for _, z := range zones {
		if z.ID == nil {
			continue
		}
		zoneRow, ok := h.zones[*z.ID]
		if !ok {
			continue
		}
		state, err := p.api.ZoneState(ctx, h.tadoID, *z.ID)
		if err != nil {
			p.fetchFailed(log.With(zap.Int64("tado_zone_id", *z.ID)), "zoneState", err)
			continue
		}
		if row := ZoneRow(state, h.rowID, zoneRow, p.now()); row.HasValues() {
			written += p.writeClimate(ctx, log, row)
		}
	}

	devices, err := p.api.Devices(ctx, h.tadoID)
	if err != nil {
		p.fetchFailed(log, "devices", err)
	}
	for _, d := range devices {
		if d.SerialNo == nil {
			continue
		}
		deviceRow, ok := h.devices[*d.SerialNo]
		if !ok {
			log.Debug("device not synced", zap.String("serial_no", *d.SerialNo))
			continue
		}
		if row := DeviceRow(d, h.rowID, deviceRow, p.now()); row.HasValues() {
			written += p.writeClimate(ctx, log, row)
		}
	}
	return written
}

func (p *Poller) fetchFailed(log *zap.Logger, what string, err error) {
	p.counters.Error("realtime")
	log.Warn("realtime fetch failed", zap.String("fetch", what), zap.Error(err))
}

func (p *Poller) writeClimate(ctx context.Context, log *zap.Logger, row *types.ClimateMeasurement) int {
	n, err := p.store.InsertClimate(ctx, []*types.ClimateMeasurement{row})
	if err != nil {
		p.counters.Error("realtime")
		log.Warn("failed to insert climate row", zap.Error(err))
		return 0
	}
	p.counters.RowsInserted(store.ClimateTable, string(types.SourceRealtime), n)
	if p.sink != nil && n > 0 {
		p.sink.Add(types.ClimateReading(row))
	}
	return int(n)
}

func (p *Poller) writeWeather(ctx context.Context, log *zap.Logger, row *types.WeatherMeasurement) int {
	n, err := p.store.InsertWeather(ctx, []*types.WeatherMeasurement{row})
	if err != nil {
		p.counters.Error("realtime")
		log.Warn("failed to insert weather row", zap.Error(err))
		return 0
	}
	p.counters.RowsInserted(store.WeatherTable, string(types.SourceRealtime), n)
	if p.sink != nil && n > 0 {
		p.sink.Add(types.WeatherReading(row))
	}
	return int(n)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
