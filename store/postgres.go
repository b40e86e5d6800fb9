package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mjasion/balena-home/climate/pkg/types"
)

const (
	defaultMaxConns  = 4
	defaultBatchSize = 500

	insertClimateSQL = `INSERT INTO climate_measurements
		(time, home_id, zone_id, device_id, source,
		 inside_temp_c, humidity_pct, setpoint_temp_c, heating_power_pct,
		 ac_power_on, ac_mode, window_open, battery_low, connection_up)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (time, home_id, source, zone_id, device_id) DO NOTHING`

	insertWeatherSQL = `INSERT INTO weather_measurements
		(time, home_id, source, outside_temp_c, solar_intensity_pct, weather_state)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (home_id, time, source) DO NOTHING`

	climateTimesSQL = `SELECT time FROM climate_measurements
		WHERE home_id = $1 AND zone_id = $2 AND source = $3 AND time >= $4 AND time < $5
		ORDER BY time`

	weatherTimesSQL = `SELECT time FROM weather_measurements
		WHERE home_id = $1 AND source = $2 AND time >= $3 AND time < $4
		ORDER BY time`
)

// Postgres is a Store backed by a pgx connection pool
type Postgres struct {
	pool      *pgxpool.Pool
	batchSize int
	logger    *zap.Logger
}

var _ Store = (*Postgres)(nil)

// NewPostgres opens a pool against dsn
func NewPostgres(ctx context.Context, dsn string, maxConns, batchSize int, logger *zap.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	logger.Info("connected to database",
		zap.Int("max_conns", maxConns),
		zap.Int("batch_size", batchSize),
	)
	return &Postgres{pool: pool, batchSize: batchSize, logger: logger}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) HomeID(ctx context.Context, tadoHomeID int64) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `SELECT id FROM homes WHERE tado_home_id = $1`, tadoHomeID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("home %d: %w", tadoHomeID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up home %d: %w", tadoHomeID, err)
	}
	return id, nil
}

func (p *Postgres) ZoneIDs(ctx context.Context, homeID int64) (map[int64]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT tado_zone_id, id FROM zones WHERE home_id = $1`, homeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones of home %d: %w", homeID, err)
	}
	defer rows.Close()

	ids := make(map[int64]int64)
	for rows.Next() {
		var tadoID, id int64
		if err := rows.Scan(&tadoID, &id); err != nil {
			return nil, fmt.Errorf("failed to scan zone row: %w", err)
		}
		ids[tadoID] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read zones of home %d: %w", homeID, err)
	}
	return ids, nil
}

func (p *Postgres) DeviceIDs(ctx context.Context, homeID int64) (map[string]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT tado_device_id, id FROM devices WHERE home_id = $1`, homeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices of home %d: %w", homeID, err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var serial string
		var id int64
		if err := rows.Scan(&serial, &id); err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}
		ids[serial] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read devices of home %d: %w", homeID, err)
	}
	return ids, nil
}

func (p *Postgres) HistoricalClimateTimes(ctx context.Context, homeID, zoneID int64, from, to time.Time) ([]time.Time, error) {
	rows, err := p.pool.Query(ctx, climateTimesSQL, homeID, zoneID, string(types.SourceHistorical), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query climate times: %w", err)
	}
	times, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("failed to read climate times: %w", err)
	}
	return times, nil
}

func (p *Postgres) HistoricalWeatherTimes(ctx context.Context, homeID int64, from, to time.Time) ([]time.Time, error) {
	rows, err := p.pool.Query(ctx, weatherTimesSQL, homeID, string(types.SourceHistorical), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query weather times: %w", err)
	}
	times, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("failed to read weather times: %w", err)
	}
	return times, nil
}

func (p *Postgres) InsertClimate(ctx context.Context, rows []*types.ClimateMeasurement) (int64, error) {
	ctx, span := otel.Tracer("store").Start(ctx, "store.InsertClimate")
	defer span.End()
	span.SetAttributes(attribute.Int("store.rows", len(rows)))

	n, err := p.insertBatched(ctx, len(rows), func(b *pgx.Batch, i int) {
		m := rows[i]
		b.Queue(insertClimateSQL,
			m.Time, m.HomeID, m.ZoneID, m.DeviceID, string(m.Source),
			m.InsideTempC, m.HumidityPct, m.SetpointTempC, m.HeatingPowerPct,
			m.ACPowerOn, m.ACMode, m.WindowOpen, m.BatteryLow, m.ConnectionUp,
		)
	})
	if err != nil {
		span.RecordError(err)
		return n, fmt.Errorf("failed to insert climate rows: %w", err)
	}
	span.SetAttributes(attribute.Int64("store.inserted", n))
	return n, nil
}

func (p *Postgres) InsertWeather(ctx context.Context, rows []*types.WeatherMeasurement) (int64, error) {
	ctx, span := otel.Tracer("store").Start(ctx, "store.InsertWeather")
	defer span.End()
	span.SetAttributes(attribute.Int("store.rows", len(rows)))

	n, err := p.insertBatched(ctx, len(rows), func(b *pgx.Batch, i int) {
		m := rows[i]
		b.Queue(insertWeatherSQL,
			m.Time, m.HomeID, string(m.Source),
			m.OutsideTempC, m.SolarIntensityPct, m.WeatherState,
		)
	})
	if err != nil {
		span.RecordError(err)
		return n, fmt.Errorf("failed to insert weather rows: %w", err)
	}
	span.SetAttributes(attribute.Int64("store.inserted", n))
	return n, nil
}

// insertBatched queues rows in chunks of batchSize and sums affected rows.
// Rows already committed by earlier chunks stay committed on error.
func (p *Postgres) insertBatched(ctx context.Context, count int, queue func(b *pgx.Batch, i int)) (int64, error) {
	var total int64
	for start := 0; start < count; start += p.batchSize {
		end := min(start+p.batchSize, count)

		b := &pgx.Batch{}
		for i := start; i < end; i++ {
			queue(b, i)
		}

		br := p.pool.SendBatch(ctx, b)
		for k := start; k < end; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return total, err
			}
			total += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return total, err
		}
	}
	return total, nil
}
