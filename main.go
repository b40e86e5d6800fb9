package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mjasion/balena-home/climate/backfill"
	"github.com/mjasion/balena-home/climate/config"
	"github.com/mjasion/balena-home/climate/health"
	"github.com/mjasion/balena-home/climate/heartbeat"
	"github.com/mjasion/balena-home/climate/pkg/buffer"
	pkgmetrics "github.com/mjasion/balena-home/climate/pkg/metrics"
	"github.com/mjasion/balena-home/climate/pkg/profiling"
	"github.com/mjasion/balena-home/climate/pkg/telemetry"
	"github.com/mjasion/balena-home/climate/pkg/types"
	"github.com/mjasion/balena-home/climate/realtime"
	"github.com/mjasion/balena-home/climate/store"
	"github.com/mjasion/balena-home/climate/tado"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("c", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger, err := cfg.NewLogger()
	if err != nil {
		panic("Failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Loading configuration", zap.String("path", *configPath))
	cfg.PrintConfig(logger)

	// Initialize Pyroscope profiling
	profiler, err := profiling.Start(&cfg.Profiling, logger)
	if err != nil {
		logger.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	if profiler != nil {
		defer func() {
			if err := profiler.Stop(); err != nil {
				logger.Error("Error shutting down profiler", zap.Error(err))
			}
		}()
	}

	// Initialize OpenTelemetry providers
	otelProviders, err := telemetry.InitProviders(context.Background(), &cfg.OpenTelemetry, logger)
	if err != nil {
		logger.Fatal("Failed to initialize OpenTelemetry providers", zap.Error(err))
	}
	if otelProviders != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelProviders.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error shutting down OpenTelemetry providers", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Collector stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	counters := pkgmetrics.NewCounters(registry)

	client := tado.NewClient(tado.Credentials{
		Username:     cfg.Tado.Username,
		Password:     cfg.Tado.Password,
		ClientID:     cfg.Tado.ClientID,
		ClientSecret: cfg.Tado.ClientSecret,
		RefreshToken: cfg.Tado.RefreshToken,
	}, tado.Options{
		BaseURL:          cfg.Tado.BaseURL,
		TokenURL:         cfg.Tado.TokenURL,
		Timeout:          cfg.RequestTimeout(),
		MaxResponseBytes: cfg.Tado.MaxResponseBytes,
		Counters:         counters,
	}, logger.Named("tado"))

	homeIDs, err := resolveHomes(ctx, client, cfg.Tado.HomeIDs)
	if err != nil {
		return err
	}
	logger.Info("Collecting homes", zap.Int64s("tado_home_ids", homeIDs))

	st, err := openStore(ctx, cfg, client, homeIDs, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var buf *buffer.RingBuffer[*types.Reading]
	var sink realtime.Sink
	if cfg.Prometheus.Enabled {
		buf = buffer.New[*types.Reading](cfg.Prometheus.BufferSize, logger)
		sink = buf
	}

	poller := realtime.NewPoller(client, st, homeIDs, cfg.RealtimeInterval(), sink, counters, logger.Named("realtime"))

	var checker *health.Checker
	if cfg.Health.Port > 0 {
		var bufferSize health.Buffer
		if buf != nil {
			bufferSize = buf
		}
		checker = health.NewChecker(poller, bufferSize, registry, cfg.Health.Port, logger)
		go func() {
			if err := checker.Start(); err != nil {
				logger.Error("Health check server error", zap.Error(err))
			}
		}()
		defer checker.Stop()
	}

	if cfg.Backfill.Enabled {
		if checker != nil {
			checker.SetPhase(health.PhaseBackfill)
		}
		if err := runBackfill(ctx, cfg, client, st, homeIDs, counters, logger); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("Backfill finished with errors", zap.Error(err))
		}
	}

	if !cfg.Realtime.Enabled {
		logger.Info("Realtime polling disabled, exiting")
		return nil
	}

	if buf != nil {
		pusher := pkgmetrics.New(pkgmetrics.Config{
			URL:               cfg.Prometheus.URL,
			Username:          cfg.Prometheus.Username,
			Password:          cfg.Prometheus.Password,
			PushIntervalSec:   cfg.Prometheus.PushIntervalSeconds,
			BatchSize:         cfg.Prometheus.BatchSize,
			TimeSeriesBuilder: pkgmetrics.CombineBuilders(pkgmetrics.BuildClimateTimeSeries, pkgmetrics.BuildWeatherTimeSeries),
		}, buf, logger.Named("pusher"))
		go pusher.Start(ctx)
		if checker != nil {
			checker.SetPusher(pusher, time.Duration(cfg.Prometheus.PushIntervalSeconds)*time.Second)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			pusher.Flush(flushCtx)
		}()
	}

	if cfg.Heartbeat.URL != "" {
		hb, err := heartbeat.New(cfg.Heartbeat.URL, cfg.Heartbeat.Period, poller, logger.Named("heartbeat"))
		if err != nil {
			return err
		}
		hb.Start()
		defer hb.Stop()
	}

	if err := poller.Prepare(ctx); err != nil {
		return fmt.Errorf("failed to prepare realtime poller: %w", err)
	}
	if checker != nil {
		checker.SetPhase(health.PhaseRealtime)
	}
	return poller.Run(ctx)
}

// resolveHomes returns the configured homes, or every home of the account
func resolveHomes(ctx context.Context, api tado.API, configured []int64) ([]int64, error) {
	if len(configured) > 0 {
		return configured, nil
	}
	me, err := api.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover homes: %w", err)
	}
	var ids []int64
	for _, h := range me.Homes {
		if h.ID != nil {
			ids = append(ids, *h.ID)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("account has no homes")
	}
	return ids, nil
}

func openStore(ctx context.Context, cfg *config.Config, api tado.API, homeIDs []int64, logger *zap.Logger) (store.Store, error) {
	if !cfg.Database.DryRun {
		pg, err := store.NewPostgres(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.BatchSize, logger.Named("store"))
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	logger.Warn("Dry run: rows are kept in memory only")
	mem := store.NewMemory()
	if err := seedMemory(ctx, api, mem, homeIDs); err != nil {
		return nil, err
	}
	return mem, nil
}

// seedMemory registers the reference rows Postgres would already hold
func seedMemory(ctx context.Context, api tado.API, mem *store.Memory, homeIDs []int64) error {
	for _, tadoID := range homeIDs {
		home := mem.EnsureHome(tadoID)
		zones, err := api.Zones(ctx, tadoID)
		if err != nil {
			return fmt.Errorf("home %d: %w", tadoID, err)
		}
		for _, z := range zones {
			if z.ID != nil {
				mem.EnsureZone(home, *z.ID)
			}
		}
		devices, err := api.Devices(ctx, tadoID)
		if err != nil {
			return fmt.Errorf("home %d: %w", tadoID, err)
		}
		for _, d := range devices {
			if d.SerialNo != nil {
				mem.EnsureDevice(home, *d.SerialNo)
			}
		}
	}
	return nil
}

func runBackfill(ctx context.Context, cfg *config.Config, api tado.API, st store.Store, homeIDs []int64, counters *pkgmetrics.Counters, logger *zap.Logger) error {
	floor, err := cfg.FloorDate()
	if err != nil {
		return err
	}
	scheduler := backfill.NewScheduler(api, st, backfill.NewPacer(cfg.Backfill.RequestsPerSecond), backfill.Options{
		MinGap:     cfg.MinGap(),
		FloorDate:  floor,
		SampleRate: cfg.Backfill.SampleRate,
		Sentinel: backfill.Sentinel{
			Temperature: cfg.Backfill.SentinelTemperature,
			Humidity:    cfg.Backfill.SentinelHumidity,
		},
	}, counters, logger.Named("backfill"))

	started := time.Now()
	err = scheduler.Run(ctx, homeIDs)
	logger.Info("Backfill completed", zap.Duration("duration", time.Since(started)), zap.Bool("errors", err != nil))
	return err
}
