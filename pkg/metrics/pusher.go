package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mjasion/balena-home/climate/pkg/buffer"
	"github.com/mjasion/balena-home/climate/pkg/types"
)

const pushAttempts = 3

// TimeSeriesBuilder converts readings to Prometheus time series
type TimeSeriesBuilder func(ctx context.Context, readings []*types.Reading) ([]prompb.TimeSeries, error)

// Pusher drains a reading buffer into a Prometheus remote_write endpoint
type Pusher struct {
	url          string
	username     string
	password     string
	client       *http.Client
	logger       *zap.Logger
	buffer       *buffer.RingBuffer[*types.Reading]
	pushInterval time.Duration
	batchSize    int
	tsBuilder    TimeSeriesBuilder
	backoff      time.Duration

	mu       sync.RWMutex
	lastPush time.Time
}

// Config contains configuration for the Prometheus pusher
type Config struct {
	URL               string
	Username          string
	Password          string
	PushIntervalSec   int
	BatchSize         int
	TimeSeriesBuilder TimeSeriesBuilder
}

// New creates a Pusher whose HTTP client is instrumented with otelhttp
func New(cfg Config, buf *buffer.RingBuffer[*types.Reading], logger *zap.Logger) *Pusher {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: otelhttp.NewTransport(
			http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(string, *http.Request) string {
				return "prometheus.remote_write"
			}),
		),
	}

	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 500
	}

	return &Pusher{
		url:          cfg.URL,
		username:     cfg.Username,
		password:     cfg.Password,
		client:       httpClient,
		logger:       logger,
		buffer:       buf,
		pushInterval: time.Duration(cfg.PushIntervalSec) * time.Second,
		batchSize:    batchSize,
		tsBuilder:    cfg.TimeSeriesBuilder,
		backoff:      time.Second,
	}
}

// Start pushes buffered readings every push interval until ctx is done
func (p *Pusher) Start(ctx context.Context) {
	ticker := time.NewTicker(p.pushInterval)
	defer ticker.Stop()

	p.logger.Info("prometheus pusher started",
		zap.Duration("push_interval", p.pushInterval),
		zap.Int("batch_size", p.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("prometheus pusher stopping")
			return
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}

// Flush drains the buffer and pushes it in batches. On the first failing
// batch, that batch and all later ones go back into the buffer.
func (p *Pusher) Flush(ctx context.Context) {
	readings := p.buffer.GetAllAndClear()
	if len(readings) == 0 {
		p.logger.Debug("no readings to push")
		return
	}

	for start := 0; start < len(readings); start += p.batchSize {
		end := min(start+p.batchSize, len(readings))
		if err := p.Push(ctx, readings[start:end]); err != nil {
			p.logger.Error("failed to push batch, requeueing remaining readings",
				zap.Error(err),
				zap.Int("requeued_readings", len(readings)-start),
			)
			p.buffer.AddAll(readings[start:])
			return
		}
	}
}

// Push sends readings with up to three attempts and exponential backoff
func (p *Pusher) Push(ctx context.Context, readings []*types.Reading) error {
	ctx, span := otel.Tracer("metrics").Start(ctx, "metrics.Push",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("metrics.total_readings", len(readings))),
	)
	defer span.End()

	if len(readings) == 0 {
		span.SetStatus(codes.Ok, "no readings to push")
		return nil
	}

	writeReq, err := p.buildWriteRequest(ctx, readings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build write request")
		return fmt.Errorf("failed to build write request: %w", err)
	}
	if len(writeReq.Timeseries) == 0 {
		span.SetStatus(codes.Ok, "no time series")
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= pushAttempts; attempt++ {
		lastErr = p.pushOnce(ctx, writeReq)
		if lastErr == nil {
			p.mu.Lock()
			p.lastPush = time.Now()
			p.mu.Unlock()

			p.logger.Info("successfully pushed metrics",
				zap.Int("total_data_points", len(readings)),
				zap.Int("time_series", len(writeReq.Timeseries)),
				zap.Int("attempt", attempt),
			)
			span.SetAttributes(attribute.Int("metrics.successful_attempt", attempt))
			span.SetStatus(codes.Ok, "metrics pushed successfully")
			return nil
		}

		p.logger.Warn("failed to push metrics, will retry",
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		if attempt < pushAttempts {
			select {
			case <-ctx.Done():
				span.RecordError(ctx.Err())
				span.SetStatus(codes.Error, "context cancelled")
				return ctx.Err()
			case <-time.After(p.backoff << (attempt - 1)):
			}
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "failed after retries")
	return fmt.Errorf("failed to push metrics after %d attempts: %w", pushAttempts, lastErr)
}

func (p *Pusher) buildWriteRequest(ctx context.Context, readings []*types.Reading) (*prompb.WriteRequest, error) {
	if p.tsBuilder == nil {
		return nil, fmt.Errorf("no TimeSeriesBuilder configured")
	}

	timeSeries, err := p.tsBuilder(ctx, readings)
	if err != nil {
		return nil, fmt.Errorf("time series builder failed: %w", err)
	}

	return &prompb.WriteRequest{Timeseries: timeSeries}, nil
}

func (p *Pusher) pushOnce(ctx context.Context, writeReq *prompb.WriteRequest) error {
	data, err := proto.Marshal(writeReq)
	if err != nil {
		return fmt.Errorf("failed to marshal protobuf: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.username != "" && p.password != "" {
		req.SetBasicAuth(p.username, p.password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("received non-2xx status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// LastPushTime returns the time of the last successful push
func (p *Pusher) LastPushTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPush
}
