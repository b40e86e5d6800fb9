package heartbeat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// staleAfter is how many poll intervals may pass without a tick before pings stop
const staleAfter = 3

// Liveness reports the progress of the realtime poller
type Liveness interface {
	LastTick() time.Time
	Interval() time.Duration
}

// Heartbeat pings a dead-man's-switch URL on a cron schedule while the poller is alive
type Heartbeat struct {
	url        string
	liveness   Liveness
	httpClient *http.Client
	cron       *cron.Cron
	logger     *zap.Logger
	now        func() time.Time
}

// New schedules a ping every period (a Go duration such as "5m")
func New(url, period string, liveness Liveness, logger *zap.Logger) (*Heartbeat, error) {
	h := &Heartbeat{
		url:      url,
		liveness: liveness,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}

	if _, err := h.cron.AddFunc("@every "+period, func() {
		if err := h.Beat(context.Background()); err != nil {
			h.logger.Warn("heartbeat failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid heartbeat period %q: %w", period, err)
	}
	return h, nil
}

func (h *Heartbeat) Start() {
	h.logger.Info("starting heartbeat", zap.String("url", h.url))
	h.cron.Start()
}

// Stop halts the schedule and waits for a running ping to finish
func (h *Heartbeat) Stop() {
	<-h.cron.Stop().Done()
}

// Beat pings the URL once, unless the poller has gone stale
func (h *Heartbeat) Beat(ctx context.Context) error {
	last := h.liveness.LastTick()
	if last.IsZero() || h.now().Sub(last) > staleAfter*h.liveness.Interval() {
		h.logger.Warn("realtime poller is stale, skipping heartbeat", zap.Time("last_tick", last))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	h.logger.Debug("heartbeat sent", zap.String("status", resp.Status))
	return nil
}
