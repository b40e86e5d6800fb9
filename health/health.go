package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	PhaseStarting = "starting"
	PhaseBackfill = "backfill"
	PhaseRealtime = "realtime"
)

// Status represents the health status of the service
type Status struct {
	Status          string    `json:"status"`
	Phase           string    `json:"phase"`
	LastTick        time.Time `json:"lastTick"`
	BufferedSamples int       `json:"bufferedSamples"`
	LastPushTime    time.Time `json:"lastPushTime,omitzero"`
}

// Liveness reports the progress of the realtime poller
type Liveness interface {
	LastTick() time.Time
	Interval() time.Duration
}

// Buffer reports how many mirror samples wait to be pushed
type Buffer interface {
	Size() int
}

// Pushes reports the last successful remote-write push
type Pushes interface {
	LastPushTime() time.Time
}

// Checker serves /health and /metrics
type Checker struct {
	liveness Liveness
	buffer   Buffer
	server   *http.Server
	logger   *zap.Logger
	now      func() time.Time

	mu           sync.RWMutex
	phase        string
	pushes       Pushes
	pushInterval time.Duration
}

// NewChecker creates a health server on port. liveness and buf may be nil.
func NewChecker(liveness Liveness, buf Buffer, gatherer prometheus.Gatherer, port int, logger *zap.Logger) *Checker {
	c := &Checker{
		liveness: liveness,
		buffer:   buf,
		logger:   logger,
		now:      time.Now,
		phase:    PhaseStarting,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", c.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	c.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return c
}

func (c *Checker) SetPhase(phase string) {
	c.mu.Lock()
	c.phase = phase
	c.mu.Unlock()
}

// SetPusher adds the mirror pusher to the report once it runs
func (c *Checker) SetPusher(p Pushes, interval time.Duration) {
	c.mu.Lock()
	c.pushes = p
	c.pushInterval = interval
	c.mu.Unlock()
}

// Start begins serving and blocks until the server stops
func (c *Checker) Start() error {
	c.logger.Info("starting health check server", zap.String("addr", c.server.Addr))
	if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health check server error: %w", err)
	}
	return nil
}

func (c *Checker) Stop() error {
	return c.server.Close()
}

// Handler exposes the routes without a listener
func (c *Checker) Handler() http.Handler {
	return c.server.Handler
}

func (c *Checker) snapshot() Status {
	c.mu.RLock()
	status := Status{Status: "healthy", Phase: c.phase}
	pushes, pushInterval := c.pushes, c.pushInterval
	c.mu.RUnlock()

	if c.buffer != nil {
		status.BufferedSamples = c.buffer.Size()
	}
	if c.liveness != nil && status.Phase == PhaseRealtime {
		status.LastTick = c.liveness.LastTick()
		// stale when no tick finished within 3 intervals
		if !status.LastTick.IsZero() && c.now().Sub(status.LastTick) > 3*c.liveness.Interval() {
			status.Status = "unhealthy"
		}
	}
	if pushes != nil {
		status.LastPushTime = pushes.LastPushTime()
		if !status.LastPushTime.IsZero() && c.now().Sub(status.LastPushTime) > 3*pushInterval {
			status.Status = "unhealthy"
		}
	}
	return status
}

func (c *Checker) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := c.snapshot()

	w.Header().Set("Content-Type", "application/json")
	if status.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		c.logger.Debug("failed to write health response", zap.Error(err))
	}
}
