package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters holds process-level counters served on /metrics.
// All methods are safe on a nil receiver.
type Counters struct {
	apiRequests  *prometheus.CounterVec
	rowsInserted *prometheus.CounterVec
	errors       *prometheus.CounterVec
	ticks        prometheus.Counter
}

// NewCounters registers the collector counters with reg
func NewCounters(reg prometheus.Registerer) *Counters {
	f := promauto.With(reg)
	return &Counters{
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tado_collector_api_requests_total",
			Help: "Vendor API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		rowsInserted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tado_collector_rows_inserted_total",
			Help: "Rows actually inserted (conflicts excluded) by table and source.",
		}, []string{"table", "source"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tado_collector_errors_total",
			Help: "Errors by component.",
		}, []string{"component"}),
		ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "tado_collector_ticks_total",
			Help: "Completed realtime poll ticks.",
		}),
	}
}

func (c *Counters) APIRequest(endpoint string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.apiRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (c *Counters) RowsInserted(table, source string, n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.rowsInserted.WithLabelValues(table, source).Add(float64(n))
}

func (c *Counters) Error(component string) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(component).Inc()
}

func (c *Counters) Tick() {
	if c == nil {
		return
	}
	c.ticks.Inc()
}
