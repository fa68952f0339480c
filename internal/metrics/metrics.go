// Package metrics holds the Prometheus collectors for the signal pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for adapters and the aggregation manager.
type Metrics struct {
	SignalsEmitted *prometheus.CounterVec
	NoiseDropped   *prometheus.CounterVec
	AdapterErrors  *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec

	// IntegrationStatus is 1 for the current status of a source and 0 for
	// the others.
	IntegrationStatus *prometheus.GaugeVec
}

// NewMetrics creates and registers the signald collectors.
//
// Registration happens once per process; later calls return the same
// instance.
//
// Metrics:
//   - signald_signals_emitted_total{source,category}
//   - signald_noise_dropped_total{source,reason}
//   - signald_adapter_errors_total{source,operation}
//   - signald_adapter_fetch_duration_seconds{source}
//   - signald_integration_status{source,status}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SignalsEmitted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signald_signals_emitted_total",
					Help: "Total number of signals produced by adapters",
				},
				[]string{"source", "category"},
			),
			NoiseDropped: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signald_noise_dropped_total",
					Help: "Total number of upstream items discarded before becoming signals",
				},
				[]string{"source", "reason"},
			),
			AdapterErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signald_adapter_errors_total",
					Help: "Total number of upstream failures swallowed by adapters",
				},
				[]string{"source", "operation"},
			),
			FetchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "signald_adapter_fetch_duration_seconds",
					Help:    "Duration of FetchSignals per source",
					Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
				},
				[]string{"source"},
			),
			IntegrationStatus: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "signald_integration_status",
					Help: "Current integration status per source (1 = active status)",
				},
				[]string{"source", "status"},
			),
		}
	})
	return globalMetrics
}

var statuses = []string{"healthy", "degraded", "error", "not_configured"}

// Emitted counts one emitted signal. Nil receivers are ignored so that
// adapters built without metrics stay usable.
func (m *Metrics) Emitted(source, category string) {
	if m == nil {
		return
	}
	m.SignalsEmitted.WithLabelValues(source, category).Inc()
}

// Dropped counts an item discarded for reason.
func (m *Metrics) Dropped(source, reason string) {
	if m == nil {
		return
	}
	m.NoiseDropped.WithLabelValues(source, reason).Inc()
}

// Failed counts a swallowed upstream error.
func (m *Metrics) Failed(source, operation string) {
	if m == nil {
		return
	}
	m.AdapterErrors.WithLabelValues(source, operation).Inc()
}

// ObserveFetch records how long a fetch took.
func (m *Metrics) ObserveFetch(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// SetStatus marks status as the active status for source.
func (m *Metrics) SetStatus(source, status string) {
	if m == nil {
		return
	}
	for _, s := range statuses {
		v := 0.0
		if s == status {
			v = 1
		}
		m.IntegrationStatus.WithLabelValues(source, s).Set(v)
	}
}
