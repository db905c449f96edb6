package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/runtrace/internal/ir"
	"github.com/roach88/runtrace/internal/trace"
)

// PrometheusMetrics implements trace.Metrics with Prometheus collectors.
//
// Metrics exposed (all namespaced with "runtrace_"):
//
//  1. events_handled_total (counter): accepted events. Labels: kind.
//  2. events_rejected_total (counter): events rejected with an integration
//     error. Labels: kind, code.
//  3. log_entries (gauge): length of the most recent trace log.
//  4. runs_stopped_total (counter): runs stopped by an error event or abort.
//     Labels: reason.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	obs := trace.New(trace.WithMetrics(telemetry.NewPrometheusMetrics(registry)))
//
// Thread-safe: the underlying collectors are safe for concurrent use.
type PrometheusMetrics struct {
	handled  *prometheus.CounterVec
	rejected *prometheus.CounterVec
	logLen   prometheus.Gauge
	stopped  *prometheus.CounterVec
}

// NewPrometheusMetrics creates and registers the observer metrics with
// registry. A nil registry uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		handled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runtrace",
			Name:      "events_handled_total",
			Help:      "Events accepted by the trace observer",
		}, []string{"kind"}),

		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runtrace",
			Name:      "events_rejected_total",
			Help:      "Events rejected with an integration error",
		}, []string{"kind", "code"}),

		logLen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "runtrace",
			Name:      "log_entries",
			Help:      "Length of the most recent trace log",
		}),

		stopped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runtrace",
			Name:      "runs_stopped_total",
			Help:      "Runs stopped by an error event or abort",
		}, []string{"reason"}),
	}
}

// EventHandled implements trace.Metrics.
func (m *PrometheusMetrics) EventHandled(kind ir.Kind) {
	m.handled.WithLabelValues(string(kind)).Inc()
}

// EventRejected implements trace.Metrics.
func (m *PrometheusMetrics) EventRejected(kind ir.Kind, code trace.ErrorCode) {
	m.rejected.WithLabelValues(string(kind), string(code)).Inc()
}

// LogChanged implements trace.Metrics.
func (m *PrometheusMetrics) LogChanged(length int) {
	m.logLen.Set(float64(length))
}

// RunStopped implements trace.Metrics.
func (m *PrometheusMetrics) RunStopped(reason string) {
	m.stopped.WithLabelValues(reason).Inc()
}

var _ trace.Metrics = (*PrometheusMetrics)(nil)
