// Package metrics exposes Prometheus instrumentation for the check pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planwerk/planwerk/model"
)

// Metrics holds the collectors for check execution.
type Metrics struct {
	registry *prometheus.Registry

	ChecksStarted     prometheus.Counter
	ChecksCompleted   *prometheus.CounterVec
	FindingsReported  *prometheus.CounterVec
	EvaluatorDuration *prometheus.HistogramVec
	EvaluatorFailures *prometheus.CounterVec
}

// New creates a metric set on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChecksStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "planwerk_checks_started_total",
			Help: "Number of check orders started.",
		}),
		ChecksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "planwerk_checks_completed_total",
			Help: "Number of check orders finished, by outcome.",
		}, []string{"outcome"}),
		FindingsReported: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "planwerk_findings_total",
			Help: "Number of findings reported, by severity.",
		}, []string{"severity"}),
		EvaluatorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planwerk_evaluator_duration_seconds",
			Help:    "Wall time per expert evaluator run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"trade"}),
		EvaluatorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "planwerk_evaluator_failures_total",
			Help: "Evaluator runs that failed or timed out, by trade.",
		}, []string{"trade"}),
	}
}

// ObserveSummary records the findings of one completed check.
func (m *Metrics) ObserveSummary(summary model.Summary) {
	for severity, n := range summary.BySeverity {
		m.FindingsReported.WithLabelValues(string(severity)).Add(float64(n))
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
