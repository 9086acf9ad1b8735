// Package metrics exposes rate limit and export progress as Prometheus
// collectors on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quipkit/quipkit/internal/core/engine"
	"github.com/quipkit/quipkit/internal/export"
)

const namespace = "quipkit"

// Metrics holds every collector the CLI reports.
type Metrics struct {
	Registry *prometheus.Registry

	limit        *prometheus.GaugeVec
	remaining    *prometheus.GaugeVec
	resetSeconds *prometheus.GaugeVec
	delaysTotal  *prometheus.CounterVec
	delaySeconds *prometheus.HistogramVec
	retriesTotal prometheus.Counter
	errorsTotal  *prometheus.CounterVec
	exportItems  *prometheus.GaugeVec
}

// New builds the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		limit: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ratelimit_limit",
				Help:      "Request quota of the window as last reported by the API",
			},
			[]string{"window"},
		),
		remaining: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ratelimit_remaining",
				Help:      "Requests left in the window as last reported by the API",
			},
			[]string{"window"},
		),
		resetSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ratelimit_reset_timestamp_seconds",
				Help:      "Unix time at which the window resets",
			},
			[]string{"window"},
		),
		delaysTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_delays_total",
				Help:      "Pre-request waits imposed by the coordinator",
			},
			[]string{"reason"},
		),
		delaySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ratelimit_delay_seconds",
				Help:      "Duration of pre-request waits",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"reason"},
		),
		retriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Cooldowns taken after rate limited responses",
			},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "API error responses by error code and HTTP status",
			},
			[]string{"error_code", "http_status"},
		),
		exportItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "export_items",
				Help:      "Items handled by the running export",
			},
			[]string{"kind", "result"},
		),
	}

	m.Registry.MustRegister(
		m.limit,
		m.remaining,
		m.resetSeconds,
		m.delaysTotal,
		m.delaySeconds,
		m.retriesTotal,
		m.errorsTotal,
		m.exportItems,
		collectors.NewGoCollector(),
	)

	return m
}

// Observe records one coordinator notification.
func (m *Metrics) Observe(event engine.Event) {
	if m == nil {
		return
	}

	switch event.Kind {
	case engine.EventUpdate:
		window := string(event.Window)
		m.limit.WithLabelValues(window).Set(float64(event.Snapshot.Limit))
		m.remaining.WithLabelValues(window).Set(float64(event.Snapshot.Remaining))
		m.resetSeconds.WithLabelValues(window).Set(float64(event.Snapshot.ResetAt.Unix()))
	case engine.EventDelay:
		m.delaysTotal.WithLabelValues(event.Reason).Inc()
		m.delaySeconds.WithLabelValues(event.Reason).Observe(event.Delay.Seconds())
	}
}

// Attach subscribes to coordinator notifications and returns the unsubscribe
// function.
func (m *Metrics) Attach(coordinator *engine.Coordinator) func() {
	if m == nil || coordinator == nil {
		return func() {}
	}
	return coordinator.Subscribe(m.Observe)
}

// RecordRetry counts one retry cooldown.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

// RecordExport publishes a walk summary.
func (m *Metrics) RecordExport(summary *export.Summary) {
	if m == nil || summary == nil {
		return
	}
	m.exportItems.WithLabelValues("folder", "visited").Set(float64(summary.FoldersVisited))
	m.exportItems.WithLabelValues("folder", "skipped").Set(float64(summary.FoldersSkipped))
	m.exportItems.WithLabelValues("thread", "downloaded").Set(float64(summary.ThreadsDownloaded))
	m.exportItems.WithLabelValues("thread", "skipped").Set(float64(summary.ThreadsSkipped))
	m.exportItems.WithLabelValues("any", "failed").Set(float64(summary.Failures))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
