package service

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const metricsJobName = "counter_bot"

// Metrics holds the per-run Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetchDuration  *prometheus.HistogramVec
	fetchErrors    *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	lastSuccess    *prometheus.GaugeVec
	periodTotals   *prometheus.GaugeVec
	publishedParts *prometheus.CounterVec
	eventErrors    prometheus.Counter
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		// Counter API
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "counter_bot_fetch_duration_seconds",
			Help:    "Duration of counter API requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"counter"}),

		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "counter_bot_fetch_errors_total",
			Help: "Total number of failed counter API requests",
		}, []string{"counter"}),

		// Report runs
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "counter_bot_runs_total",
			Help: "Total number of report runs by outcome",
		}, []string{"report", "outcome"}),

		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "counter_bot_run_duration_seconds",
			Help:    "Duration of report runs in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),

		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "counter_bot_last_success_timestamp_seconds",
			Help: "Unix time of the last published report",
		}, []string{"report"}),

		periodTotals: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "counter_bot_period_bicycles",
			Help: "Total count over the current and reference periods of the last run",
		}, []string{"report", "period"}),

		publishedParts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "counter_bot_published_parts_total",
			Help: "Total number of posts sent to the feed",
		}, []string{"report"}),

		eventErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "counter_bot_event_errors_total",
			Help: "Total number of report events that could not be published",
		}),
	}
}

func (m *Metrics) RecordFetch(counterID string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(counterID).Observe(duration.Seconds())
	if err != nil {
		m.fetchErrors.WithLabelValues(counterID).Inc()
	}
}

func (m *Metrics) RecordRun(report, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(report, outcome).Inc()
	m.runDuration.WithLabelValues(report).Observe(duration.Seconds())
	if outcome == "published" {
		m.lastSuccess.WithLabelValues(report).SetToCurrentTime()
	}
}

func (m *Metrics) RecordTotals(report string, current, reference int) {
	if m == nil {
		return
	}
	m.periodTotals.WithLabelValues(report, "current").Set(float64(current))
	m.periodTotals.WithLabelValues(report, "reference").Set(float64(reference))
}

func (m *Metrics) RecordPublished(report string, parts int) {
	if m == nil {
		return
	}
	m.publishedParts.WithLabelValues(report).Add(float64(parts))
}

func (m *Metrics) RecordEventError() {
	if m == nil {
		return
	}
	m.eventErrors.Inc()
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Export pushes the collected metrics to a Pushgateway and/or writes them to
// a node-exporter textfile. Empty targets are skipped.
func (m *Metrics) Export(pushgatewayURL, textfile string) error {
	if m == nil {
		return nil
	}

	if pushgatewayURL != "" {
		if err := push.New(pushgatewayURL, metricsJobName).Gatherer(m.registry).Push(); err != nil {
			return fmt.Errorf("failed to push metrics: %w", err)
		}
	}

	if textfile != "" {
		if err := prometheus.WriteToTextfile(textfile, m.registry); err != nil {
			return fmt.Errorf("failed to write metrics textfile: %w", err)
		}
	}

	return nil
}
