// Package metrics holds the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gamepop/fin-x-watcher/pkg/monitoring"
)

// Metrics bundles the watcher's domain instruments on top of the shared HTTP
// collector.
type Metrics struct {
	AnalysesTotal      *prometheus.CounterVec
	PostsFetched       *prometheus.CounterVec
	AlertsDelivered    *prometheus.CounterVec
	StreamEvents       *prometheus.CounterVec
	StreamReconnects   *prometheus.CounterVec
	ClassifierFailures *prometheus.CounterVec
	AnalysisDuration   *prometheus.HistogramVec
	BufferedPosts      *prometheus.GaugeVec
}

// New registers the domain metrics on the collector.
func New(mc *monitoring.MetricsCollector) *Metrics {
	return &Metrics{
		AnalysesTotal: mc.NewCounter("analyses_total",
			"Completed risk analyses by verdict", []string{"entity", "risk_level"}),
		PostsFetched: mc.NewCounter("posts_fetched_total",
			"Posts fetched from upstream search", []string{"entity"}),
		AlertsDelivered: mc.NewCounter("alerts_delivered_total",
			"Alert deliveries by outcome", []string{"status"}),
		StreamEvents: mc.NewCounter("stream_events_total",
			"Live stream events by type", []string{"type"}),
		StreamReconnects: mc.NewCounter("stream_reconnects_total",
			"Live stream reconnect attempts", []string{}),
		ClassifierFailures: mc.NewCounter("classifier_failures_total",
			"Classification calls that degraded to UNKNOWN", []string{"source"}),
		AnalysisDuration: mc.NewHistogram("analysis_duration_seconds",
			"Wall time of one full analysis", []string{"entity"}, nil),
		BufferedPosts: mc.NewGauge("buffered_posts",
			"Posts currently buffered from the live stream", []string{}),
	}
}

// ObserveReport records the outcome of one analysis.
func (m *Metrics) ObserveReport(entity, riskLevel string, seconds float64, posts int, deliveryStatus string) {
	m.AnalysesTotal.WithLabelValues(entity, riskLevel).Inc()
	m.PostsFetched.WithLabelValues(entity).Add(float64(posts))
	m.AnalysisDuration.WithLabelValues(entity).Observe(seconds)
	if deliveryStatus != "" {
		m.AlertsDelivered.WithLabelValues(deliveryStatus).Inc()
	}
}
