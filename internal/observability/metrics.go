package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the assessment service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	actions         *prometheus.CounterVec
	completed       *prometheus.CounterVec
	reports         *prometheus.CounterVec
	downloads       *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. Registering
// twice with the same registry panics, so callers use one registry per process
// (or per test).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ari",
			Name:      "assessment_actions_total",
			Help:      "Assessment actions handled, by action and outcome.",
		}, []string{"action", "outcome"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ari",
			Name:      "assessments_completed_total",
			Help:      "Assessments that reached final results, by archetype.",
		}, []string{"archetype"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ari",
			Name:      "reports_sent_total",
			Help:      "Report emails attempted, by outcome.",
		}, []string{"outcome"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ari",
			Name:      "downloads_total",
			Help:      "PDF download attempts, by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ari",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	if reg != nil {
		reg.MustRegister(m.actions, m.completed, m.reports, m.downloads, m.requestDuration)
	}
	return m
}

// ObserveAction counts one assessment action.
func (m *Metrics) ObserveAction(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

// ObserveCompletion counts a finished assessment.
func (m *Metrics) ObserveCompletion(archetype string) {
	if m == nil {
		return
	}
	m.completed.WithLabelValues(archetype).Inc()
}

func (m *Metrics) ObserveReport(outcome string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDownload(outcome string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(outcome).Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, code).Observe(d.Seconds())
}

// ActionCounter exposes the action counter for tests.
func (m *Metrics) ActionCounter(action, outcome string) prometheus.Counter {
	return m.actions.WithLabelValues(action, outcome)
}

// DownloadCounter exposes the download counter for tests.
func (m *Metrics) DownloadCounter(outcome string) prometheus.Counter {
	return m.downloads.WithLabelValues(outcome)
}

// ReportCounter exposes the report counter for tests.
func (m *Metrics) ReportCounter(outcome string) prometheus.Counter {
	return m.reports.WithLabelValues(outcome)
}
