// Package metrics holds the Prometheus collectors of the progress engine.
// A nil *Metrics is valid and records nothing, which keeps tests and
// metric-less deployments free of registry wiring.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "progress"

// Status label values.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Metrics holds Prometheus metrics for the engine.
type Metrics struct {
	registry *prometheus.Registry

	XPRecorded      prometheus.Counter
	QuestsCompleted prometheus.Counter
	Claims          *prometheus.CounterVec
	JobRuns         *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	JobRecords      *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
	EventsHandled   *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
	DBConnPool      *prometheus.GaugeVec
}

// New registers every collector on a fresh registry, plus the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		XPRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_recorded_total",
			Help:      "Total XP credited to weekly ledgers",
		}),
		QuestsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quests_completed_total",
			Help:      "Quest instances that transitioned to COMPLETED",
		}),
		Claims: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Reward claims by kind and outcome",
		}, []string{"kind", "outcome"}),
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Periodic job runs by status",
		}, []string{"job", "status"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Periodic job duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		JobRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_records_total",
			Help:      "Records touched by periodic jobs",
		}, []string{"job", "result"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published on the bus",
		}, []string{"event"}),
		EventsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Event handler executions by status",
		}, []string{"event", "status"}),
		HandlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Event handler duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		DBConnPool: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connection_pool",
			Help:      "Database connection pool statistics",
		}, []string{"stat"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// ──────────────────────────────────────────────────────────────────────────────
// Recorders
// ──────────────────────────────────────────────────────────────────────────────

// AddXP records credited XP.
func (m *Metrics) AddXP(amount int) {
	if m == nil || amount <= 0 {
		return
	}
	m.XPRecorded.Add(float64(amount))
}

// QuestCompleted counts one COMPLETED transition.
func (m *Metrics) QuestCompleted() {
	if m == nil {
		return
	}
	m.QuestsCompleted.Inc()
}

// Claim records one claim outcome.
func (m *Metrics) Claim(kind, outcome string) {
	if m == nil {
		return
	}
	m.Claims.WithLabelValues(kind, outcome).Inc()
}

// ObserveJob records a job run.
func (m *Metrics) ObserveJob(job string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, status(err)).Inc()
	m.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// SkipJob records a run skipped because another worker holds the lock.
func (m *Metrics) SkipJob(job string) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, StatusSkipped).Inc()
}

// JobRecordsProcessed records per-record job results.
func (m *Metrics) JobRecordsProcessed(job string, ok, failed int) {
	if m == nil {
		return
	}
	m.JobRecords.WithLabelValues(job, StatusOK).Add(float64(ok))
	m.JobRecords.WithLabelValues(job, StatusError).Add(float64(failed))
}

// EventPublished counts a publish.
func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// ObserveHandler records one handler execution.
func (m *Metrics) ObserveHandler(eventType string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.EventsHandled.WithLabelValues(eventType, status(err)).Inc()
	m.HandlerDuration.WithLabelValues(eventType).Observe(d.Seconds())
}

// SetPoolStats publishes connection pool gauges.
func (m *Metrics) SetPoolStats(total, idle, acquired, max int32) {
	if m == nil {
		return
	}
	m.DBConnPool.WithLabelValues("total").Set(float64(total))
	m.DBConnPool.WithLabelValues("idle").Set(float64(idle))
	m.DBConnPool.WithLabelValues("acquired").Set(float64(acquired))
	m.DBConnPool.WithLabelValues("max").Set(float64(max))
}
