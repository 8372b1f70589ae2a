package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics manages the Prometheus metrics for the sync pipeline.
type Metrics struct {
	SyncTasks        *prometheus.CounterVec
	SyncTaskDuration *prometheus.HistogramVec
	SnapshotsUpserted *prometheus.CounterVec
	DocumentsIndexed prometheus.Counter
	RunDuration      prometheus.Histogram
}

// NewMetrics creates and registers the Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SyncTasks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "possync_sync_tasks_total",
				Help: "Total number of finished per-tenant sync tasks.",
			},
			[]string{"domain", "result"},
		),
		SyncTaskDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "possync_sync_task_duration_seconds",
				Help:    "Duration of per-tenant sync tasks.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"domain"},
		),
		SnapshotsUpserted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "possync_snapshots_upserted_total",
				Help: "Total number of daily snapshots upserted.",
			},
			[]string{"domain"},
		),
		DocumentsIndexed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "possync_documents_indexed_total",
				Help: "Total number of documents published to the search index.",
			},
		),
		RunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "possync_run_duration_seconds",
				Help:    "Duration of full orchestration runs.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}
}

// RecordTask records metrics for one finished sync task.
func (m *Metrics) RecordTask(domain string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.SyncTasks.WithLabelValues(domain, result).Inc()
	m.SyncTaskDuration.WithLabelValues(domain).Observe(duration.Seconds())
}

// RecordRun records metrics for one finished orchestration run.
func (m *Metrics) RecordRun(duration time.Duration, indexed int) {
	m.RunDuration.Observe(duration.Seconds())
	m.DocumentsIndexed.Add(float64(indexed))
}
