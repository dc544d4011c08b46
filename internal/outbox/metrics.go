package outbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects processor observability counters.
type Metrics interface {
	RecordProcessed(actionType string, outcome string)
	RecordBatch(count int, duration time.Duration)
	SetQueueDepth(depth int)
}

// NoopMetrics is used where metrics are not wired (tests, CLI usage).
type NoopMetrics struct{}

func (NoopMetrics) RecordProcessed(actionType string, outcome string) {}
func (NoopMetrics) RecordBatch(count int, duration time.Duration)     {}
func (NoopMetrics) SetQueueDepth(depth int)                           {}

// PrometheusMetrics implements Metrics with prometheus collectors.
type PrometheusMetrics struct {
	processed     *prometheus.CounterVec
	batchSize     prometheus.Histogram
	batchDuration prometheus.Histogram
	queueDepth    prometheus.Gauge
}

func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_records_processed_total",
			Help: "Outbox records processed, by action type and outcome (sent, retried, failed).",
		}, []string{"type", "outcome"}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_batch_size",
			Help:    "Number of due records drained per processor run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_batch_duration_seconds",
			Help:    "Wall time of one processor run.",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_queue_depth",
			Help: "Records currently in queued status.",
		}),
	}
}

func (m *PrometheusMetrics) RecordProcessed(actionType string, outcome string) {
	m.processed.WithLabelValues(actionType, outcome).Inc()
}

func (m *PrometheusMetrics) RecordBatch(count int, duration time.Duration) {
	m.batchSize.Observe(float64(count))
	m.batchDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}
