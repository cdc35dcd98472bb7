package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	fetchesTotal  *prometheus.CounterVec
	attemptsTotal *prometheus.CounterVec
	cacheTotal    *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	batchesTotal  *prometheus.CounterVec
	alertsTotal   *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "narrapulse_fetches_total",
				Help: "Total fetch outcomes by narrative and result kind",
			},
			[]string{"narrative", "result"},
		),
		attemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "narrapulse_fetch_attempts_total",
				Help: "Total remote attempts issued, including retries",
			},
			[]string{"narrative"},
		),
		cacheTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "narrapulse_cache_requests_total",
				Help: "Cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		fetchLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "narrapulse_fetch_duration_seconds",
				Help:    "Duration of remote fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"narrative"},
		),
		batchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "narrapulse_batches_total",
				Help: "Batch runs by terminal state",
			},
			[]string{"state"},
		),
		alertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "narrapulse_alerts_total",
				Help: "Alerts detected by narrative",
			},
			[]string{"narrative"},
		),
	}
}

// RecordFetch records a fetch outcome ("success", "cache", or failure kind).
func (r *Recorder) RecordFetch(narrative, result string) {
	r.fetchesTotal.WithLabelValues(narrative, result).Inc()
}

// RecordAttempt records one remote attempt.
func (r *Recorder) RecordAttempt(narrative string) {
	r.attemptsTotal.WithLabelValues(narrative).Inc()
}

// RecordCache records a cache lookup result.
func (r *Recorder) RecordCache(result string) {
	r.cacheTotal.WithLabelValues(result).Inc()
}

// RecordFetchLatency records remote fetch latency in seconds.
func (r *Recorder) RecordFetchLatency(narrative string, seconds float64) {
	r.fetchLatency.WithLabelValues(narrative).Observe(seconds)
}

// RecordBatch records a batch terminal state.
func (r *Recorder) RecordBatch(state string) {
	r.batchesTotal.WithLabelValues(state).Inc()
}

// RecordAlerts records detected alerts for a narrative.
func (r *Recorder) RecordAlerts(narrative string, count int) {
	if count > 0 {
		r.alertsTotal.WithLabelValues(narrative).Add(float64(count))
	}
}
