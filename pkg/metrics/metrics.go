package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoopState is 1 for the Work Loop's current state, 0 for every
	// other state. Exactly one label value is 1 at a time.
	LoopState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "meridian_loop_state",
			Help: "Current Work Loop state (1 = current, 0 = other)",
		},
		[]string{"state"},
	)

	FlowsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meridian_flows_started_total",
			Help: "Total number of Flows built and started",
		},
	)

	FlowsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_flows_finished_total",
			Help: "Total number of Flows that reached a terminal state, by outcome",
		},
		[]string{"outcome"}, // "finished", "expired", "op_failed"
	)

	FlowOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_flow_op_duration_seconds",
			Help:    "Time taken to run one Flow op, by op kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_settlements_total",
			Help: "Total number of settlement transactions submitted, by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: "finish"/"quit"; outcome: tx status
	)

	SettlementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meridian_settlement_duration_seconds",
			Help:    "Time taken to submit and confirm a settlement transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	HealthChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_health_checks_total",
			Help: "Total number of Node Monitor health checks, by verdict",
		},
		[]string{"verdict"}, // "healthy", "unhealthy"
	)

	SOLBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_sol_balance",
			Help: "Most recently observed SOL balance",
		},
	)

	NOSBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_nos_balance",
			Help: "Most recently observed NOS balance",
		},
	)

	BlobRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_blob_request_duration_seconds",
			Help:    "Blob Client request duration in seconds, by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "get", "put"
	)

	BlobCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meridian_blob_cache_hits_total",
			Help: "Total number of Blob Client reads served from the in-memory LRU",
		},
	)
)

func init() {
	prometheus.MustRegister(LoopState)
	prometheus.MustRegister(FlowsStarted)
	prometheus.MustRegister(FlowsFinished)
	prometheus.MustRegister(FlowOpDuration)
	prometheus.MustRegister(SettlementsTotal)
	prometheus.MustRegister(SettlementDuration)
	prometheus.MustRegister(HealthChecksTotal)
	prometheus.MustRegister(SOLBalance)
	prometheus.MustRegister(NOSBalance)
	prometheus.MustRegister(BlobRequestDuration)
	prometheus.MustRegister(BlobCacheHits)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
