package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a harvesting session.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RecordsTotal    prometheus.Counter
	RetryPasses     prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	AdaptiveDelay   prometheus.Gauge
	ChunksCompleted prometheus.Counter
	WriteDuration   prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_requests_total",
			Help: "Fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvest_request_duration_seconds",
			Help:    "Latency of proxy fetches.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_records_total",
			Help: "Records appended to the output store.",
		},
	)
	retryPasses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_retry_passes_total",
			Help: "Retry passes over recoverable failures.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_errors_total",
			Help: "Fetch failures by kind.",
		},
		[]string{"kind"},
	)
	delay := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvest_adaptive_delay_seconds",
			Help: "Current delay applied before each request.",
		},
	)
	chunks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_chunks_completed_total",
			Help: "Chunks fetched and flushed.",
		},
	)
	writeDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvest_write_duration_seconds",
			Help:    "Duration of per-chunk output appends.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(requests, requestDuration, records, retryPasses, errorsTotal, delay, chunks, writeDuration)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RecordsTotal:    records,
		RetryPasses:     retryPasses,
		ErrorsTotal:     errorsTotal,
		AdaptiveDelay:   delay,
		ChunksCompleted: chunks,
		WriteDuration:   writeDuration,
	}
}

// ObserveOutcome counts one fetch and its latency.
func (m *Metrics) ObserveOutcome(out Outcome) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(out.Kind.String()).Inc()
	m.RequestDuration.Observe(out.Latency.Seconds())
	if out.Kind != OutcomeSuccess {
		m.ErrorsTotal.WithLabelValues(errorTypeLabel(out.Err)).Inc()
	}
}

// AddRecords increments the records counter.
func (m *Metrics) AddRecords(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.Add(float64(n))
}

// IncRetryPass increments the retry pass counter.
func (m *Metrics) IncRetryPass() {
	if m == nil {
		return
	}
	m.RetryPasses.Inc()
}

// SetDelay publishes the current adaptive delay.
func (m *Metrics) SetDelay(d time.Duration) {
	if m == nil {
		return
	}
	m.AdaptiveDelay.Set(d.Seconds())
}

// IncChunks increments the completed chunks counter.
func (m *Metrics) IncChunks() {
	if m == nil {
		return
	}
	m.ChunksCompleted.Inc()
}

// ObserveWrite records one output append duration.
func (m *Metrics) ObserveWrite(d time.Duration) {
	if m == nil {
		return
	}
	m.WriteDuration.Observe(d.Seconds())
}
