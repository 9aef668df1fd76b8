package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters, gauges, and histograms for the HLS
// packaging service.
type Metrics struct {
	registry                    *prometheus.Registry
	requestsTotal               prometheus.Counter
	requestDuration             prometheus.Histogram
	segmentsRegisteredTotal     prometheus.Counter
	activeStreams               prometheus.Gauge
	errorsTotal                 prometheus.Counter
	scte35SectionsIngestedTotal prometheus.Counter
}

// New creates and registers Prometheus metrics for the orchestrator.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_requests_total",
		Help: "Total number of HTTP requests received",
	})
	requestDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hls_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
	segmentsRegisteredTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_segments_registered_total",
		Help: "Total number of segments successfully registered",
	})
	activeStreams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hls_active_renditions",
		Help: "Number of initialized stream/rendition pairs",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	scte35SectionsIngestedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_scte35_sections_ingested_total",
		Help: "Total number of SCTE-35 splice_info_sections successfully ingested",
	})

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		segmentsRegisteredTotal,
		activeStreams,
		errorsTotal,
		scte35SectionsIngestedTotal,
	)

	return &Metrics{
		registry:                    registry,
		requestsTotal:               requestsTotal,
		requestDuration:             requestDuration,
		segmentsRegisteredTotal:     segmentsRegisteredTotal,
		activeStreams:               activeStreams,
		errorsTotal:                 errorsTotal,
		scte35SectionsIngestedTotal: scte35SectionsIngestedTotal,
	}
}

// IncScte35SectionsIngested increments the SCTE-35 sections ingested counter.
func (m *Metrics) IncScte35SectionsIngested() {
	m.scte35SectionsIngestedTotal.Inc()
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// ObserveRequestDuration records one HTTP request's duration, in seconds.
func (m *Metrics) ObserveRequestDuration(seconds float64) {
	m.requestDuration.Observe(seconds)
}

// IncSegmentsRegistered increments the segments registered counter.
func (m *Metrics) IncSegmentsRegistered() {
	m.segmentsRegisteredTotal.Inc()
}

// SetActiveStreams sets the active-renditions gauge.
func (m *Metrics) SetActiveStreams(n int) {
	m.activeStreams.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active streams).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
