package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPServerMetrics is exposed by the API on /metrics.
type HTTPServerMetrics struct {
	registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge

	rag    ragCollectors
	ingest ingestCollectors
}

type ragCollectors struct {
	requests  *prometheus.CounterVec
	hits      *prometheus.CounterVec
	noContext *prometheus.CounterVec
	retrieved *prometheus.HistogramVec
	duration  *prometheus.HistogramVec
	controls  *prometheus.CounterVec
}

func newRAGCollectors() ragCollectors {
	return ragCollectors{
		requests: counterVec("rag", "requests_total",
			"Total successful policy questions answered.", "service", "endpoint"),
		hits: counterVec("rag", "retrieval_hit_total",
			"Total answers grounded on at least one retrieved chunk.", "service", "endpoint"),
		noContext: counterVec("rag", "no_context_total",
			"Total answers produced without retrieved chunks.", "service", "endpoint"),
		retrieved: histogramVec("rag", "retrieved_chunks",
			"Distribution of retrieved chunks per answered question.", retrieveBuckets, "service", "endpoint"),
		duration: histogramVec("rag", "duration_seconds",
			"Question answering duration in seconds.", prometheus.DefBuckets, "service", "endpoint"),
		controls: counterVec("rag", "control_detected_total",
			"Total questions that referenced a catalog control, by control id.", "service", "control_id"),
	}
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	m := &HTTPServerMetrics{
		registry: newRegistry(),
		requests: counterVec("http", "requests_total",
			"Total HTTP requests processed.", "service", "method", "path", "status"),
		latency: histogramVec("http", "request_duration_seconds",
			"HTTP request duration in seconds.", prometheus.DefBuckets, "service", "method", "path"),
		inFlight: serviceGauge("http", "in_flight_requests",
			"Number of in-flight HTTP requests.", service),
		rag:    newRAGCollectors(),
		ingest: newIngestCollectors("ingest"),
	}
	m.register(m.requests, m.latency, m.inFlight)
	m.register(m.rag.requests, m.rag.hits, m.rag.noContext, m.rag.retrieved, m.rag.duration, m.rag.controls)
	m.register(m.ingest.collectors()...)
	return m
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.inFlight.Inc()
		defer m.inFlight.Dec()
		next.ServeHTTP(rec, r)

		path := normalizePath(r.URL.Path)
		m.requests.WithLabelValues(service, r.Method, path, strconv.Itoa(rec.statusCode)).Inc()
		m.latency.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds per-document paths into one label value.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/documents/") {
		return "/v1/documents/{file_id}"
	}
	return path
}

// RecordRAGObservation counts one answered question. sourceCount is the
// number of chunks the answer was grounded on.
func (m *HTTPServerMetrics) RecordRAGObservation(service, endpoint string, sourceCount int, duration time.Duration) {
	m.rag.requests.WithLabelValues(service, endpoint).Inc()
	m.rag.retrieved.WithLabelValues(service, endpoint).Observe(float64(sourceCount))
	m.rag.duration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	if sourceCount > 0 {
		m.rag.hits.WithLabelValues(service, endpoint).Inc()
	} else {
		m.rag.noContext.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordControlDetected(service, controlID string) {
	if controlID == "" {
		return
	}
	m.rag.controls.WithLabelValues(service, controlID).Inc()
}

func (m *HTTPServerMetrics) RecordIngest(service string, chunks int, duration time.Duration, err error) {
	m.ingest.observe(service, chunks, duration, err)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
