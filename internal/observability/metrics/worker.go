package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics is exposed by the queue worker on its own port.
type WorkerMetrics struct {
	registry

	inFlight prometheus.Gauge
	queueLag *prometheus.HistogramVec
	ingest   ingestCollectors
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	m := &WorkerMetrics{
		registry: newRegistry(),
		inFlight: serviceGauge("worker", "ingest_in_flight",
			"Number of in-flight queued ingestion jobs.", service),
		queueLag: histogramVec("worker", "queue_lag_seconds",
			"Delay between enqueueing a document and the start of its ingestion.", lagBuckets, "service"),
		ingest: newIngestCollectors("worker"),
	}
	m.register(m.inFlight, m.queueLag)
	m.register(m.ingest.collectors()...)
	return m
}

func (m *WorkerMetrics) StartDocument() {
	m.inFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, chunks int, duration time.Duration, err error) {
	m.inFlight.Dec()
	m.ingest.observe(service, chunks, duration, err)
}

// ObserveQueueLag ignores negative lag from clock skew between producer
// and worker.
func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
