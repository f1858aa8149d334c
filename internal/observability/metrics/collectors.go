package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "policy"

var (
	chunkBuckets    = []float64{0, 1, 5, 10, 25, 50, 100, 250, 500}
	ingestBuckets   = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}
	retrieveBuckets = []float64{0, 1, 2, 3, 5, 8, 13, 21}
	lagBuckets      = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}
)

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

func serviceGauge(subsystem, name, help, service string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": service},
	})
}

// registry holds one binary's collectors next to the Go runtime and process
// collectors.
type registry struct {
	reg *prometheus.Registry
}

func newRegistry() registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry{reg: reg}
}

func (r registry) register(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}

// Handler serves the Prometheus exposition for this registry.
func (r registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ingestCollectors count documents by outcome. The API and the worker
// register the same set under their own subsystem.
type ingestCollectors struct {
	documents *prometheus.CounterVec
	chunks    *prometheus.HistogramVec
	duration  *prometheus.HistogramVec
}

func newIngestCollectors(subsystem string) ingestCollectors {
	return ingestCollectors{
		documents: counterVec(subsystem, "documents_total",
			"Total ingested documents by status.", "service", "status"),
		chunks: histogramVec(subsystem, "chunks_per_document",
			"Distribution of chunks indexed per successfully ingested document.", chunkBuckets, "service"),
		duration: histogramVec(subsystem, "duration_seconds",
			"Document ingestion duration in seconds by status.", ingestBuckets, "service", "status"),
	}
}

func (c ingestCollectors) collectors() []prometheus.Collector {
	return []prometheus.Collector{c.documents, c.chunks, c.duration}
}

// observe counts chunks only for documents that were indexed.
func (c ingestCollectors) observe(service string, chunks int, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.documents.WithLabelValues(service, status).Inc()
	c.duration.WithLabelValues(service, status).Observe(elapsed.Seconds())
	if err == nil {
		c.chunks.WithLabelValues(service).Observe(float64(chunks))
	}
}
