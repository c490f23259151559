package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the full retrieval worker: indexing throughput,
// retrieval latency and outcomes, abstentions and index size.
type WorkerMetrics struct {
	registry *prometheus.Registry

	indexTotal    *prometheus.CounterVec
	indexDuration *prometheus.HistogramVec
	indexInFlight prometheus.Gauge

	retrievalTotal      *prometheus.CounterVec
	retrievalDuration   *prometheus.HistogramVec
	retrievalCandidates *prometheus.HistogramVec
	abstentionTotal     *prometheus.CounterVec

	indexChunks  *prometheus.GaugeVec
	sweptChunks  *prometheus.CounterVec
	indexVersion *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	indexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "indexer",
			Name:      "document_index_total",
			Help:      "Total indexed documents by status.",
		},
		[]string{"service", "status"},
	)
	indexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "indexer",
			Name:      "document_index_duration_seconds",
			Help:      "Document indexing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	indexInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cqa",
			Subsystem: "indexer",
			Name:      "document_index_in_flight",
			Help:      "Number of in-flight document indexing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total retrieval requests by outcome.",
		},
		[]string{"service", "outcome"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	retrievalCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "retrieval",
			Name:      "candidates",
			Help:      "Distribution of returned candidates per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 15},
		},
		[]string{"service"},
	)
	abstentionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "answer",
			Name:      "abstention_total",
			Help:      "Total abstained answers by reason.",
		},
		[]string{"service", "reason"},
	)
	indexChunks := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cqa",
			Subsystem: "index",
			Name:      "chunks",
			Help:      "Chunks currently held in the index per workspace.",
		},
		[]string{"service", "workspace"},
	)
	sweptChunks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "index",
			Name:      "swept_chunks_total",
			Help:      "Total expired chunks removed by the TTL sweeper.",
		},
		[]string{"service", "workspace"},
	)
	indexVersion := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cqa",
			Subsystem: "index",
			Name:      "version",
			Help:      "Current index snapshot version per workspace.",
		},
		[]string{"service", "workspace"},
	)

	registry.MustRegister(
		indexTotal,
		indexDuration,
		indexInFlight,
		retrievalTotal,
		retrievalDuration,
		retrievalCandidates,
		abstentionTotal,
		indexChunks,
		sweptChunks,
		indexVersion,
	)

	return &WorkerMetrics{
		registry:            registry,
		indexTotal:          indexTotal,
		indexDuration:       indexDuration,
		indexInFlight:       indexInFlight,
		retrievalTotal:      retrievalTotal,
		retrievalDuration:   retrievalDuration,
		retrievalCandidates: retrievalCandidates,
		abstentionTotal:     abstentionTotal,
		indexChunks:         indexChunks,
		sweptChunks:         sweptChunks,
		indexVersion:        indexVersion,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.indexInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.indexInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.indexTotal.WithLabelValues(service, status).Inc()
	m.indexDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}
