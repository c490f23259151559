package metrics

import "time"

// RetrievalRecorder binds WorkerMetrics to the usecase observer interfaces
// with the service label fixed at construction.
type RetrievalRecorder struct {
	metrics *WorkerMetrics
	service string
}

func NewRetrievalRecorder(metrics *WorkerMetrics, service string) *RetrievalRecorder {
	return &RetrievalRecorder{metrics: metrics, service: service}
}

func (r *RetrievalRecorder) ObserveRetrieval(outcome string, duration time.Duration, candidates int) {
	if outcome == "" {
		outcome = "unknown"
	}
	r.metrics.retrievalTotal.WithLabelValues(r.service, outcome).Inc()
	r.metrics.retrievalDuration.WithLabelValues(r.service, outcome).Observe(duration.Seconds())
	if candidates >= 0 {
		r.metrics.retrievalCandidates.WithLabelValues(r.service).Observe(float64(candidates))
	}
}

func (r *RetrievalRecorder) ObserveAbstention(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	r.metrics.abstentionTotal.WithLabelValues(r.service, reason).Inc()
}

func (r *RetrievalRecorder) SetIndexSize(workspaceID string, chunks int) {
	r.metrics.indexChunks.WithLabelValues(r.service, workspaceID).Set(float64(chunks))
}

func (r *RetrievalRecorder) SetIndexVersion(workspaceID string, version int64) {
	r.metrics.indexVersion.WithLabelValues(r.service, workspaceID).Set(float64(version))
}

func (r *RetrievalRecorder) AddSweptChunks(workspaceID string, count int) {
	if count <= 0 {
		return
	}
	r.metrics.sweptChunks.WithLabelValues(r.service, workspaceID).Add(float64(count))
}
