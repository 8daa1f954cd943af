package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	spansNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spanengine_spans_normalized_total",
			Help: "Wire spans converted to canonical spans, by detected convention",
		},
		[]string{"convention"},
	)

	contentResolveFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spanengine_content_resolve_failures_total",
			Help: "Multimodal prompt fragments kept as raw text because resolution failed",
		},
	)

	spansPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spanengine_spans_persisted_total",
			Help: "Canonical spans written to storage, by span type",
		},
		[]string{"span_type"},
	)

	spansRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spanengine_spans_rejected_total",
			Help: "Spans dropped before storage, by reason",
		},
		[]string{"reason"},
	)

	runsAssembled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spanengine_runs_assembled_total",
			Help: "Workflow runs turned into span hierarchies",
		},
	)
)

// RecordSpanNormalized counts a wire span conversion
func RecordSpanNormalized(convention string) {
	spansNormalized.WithLabelValues(convention).Inc()
}

// RecordContentResolveFailure counts a fragment that fell back to raw text
func RecordContentResolveFailure() {
	contentResolveFailures.Inc()
}

// RecordSpanPersisted counts a stored span
func RecordSpanPersisted(spanType string) {
	spansPersisted.WithLabelValues(spanType).Inc()
}

// RecordSpanRejected counts a span that could not be stored
func RecordSpanRejected(reason string) {
	spansRejected.WithLabelValues(reason).Inc()
}

// RecordRunAssembled counts a workflow run hierarchy
func RecordRunAssembled() {
	runsAssembled.Inc()
}
