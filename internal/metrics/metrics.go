// Package metrics provides Prometheus metrics for the verification engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "skillverify"

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	VerificationsTotal  prometheus.Counter
	FallbackVerdicts    prometheus.Counter
	DegradedRetrievals  prometheus.Counter
	EmbeddingsGenerated prometheus.Counter
	EmbeddingFailures   prometheus.Counter
	DocumentsIngested   prometheus.Counter
}

// New registers the service collectors on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VerificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Number of step verifications processed.",
		}),
		FallbackVerdicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_verdicts_total",
			Help:      "Number of verifications answered with the deterministic fallback verdict.",
		}),
		DegradedRetrievals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_retrievals_total",
			Help:      "Number of retrievals that fell back to the static corpus after a vector query failure.",
		}),
		EmbeddingsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_generated_total",
			Help:      "Number of chunk embeddings generated.",
		}),
		EmbeddingFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Number of documents whose embedding pass failed.",
		}),
		DocumentsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Number of records accepted during bulk ingestion.",
		}),
	}
}

// NewDefault registers on the global default registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
