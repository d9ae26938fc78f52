package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	TurnsTotal  *prometheus.CounterVec
	TurnLatency prometheus.Histogram
	TurnErrors  *prometheus.CounterVec

	SearchRequests *prometheus.CounterVec
	RAGRetrievals  prometheus.Counter
	RAGChunksUsed  prometheus.Histogram

	FactsExtracted prometheus.Counter
	FactsDeduped   prometheus.Counter

	DocumentsIngested prometheus.Counter
	IngestLatency     prometheus.Histogram
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		TurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conversa_turns_total",
			Help: "Total number of chat turns by outcome",
		}, []string{"outcome"}), // "ok" or "error"

		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "conversa_turn_duration_seconds",
			Help:    "End-to-end turn latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}, // up to 2 minutes for LLM responses
		}),

		TurnErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conversa_turn_errors_total",
			Help: "Total number of turn errors by stage",
		}, []string{"stage"}),

		SearchRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conversa_search_requests_total",
			Help: "Total number of web searches by result",
		}, []string{"result"}), // "ok", "error", "cached"

		RAGRetrievals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conversa_rag_retrievals_total",
			Help: "Total number of document retrieval runs",
		}),

		RAGChunksUsed: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "conversa_rag_chunks_used",
			Help:    "Number of chunks retained per retrieval",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}),

		FactsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conversa_facts_extracted_total",
			Help: "Total number of facts inserted by extraction",
		}),

		FactsDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conversa_facts_deduped_total",
			Help: "Total number of candidate facts skipped as duplicates",
		}),

		DocumentsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conversa_documents_ingested_total",
			Help: "Total number of documents ingested",
		}),

		IngestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "conversa_ingest_duration_seconds",
			Help:    "Document ingestion latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordTurn records a completed turn with its outcome and latency
func (m *Metrics) RecordTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnLatency.Observe(seconds)
}

// RecordTurnError records a failure in a named orchestration stage
func (m *Metrics) RecordTurnError(stage string) {
	if m == nil {
		return
	}
	m.TurnErrors.WithLabelValues(stage).Inc()
}

// RecordSearch records one search attempt outcome
func (m *Metrics) RecordSearch(result string) {
	if m == nil {
		return
	}
	m.SearchRequests.WithLabelValues(result).Inc()
}

// RecordRetrieval records a retrieval run and the chunks it kept
func (m *Metrics) RecordRetrieval(chunks int) {
	if m == nil {
		return
	}
	m.RAGRetrievals.Inc()
	m.RAGChunksUsed.Observe(float64(chunks))
}

// RecordExtraction records extraction results
func (m *Metrics) RecordExtraction(inserted, skipped int) {
	if m == nil {
		return
	}
	m.FactsExtracted.Add(float64(inserted))
	m.FactsDeduped.Add(float64(skipped))
}

// RecordIngest records a completed document ingestion
func (m *Metrics) RecordIngest(seconds float64) {
	if m == nil {
		return
	}
	m.DocumentsIngested.Inc()
	m.IngestLatency.Observe(seconds)
}
