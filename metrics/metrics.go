// Package metrics declares the Prometheus collectors published by a
// Worker, Indexer, and Publisher process, following the promauto
// package-level-var registration style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerDocsProcessed counts documents a Worker has finished processing,
// labelled by outcome. The Worker records every source document whose
// pipeline run succeeded under "completed", dropped ones included; stage
// failures are not counted here, and dead-lettered documents are counted
// by WorkerRetryExhausted instead.
var WorkerDocsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "docpipe_worker_documents_processed_total",
	Help: "counter of documents processed by a Worker, by outcome",
}, []string{"pipeline", "outcome"})

// WorkerDocProcessDuration observes per-document pipeline processing
// latency.
var WorkerDocProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "docpipe_worker_document_process_seconds",
	Help: "histogram of per-document pipeline processing duration",
}, []string{"pipeline"})

// WorkerRetryExhausted counts documents routed to the dead-letter
// destination because their retry count was exhausted.
var WorkerRetryExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "docpipe_worker_retry_exhausted_total",
	Help: "counter of documents dead-lettered due to retry exhaustion",
}, []string{"pipeline"})

// IndexerBatchSize observes the number of documents per Indexer batch.
var IndexerBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "docpipe_indexer_batch_size",
	Help:    "histogram of documents per Indexer batch",
	Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
}, []string{"pipeline"})

// IndexerBatchesSubmitted counts batches submitted to a sink, by outcome
// ("success", "partial-failure", "transport-failure").
var IndexerBatchesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "docpipe_indexer_batches_submitted_total",
	Help: "counter of batches submitted to an Indexer sink, by outcome",
}, []string{"pipeline", "outcome"})

// PublisherRunsActive gauges the number of runs a Publisher is currently
// reconciling.
var PublisherRunsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "docpipe_publisher_runs_active",
	Help: "gauge of runs currently being reconciled by a Publisher",
}, []string{"pipeline"})

// PublisherDocsPending gauges the current size of a run's pending
// multiset.
var PublisherDocsPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "docpipe_publisher_documents_pending",
	Help: "gauge of documents pending reconciliation in a run",
}, []string{"pipeline", "run_id"})
