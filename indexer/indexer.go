// Package indexer implements the batching document-shipping component: it
// polls completed documents, batches them by size or timeout, submits
// batches to a Sink, and emits per-document FINISH or FAIL events
// reporting the outcome.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
	"github.com/estuary/docpipe/messenger"
	"github.com/estuary/docpipe/metrics"
	"github.com/estuary/docpipe/ops"
)

// Options configures an Indexer.
type Options struct {
	BatchSize    int
	BatchTimeout time.Duration
	// VersioningEnabled causes each Record to carry a locally-assigned
	// monotonic version, letting a Sink reject out-of-order overwrites.
	VersioningEnabled bool
	// RoutingField, if set, is read from each document and passed as
	// the Record's RoutingKey when present.
	RoutingField string
}

// Indexer drives one pipeline's batch-and-ship loop.
type Indexer struct {
	pipeline  string
	messenger messenger.IndexerMessenger
	sink      Sink
	batcher   *Batcher
	opts      Options
	publisher ops.Publisher

	nextVersion int64
}

// New returns an Indexer for pipeline, polling m and shipping batches to
// sink.
func New(pipeline string, m messenger.IndexerMessenger, sink Sink, opts Options, publisher ops.Publisher) *Indexer {
	return &Indexer{
		pipeline:  pipeline,
		messenger: m,
		sink:      sink,
		batcher:   NewBatcher(opts.BatchSize, opts.BatchTimeout),
		opts:      opts,
		publisher: publisher,
	}
}

// Run polls and ships batches until ctx is cancelled, at which point it
// flushes any partial batch before returning.
func (idx *Indexer) Run(ctx context.Context) error {
	if err := idx.sink.ValidateConnection(ctx); err != nil {
		return fmt.Errorf("indexer: %s: %w", idx.pipeline, err)
	}

	for {
		doc, err := idx.messenger.PollCompleted(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if batch := idx.batcher.Flush(); len(batch) > 0 {
					idx.shipBatch(context.Background(), batch)
				}
				return nil
			}
			return fmt.Errorf("indexer: %s: polling: %w", idx.pipeline, err)
		}

		if batch := idx.batcher.Add(doc); len(batch) > 0 {
			idx.shipBatch(ctx, batch)
		}
	}
}

func (idx *Indexer) toRecord(doc *document.Document) Record {
	rec := Record{Doc: doc}
	if idx.opts.VersioningEnabled {
		idx.nextVersion++
		rec.Version = idx.nextVersion
	}
	if idx.opts.RoutingField != "" && doc.HasNonNull(idx.opts.RoutingField) {
		if v, err := doc.GetString(idx.opts.RoutingField); err == nil {
			rec.RoutingKey = v
		}
	}
	return rec
}

func (idx *Indexer) shipBatch(ctx context.Context, docs []*document.Document) {
	records := make([]Record, len(docs))
	for i, d := range docs {
		records[i] = idx.toRecord(d)
	}

	metrics.IndexerBatchSize.WithLabelValues(idx.pipeline).Observe(float64(len(docs)))

	result, err := idx.sink.Submit(ctx, records)
	if err != nil {
		metrics.IndexerBatchesSubmitted.WithLabelValues(idx.pipeline, "transport-failure").Inc()
		if idx.publisher != nil {
			ops.PublishLog(idx.publisher, ops.LogLevelError, "indexer batch submission failed", "error", err, "batchSize", len(docs))
		}
		for _, d := range docs {
			idx.emit(ctx, event.NewFail(d.ID(), d.RunID(), err.Error()))
		}
		return
	}

	failed := make(map[string]error, len(result.Failed))
	for _, f := range result.Failed {
		failed[f.Record.Doc.ID()] = f.Err
	}

	if len(failed) > 0 {
		metrics.IndexerBatchesSubmitted.WithLabelValues(idx.pipeline, "partial-failure").Inc()
		if idx.publisher != nil {
			ops.PublishLog(idx.publisher, ops.LogLevelError, "indexer batch had per-document failures",
				"failedCount", len(failed), "batchSize", len(docs), "firstError", result.Failed[0].Err)
		}
	} else {
		metrics.IndexerBatchesSubmitted.WithLabelValues(idx.pipeline, "success").Inc()
	}

	for _, d := range docs {
		if err, ok := failed[d.ID()]; ok {
			idx.emit(ctx, event.NewFail(d.ID(), d.RunID(), err.Error()))
		} else {
			idx.emit(ctx, event.NewFinish(d.ID(), d.RunID()))
		}
	}
}

func (idx *Indexer) emit(ctx context.Context, evt event.Event) {
	if err := idx.messenger.SendEvent(ctx, evt); err != nil && idx.publisher != nil {
		ops.PublishLog(idx.publisher, ops.LogLevelError, "indexer failed to emit event", "error", err, "documentId", evt.DocumentID)
	}
}
