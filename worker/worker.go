// Package worker implements the per-document pipeline driver: it drains
// the source queue, runs each document through a Pipeline, and emits the
// lifecycle events and forwarded results the Publisher and Indexer
// depend on.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
	"github.com/estuary/docpipe/messenger"
	"github.com/estuary/docpipe/metrics"
	"github.com/estuary/docpipe/ops"
	"github.com/estuary/docpipe/pipeline"
	"github.com/estuary/docpipe/retry"
)

// Options configures a Worker.
type Options struct {
	// MaxRetries, if > 0, enables retry tracking: a document whose retry
	// count exceeds MaxRetries (i.e. this is its MaxRetries+1'th
	// delivery) is dead-lettered instead of processed.
	MaxRetries int
	// LogInterval controls how often Worker.Run logs its processing rate
	// and the number of documents processed since the previous progress
	// log; no cumulative count is logged. Zero disables periodic logging.
	LogInterval time.Duration
}

// Worker drains one pipeline's source queue through a Pipeline instance
// it owns exclusively.
type Worker struct {
	pipelineName string
	messenger    messenger.WorkerMessenger
	pipeline     *pipeline.Pipeline
	retryCounter retry.Counter
	opts         Options
	publisher    ops.Publisher

	processedSinceLog int
	lastLog           time.Time
}

// New returns a Worker for pipelineName, polling m and driving p. A nil
// retryCounter disables retry tracking regardless of Options.MaxRetries.
func New(pipelineName string, m messenger.WorkerMessenger, p *pipeline.Pipeline, retryCounter retry.Counter, opts Options, publisher ops.Publisher) *Worker {
	return &Worker{
		pipelineName: pipelineName,
		messenger:    m,
		pipeline:     p,
		retryCounter: retryCounter,
		opts:         opts,
		publisher:    publisher,
	}
}

// Run runs until ctx is cancelled or the source queue signals end
// (PollDocToProcess returning a non-cancellation error), or until a stage
// error crashes the Worker (by design: the run continues via other
// Worker instances; this one has crashed).
func (w *Worker) Run(ctx context.Context) error {
	if err := w.pipeline.Start(); err != nil {
		return err
	}
	defer w.pipeline.Stop()

	w.lastLog = time.Now()

	for {
		if err := w.runOne(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// RunN runs exactly n poll cycles, for deterministic tests. An idle poll
// (no document available) still counts as one cycle.
func (w *Worker) RunN(ctx context.Context, n int) error {
	if err := w.pipeline.Start(); err != nil {
		return err
	}
	defer w.pipeline.Stop()

	for i := 0; i < n; i++ {
		if err := w.runOne(ctx); err != nil {
			return err
		}
	}
	return nil
}

// errStageFailed signals a crash-worthy Pipeline failure; Run treats it
// as fatal, per the documented choice to terminate a Worker on any stage
// error rather than risk a poison-document loop silently continuing.
var errStageFailed = errors.New("worker: pipeline stage failed")

func (w *Worker) runOne(ctx context.Context) error {
	doc, err := w.messenger.PollDocToProcess(ctx)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	if w.opts.MaxRetries > 0 && w.retryCounter != nil {
		exceeded, err := w.retryCounter.Add(doc, w.opts.MaxRetries)
		if err != nil {
			return err
		}
		if exceeded {
			return w.sendToDeadLetter(ctx, doc)
		}
	}

	children, procErr := w.pipeline.ProcessDocument(doc)
	if procErr != nil {
		if w.publisher != nil {
			ops.PublishLog(w.publisher, ops.LogLevelError, "pipeline stage failed, terminating worker", "error", procErr, "documentId", doc.ID())
		}
		_ = w.messenger.SendEvent(ctx, event.NewFail(doc.ID(), doc.RunID(), procErr.Error()))
		_ = w.messenger.CommitPendingDocOffsets(ctx)
		return errStageFailed
	}

	results := append([]*document.Document{doc}, children...)
	for _, r := range results {
		if r.ID() != doc.ID() {
			if err := w.messenger.SendEvent(ctx, event.NewCreate(r.ID(), r.RunID())); err != nil {
				return err
			}
		}
		if r.IsDropped() {
			if err := w.messenger.SendEvent(ctx, event.NewFinish(r.ID(), r.RunID())); err != nil {
				return err
			}
			continue
		}
		if err := w.messenger.SendCompleted(ctx, r); err != nil {
			return err
		}
	}

	if err := w.messenger.CommitPendingDocOffsets(ctx); err != nil {
		return err
	}
	if w.retryCounter != nil {
		if err := w.retryCounter.Remove(doc); err != nil {
			return err
		}
	}

	w.recordProcessed(doc)
	return nil
}

func (w *Worker) sendToDeadLetter(ctx context.Context, doc *document.Document) error {
	metrics.WorkerRetryExhausted.WithLabelValues(w.pipelineName).Inc()
	if err := w.messenger.SendFailed(ctx, doc); err != nil {
		return err
	}
	if err := w.messenger.SendEvent(ctx, event.NewFail(doc.ID(), doc.RunID(), event.SentToDLQMessage)); err != nil {
		return err
	}
	if err := w.messenger.CommitPendingDocOffsets(ctx); err != nil {
		return err
	}
	if w.retryCounter != nil {
		return w.retryCounter.Remove(doc)
	}
	return nil
}

func (w *Worker) recordProcessed(doc *document.Document) {
	metrics.WorkerDocsProcessed.WithLabelValues(w.pipelineName, "completed").Inc()
	w.processedSinceLog++

	if w.opts.LogInterval <= 0 || w.publisher == nil {
		return
	}
	if time.Since(w.lastLog) < w.opts.LogInterval {
		return
	}
	ops.PublishLog(w.publisher, ops.LogLevelInfo, "worker progress",
		"documentsProcessed", w.processedSinceLog,
		"ratePerSecond", float64(w.processedSinceLog)/time.Since(w.lastLog).Seconds())
	w.processedSinceLog = 0
	w.lastLog = time.Now()
}
