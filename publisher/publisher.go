// Package publisher implements the run coordinator: it publishes a run's
// source documents and consumes the Worker/Indexer event stream to decide
// when every document the run produced has reached a terminal state.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
	"github.com/estuary/docpipe/messenger"
	"github.com/estuary/docpipe/metrics"
	"github.com/estuary/docpipe/ops"
)

// DefaultPollTimeout bounds a single PollEvent call in Run's loop, so the
// run-termination conditions are re-checked periodically rather than
// only when an event arrives.
const DefaultPollTimeout = 200 * time.Millisecond

// Options configures a Publisher.
type Options struct {
	// PollTimeout bounds each Run poll cycle. Zero uses DefaultPollTimeout.
	PollTimeout time.Duration
}

// Publisher owns one run's lifecycle: it stamps and forwards source
// documents, and tracks the pending multiset of document IDs expected to
// reach a terminal state (FINISH or FAIL) before the run can be declared
// reconciled.
type Publisher struct {
	pipelineName string
	messenger    messenger.PublisherMessenger
	opts         Options
	publisher    ops.Publisher

	mu            sync.Mutex
	runID         string
	pending       map[string]int
	hasErrors     bool
	numPublished  int
	numSucceeded  int
	numFailed     int
	connectorDone bool
}

// New returns a Publisher for pipelineName. publisher may be nil to
// disable operational logging.
func New(pipelineName string, m messenger.PublisherMessenger, opts Options, publisher ops.Publisher) *Publisher {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	return &Publisher{
		pipelineName: pipelineName,
		messenger:    m,
		opts:         opts,
		publisher:    publisher,
		pending:      make(map[string]int),
	}
}

// Initialize mints a new run ID and prepares transport resources for it.
// It returns the run ID so callers (a Connector, a CLI entry point) can
// stamp it elsewhere.
func (p *Publisher) Initialize(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	if err := p.messenger.Initialize(ctx, runID, p.pipelineName); err != nil {
		return "", err
	}

	p.mu.Lock()
	p.runID = runID
	p.mu.Unlock()

	metrics.PublisherRunsActive.WithLabelValues(p.pipelineName).Inc()
	return runID, nil
}

// RunID returns the run ID assigned by Initialize, or "" if Initialize
// has not been called.
func (p *Publisher) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

// Publish stamps doc with this run's ID, sends it for processing, and
// records one expected terminal event for doc's ID in the pending
// multiset.
func (p *Publisher) Publish(ctx context.Context, doc *document.Document) error {
	p.mu.Lock()
	runID := p.runID
	p.mu.Unlock()

	if err := doc.SetRunID(runID); err != nil {
		return err
	}
	if err := p.messenger.SendForProcessing(ctx, doc); err != nil {
		return err
	}

	p.mu.Lock()
	p.pending[doc.ID()]++
	p.numPublished++
	p.mu.Unlock()

	p.reportPending()
	return nil
}

// MarkConnectorDone records that the run's Connector has exited and will
// publish no further documents. It is one of the three run-termination
// conditions Run checks.
func (p *Publisher) MarkConnectorDone() {
	p.mu.Lock()
	p.connectorDone = true
	p.mu.Unlock()
}

// HandleEvent applies one lifecycle Event to the pending multiset.
func (p *Publisher) HandleEvent(evt event.Event) {
	p.mu.Lock()
	switch evt.Kind {
	case event.CREATE:
		p.pending[evt.DocumentID]++
	case event.FINISH:
		p.pending[evt.DocumentID]--
		p.numSucceeded++
	case event.FAIL:
		p.pending[evt.DocumentID]--
		p.numFailed++
		p.hasErrors = true
	}
	p.mu.Unlock()

	p.reportPending()
}

// isReconciled reports whether every pending counter has returned to (or
// never left) zero.
func (p *Publisher) isReconciled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, count := range p.pending {
		if count > 0 {
			return false
		}
	}
	return true
}

// HasErrors reports whether any document in the run received a FAIL
// event.
func (p *Publisher) HasErrors() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasErrors
}

// Counts returns the run's published/succeeded/failed document counts.
func (p *Publisher) Counts() (published, succeeded, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numPublished, p.numSucceeded, p.numFailed
}

// Run polls the run's event stream until the run is reconciled: the
// Connector has exited (MarkConnectorDone), isReconciled() holds, and a
// poll cycle finds no further event waiting in transport. All three are
// required, since pending can transiently read zero between a Publish
// call and delivery of the corresponding CREATE.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pctx, cancel := context.WithTimeout(ctx, p.opts.PollTimeout)
		evt, ok, err := p.messenger.PollEvent(pctx)
		cancel()

		switch {
		case err != nil && errors.Is(err, context.DeadlineExceeded):
			if p.connectorExited() && p.isReconciled() {
				return nil
			}
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		case ok:
			p.HandleEvent(evt)
		default:
			if p.connectorExited() && p.isReconciled() {
				return nil
			}
		}
	}
}

func (p *Publisher) connectorExited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectorDone
}

func (p *Publisher) reportPending() {
	p.mu.Lock()
	var total int
	for _, count := range p.pending {
		if count > 0 {
			total += count
		}
	}
	runID := p.runID
	p.mu.Unlock()
	metrics.PublisherDocsPending.WithLabelValues(p.pipelineName, runID).Set(float64(total))
}

// Close releases the Publisher's transport resources and logs the run's
// final outcome.
func (p *Publisher) Close() error {
	metrics.PublisherRunsActive.WithLabelValues(p.pipelineName).Dec()

	published, succeeded, failed := p.Counts()
	if p.publisher != nil {
		ops.PublishLog(p.publisher, ops.LogLevelInfo, "run reconciled",
			"runId", p.RunID(), "published", published, "succeeded", succeeded, "failed", failed)
	}

	return p.messenger.Close()
}
