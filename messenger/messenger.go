// Package messenger defines the abstract transport capabilities that the
// Worker, Indexer, and Publisher use to exchange documents and events.
// Concrete bindings live in transport/local (an in-memory loopback used by
// tests and single-process deployments) and transport/gazette (a
// broker-journal-backed binding). The transport is assumed to provide
// at-least-once delivery and per-partition ordering; no capability here
// requires cross-partition ordering.
package messenger

import (
	"context"
	"fmt"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
)

// WorkerMessenger is the transport surface a Worker polls and publishes
// through.
type WorkerMessenger interface {
	// PollDocToProcess blocks (with an implementation-defined timeout,
	// cancellable via ctx) for the next document to process. It returns
	// (nil, nil) if no document was available before the timeout.
	PollDocToProcess(ctx context.Context) (*document.Document, error)
	// SendCompleted forwards a successfully processed, non-dropped
	// document to the completed-document destination.
	SendCompleted(ctx context.Context, doc *document.Document) error
	// SendEvent publishes a lifecycle Event.
	SendEvent(ctx context.Context, evt event.Event) error
	// SendFailed routes a document to the dead-letter destination,
	// e.g. because its retry count was exhausted.
	SendFailed(ctx context.Context, doc *document.Document) error
	// CommitPendingDocOffsets commits transport offsets for documents
	// handled since the last commit.
	CommitPendingDocOffsets(ctx context.Context) error
	// Close releases transport resources. Must be called on every exit
	// path.
	Close() error
}

// IndexerMessenger is the transport surface an Indexer polls and
// publishes through.
type IndexerMessenger interface {
	// PollCompleted blocks (with timeout, cancellable via ctx) for the
	// next completed document. It returns (nil, nil) on an idle poll.
	PollCompleted(ctx context.Context) (*document.Document, error)
	// SendEvent publishes a lifecycle Event.
	SendEvent(ctx context.Context, evt event.Event) error
	Close() error
}

// PublisherMessenger is the transport surface a Publisher uses to publish
// source documents and to drain the run's event stream.
type PublisherMessenger interface {
	// Initialize prepares transport resources (e.g. topics) for runID
	// under the named pipeline.
	Initialize(ctx context.Context, runID, pipelineName string) error
	// SendForProcessing publishes a source document for the run.
	SendForProcessing(ctx context.Context, doc *document.Document) error
	// PollEvent blocks (with timeout, cancellable via ctx) for the next
	// Event of the run. It returns (Event{}, false, nil) on an idle poll.
	PollEvent(ctx context.Context) (event.Event, bool, error)
	Close() error
}

// Topics names the logical destinations a pipeline's transport bindings
// route through.
type Topics struct {
	Source     string // source-documents topic, per pipeline
	Completed  string // completed-documents topic, per pipeline
	Events     string // events topic, per pipeline, per run (keyed by run_id)
	DeadLetter string // optional dead-letter topic
}

// NewTopics derives the canonical topic names for a pipeline and run.
func NewTopics(pipelineName, runID string) Topics {
	return Topics{
		Source:     fmt.Sprintf("docpipe/%s/source", pipelineName),
		Completed:  fmt.Sprintf("docpipe/%s/completed", pipelineName),
		Events:     fmt.Sprintf("docpipe/%s/events/%s", pipelineName, runID),
		DeadLetter: fmt.Sprintf("docpipe/%s/dead-letter", pipelineName),
	}
}

// ErrClosed is returned by transport operations invoked after Close.
var ErrClosed = fmt.Errorf("messenger: transport is closed")
