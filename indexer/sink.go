package indexer

import (
	"context"

	"github.com/estuary/docpipe/document"
)

// Record is one document submitted to a Sink, carrying the optional
// versioning and routing metadata a Sink implementation may use.
type Record struct {
	Doc *document.Document
	// Version is an external monotonic counter a Sink may use to reject
	// out-of-order overwrites, when versioning is enabled.
	Version int64
	// RoutingKey is the configured routing field's value, when routing
	// is enabled and the document carries that field.
	RoutingKey string
}

// Failure pairs a Record with the error the Sink reported for it.
type Failure struct {
	Record Record
	Err    error
}

// SubmitResult reports per-document outcomes for a batch accepted by the
// sink's transport (i.e. the call itself did not fail outright).
type SubmitResult struct {
	Failed []Failure
}

// Sink is the external destination an Indexer ships completed document
// batches to.
type Sink interface {
	// ValidateConnection must succeed before an Indexer begins
	// processing; repeated failures are terminal.
	ValidateConnection(ctx context.Context) error
	// Submit ships a batch in a single bulk call. A returned error means
	// the whole batch failed at the transport level (every document
	// should be FAILed by the caller). A nil error with a non-empty
	// SubmitResult.Failed means a partial, per-document failure.
	Submit(ctx context.Context, batch []Record) (SubmitResult, error)
	Close() error
}
