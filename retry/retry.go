// Package retry implements the Worker's retry-count capability: a
// per-document counter that tells the Worker when a redelivered
// document has exceeded its retry budget and should be dead-lettered
// instead of processed again.
package retry

import "github.com/estuary/docpipe/document"

// Counter tracks per-document redelivery counts. It is the one
// process-wide resource shared between Workers in a pool, so
// implementations must serialize their own access.
type Counter interface {
	// Add increments doc's retry count and reports whether the count now
	// exceeds maxRetries.
	Add(doc *document.Document, maxRetries int) (bool, error)
	// Remove clears doc's retry count, e.g. after successful processing
	// or after the document has been dead-lettered.
	Remove(doc *document.Document) error
	// Close releases any resources held by the Counter.
	Close() error
}
