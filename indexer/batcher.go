package indexer

import (
	"time"

	"github.com/estuary/docpipe/document"
)

// DefaultBatchSize and DefaultBatchTimeout are the Indexer's batching
// defaults.
const (
	DefaultBatchSize    = 100
	DefaultBatchTimeout = 100 * time.Millisecond
)

// Batcher accumulates completed documents into size- or timeout-bounded
// batches. It is not safe for concurrent use; an Indexer drives it from a
// single goroutine.
type Batcher struct {
	batchSize    int
	batchTimeout time.Duration

	current    []*document.Document
	batchStart time.Time
}

// NewBatcher returns a Batcher with the given limits. A batchSize <= 0
// defaults to DefaultBatchSize; a batchTimeout <= 0 defaults to
// DefaultBatchTimeout.
func NewBatcher(batchSize int, batchTimeout time.Duration) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}
	return &Batcher{batchSize: batchSize, batchTimeout: batchTimeout}
}

// Add appends doc to the current batch and returns it (resetting the
// Batcher) once it reaches batchSize; otherwise it returns nil. Add(nil)
// represents an idle poll: if the current batch is non-empty and has
// been open at least batchTimeout, it is returned and reset; this is how
// idle polling still makes progress on a partial batch.
func (b *Batcher) Add(doc *document.Document) []*document.Document {
	if doc == nil {
		if len(b.current) > 0 && time.Since(b.batchStart) >= b.batchTimeout {
			return b.reset()
		}
		return nil
	}

	if len(b.current) == 0 {
		b.batchStart = time.Now()
	}
	b.current = append(b.current, doc)
	if len(b.current) >= b.batchSize {
		return b.reset()
	}
	return nil
}

// Flush unconditionally returns and clears the current batch, for use at
// shutdown.
func (b *Batcher) Flush() []*document.Document {
	return b.reset()
}

func (b *Batcher) reset() []*document.Document {
	batch := b.current
	b.current = nil
	return batch
}
