package retry

import (
	"sync"

	"github.com/estuary/docpipe/document"
)

// MemoryCounter is an in-memory, mutex-guarded Counter. It is the
// default for single-process deployments and for tests; counts do not
// survive a process restart.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

var _ Counter = (*MemoryCounter)(nil)

// NewMemoryCounter returns an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

// Add increments doc's count and reports whether it now exceeds
// maxRetries. A document delivered maxRetries+1 times is the first to
// report true.
func (c *MemoryCounter) Add(doc *document.Document, maxRetries int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[doc.ID()]++
	return c.counts[doc.ID()] > maxRetries, nil
}

// Remove clears doc's count.
func (c *MemoryCounter) Remove(doc *document.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, doc.ID())
	return nil
}

// Close is a no-op; MemoryCounter holds no external resources.
func (c *MemoryCounter) Close() error { return nil }
