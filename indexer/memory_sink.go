package indexer

import (
	"context"
	"sync"
)

// MemorySink is an in-process Sink for tests and single-process
// deployments: it simply accumulates every submitted Record.
type MemorySink struct {
	mu      sync.Mutex
	records []Record

	// FailDocIDs, if set, causes Submit to report those document IDs as
	// per-document Failures rather than accepting them, for exercising
	// the partial-failure path in tests.
	FailDocIDs map[string]error
}

var _ Sink = (*MemorySink)(nil)

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) ValidateConnection(ctx context.Context) error { return nil }

func (s *MemorySink) Submit(ctx context.Context, batch []Record) (SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result SubmitResult
	for _, rec := range batch {
		if err, fail := s.FailDocIDs[rec.Doc.ID()]; fail {
			result.Failed = append(result.Failed, Failure{Record: rec, Err: err})
			continue
		}
		s.records = append(s.records, rec)
	}
	return result, nil
}

// Records returns a copy of every Record accepted so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *MemorySink) Close() error { return nil }
