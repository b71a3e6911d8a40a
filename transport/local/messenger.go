package local

import (
	"context"
	"time"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
	"github.com/estuary/docpipe/messenger"
)

// idlePollTimeout bounds PollDocToProcess and PollCompleted: when no
// document arrives within it, the poll returns (nil, nil).
const idlePollTimeout = 100 * time.Millisecond

// WorkerMessenger is an in-memory messenger.WorkerMessenger bound to one
// pipeline on a Network.
type WorkerMessenger struct {
	net      *Network
	pipeline string
}

var _ messenger.WorkerMessenger = (*WorkerMessenger)(nil)

// NewWorkerMessenger returns a WorkerMessenger bound to pipeline on net.
func NewWorkerMessenger(net *Network, pipeline string) *WorkerMessenger {
	return &WorkerMessenger{net: net, pipeline: pipeline}
}

func (m *WorkerMessenger) PollDocToProcess(ctx context.Context) (*document.Document, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case doc, ok := <-m.net.sourceCh(m.pipeline):
		if !ok {
			return nil, nil
		}
		return doc, nil
	case <-time.After(idlePollTimeout):
		return nil, nil
	}
}

func (m *WorkerMessenger) SendCompleted(ctx context.Context, doc *document.Document) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.net.completedCh(m.pipeline) <- doc:
		return nil
	}
}

func (m *WorkerMessenger) SendEvent(ctx context.Context, evt event.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.net.eventsCh(m.pipeline, evt.RunID) <- evt:
		return nil
	}
}

func (m *WorkerMessenger) SendFailed(ctx context.Context, doc *document.Document) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.net.deadLetterCh(m.pipeline) <- doc:
		return nil
	}
}

// CommitPendingDocOffsets is a no-op for the in-memory loopback: there is
// no at-least-once redelivery state to fence.
func (m *WorkerMessenger) CommitPendingDocOffsets(ctx context.Context) error { return nil }

func (m *WorkerMessenger) Close() error { return nil }

// IndexerMessenger is an in-memory messenger.IndexerMessenger bound to one
// pipeline on a Network.
type IndexerMessenger struct {
	net      *Network
	pipeline string
}

var _ messenger.IndexerMessenger = (*IndexerMessenger)(nil)

// NewIndexerMessenger returns an IndexerMessenger bound to pipeline on net.
func NewIndexerMessenger(net *Network, pipeline string) *IndexerMessenger {
	return &IndexerMessenger{net: net, pipeline: pipeline}
}

func (m *IndexerMessenger) PollCompleted(ctx context.Context) (*document.Document, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case doc, ok := <-m.net.completedCh(m.pipeline):
		if !ok {
			return nil, nil
		}
		return doc, nil
	case <-time.After(idlePollTimeout):
		return nil, nil
	}
}

func (m *IndexerMessenger) SendEvent(ctx context.Context, evt event.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.net.eventsCh(m.pipeline, evt.RunID) <- evt:
		return nil
	}
}

func (m *IndexerMessenger) Close() error { return nil }

// PublisherMessenger is an in-memory messenger.PublisherMessenger bound to
// one pipeline and run on a Network.
type PublisherMessenger struct {
	net      *Network
	pipeline string
	runID    string
}

var _ messenger.PublisherMessenger = (*PublisherMessenger)(nil)

// NewPublisherMessenger returns a PublisherMessenger for net. Pipeline and
// run are bound via Initialize, per the interface contract.
func NewPublisherMessenger(net *Network) *PublisherMessenger {
	return &PublisherMessenger{net: net}
}

func (m *PublisherMessenger) Initialize(ctx context.Context, runID, pipelineName string) error {
	m.runID = runID
	m.pipeline = pipelineName
	// Eagerly create the events channel so PollEvent never races the
	// first SendEvent from a Worker that starts before the Publisher's
	// first poll.
	m.net.eventsCh(m.pipeline, m.runID)
	return nil
}

func (m *PublisherMessenger) SendForProcessing(ctx context.Context, doc *document.Document) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.net.sourceCh(m.pipeline) <- doc:
		return nil
	}
}

func (m *PublisherMessenger) PollEvent(ctx context.Context) (event.Event, bool, error) {
	select {
	case <-ctx.Done():
		return event.Event{}, false, ctx.Err()
	case evt := <-m.net.eventsCh(m.pipeline, m.runID):
		return evt, true, nil
	}
}

func (m *PublisherMessenger) Close() error { return nil }
