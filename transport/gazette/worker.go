package gazette

import (
	"context"

	pb "go.gazette.dev/core/broker/protocol"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
	"github.com/estuary/docpipe/messenger"
)

// WorkerMessenger is a Gazette-journal-backed messenger.WorkerMessenger.
type WorkerMessenger struct {
	rjc          pb.RoutedJournalClient
	pipelineName string
	topics       messenger.Topics

	source *tailer
}

var _ messenger.WorkerMessenger = (*WorkerMessenger)(nil)

// NewWorkerMessenger returns a WorkerMessenger reading pipelineName's
// source journal and writing its completed and dead-letter journals.
func NewWorkerMessenger(rjc pb.RoutedJournalClient, pipelineName string) *WorkerMessenger {
	topics := messenger.NewTopics(pipelineName, "")
	return &WorkerMessenger{
		rjc:          rjc,
		pipelineName: pipelineName,
		topics:       topics,
		source:       newTailer(rjc, topics.Source),
	}
}

func (m *WorkerMessenger) PollDocToProcess(ctx context.Context) (*document.Document, error) {
	line, err := m.source.nextLine(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return document.NewFromJSON(line)
}

func (m *WorkerMessenger) SendCompleted(ctx context.Context, doc *document.Document) error {
	return appendDocument(ctx, m.rjc, m.topics.Completed, doc)
}

func (m *WorkerMessenger) SendEvent(ctx context.Context, evt event.Event) error {
	journal := messenger.NewTopics(m.pipelineName, evt.RunID).Events
	return appendEvent(ctx, m.rjc, journal, evt)
}

func (m *WorkerMessenger) SendFailed(ctx context.Context, doc *document.Document) error {
	return appendDocument(ctx, m.rjc, m.topics.DeadLetter, doc)
}

// CommitPendingDocOffsets is a no-op: Gazette reads are offset-addressed
// rather than consumer-group-committed, so there is nothing to fence.
func (m *WorkerMessenger) CommitPendingDocOffsets(ctx context.Context) error { return nil }

func (m *WorkerMessenger) Close() error { return nil }
