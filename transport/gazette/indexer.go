package gazette

import (
	"context"

	pb "go.gazette.dev/core/broker/protocol"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
	"github.com/estuary/docpipe/messenger"
)

// IndexerMessenger is a Gazette-journal-backed messenger.IndexerMessenger.
type IndexerMessenger struct {
	rjc          pb.RoutedJournalClient
	pipelineName string

	completed *tailer
}

var _ messenger.IndexerMessenger = (*IndexerMessenger)(nil)

// NewIndexerMessenger returns an IndexerMessenger reading pipelineName's
// completed-document journal.
func NewIndexerMessenger(rjc pb.RoutedJournalClient, pipelineName string) *IndexerMessenger {
	topics := messenger.NewTopics(pipelineName, "")
	return &IndexerMessenger{
		rjc:          rjc,
		pipelineName: pipelineName,
		completed:    newTailer(rjc, topics.Completed),
	}
}

func (m *IndexerMessenger) PollCompleted(ctx context.Context) (*document.Document, error) {
	line, err := m.completed.nextLine(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return document.NewFromJSON(line)
}

func (m *IndexerMessenger) SendEvent(ctx context.Context, evt event.Event) error {
	journal := messenger.NewTopics(m.pipelineName, evt.RunID).Events
	return appendEvent(ctx, m.rjc, journal, evt)
}

func (m *IndexerMessenger) Close() error { return nil }
