package gazette

import (
	"context"
	"encoding/json"
	"fmt"

	pb "go.gazette.dev/core/broker/protocol"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
	"github.com/estuary/docpipe/messenger"
)

// PublisherMessenger is a Gazette-journal-backed
// messenger.PublisherMessenger.
type PublisherMessenger struct {
	rjc           pb.RoutedJournalClient
	pipelineName  string
	sourceJournal string

	runID  string
	events *tailer
}

var _ messenger.PublisherMessenger = (*PublisherMessenger)(nil)

// NewPublisherMessenger returns a PublisherMessenger for rjc. Pipeline and
// run are bound via Initialize, per the interface contract.
func NewPublisherMessenger(rjc pb.RoutedJournalClient) *PublisherMessenger {
	return &PublisherMessenger{rjc: rjc}
}

func (m *PublisherMessenger) Initialize(ctx context.Context, runID, pipelineName string) error {
	m.runID = runID
	m.pipelineName = pipelineName

	topics := messenger.NewTopics(pipelineName, runID)
	m.sourceJournal = topics.Source
	// Each run owns a uniquely-named events journal, so reading from
	// offset zero is equivalent to tailing it from creation: there is no
	// prior content to skip, and no race against a Worker/Indexer that
	// starts sending events before the first PollEvent call.
	m.events = newTailerAt(m.rjc, topics.Events, 0)
	return nil
}

func (m *PublisherMessenger) SendForProcessing(ctx context.Context, doc *document.Document) error {
	return appendDocument(ctx, m.rjc, m.sourceJournal, doc)
}

func (m *PublisherMessenger) PollEvent(ctx context.Context) (event.Event, bool, error) {
	line, err := m.events.nextLine(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return event.Event{}, false, ctxErr
		}
		return event.Event{}, false, err
	}

	var evt event.Event
	if err := json.Unmarshal(line, &evt); err != nil {
		return event.Event{}, false, fmt.Errorf("gazette: decoding event: %w", err)
	}
	return evt, true, nil
}

func (m *PublisherMessenger) Close() error { return nil }
