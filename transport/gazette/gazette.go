// Package gazette implements a Messenger binding backed by real Gazette
// broker journals, for deployments that span more than one process.
// Documents and Events are newline-delimited JSON records appended to and
// read from journals named by messenger.NewTopics.
package gazette

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"go.gazette.dev/core/broker/client"
	pb "go.gazette.dev/core/broker/protocol"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
)

// tailer is a lazily-constructed, blocking tail read of a single journal.
// Gazette reads a contiguous range of a journal's content; tailer wraps
// one as a line source and remembers its offset so a dropped Reader can
// be reopened from where it left off.
type tailer struct {
	rjc     pb.RoutedJournalClient
	journal pb.Journal
	offset  pb.Offset

	br *bufio.Reader
}

// newTailer returns a tailer over journal, eagerly opening its Reader at
// the journal's current write head (pass an explicit non-negative offset
// afterward to instead resume from a checkpoint) so that a message sent
// immediately after construction is never missed by a Reader opened
// lazily, later, at a write head that has since moved on.
func newTailer(rjc pb.RoutedJournalClient, journal string) *tailer {
	return newTailerAt(rjc, journal, -1)
}

// newTailerAt is newTailer with an explicit starting offset, for journals
// (like a run's events journal) where zero is already the correct,
// race-free starting point and tailing "now" would be wrong.
func newTailerAt(rjc pb.RoutedJournalClient, journal string, offset pb.Offset) *tailer {
	t := &tailer{rjc: rjc, journal: pb.Journal(journal), offset: offset}
	t.open(context.Background())
	return t
}

func (t *tailer) open(ctx context.Context) {
	r := client.NewReader(ctx, t.rjc, pb.ReadRequest{
		Journal: t.journal,
		Offset:  t.offset,
		Block:   true,
	})
	t.br = bufio.NewReader(r)
}

// nextLine blocks, cancellable via ctx, for the next newline-terminated
// record appended to the journal, returning it with the trailing newline
// stripped.
func (t *tailer) nextLine(ctx context.Context) ([]byte, error) {
	if t.br == nil {
		t.open(ctx)
	}

	line, err := t.br.ReadBytes('\n')
	if err != nil {
		// Force a fresh Reader (and retry from our last known offset) on
		// the next call, rather than replaying this one's error forever.
		t.br = nil
		return nil, fmt.Errorf("gazette: reading %s: %w", t.journal, err)
	}
	t.offset += pb.Offset(len(line))
	return line[:len(line)-1], nil
}

// appendLine appends one newline-terminated record to journal and waits
// for the append to commit.
func appendLine(ctx context.Context, rjc pb.RoutedJournalClient, journal string, payload []byte) error {
	app := client.NewAppender(ctx, rjc, pb.AppendRequest{Journal: pb.Journal(journal)})
	if _, err := app.Write(payload); err != nil {
		return fmt.Errorf("gazette: appending to %s: %w", journal, err)
	}
	if _, err := app.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("gazette: appending to %s: %w", journal, err)
	}
	if err := app.Close(); err != nil {
		return fmt.Errorf("gazette: committing append to %s: %w", journal, err)
	}
	return nil
}

func appendDocument(ctx context.Context, rjc pb.RoutedJournalClient, journal string, doc *document.Document) error {
	raw, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("gazette: marshaling document %q: %w", doc.ID(), err)
	}
	return appendLine(ctx, rjc, journal, raw)
}

func appendEvent(ctx context.Context, rjc pb.RoutedJournalClient, journal string, evt event.Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("gazette: marshaling event for %q: %w", evt.DocumentID, err)
	}
	return appendLine(ctx, rjc, journal, raw)
}
