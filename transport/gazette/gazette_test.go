package gazette_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.gazette.dev/core/brokertest"
	"go.gazette.dev/core/etcdtest"
	"go.gazette.dev/core/labels"
	pb "go.gazette.dev/core/broker/protocol"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
	gazettetransport "github.com/estuary/docpipe/transport/gazette"
)

func newTestBroker(t *testing.T) pb.RoutedJournalClient {
	t.Helper()
	etcd := etcdtest.TestClient()
	t.Cleanup(etcdtest.Cleanup)

	broker := brokertest.NewBroker(t, etcd, "local", "broker")
	brokertest.CreateJournals(t, broker,
		brokertest.Journal(pb.JournalSpec{
			Name:     "docpipe/pipe/source",
			LabelSet: pb.MustLabelSet(labels.ContentType, labels.ContentType_JSONLines),
		}),
		brokertest.Journal(pb.JournalSpec{
			Name:     "docpipe/pipe/completed",
			LabelSet: pb.MustLabelSet(labels.ContentType, labels.ContentType_JSONLines),
		}),
		brokertest.Journal(pb.JournalSpec{
			Name:     "docpipe/pipe/events/run-1",
			LabelSet: pb.MustLabelSet(labels.ContentType, labels.ContentType_JSONLines),
		}),
	)
	return broker.Client()
}

func TestWorkerMessengerRoundTripsDocumentThroughJournal(t *testing.T) {
	rjc := newTestBroker(t)
	w := gazettetransport.NewWorkerMessenger(rjc, "pipe")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub := gazettetransport.NewPublisherMessenger(rjc)
	require.NoError(t, pub.Initialize(ctx, "run-1", "pipe"))

	doc, err := document.NewWithRun("a", "run-1")
	require.NoError(t, err)
	require.NoError(t, pub.SendForProcessing(ctx, doc))

	got, err := w.PollDocToProcess(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", got.ID())
}

func TestWorkerMessengerSendEventReachesPublisherPoll(t *testing.T) {
	rjc := newTestBroker(t)
	w := gazettetransport.NewWorkerMessenger(rjc, "pipe")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub := gazettetransport.NewPublisherMessenger(rjc)
	require.NoError(t, pub.Initialize(ctx, "run-1", "pipe"))

	require.NoError(t, w.SendEvent(ctx, event.NewFinish("a", "run-1")))

	evt, ok, err := pub.PollEvent(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, event.FINISH, evt.Kind)
	require.Equal(t, "a", evt.DocumentID)
}
