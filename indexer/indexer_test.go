package indexer_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
	"github.com/estuary/docpipe/indexer"
	"github.com/estuary/docpipe/transport/local"
	"github.com/stretchr/testify/require"
)

func TestIndexerShipsFullBatchAndEmitsFinish(t *testing.T) {
	net := local.NewNetwork()
	idxMessenger := local.NewIndexerMessenger(net, "pipe")
	workerMessenger := local.NewWorkerMessenger(net, "pipe")
	sink := indexer.NewMemorySink()

	idx := indexer.New("pipe", idxMessenger, sink, indexer.Options{BatchSize: 2, BatchTimeout: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- idx.Run(ctx) }()

	docA, err := document.NewWithRun("a", "run-1")
	require.NoError(t, err)
	docB, err := document.NewWithRun("b", "run-1")
	require.NoError(t, err)
	require.NoError(t, workerMessenger.SendCompleted(ctx, docA))
	require.NoError(t, workerMessenger.SendCompleted(ctx, docB))

	pub := local.NewPublisherMessenger(net)
	require.NoError(t, pub.Initialize(ctx, "run-1", "pipe"))

	var events []event.Event
	for i := 0; i < 2; i++ {
		evt, ok, err := pub.PollEvent(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		events = append(events, evt)
	}
	require.Len(t, events, 2)
	for _, evt := range events {
		require.Equal(t, event.FINISH, evt.Kind)
	}

	cancel()
	<-done

	require.Len(t, sink.Records(), 2)
}

func TestIndexerEmitsFailOnTransportFailure(t *testing.T) {
	net := local.NewNetwork()
	idxMessenger := local.NewIndexerMessenger(net, "pipe")
	workerMessenger := local.NewWorkerMessenger(net, "pipe")
	sink := &failingSink{err: fmt.Errorf("boom")}

	idx := indexer.New("pipe", idxMessenger, sink, indexer.Options{BatchSize: 1, BatchTimeout: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- idx.Run(ctx) }()

	doc, err := document.NewWithRun("a", "run-1")
	require.NoError(t, err)
	require.NoError(t, workerMessenger.SendCompleted(ctx, doc))

	pub := local.NewPublisherMessenger(net)
	require.NoError(t, pub.Initialize(ctx, "run-1", "pipe"))

	evt, ok, err := pub.PollEvent(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, event.FAIL, evt.Kind)

	cancel()
	<-done
}

type failingSink struct{ err error }

func (s *failingSink) ValidateConnection(ctx context.Context) error { return nil }
func (s *failingSink) Submit(ctx context.Context, batch []indexer.Record) (indexer.SubmitResult, error) {
	return indexer.SubmitResult{}, s.err
}
func (s *failingSink) Close() error { return nil }
