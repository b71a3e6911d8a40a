package publisher_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
	"github.com/estuary/docpipe/publisher"
	"github.com/estuary/docpipe/transport/local"
)

func newPublisher(net *local.Network) *publisher.Publisher {
	return publisher.New("pipe", local.NewPublisherMessenger(net), publisher.Options{PollTimeout: 20 * time.Millisecond}, nil)
}

func TestRunReconcilesAfterPublishAndFinish(t *testing.T) {
	net := local.NewNetwork()
	p := newPublisher(net)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	runID, err := p.Initialize(ctx)
	require.NoError(t, err)

	doc, err := document.New("a")
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, doc))

	worker := local.NewWorkerMessenger(net, "pipe")
	require.NoError(t, worker.SendEvent(ctx, event.NewFinish("a", runID)))
	p.MarkConnectorDone()

	require.NoError(t, p.Run(ctx))
	require.False(t, p.HasErrors())

	published, succeeded, failed := p.Counts()
	require.Equal(t, 1, published)
	require.Equal(t, 1, succeeded)
	require.Equal(t, 0, failed)
}

func TestRunDoesNotReconcileUntilConnectorDone(t *testing.T) {
	net := local.NewNetwork()
	p := newPublisher(net)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	runID, err := p.Initialize(ctx)
	require.NoError(t, err)

	doc, err := document.New("a")
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, doc))

	worker := local.NewWorkerMessenger(net, "pipe")
	require.NoError(t, worker.SendEvent(ctx, event.NewFinish("a", runID)))

	done := make(chan error, 1)
	runCtx, runCancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer runCancel()
	go func() { done <- p.Run(runCtx) }()

	select {
	case err := <-done:
		t.Fatalf("Run returned before connector was marked done: %v", err)
	case <-time.After(80 * time.Millisecond):
	}

	p.MarkConnectorDone()
	require.NoError(t, <-done)
}

func TestRunStaysPendingUntilChildFinishes(t *testing.T) {
	net := local.NewNetwork()
	p := newPublisher(net)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	runID, err := p.Initialize(ctx)
	require.NoError(t, err)

	parent, err := document.New("parent")
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, parent))
	p.MarkConnectorDone()

	worker := local.NewWorkerMessenger(net, "pipe")
	require.NoError(t, worker.SendEvent(ctx, event.NewCreate("child", runID)))
	require.NoError(t, worker.SendEvent(ctx, event.NewFinish("parent", runID)))

	done := make(chan error, 1)
	runCtx, runCancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer runCancel()
	go func() { done <- p.Run(runCtx) }()

	select {
	case err := <-done:
		t.Fatalf("Run reconciled before child finished: %v", err)
	case <-time.After(80 * time.Millisecond):
	}

	require.NoError(t, worker.SendEvent(ctx, event.NewFinish("child", runID)))
	require.NoError(t, <-done)
}

func TestRunRecordsFailureAndSetsHasErrors(t *testing.T) {
	net := local.NewNetwork()
	p := newPublisher(net)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	runID, err := p.Initialize(ctx)
	require.NoError(t, err)

	doc, err := document.New("a")
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, doc))
	p.MarkConnectorDone()

	worker := local.NewWorkerMessenger(net, "pipe")
	require.NoError(t, worker.SendEvent(ctx, event.NewFail("a", runID, "boom")))

	require.NoError(t, p.Run(ctx))
	require.True(t, p.HasErrors())

	_, succeeded, failed := p.Counts()
	require.Equal(t, 0, succeeded)
	require.Equal(t, 1, failed)
}
