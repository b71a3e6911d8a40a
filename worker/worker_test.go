package worker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/event"
	"github.com/estuary/docpipe/pipeline"
	"github.com/estuary/docpipe/retry"
	"github.com/estuary/docpipe/transport/local"
	"github.com/estuary/docpipe/worker"
	"github.com/stretchr/testify/require"
)

type passthroughStage struct{}

func (passthroughStage) Start() error { return nil }
func (passthroughStage) Stop() error  { return nil }
func (passthroughStage) ProcessDocument(doc *document.Document) ([]*document.Document, error) {
	return nil, nil
}

type childEmittingStage struct{ childID string }

func (childEmittingStage) Start() error { return nil }
func (childEmittingStage) Stop() error  { return nil }
func (s childEmittingStage) ProcessDocument(doc *document.Document) ([]*document.Document, error) {
	child, err := document.NewWithRun(s.childID, doc.RunID())
	if err != nil {
		return nil, err
	}
	return []*document.Document{child}, nil
}

type failingStage struct{}

func (failingStage) Start() error { return nil }
func (failingStage) Stop() error  { return nil }
func (failingStage) ProcessDocument(doc *document.Document) ([]*document.Document, error) {
	return nil, fmt.Errorf("boom")
}

type droppingStage struct{}

func (droppingStage) Start() error { return nil }
func (droppingStage) Stop() error  { return nil }
func (droppingStage) ProcessDocument(doc *document.Document) ([]*document.Document, error) {
	doc.SetDropped()
	return nil, nil
}

func TestWorkerForwardsCompletedDocument(t *testing.T) {
	net := local.NewNetwork()
	wm := local.NewWorkerMessenger(net, "pipe")
	im := local.NewIndexerMessenger(net, "pipe")
	p := pipeline.New("pipe", passthroughStage{})

	w := worker.New("pipe", wm, p, nil, worker.Options{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	doc, err := document.NewWithRun("a", "run-1")
	require.NoError(t, err)
	pub := local.NewPublisherMessenger(net)
	require.NoError(t, pub.Initialize(ctx, "run-1", "pipe"))
	require.NoError(t, pub.SendForProcessing(ctx, doc))

	require.NoError(t, w.RunN(ctx, 1))

	got, err := im.PollCompleted(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", got.ID())
}

func TestWorkerEmitsCreateBeforeForwardingChild(t *testing.T) {
	net := local.NewNetwork()
	wm := local.NewWorkerMessenger(net, "pipe")
	p := pipeline.New("pipe", childEmittingStage{childID: "child-1"})

	w := worker.New("pipe", wm, p, nil, worker.Options{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	doc, err := document.NewWithRun("parent-1", "run-1")
	require.NoError(t, err)
	pub := local.NewPublisherMessenger(net)
	require.NoError(t, pub.Initialize(ctx, "run-1", "pipe"))
	require.NoError(t, pub.SendForProcessing(ctx, doc))

	require.NoError(t, w.RunN(ctx, 1))

	evt, ok, err := pub.PollEvent(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, event.CREATE, evt.Kind)
	require.Equal(t, "child-1", evt.DocumentID)
}

func TestWorkerDeadLettersOnRetryExhaustion(t *testing.T) {
	net := local.NewNetwork()
	wm := local.NewWorkerMessenger(net, "pipe")
	p := pipeline.New("pipe", failingStage{})
	counter := retry.NewMemoryCounter()

	w := worker.New("pipe", wm, p, counter, worker.Options{MaxRetries: 2}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	doc, err := document.NewWithRun("poison", "run-1")
	require.NoError(t, err)
	pub := local.NewPublisherMessenger(net)
	require.NoError(t, pub.Initialize(ctx, "run-1", "pipe"))

	// Deliver three times. The first two crash in the pipeline, so the
	// retry count is never cleared; the third crosses maxRetries=2 and is
	// dead-lettered instead of processed.
	for i := 0; i < 3; i++ {
		require.NoError(t, pub.SendForProcessing(ctx, doc))
		err := w.RunN(ctx, 1)
		if i < 2 {
			require.Error(t, err)
		} else {
			require.NoError(t, err)
		}
	}

	// The two crashed deliveries each emit a stage FAIL; only the third
	// emits the SENT_TO_DLQ FAIL.
	for i := 0; i < 2; i++ {
		evt, ok, err := pub.PollEvent(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, event.FAIL, evt.Kind)
		require.NotEqual(t, event.SentToDLQMessage, evt.Message)
	}
	evt, ok, err := pub.PollEvent(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, event.FAIL, evt.Kind)
	require.Equal(t, event.SentToDLQMessage, evt.Message)

	select {
	case got := <-net.DrainDeadLetter("pipe"):
		require.Equal(t, "poison", got.ID())
	default:
		t.Fatal("expected a dead-lettered document")
	}
}

func TestWorkerTerminatesOnStageError(t *testing.T) {
	net := local.NewNetwork()
	wm := local.NewWorkerMessenger(net, "pipe")
	p := pipeline.New("pipe", failingStage{})

	w := worker.New("pipe", wm, p, nil, worker.Options{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	doc, err := document.NewWithRun("a", "run-1")
	require.NoError(t, err)
	pub := local.NewPublisherMessenger(net)
	require.NoError(t, pub.Initialize(ctx, "run-1", "pipe"))
	require.NoError(t, pub.SendForProcessing(ctx, doc))

	err = w.RunN(ctx, 1)
	require.Error(t, err)

	evt, ok, err := pub.PollEvent(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, event.FAIL, evt.Kind)
}

func TestWorkerEmitsFinishImmediatelyForDroppedResult(t *testing.T) {
	net := local.NewNetwork()
	wm := local.NewWorkerMessenger(net, "pipe")
	im := local.NewIndexerMessenger(net, "pipe")
	p := pipeline.New("pipe", droppingStage{})

	w := worker.New("pipe", wm, p, nil, worker.Options{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	doc, err := document.NewWithRun("a", "run-1")
	require.NoError(t, err)
	pub := local.NewPublisherMessenger(net)
	require.NoError(t, pub.Initialize(ctx, "run-1", "pipe"))
	require.NoError(t, pub.SendForProcessing(ctx, doc))

	require.NoError(t, w.RunN(ctx, 1))

	evt, ok, err := pub.PollEvent(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, event.FINISH, evt.Kind)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_, err = im.PollCompleted(ctx2)
	require.Error(t, err) // dropped: never forwarded to completed queue
}
