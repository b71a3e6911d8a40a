package indexer_test

import (
	"testing"
	"time"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/indexer"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, id string) *document.Document {
	t.Helper()
	d, err := document.New(id)
	require.NoError(t, err)
	return d
}

func TestBatcherReturnsBatchWhenSizeReached(t *testing.T) {
	b := indexer.NewBatcher(2, time.Hour)

	require.Nil(t, b.Add(mustDoc(t, "a")))
	batch := b.Add(mustDoc(t, "b"))
	require.Len(t, batch, 2)
}

func TestBatcherIdlePollFlushesAfterTimeout(t *testing.T) {
	b := indexer.NewBatcher(100, 10*time.Millisecond)

	require.Nil(t, b.Add(mustDoc(t, "a")))
	require.Nil(t, b.Add(nil)) // too soon

	time.Sleep(15 * time.Millisecond)
	batch := b.Add(nil)
	require.Len(t, batch, 1)
}

func TestBatcherIdlePollOnEmptyBatchIsNoOp(t *testing.T) {
	b := indexer.NewBatcher(100, time.Millisecond)
	require.Nil(t, b.Add(nil))
}

func TestBatcherFlushReturnsAndClearsPartialBatch(t *testing.T) {
	b := indexer.NewBatcher(100, time.Hour)
	require.Nil(t, b.Add(mustDoc(t, "a")))

	batch := b.Flush()
	require.Len(t, batch, 1)
	require.Empty(t, b.Flush())
}
