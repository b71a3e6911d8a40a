package document_test

import (
	"testing"

	"github.com/bradleyjkemp/cupaloy"
	"github.com/estuary/docpipe/document"
	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/require"
)

// TestCanonicalJSONSnapshot locks down the canonical wire shape of a
// Document with children and errors, so an unintended change to field
// ordering or reserved-key naming is caught in review.
func TestCanonicalJSONSnapshot(t *testing.T) {
	d, err := document.NewWithRun("d-1", "run-1")
	require.NoError(t, err)
	require.NoError(t, d.SetString("name", "Matt"))
	require.NoError(t, d.SetField("tags", document.NewSequence(document.NewString("a"), document.NewString("b"))))
	child, err := document.New("c-1")
	require.NoError(t, err)
	require.NoError(t, child.SetString("kind", "join"))
	d.AddChild(child)
	d.LogError("partial enrichment failure")

	cupaloy.SnapshotT(t, d.AsMap())
}

// assertDocumentsEqual reports a readable structural diff via jsondiff
// when two documents' canonical JSON forms differ, rather than comparing
// two opaque blobs.
func assertDocumentsEqual(t *testing.T, expected, actual *document.Document) {
	t.Helper()
	if expected.Equal(actual) {
		return
	}
	opts := jsondiff.DefaultConsoleOptions()
	diff, explanation := jsondiff.Compare([]byte(expected.String()), []byte(actual.String()), &opts)
	t.Fatalf("documents differ (%s):\n%s", diff, explanation)
}

func TestAssertDocumentsEqualHelperAcceptsEqualDocuments(t *testing.T) {
	a, err := document.New("d")
	require.NoError(t, err)
	require.NoError(t, a.SetString("name", "Matt"))

	b, err := document.New("d")
	require.NoError(t, err)
	require.NoError(t, b.SetString("name", "Matt"))

	assertDocumentsEqual(t, a, b)
}
