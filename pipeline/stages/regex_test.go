package stages_test

import (
	"testing"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/pipeline/stages"
	"github.com/stretchr/testify/require"
)

func TestRegexCapturesGroupIntoDestField(t *testing.T) {
	stage := stages.NewRegex("extract-year", "text", "year", `(\d{4})`, true)
	require.NoError(t, stage.Start())
	defer stage.Stop()

	doc, err := document.New("d")
	require.NoError(t, err)
	require.NoError(t, doc.SetString("text", "published in 1984 by someone"))

	_, err = stage.ProcessDocument(doc)
	require.NoError(t, err)

	year, err := doc.GetString("year")
	require.NoError(t, err)
	require.Equal(t, "1984", year)
}

func TestRegexNoMatchLeavesDestFieldUntouched(t *testing.T) {
	stage := stages.NewRegex("extract-year", "text", "year", `(\d{4})`, true)
	require.NoError(t, stage.Start())
	defer stage.Stop()

	doc, err := document.New("d")
	require.NoError(t, err)
	require.NoError(t, doc.SetString("text", "no year here"))

	_, err = stage.ProcessDocument(doc)
	require.NoError(t, err)
	require.False(t, doc.HasNonNull("year"))
}

func TestRegexAppendsWhenNotOverwriting(t *testing.T) {
	stage := stages.NewRegex("extract-digits", "text", "nums", `\d+`, false)
	require.NoError(t, stage.Start())
	defer stage.Stop()

	doc, err := document.New("d")
	require.NoError(t, err)
	require.NoError(t, doc.SetString("text", "order 42"))
	require.NoError(t, doc.SetString("nums", "1"))

	_, err = stage.ProcessDocument(doc)
	require.NoError(t, err)

	nums, err := doc.GetStringList("nums")
	require.NoError(t, err)
	require.Equal(t, []string{"1", "42"}, nums)
}
