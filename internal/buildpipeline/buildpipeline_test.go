package buildpipeline_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estuary/docpipe/catalog"
	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/internal/buildpipeline"
)

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0600)
}

func TestBuildResolvesRegexAndDictionaryStagesInOrder(t *testing.T) {
	dictPath := filepath.Join(t.TempDir(), "terms.csv")
	require.NoError(t, writeFile(dictPath, "acme,VENDOR_ACME\n"))

	cfg := &catalog.PipelineConfig{
		Name: "invoices",
		Stages: []catalog.StageConfig{
			{
				Name:   "extract-digits",
				Type:   "regex",
				Params: json.RawMessage(`{"sourceField":"text","destField":"digits","pattern":"(\\d+)","overwrite":true}`),
			},
			{
				Name:   "tag-vendor",
				Type:   "dictionary",
				Params: json.RawMessage(`{"sourceField":"text","destField":"vendors","dictionaryPath":"` + filepath.ToSlash(dictPath) + `","onlyWholeWords":true}`),
			},
		},
	}

	p, err := buildpipeline.Build(cfg, nil)
	require.NoError(t, err)
	require.Equal(t, "invoices", p.Name)
	require.Len(t, p.Stages, 2)

	require.NoError(t, p.Start())
	defer p.Stop()

	doc, err := document.New("a")
	require.NoError(t, err)
	require.NoError(t, doc.SetString("text", "order 42 from acme"))

	_, err = p.ProcessDocument(doc)
	require.NoError(t, err)

	digits, err := doc.GetStringList("digits")
	require.NoError(t, err)
	require.Equal(t, []string{"42"}, digits)

	vendors, err := doc.GetStringList("vendors")
	require.NoError(t, err)
	require.Equal(t, []string{"VENDOR_ACME"}, vendors)
}

func TestBuildWrapsStageWithConditionalPredicate(t *testing.T) {
	cfg := &catalog.PipelineConfig{
		Name: "invoices",
		Stages: []catalog.StageConfig{
			{
				Name:                "extract-digits",
				Type:                "regex",
				Params:              json.RawMessage(`{"sourceField":"text","destField":"digits","pattern":"(\\d+)","overwrite":true}`),
				ConditionalFields:   []string{"kind"},
				ConditionalValues:   []string{"invoice"},
				ConditionalOperator: "must",
			},
		},
	}

	p, err := buildpipeline.Build(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	doc, err := document.New("a")
	require.NoError(t, err)
	require.NoError(t, doc.SetString("text", "order 42"))
	require.NoError(t, doc.SetString("kind", "receipt"))

	_, err = p.ProcessDocument(doc)
	require.NoError(t, err)
	require.False(t, doc.Has("digits"))
}

func TestBuildRejectsUnknownStageType(t *testing.T) {
	cfg := &catalog.PipelineConfig{
		Name: "invoices",
		Stages: []catalog.StageConfig{
			{Name: "mystery", Type: "not-a-real-stage"},
		},
	}

	_, err := buildpipeline.Build(cfg, nil)
	require.Error(t, err)
}
