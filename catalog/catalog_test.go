package catalog_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/estuary/docpipe/catalog"
)

func seedCatalog(t *testing.T, path string, pipelineJSON string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE pipelines (name TEXT PRIMARY KEY, spec TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO pipelines (name, spec) VALUES (?, ?)`, "invoices", pipelineJSON)
	require.NoError(t, err)
}

func TestLoadPipelineParsesStoredDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	seedCatalog(t, path, `{
		"name": "invoices",
		"maxRetries": 3,
		"batchSize": 50,
		"stages": [{"name": "extract", "type": "regex", "params": {"pattern": "\\d+"}}]
	}`)

	c, err := catalog.Open(path)
	require.NoError(t, err)
	defer c.Close()

	cfg, err := c.LoadPipeline(context.Background(), "invoices", nil)
	require.NoError(t, err)
	require.Equal(t, "invoices", cfg.Name)
	require.Equal(t, 3, cfg.MaxRetries)
	require.Equal(t, 50, cfg.BatchSize)
	require.Len(t, cfg.Stages, 1)
	require.Equal(t, "regex", cfg.Stages[0].Type)
}

func TestLoadPipelineAppliesOverridePatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	seedCatalog(t, path, `{"name": "invoices", "maxRetries": 3, "stages": []}`)

	c, err := catalog.Open(path)
	require.NoError(t, err)
	defer c.Close()

	cfg, err := c.LoadPipeline(context.Background(), "invoices", []byte(`{"maxRetries": 10}`))
	require.NoError(t, err)
	require.Equal(t, 10, cfg.MaxRetries)
}

func TestLoadPipelineErrorsOnUnknownName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	seedCatalog(t, path, `{"name": "invoices", "stages": []}`)

	c, err := catalog.Open(path)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.LoadPipeline(context.Background(), "unknown", nil)
	require.Error(t, err)
}

func TestApplyOverrideMergesRFC7396Patch(t *testing.T) {
	merged, err := catalog.ApplyOverride(
		[]byte(`{"maxRetries": 3, "batchSize": 50}`),
		[]byte(`{"batchSize": 200, "routingField": "tenant"}`),
	)
	require.NoError(t, err)
	require.JSONEq(t, `{"maxRetries": 3, "batchSize": 200, "routingField": "tenant"}`, string(merged))
}
