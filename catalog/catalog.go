// Package catalog loads pipeline and stage configuration from a sqlite
// catalog database, distributed as an immutable sqlite file addressed by
// URL.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// StageConfig is one configured pipeline stage.
type StageConfig struct {
	Name                string          `json:"name"`
	Type                string          `json:"type"` // "dictionary", "regex", "remote"
	Params              json.RawMessage `json:"params"`
	ConditionalFields   []string        `json:"conditionalFields,omitempty"`
	ConditionalValues   []string        `json:"conditionalValues,omitempty"`
	ConditionalOperator string          `json:"conditionalOperator,omitempty"` // "must" | "must_not"
}

// PipelineConfig is one pipeline's full configuration.
type PipelineConfig struct {
	Name               string        `json:"name"`
	MaxRetries         int           `json:"maxRetries,omitempty"`
	BatchSize          int           `json:"batchSize,omitempty"`
	BatchTimeoutMillis int           `json:"batchTimeoutMillis,omitempty"`
	RoutingField       string        `json:"routingField,omitempty"`
	VersioningEnabled  bool          `json:"versioningEnabled,omitempty"`
	Stages             []StageConfig `json:"stages"`
}

// Catalog is a read-only handle onto a sqlite catalog database. Opened
// with "?immutable=true" since the catalog file is published once and
// never mutated in place by a running process.
type Catalog struct {
	db *sql.DB
}

// Open opens the sqlite catalog database at url.
func Open(url string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", url+"?immutable=true")
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %s: %w", url, err)
	}
	return &Catalog{db: db}, nil
}

// LoadPipeline loads the named pipeline's configuration, applying
// overridePatch (an RFC 7396 JSON merge-patch, or nil) on top of the
// stored definition.
func (c *Catalog) LoadPipeline(ctx context.Context, name string, overridePatch []byte) (*PipelineConfig, error) {
	var raw []byte
	row := c.db.QueryRowContext(ctx, `SELECT spec FROM pipelines WHERE name = ?`, name)
	if err := row.Scan(&raw); err != nil {
		return nil, fmt.Errorf("catalog: loading pipeline %q: %w", name, err)
	}

	if len(overridePatch) > 0 {
		merged, err := ApplyOverride(raw, overridePatch)
		if err != nil {
			return nil, fmt.Errorf("catalog: applying override to pipeline %q: %w", name, err)
		}
		raw = merged
	}

	var cfg PipelineConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("catalog: parsing pipeline %q: %w", name, err)
	}
	return &cfg, nil
}

// Close closes the underlying database handle.
func (c *Catalog) Close() error { return c.db.Close() }
