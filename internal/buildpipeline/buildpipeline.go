// Package buildpipeline constructs a pipeline.Pipeline from a catalog
// PipelineConfig, resolving each StageConfig's Type and Params into a
// concrete stages.Stage, wrapped in a pipeline.ConditionalStage when the
// config carries conditional_fields.
package buildpipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/estuary/docpipe/catalog"
	"github.com/estuary/docpipe/pipeline"
	"github.com/estuary/docpipe/pipeline/stages"
)

// TokenProvider mints the bearer token a Remote stage attaches to its
// connector calls. Build passes the same TokenProvider to every "remote"
// stage it constructs.
type TokenProvider func(ctx context.Context) (string, error)

type dictionaryParams struct {
	SourceField    string `json:"sourceField"`
	DestField      string `json:"destField"`
	DictionaryPath string `json:"dictionaryPath"`
	OnlyWholeWords bool   `json:"onlyWholeWords"`
}

type regexParams struct {
	SourceField string `json:"sourceField"`
	DestField   string `json:"destField"`
	Pattern     string `json:"pattern"`
	Overwrite   bool   `json:"overwrite"`
}

type remoteParams struct {
	Target string `json:"target"`
}

// Build resolves cfg.Stages into a ready pipeline.Pipeline. tokenProvider
// may be nil, in which case Remote stages make unauthenticated calls.
func Build(cfg *catalog.PipelineConfig, tokenProvider TokenProvider) (*pipeline.Pipeline, error) {
	built := make([]pipeline.Stage, 0, len(cfg.Stages))
	for _, sc := range cfg.Stages {
		stage, err := buildStage(sc, tokenProvider)
		if err != nil {
			return nil, fmt.Errorf("buildpipeline: stage %q: %w", sc.Name, err)
		}

		if len(sc.ConditionalFields) > 0 {
			stage = &pipeline.ConditionalStage{
				Stage: stage,
				Predicate: pipeline.Predicate{
					Fields:   sc.ConditionalFields,
					Values:   sc.ConditionalValues,
					Operator: pipeline.Operator(sc.ConditionalOperator),
				},
			}
		}
		built = append(built, stage)
	}
	return pipeline.New(cfg.Name, built...), nil
}

func buildStage(sc catalog.StageConfig, tokenProvider TokenProvider) (pipeline.Stage, error) {
	switch sc.Type {
	case "dictionary":
		var p dictionaryParams
		if err := json.Unmarshal(sc.Params, &p); err != nil {
			return nil, fmt.Errorf("parsing dictionary params: %w", err)
		}
		return stages.NewDictionary(sc.Name, p.SourceField, p.DestField, p.DictionaryPath, p.OnlyWholeWords), nil

	case "regex":
		var p regexParams
		if err := json.Unmarshal(sc.Params, &p); err != nil {
			return nil, fmt.Errorf("parsing regex params: %w", err)
		}
		return stages.NewRegex(sc.Name, p.SourceField, p.DestField, p.Pattern, p.Overwrite), nil

	case "remote":
		var p remoteParams
		if err := json.Unmarshal(sc.Params, &p); err != nil {
			return nil, fmt.Errorf("parsing remote params: %w", err)
		}
		return stages.NewRemote(sc.Name, p.Target, tokenProvider), nil

	default:
		return nil, fmt.Errorf("unknown stage type %q", sc.Type)
	}
}
