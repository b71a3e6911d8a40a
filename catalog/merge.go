package catalog

import (
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ApplyOverride applies an RFC 7396 JSON merge-patch (e.g. an operator's
// per-environment override of maxRetries or a stage's params) on top of a
// pipeline's stored catalog definition.
func ApplyOverride(base, patch []byte) ([]byte, error) {
	merged, err := jsonpatch.MergePatch(base, patch)
	if err != nil {
		return nil, fmt.Errorf("catalog: merging override patch: %w", err)
	}
	return merged, nil
}
