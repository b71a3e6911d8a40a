package stages

import (
	"fmt"
	"regexp"

	"github.com/estuary/docpipe/document"
)

// Regex is a Stage that matches SourceField against a compiled pattern
// and writes the captured groups (or, with no capture groups, the whole
// match) into DestField.
type Regex struct {
	name        string
	SourceField string
	DestField   string
	Pattern     string
	// Overwrite replaces any existing DestField value; otherwise matches
	// are appended (promoting DestField to a sequence as needed).
	Overwrite bool

	compiled *regexp.Regexp
}

// NewRegex returns a Regex stage. name implements pipeline.Named.
func NewRegex(name, sourceField, destField, pattern string, overwrite bool) *Regex {
	return &Regex{name: name, SourceField: sourceField, DestField: destField, Pattern: pattern, Overwrite: overwrite}
}

// Name implements pipeline.Named.
func (r *Regex) Name() string { return r.name }

// Start compiles Pattern.
func (r *Regex) Start() error {
	compiled, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("stages: regex %q: compiling %q: %w", r.name, r.Pattern, err)
	}
	r.compiled = compiled
	return nil
}

// Stop is a no-op; a compiled regexp holds no external resources.
func (r *Regex) Stop() error { return nil }

// ProcessDocument applies the compiled pattern to SourceField.
func (r *Regex) ProcessDocument(doc *document.Document) ([]*document.Document, error) {
	if !doc.HasNonNull(r.SourceField) {
		return nil, nil
	}
	text, err := doc.GetString(r.SourceField)
	if err != nil {
		return nil, fmt.Errorf("stages: regex %q: reading %s: %w", r.name, r.SourceField, err)
	}

	m := r.compiled.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}

	var captured []string
	if len(m) > 1 {
		captured = m[1:]
	} else {
		captured = m
	}

	values := make([]document.Value, len(captured))
	for i, c := range captured {
		values[i] = document.NewString(c)
	}
	if err := doc.WriteToField(r.DestField, r.Overwrite, values...); err != nil {
		return nil, fmt.Errorf("stages: regex %q: writing %s: %w", r.name, r.DestField, err)
	}
	return nil, nil
}
