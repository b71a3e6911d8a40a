// Package pipeline implements the Stage/Pipeline enrichment chain that a
// Worker drives per document.
package pipeline

import (
	"github.com/estuary/docpipe/document"
)

// Stage is an in-place Document transformation that may emit child
// documents as a side effect. Stages are invoked as start() ->
// processDocument(doc)* -> stop(); a Stage must be safe to invoke
// repeatedly, but does not need to be shared across Workers (each Worker
// owns its own Pipeline and therefore its own Stage instances), per §5.
type Stage interface {
	// Start prepares the stage for a sequence of ProcessDocument calls.
	Start() error
	// ProcessDocument mutates doc in place and returns any child
	// documents generated as a side effect, in generation order.
	ProcessDocument(doc *document.Document) ([]*document.Document, error)
	// Stop releases any resources acquired by Start.
	Stop() error
}

// Named is implemented by Stages that carry a configured name, for
// logging and catalog lookups.
type Named interface {
	Name() string
}

// Operator is a conditional-predicate comparison operator.
type Operator string

const (
	// Must requires every configured field to match a configured value.
	Must Operator = "must"
	// MustNot requires no configured field to match a configured value.
	MustNot Operator = "must_not"
)

// Predicate is a Stage's optional conditional-execution gate, evaluated
// against conditional_fields/conditional_values/conditional_operator per
// conditional_fields/conditional_values/conditional_operator. A zero-value
// Predicate (no fields configured) always passes.
type Predicate struct {
	Fields   []string
	Values   []string
	Operator Operator
}

// Evaluate reports whether doc satisfies the predicate. An empty
// Predicate always passes. A field is considered a match if the document
// has the field and its string-coerced value equals the corresponding
// configured value (matched positionally by index; if Values is shorter
// than Fields, remaining fields are matched against hasNonNull instead).
func (p Predicate) Evaluate(doc *document.Document) bool {
	if len(p.Fields) == 0 {
		return true
	}

	var matches = func(field string, idx int) bool {
		if idx < len(p.Values) {
			v, err := doc.GetString(field)
			return err == nil && v == p.Values[idx]
		}
		return doc.HasNonNull(field)
	}

	switch p.Operator {
	case MustNot:
		for i, f := range p.Fields {
			if matches(f, i) {
				return false
			}
		}
		return true
	default: // Must
		for i, f := range p.Fields {
			if !matches(f, i) {
				return false
			}
		}
		return true
	}
}

// ConditionalStage wraps a Stage with a Predicate: ProcessDocument is
// skipped (returning no children, no error) when the predicate is false,
// skipping processDocument entirely when the predicate fails.
type ConditionalStage struct {
	Stage     Stage
	Predicate Predicate
}

// Start delegates to the wrapped Stage.
func (c *ConditionalStage) Start() error { return c.Stage.Start() }

// Stop delegates to the wrapped Stage.
func (c *ConditionalStage) Stop() error { return c.Stage.Stop() }

// ProcessDocument evaluates the Predicate before delegating.
func (c *ConditionalStage) ProcessDocument(doc *document.Document) ([]*document.Document, error) {
	if !c.Predicate.Evaluate(doc) {
		return nil, nil
	}
	return c.Stage.ProcessDocument(doc)
}

// Name implements Named if the wrapped Stage does.
func (c *ConditionalStage) Name() string {
	if n, ok := c.Stage.(Named); ok {
		return n.Name()
	}
	return ""
}
