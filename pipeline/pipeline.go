package pipeline

import (
	"github.com/pkg/errors"

	"github.com/estuary/docpipe/document"
)

// Pipeline is an ordered sequence of Stages that a Worker drives over
// each polled document. A Pipeline owns its Stages'
// lifecycle: Start is called on every Stage before the first
// ProcessDocument, and Stop on every Stage on shutdown, mirroring the
// stop-before-restart ordering any multi-stage transform needs.
type Pipeline struct {
	Name   string
	Stages []Stage
}

// New returns a Pipeline over the given Stages, in execution order.
func New(name string, stages ...Stage) *Pipeline {
	return &Pipeline{Name: name, Stages: stages}
}

// Start starts every Stage in order, stopping and returning the first
// error encountered. Stages already started are left started; the
// caller should treat a Start error as fatal to the Pipeline.
func (p *Pipeline) Start() error {
	for i, s := range p.Stages {
		if err := s.Start(); err != nil {
			return errors.Wrapf(err, "pipeline %q: starting stage %d", p.Name, i)
		}
	}
	return nil
}

// Stop stops every Stage, continuing past individual errors and
// returning the first one encountered so that shutdown always runs to
// completion.
func (p *Pipeline) Stop() error {
	var first error
	for _, s := range p.Stages {
		if err := s.Stop(); err != nil && first == nil {
			first = errors.Wrapf(err, "pipeline %q: stopping stage", p.Name)
		}
	}
	return first
}

// ProcessDocument runs doc through every Stage in order. Each Stage
// mutates doc in place; children a Stage emits are collected but are
// never themselves passed through subsequent stages: a stage's output
// children are not re-run through later stages in the same pipeline
// invocation. A Stage error aborts the remaining stages
// and is returned to the caller as a processing failure.
func (p *Pipeline) ProcessDocument(doc *document.Document) ([]*document.Document, error) {
	var children []*document.Document
	for i, s := range p.Stages {
		out, err := s.ProcessDocument(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline %q: stage %d", p.Name, i)
		}
		children = append(children, out...)
	}
	return children, nil
}
