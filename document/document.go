package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Reserved field names that no public mutator may touch directly. `errors`
// is writable only through LogError; it is enforced separately since it
// has append-only, not read-only, semantics.
const (
	FieldID       = "id"
	FieldRunID    = "run_id"
	FieldChildren = ".children"
	FieldErrors   = "errors"
)

func isReserved(name string) bool {
	switch name {
	case FieldID, FieldRunID, FieldChildren:
		return true
	default:
		return false
	}
}

// Document is a mutable record flowing through a pipeline run. See the
// package doc comment for the overall contract.
type Document struct {
	id       string
	runID    string
	fields   map[string]Value
	children []*Document
	errors   []string
	dropped  bool
}

// New constructs a Document with the given id and no run association.
func New(id string) (*Document, error) {
	return newDocument(id, "")
}

// NewWithRun constructs a Document with the given id, already associated
// with runID.
func NewWithRun(id, runID string) (*Document, error) {
	return newDocument(id, runID)
}

func newDocument(id, runID string) (*Document, error) {
	if id == "" {
		return nil, fmt.Errorf("document: id must be a non-empty string")
	}
	return &Document{
		id:     id,
		runID:  runID,
		fields: make(map[string]Value),
	}, nil
}

// NewFromJSON parses a Document from its canonical JSON wire form,
// rejecting a missing, empty, or non-textual `id`.
func NewFromJSON(raw []byte) (*Document, error) {
	var m map[string]json.RawMessage
	var dec = json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("document: invalid JSON: %w", err)
	}

	idRaw, ok := m[FieldID]
	if !ok {
		return nil, fmt.Errorf("document: missing required field %q", FieldID)
	}
	var id string
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return nil, fmt.Errorf("document: field %q must be a string: %w", FieldID, err)
	}
	if id == "" {
		return nil, fmt.Errorf("document: field %q must be non-empty", FieldID)
	}
	delete(m, FieldID)

	var runID string
	if runRaw, ok := m[FieldRunID]; ok {
		if err := json.Unmarshal(runRaw, &runID); err != nil {
			return nil, fmt.Errorf("document: field %q must be a string: %w", FieldRunID, err)
		}
		delete(m, FieldRunID)
	}

	doc, err := newDocument(id, runID)
	if err != nil {
		return nil, err
	}

	if childrenRaw, ok := m[FieldChildren]; ok {
		var rawChildren []json.RawMessage
		if err := json.Unmarshal(childrenRaw, &rawChildren); err != nil {
			return nil, fmt.Errorf("document: field %q must be an array: %w", FieldChildren, err)
		}
		for _, cr := range rawChildren {
			child, err := NewFromJSON(cr)
			if err != nil {
				return nil, fmt.Errorf("document: invalid child: %w", err)
			}
			doc.children = append(doc.children, child)
		}
		delete(m, FieldChildren)
	}

	if errsRaw, ok := m[FieldErrors]; ok {
		if err := json.Unmarshal(errsRaw, &doc.errors); err != nil {
			return nil, fmt.Errorf("document: field %q must be an array of strings: %w", FieldErrors, err)
		}
		delete(m, FieldErrors)
	}

	for name, fr := range m {
		var decoded interface{}
		var fdec = json.NewDecoder(bytes.NewReader(fr))
		fdec.UseNumber()
		if err := fdec.Decode(&decoded); err != nil {
			return nil, fmt.Errorf("document: invalid value for field %q: %w", name, err)
		}
		v, err := valueFromRaw(decoded)
		if err != nil {
			return nil, fmt.Errorf("document: field %q: %w", name, err)
		}
		doc.fields[name] = v
	}

	return doc, nil
}

// ID returns the document's identity. It is present and non-empty for the
// lifetime of the Document, except across CloneWithNewID.
func (d *Document) ID() string { return d.id }

// RunID returns the document's run association, or "" if unset.
func (d *Document) RunID() string { return d.runID }

// SetRunID stamps the document's run association. Clearing (runID == "")
// is always allowed; setting a non-empty runID over a different
// already-set non-empty runID is an invalid-state error.
func (d *Document) SetRunID(runID string) error {
	if d.runID != "" && runID != "" && d.runID != runID {
		return fmt.Errorf("document: run_id is already set to %q", d.runID)
	}
	d.runID = runID
	return nil
}

// Has reports whether the field is present, regardless of value.
func (d *Document) Has(name string) bool {
	_, ok := d.fields[name]
	return ok
}

// HasNonNull reports whether the field is present and not null.
func (d *Document) HasNonNull(name string) bool {
	v, ok := d.fields[name]
	return ok && !v.IsNull()
}

// IsDropped reports the transient dropped flag, set only by pipeline stages.
func (d *Document) IsDropped() bool { return d.dropped }

// SetDropped marks the document as dropped: it will be acknowledged by the
// Worker but not forwarded to the Indexer.
func (d *Document) SetDropped() { d.dropped = true }

// Errors returns the append-only error log.
func (d *Document) Errors() []string { return append([]string(nil), d.errors...) }

// LogError appends a message to the error log. This is the only mutator
// permitted to touch the reserved `errors` field.
func (d *Document) LogError(message string) {
	d.errors = append(d.errors, message)
}
