package document

import (
	"encoding/json"
	"fmt"
)

// AddChild appends a child document. Children form a tree: a child is
// owned by its parent and is not itself shared with any other parent.
func (d *Document) AddChild(child *Document) {
	d.children = append(d.children, child)
}

// GetChildren returns deep copies of the document's children, preventing
// aliasing and accidental cycles through the returned slice.
func (d *Document) GetChildren() []*Document {
	var out = make([]*Document, len(d.children))
	for i, c := range d.children {
		out[i] = c.Clone()
	}
	return out
}

// Clone returns a deep copy of the document: an independent payload,
// independent children (recursively cloned), and an independent error log.
func (d *Document) Clone() *Document {
	var clone = &Document{
		id:      d.id,
		runID:   d.runID,
		fields:  make(map[string]Value, len(d.fields)),
		errors:  append([]string(nil), d.errors...),
		dropped: d.dropped,
	}
	for name, v := range d.fields {
		clone.fields[name] = v
	}
	for _, c := range d.children {
		clone.children = append(clone.children, c.Clone())
	}
	return clone
}

// CloneWithNewID returns a deep copy of the document under a new id. The
// run association and dropped flag are preserved; errors and children are
// cloned as with Clone.
func (d *Document) CloneWithNewID(newID string) (*Document, error) {
	if newID == "" {
		return nil, fmt.Errorf("document: id must be a non-empty string")
	}
	var clone = d.Clone()
	clone.id = newID
	return clone, nil
}

// Equal reports structural equality over the payload tree: same id, same
// fields (by value), same children (recursively), same run association.
// Dropped flag and the error log are transient/observational and are not
// part of structural equality.
func (d *Document) Equal(o *Document) bool {
	if o == nil {
		return false
	}
	if d.id != o.id || d.runID != o.runID {
		return false
	}
	if len(d.fields) != len(o.fields) {
		return false
	}
	for name, v := range d.fields {
		ov, ok := o.fields[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	if len(d.children) != len(o.children) {
		return false
	}
	for i, c := range d.children {
		if !c.Equal(o.children[i]) {
			return false
		}
	}
	return true
}

// AsMap serializes the document into a plain key->value tree, including
// reserved fields and errors, matching the canonical JSON wire shape.
func (d *Document) AsMap() map[string]interface{} {
	var m = make(map[string]interface{}, len(d.fields)+4)
	for name, v := range d.fields {
		m[name] = v.raw()
	}
	m[FieldID] = d.id
	if d.runID != "" {
		m[FieldRunID] = d.runID
	}
	if len(d.errors) > 0 {
		m[FieldErrors] = append([]string(nil), d.errors...)
	}
	if len(d.children) > 0 {
		var children = make([]map[string]interface{}, len(d.children))
		for i, c := range d.children {
			children[i] = c.AsMap()
		}
		m[FieldChildren] = children
	}
	return m
}

// String returns the canonical JSON serialization of the document.
func (d *Document) String() string {
	raw, err := json.Marshal(d.AsMap())
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// MarshalJSON implements json.Marshaler in terms of AsMap, so a Document
// serializes identically whether passed directly to json.Marshal or
// through String/AsMap.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.AsMap())
}
