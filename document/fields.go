package document

import (
	"fmt"
	"time"
)

// SetString sets a single-valued string field.
func (d *Document) SetString(name, value string) error { return d.setField(name, NewString(value)) }

// SetInt sets a single-valued integer field.
func (d *Document) SetInt(name string, value int64) error { return d.setField(name, NewInt(value)) }

// SetFloat sets a single-valued floating-point field.
func (d *Document) SetFloat(name string, value float64) error {
	return d.setField(name, NewFloat(value))
}

// SetBool sets a single-valued boolean field.
func (d *Document) SetBool(name string, value bool) error { return d.setField(name, NewBool(value)) }

// SetTime sets a single-valued timestamp field.
func (d *Document) SetTime(name string, value time.Time) error {
	return d.setField(name, NewTime(value))
}

// SetNull sets a field to null.
func (d *Document) SetNull(name string) error { return d.setField(name, Null()) }

// SetField sets a field to an already-constructed Value.
func (d *Document) SetField(name string, value Value) error { return d.setField(name, value) }

func (d *Document) setField(name string, value Value) error {
	if isReserved(name) || name == FieldErrors {
		return fmt.Errorf("document: field %q is reserved and cannot be set directly", name)
	}
	d.fields[name] = value
	return nil
}

// GetString returns the string in the named field, coercing a multi-valued
// field to its first element.
func (d *Document) GetString(name string) (string, error) {
	v, ok := d.fields[name]
	if !ok {
		return "", fmt.Errorf("document: no such field %q", name)
	}
	s, ok := v.AsString()
	if !ok {
		return "", fmt.Errorf("document: field %q is not string-coercible (kind %s)", name, v.Kind())
	}
	return s, nil
}

// GetStringList returns the named field as a sequence of strings. A
// single-valued field is returned as a one-element sequence.
func (d *Document) GetStringList(name string) ([]string, error) {
	v, ok := d.fields[name]
	if !ok {
		return nil, fmt.Errorf("document: no such field %q", name)
	}
	var elems = v.AsSequence()
	var out = make([]string, len(elems))
	for i, e := range elems {
		s, ok := e.AsString()
		if !ok {
			return nil, fmt.Errorf("document: field %q element %d is not string-coercible (kind %s)", name, i, e.Kind())
		}
		out[i] = s
	}
	return out, nil
}

// GetInt returns the int64 in the named field, per the same coercion rule
// as GetString.
func (d *Document) GetInt(name string) (int64, error) {
	v, ok := d.fields[name]
	if !ok {
		return 0, fmt.Errorf("document: no such field %q", name)
	}
	i, ok := v.AsInt()
	if !ok {
		return 0, fmt.Errorf("document: field %q is not int-coercible (kind %s)", name, v.Kind())
	}
	return i, nil
}

// GetFloat returns the float64 in the named field.
func (d *Document) GetFloat(name string) (float64, error) {
	v, ok := d.fields[name]
	if !ok {
		return 0, fmt.Errorf("document: no such field %q", name)
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, fmt.Errorf("document: field %q is not float-coercible (kind %s)", name, v.Kind())
	}
	return f, nil
}

// GetBool returns the bool in the named field.
func (d *Document) GetBool(name string) (bool, error) {
	v, ok := d.fields[name]
	if !ok {
		return false, fmt.Errorf("document: no such field %q", name)
	}
	b, ok := v.AsBool()
	if !ok {
		return false, fmt.Errorf("document: field %q is not bool-coercible (kind %s)", name, v.Kind())
	}
	return b, nil
}

// GetTime returns the timestamp in the named field.
func (d *Document) GetTime(name string) (time.Time, error) {
	v, ok := d.fields[name]
	if !ok {
		return time.Time{}, fmt.Errorf("document: no such field %q", name)
	}
	t, ok := v.AsTime()
	if !ok {
		return time.Time{}, fmt.Errorf("document: field %q is not time-coercible (kind %s)", name, v.Kind())
	}
	return t, nil
}

// GetValue returns the raw Value held by the field.
func (d *Document) GetValue(name string) (Value, bool) {
	v, ok := d.fields[name]
	return v, ok
}

// AddToField appends a value to the named field, auto-promoting a
// single-valued field to a sequence (retaining the prior scalar as
// element 0) or absent field to a one-element sequence.
func (d *Document) AddToField(name string, value Value) error {
	if isReserved(name) || name == FieldErrors {
		return fmt.Errorf("document: field %q is reserved and cannot be set directly", name)
	}
	existing, ok := d.fields[name]
	if !ok {
		d.fields[name] = NewSequence(value)
		return nil
	}
	d.fields[name] = existing.promote(value)
	return nil
}

// SetOrAdd sets the field if absent, else appends to it (promoting to
// multi-valued as AddToField does).
func (d *Document) SetOrAdd(name string, value Value) error {
	if !d.Has(name) {
		return d.setField(name, value)
	}
	return d.AddToField(name, value)
}

// SetOrAddFrom splices the named field of `other` into this document's
// field of the same name, promoting to multi-valued on collision. It is
// a no-op if `other` doesn't have the field.
func (d *Document) SetOrAddFrom(name string, other *Document) error {
	v, ok := other.fields[name]
	if !ok {
		return nil
	}
	return d.SetOrAdd(name, v)
}

// SetOrAddAll applies SetOrAddFrom for every non-reserved field of other.
func (d *Document) SetOrAddAll(other *Document) error {
	for name := range other.fields {
		if isReserved(name) || name == FieldErrors {
			continue
		}
		if err := d.SetOrAddFrom(name, other); err != nil {
			return err
		}
	}
	return nil
}

// WriteToField is sugar for SetField-then-AddToField with overwrite
// semantics: when overwrite is true (or the field is absent) it replaces
// the field outright with the given values (a single value stays scalar,
// multiple values become a sequence); when overwrite is false and the
// field exists, values are appended, promoting as AddToField does.
// This is overwrite sugar for SetField-then-AddToField.
func (d *Document) WriteToField(name string, overwrite bool, values ...Value) error {
	if len(values) == 0 {
		return fmt.Errorf("document: writeToField requires at least one value")
	}
	if overwrite || !d.Has(name) {
		if len(values) == 1 {
			return d.setField(name, values[0])
		}
		return d.setField(name, NewSequence(values...))
	}
	for _, v := range values {
		if err := d.AddToField(name, v); err != nil {
			return err
		}
	}
	return nil
}

// RemoveField deletes the named field entirely. It is a no-op if the field
// is absent. Reserved fields and errors are stored outside the payload, so
// naming one here removes nothing and is not reported as an error.
func (d *Document) RemoveField(name string) {
	delete(d.fields, name)
}

// RemoveFromArray removes the element at index from the named sequence
// field. An out-of-range index is documented as a no-op.
func (d *Document) RemoveFromArray(name string, index int) error {
	v, ok := d.fields[name]
	if !ok {
		return nil
	}
	if !v.IsSequence() {
		return fmt.Errorf("document: field %q is not a sequence", name)
	}
	if index < 0 || index >= len(v.seq) {
		return nil // documented no-op
	}
	var next = append(append([]Value(nil), v.seq[:index]...), v.seq[index+1:]...)
	d.fields[name] = NewSequence(next...)
	return nil
}

// RenameMode controls how RenameField merges into an existing target field.
type RenameMode int

const (
	// OVERWRITE replaces the target field with the source's value(s).
	OVERWRITE RenameMode = iota
	// APPEND converts the target to a sequence and appends the source's
	// value(s), unpacking the source first if it is itself a sequence.
	APPEND
	// SKIP leaves an existing target field untouched.
	SKIP
)

// RenameField renames `old` to `new`, merging into any existing `new`
// field per mode. The source field is always removed.
func (d *Document) RenameField(oldName, newName string, mode RenameMode) error {
	if isReserved(oldName) || isReserved(newName) || oldName == FieldErrors || newName == FieldErrors {
		return fmt.Errorf("document: cannot rename reserved field %q -> %q", oldName, newName)
	}
	source, ok := d.fields[oldName]
	if !ok {
		return fmt.Errorf("document: no such field %q", oldName)
	}

	_, targetExists := d.fields[newName]
	switch {
	case !targetExists:
		d.fields[newName] = source
	case mode == OVERWRITE:
		d.fields[newName] = source
	case mode == SKIP:
		// leave newName untouched
	case mode == APPEND:
		// Convert target to a sequence and append source's value(s),
		// unpacking source first if it is itself a sequence.
		var target = d.fields[newName]
		d.fields[newName] = NewSequence(append(target.AsSequence(), source.AsSequence()...)...)
	default:
		return fmt.Errorf("document: unknown rename mode %v", mode)
	}

	delete(d.fields, oldName)
	return nil
}
