// Package document implements the mutable Document value type that flows
// through a pipeline run: a payload of typed scalar or sequence fields,
// reserved identity/lineage fields, an append-only error log, and a tree
// of child documents discovered during enrichment.
package document

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the concrete type held by a Value. It is never
// exposed directly to callers; typed accessors coerce or fail instead.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// timeLayout is the ISO-8601 / RFC3339 layout used to serialize timestamps,
// per the document's JSON wire format.
const timeLayout = time.RFC3339Nano

// Value is a tagged sum over the scalar kinds a Document field may hold,
// or an ordered sequence of scalars. Sequences are never nested: a field
// promoted to multi-valued holds a sequence of scalar Values, never a
// sequence of sequences.
type Value struct {
	kind Kind
	str  string
	i64  int64
	f64  float64
	b    bool
	t    time.Time
	seq  []Value
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// NewString returns a string-kinded Value.
func NewString(s string) Value { return Value{kind: KindString, str: s} }

// NewInt returns an integer-kinded Value.
func NewInt(i int64) Value { return Value{kind: KindInt, i64: i} }

// NewFloat returns a floating-point-kinded Value.
func NewFloat(f float64) Value { return Value{kind: KindFloat, f64: f} }

// NewBool returns a boolean-kinded Value.
func NewBool(b bool) Value { return Value{kind: KindBool, b: b} }

// NewTime returns a timestamp-kinded Value, serialized as ISO-8601 UTC.
func NewTime(t time.Time) Value { return Value{kind: KindTime, t: t.UTC()} }

// NewSequence returns a sequence-kinded Value wrapping the given scalars.
// Passing a sequence as an element is flattened by one level, since
// sequences are never nested.
func NewSequence(vs ...Value) Value {
	var out = make([]Value, 0, len(vs))
	for _, v := range vs {
		if v.kind == KindSequence {
			out = append(out, v.seq...)
		} else {
			out = append(out, v)
		}
	}
	return Value{kind: KindSequence, seq: out}
}

// Kind reports the discriminant of this Value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether this Value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsSequence reports whether this Value holds a sequence.
func (v Value) IsSequence() bool { return v.kind == KindSequence }

// AsString coerces this Value to a string. A sequence coerces via its
// first element, matching Document.GetString's documented behavior.
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindSequence:
		if len(v.seq) == 0 {
			return "", false
		}
		return v.seq[0].AsString()
	default:
		return "", false
	}
}

// AsInt coerces this Value to an int64.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i64, true
	case KindSequence:
		if len(v.seq) == 0 {
			return 0, false
		}
		return v.seq[0].AsInt()
	default:
		return 0, false
	}
}

// AsFloat coerces this Value to a float64. An integer Value widens cleanly.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f64, true
	case KindInt:
		return float64(v.i64), true
	case KindSequence:
		if len(v.seq) == 0 {
			return 0, false
		}
		return v.seq[0].AsFloat()
	default:
		return 0, false
	}
}

// AsBool coerces this Value to a bool.
func (v Value) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindSequence:
		if len(v.seq) == 0 {
			return false, false
		}
		return v.seq[0].AsBool()
	default:
		return false, false
	}
}

// AsTime coerces this Value to a time.Time. A string Value is parsed as
// RFC3339/ISO-8601, since documents round-tripped through JSON lose the
// Time/String distinction and must be re-coerced on read.
func (v Value) AsTime() (time.Time, bool) {
	switch v.kind {
	case KindTime:
		return v.t, true
	case KindString:
		if t, err := time.Parse(timeLayout, v.str); err == nil {
			return t, true
		}
		if t, err := time.Parse(time.RFC3339, v.str); err == nil {
			return t, true
		}
		return time.Time{}, false
	case KindSequence:
		if len(v.seq) == 0 {
			return time.Time{}, false
		}
		return v.seq[0].AsTime()
	default:
		return time.Time{}, false
	}
}

// AsSequence returns this Value's elements. A non-null scalar Value is
// returned as a one-element sequence; null returns an empty sequence.
func (v Value) AsSequence() []Value {
	if v.kind == KindSequence {
		return append([]Value(nil), v.seq...)
	}
	if v.kind == KindNull {
		return nil
	}
	return []Value{v}
}

// promote returns a sequence Value with the receiver as element 0 followed
// by the given additions, promoting a scalar to multi-valued while
// preserving the prior scalar as element 0.
func (v Value) promote(additions ...Value) Value {
	if v.kind == KindSequence {
		return NewSequence(append(append([]Value(nil), v.seq...), additions...)...)
	}
	return NewSequence(append([]Value{v}, additions...)...)
}

// Equal reports structural equality between two Values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindInt:
		return v.i64 == o.i64
	case KindFloat:
		return v.f64 == o.f64
	case KindBool:
		return v.b == o.b
	case KindTime:
		return v.t.Equal(o.t)
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// raw converts this Value into a plain interface{} tree suitable for
// json.Marshal or Document.AsMap.
func (v Value) raw() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindString:
		return v.str
	case KindInt:
		return v.i64
	case KindFloat:
		return v.f64
	case KindBool:
		return v.b
	case KindTime:
		return v.t.Format(timeLayout)
	case KindSequence:
		var out = make([]interface{}, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.raw()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) { return json.Marshal(v.raw()) }

// valueFromRaw converts a decoded interface{} (as produced by
// encoding/json, using json.Number for numerics) into a Value.
func valueFromRaw(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return NewString(x), nil
	case bool:
		return NewBool(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return NewInt(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("document: invalid number %q: %w", x.String(), err)
		}
		return NewFloat(f), nil
	case float64:
		return NewFloat(x), nil
	case []interface{}:
		var seq = make([]Value, len(x))
		for i, e := range x {
			v, err := valueFromRaw(e)
			if err != nil {
				return Value{}, err
			}
			seq[i] = v
		}
		return NewSequence(seq...), nil
	default:
		return Value{}, fmt.Errorf("document: unsupported field value of type %T", raw)
	}
}
