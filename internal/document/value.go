// Package document models story files as an ordered JSON value tree.
//
// A document is built from *Mapping (string keys in insertion order),
// *Sequence, and the scalar variants String, Number, Bool and Null. Numbers
// keep their raw JSON literal so an untouched document saves back byte for
// byte, modulo indentation.
package document

import (
	"fmt"
	"strconv"
)

// Kind identifies the variant held by a Value
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindMapping
	KindSequence
)

// String returns the JSON type name of the kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindMapping:
		return "object"
	case KindSequence:
		return "array"
	default:
		return "unknown"
	}
}

// Value is one node of a document tree
type Value interface {
	Kind() Kind
}

// Null is the JSON null literal
type Null struct{}

// Bool is a JSON boolean
type Bool bool

// Number is a JSON number stored as its raw literal
type Number string

// String is a JSON string
type String string

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }

// Float64 returns the numeric value of the literal.
func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Int is a convenience constructor for integer numbers.
func Int(i int) Number {
	return Number(strconv.Itoa(i))
}

// Mapping is a JSON object that remembers key insertion order
type Mapping struct {
	keys   []string
	values map[string]Value
}

// NewMapping creates an empty mapping
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]Value)}
}

func (*Mapping) Kind() Kind { return KindMapping }

// Len returns the number of keys
func (m *Mapping) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order
func (m *Mapping) Keys() []string {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Get returns the value stored under key
func (m *Mapping) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present
func (m *Mapping) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Set stores v under key. An existing key keeps its position.
func (m *Mapping) Set(key string, v Value) {
	if v == nil {
		v = Null{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key, preserving the order of the remaining keys.
func (m *Mapping) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each entry in key order until fn returns false.
func (m *Mapping) Range(fn func(key string, v Value) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Sequence is a JSON array
type Sequence struct {
	Items []Value
}

// NewSequence creates a sequence holding items
func NewSequence(items ...Value) *Sequence {
	return &Sequence{Items: items}
}

func (*Sequence) Kind() Kind { return KindSequence }

// Len returns the number of elements
func (s *Sequence) Len() int {
	return len(s.Items)
}

// Append adds values to the end of the sequence
func (s *Sequence) Append(values ...Value) {
	s.Items = append(s.Items, values...)
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch t := v.(type) {
	case *Mapping:
		out := NewMapping()
		for _, k := range t.keys {
			out.Set(k, Clone(t.values[k]))
		}
		return out
	case *Sequence:
		items := make([]Value, len(t.Items))
		for i, item := range t.Items {
			items[i] = Clone(item)
		}
		return &Sequence{Items: items}
	default:
		return v
	}
}

// Equal reports whether a and b are structurally identical, including
// key order and raw number literals.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch ta := a.(type) {
	case *Mapping:
		tb := b.(*Mapping)
		if len(ta.keys) != len(tb.keys) {
			return false
		}
		for i, k := range ta.keys {
			if tb.keys[i] != k || !Equal(ta.values[k], tb.values[k]) {
				return false
			}
		}
		return true
	case *Sequence:
		tb := b.(*Sequence)
		if len(ta.Items) != len(tb.Items) {
			return false
		}
		for i := range ta.Items {
			if !Equal(ta.Items[i], tb.Items[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Text returns the string held by v, if v is a String.
func Text(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// Display renders a scalar for reports: strings unquoted, numbers as
// written, null and missing values as "<nil>".
func Display(v Value) string {
	switch t := v.(type) {
	case nil, Null:
		return "<nil>"
	case String:
		return string(t)
	case Number:
		return string(t)
	case Bool:
		return strconv.FormatBool(bool(t))
	default:
		return fmt.Sprintf("<%s>", v.Kind())
	}
}
