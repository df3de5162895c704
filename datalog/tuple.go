package datalog

import (
	"fmt"
	"strings"
)

// Tuple is an ordered, fixed-length sequence of values. Tuples are treated
// as immutable once they are stored in a relation.
type Tuple []Value

// NewTuple builds a tuple from the given values
func NewTuple(values ...Value) Tuple {
	t := make(Tuple, len(values))
	copy(t, values)
	return t
}

// Arity returns the number of values in the tuple
func (t Tuple) Arity() int {
	return len(t)
}

// Get returns the value at index i. It returns false instead of panicking
// when i is out of range.
func (t Tuple) Get(i int) (Value, bool) {
	if i < 0 || i >= len(t) {
		return nil, false
	}
	return t[i], true
}

// At projects the value at index i as type V. A type mismatch or an index
// out of range yields false; evaluator code treats that as a failed match.
func At[V any](t Tuple, i int) (V, bool) {
	var zero V
	raw, ok := t.Get(i)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Equal checks structural equality
func (t Tuple) Equal(other Tuple) bool {
	return tupleValuesEqual(t, other)
}

// Types returns the concrete type of every position
func (t Tuple) Types() []ValueType {
	types := make([]ValueType, len(t))
	for i, v := range t {
		types[i], _ = TypeOf(v)
	}
	return types
}

// String renders the tuple as (v1, v2, ...)
func (t Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range t {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(FormatValue(v))
	}
	b.WriteByte(')')
	return b.String()
}

// FormatValue renders a single value the way it would be written in a
// program: strings quoted, characters in single quotes.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", val)
	case Char:
		return fmt.Sprintf("'%c'", rune(val))
	case Tuple:
		return val.String()
	case float32, float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
