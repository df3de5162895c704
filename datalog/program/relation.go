package program

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-provenance/datalog"
)

// Relation describes a named set of tuples of fixed arity
type Relation struct {
	Name  string
	Types []datalog.ValueType

	// Declared is set when the relation was declared with types; otherwise
	// its arity comes from the first rule deriving it and every position
	// accepts any type.
	Declared bool
	// Derived is set when at least one rule has the relation as its head
	Derived bool
	// Query marks relations the caller intends to read after a run
	Query bool
}

// Arity returns the number of positions
func (r *Relation) Arity() int {
	return len(r.Types)
}

// CheckTuple verifies that a tuple fits the relation's arity and types
func (r *Relation) CheckTuple(t datalog.Tuple) error {
	if len(t) != len(r.Types) {
		return fmt.Errorf("%w: %s expects %d values, got %d", ErrArityMismatch, r.Name, len(r.Types), len(t))
	}
	for i, v := range t {
		vt, ok := datalog.TypeOf(v)
		if !ok {
			return fmt.Errorf("%w: %s position %d holds unsupported Go type %T", ErrTypeMismatch, r.Name, i, v)
		}
		if !r.Types[i].Accepts(vt) {
			return fmt.Errorf("%w: %s position %d expects %s, got %s", ErrTypeMismatch, r.Name, i, r.Types[i], vt)
		}
	}
	return nil
}

func (r *Relation) String() string {
	types := make([]string, len(r.Types))
	for i, t := range r.Types {
		types[i] = t.String()
	}
	return r.Name + "(" + strings.Join(types, ", ") + ")"
}

// Clone returns a copy that shares nothing with r
func (r *Relation) Clone() *Relation {
	c := *r
	c.Types = append([]datalog.ValueType(nil), r.Types...)
	return &c
}

func anyTypes(arity int) []datalog.ValueType {
	types := make([]datalog.ValueType, arity)
	for i := range types {
		types[i] = datalog.TypeAny
	}
	return types
}
