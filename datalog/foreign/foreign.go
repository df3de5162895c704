// Package foreign holds the extension points rules can call into: foreign
// functions, which map bound values to a single value, and foreign
// predicates, which generate tuples for their free arguments from their
// bounded ones.
package foreign

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/provenance"
)

// Signature is the static type of a foreign function
type Signature struct {
	Params []datalog.ValueType
	Return datalog.ValueType
}

func (s Signature) String() string {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(params, ", "), s.Return)
}

// Function is a pure mapping from bound argument values to an optional
// value. Returning false excludes the binding that led to the call.
type Function interface {
	Name() string
	Signature() Signature
	Execute(args []datalog.Value) (datalog.Value, bool)
}

// PredicateResult is one tuple produced by a foreign predicate. Values
// holds only the free arguments. A nil Tag maps to the provenance's One.
type PredicateResult struct {
	Tag    *provenance.InputTag
	Values datalog.Tuple
}

// Predicate behaves as a relation parameterized by its bounded arguments.
// The first NumBounded arguments are inputs, the rest are produced. It must
// return the same results for the same inputs.
type Predicate interface {
	Name() string
	Types() []datalog.ValueType
	NumBounded() int
	Evaluate(bounded []datalog.Value) []PredicateResult
}

// FunctionFunc adapts a Go function to the Function interface
type FunctionFunc struct {
	name string
	sig  Signature
	fn   func(args []datalog.Value) (datalog.Value, bool)
}

// NewFunction creates a foreign function from a Go function
func NewFunction(name string, params []datalog.ValueType, ret datalog.ValueType,
	fn func(args []datalog.Value) (datalog.Value, bool)) *FunctionFunc {
	return &FunctionFunc{
		name: name,
		sig:  Signature{Params: params, Return: ret},
		fn:   fn,
	}
}

func (f *FunctionFunc) Name() string         { return f.name }
func (f *FunctionFunc) Signature() Signature { return f.sig }

func (f *FunctionFunc) Execute(args []datalog.Value) (datalog.Value, bool) {
	return f.fn(args)
}

// PredicateFunc adapts a Go function to the Predicate interface
type PredicateFunc struct {
	name    string
	types   []datalog.ValueType
	bounded int
	fn      func(bounded []datalog.Value) []PredicateResult
}

// NewPredicate creates a foreign predicate from a Go function
func NewPredicate(name string, types []datalog.ValueType, numBounded int,
	fn func(bounded []datalog.Value) []PredicateResult) *PredicateFunc {
	return &PredicateFunc{
		name:    name,
		types:   types,
		bounded: numBounded,
		fn:      fn,
	}
}

func (p *PredicateFunc) Name() string               { return p.name }
func (p *PredicateFunc) Types() []datalog.ValueType { return p.types }
func (p *PredicateFunc) NumBounded() int            { return p.bounded }

func (p *PredicateFunc) Evaluate(bounded []datalog.Value) []PredicateResult {
	return p.fn(bounded)
}

// Pattern renders the binding pattern of a predicate, e.g. "bf" for one
// bounded and one free argument.
func Pattern(p Predicate) string {
	arity := len(p.Types())
	return strings.Repeat("b", p.NumBounded()) + strings.Repeat("f", arity-p.NumBounded())
}

// Results is a helper for predicates that yield untagged tuples
func Results(tuples ...datalog.Tuple) []PredicateResult {
	results := make([]PredicateResult, len(tuples))
	for i, t := range tuples {
		results[i] = PredicateResult{Values: t}
	}
	return results
}
