package program

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-provenance/datalog"
)

// Term is an argument of an atom, a comparison or a foreign call
type Term interface {
	term()
	String() string
}

// Var is a named logic variable
type Var struct {
	Name string
}

// Const is a literal value
type Const struct {
	Value datalog.Value
}

// Wildcard matches anything and binds nothing ("_")
type Wildcard struct{}

// Call invokes a foreign function: $name(args...)
type Call struct {
	Function string
	Args     []Term
}

// ArithOp is a binary arithmetic operator
type ArithOp uint8

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

var arithSymbols = [...]string{"+", "-", "*", "/", "%"}

func (op ArithOp) String() string {
	if int(op) < len(arithSymbols) {
		return arithSymbols[op]
	}
	return fmt.Sprintf("ArithOp(%d)", uint8(op))
}

// Arith applies an arithmetic operator to two terms of the same type
type Arith struct {
	Op          ArithOp
	Left, Right Term
}

func (Var) term()      {}
func (Const) term()    {}
func (Wildcard) term() {}
func (Call) term()     {}
func (Arith) term()    {}

func (v Var) String() string    { return v.Name }
func (c Const) String() string  { return datalog.FormatValue(c.Value) }
func (Wildcard) String() string { return "_" }
func (a Arith) String() string  { return fmt.Sprintf("(%s %s %s)", a.Left, a.Op, a.Right) }
func (c Call) String() string   { return "$" + c.Function + "(" + joinTerms(c.Args) + ")" }

// V creates a variable term
func V(name string) Var {
	return Var{Name: name}
}

// C creates a constant term
func C(v datalog.Value) Const {
	return Const{Value: v}
}

// W creates a wildcard term
func W() Wildcard {
	return Wildcard{}
}

// Fn creates a foreign function call term
func Fn(name string, args ...Term) Call {
	return Call{Function: name, Args: args}
}

// Plus, Minus, Times, Div and Mod build arithmetic terms
func Plus(l, r Term) Arith  { return Arith{Op: OpAdd, Left: l, Right: r} }
func Minus(l, r Term) Arith { return Arith{Op: OpSub, Left: l, Right: r} }
func Times(l, r Term) Arith { return Arith{Op: OpMul, Left: l, Right: r} }
func Div(l, r Term) Arith   { return Arith{Op: OpDiv, Left: l, Right: r} }
func Mod(l, r Term) Arith   { return Arith{Op: OpMod, Left: l, Right: r} }

func joinTerms(terms []Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// termVars appends the variables a term mentions, in order of appearance
func termVars(t Term, out []string) []string {
	switch t := t.(type) {
	case Var:
		out = append(out, t.Name)
	case Call:
		for _, a := range t.Args {
			out = termVars(a, out)
		}
	case Arith:
		out = termVars(t.Left, out)
		out = termVars(t.Right, out)
	}
	return out
}
