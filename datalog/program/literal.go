package program

import (
	"fmt"
	"strings"
)

// Literal is one element of a rule body
type Literal interface {
	literal()
	String() string
}

// Atom matches the facts of a relation
type Atom struct {
	Relation string
	Args     []Term
}

// Negation holds when no fact matches its atom. Every variable of the atom
// must be bound by other literals; wildcards are allowed.
type Negation struct {
	Atom Atom
}

// PredCall invokes a foreign predicate. The leading bounded arguments must
// be computable when the call is reached; the remaining ones are bound or
// checked against the produced tuples.
type PredCall struct {
	Predicate string
	Args      []Term
}

// CompareOp is a comparison operator
type CompareOp uint8

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var compareSymbols = [...]string{"==", "!=", "<", "<=", ">", ">="}

func (op CompareOp) String() string {
	if int(op) < len(compareSymbols) {
		return compareSymbols[op]
	}
	return fmt.Sprintf("CompareOp(%d)", uint8(op))
}

// Comparison filters bindings. An equality with an unbound variable on one
// side and a computable term on the other binds the variable instead.
type Comparison struct {
	Op          CompareOp
	Left, Right Term
}

// AggregateOp selects the aggregation function
type AggregateOp uint8

const (
	AggCount AggregateOp = iota
	AggSum
	AggMin
	AggMax
	AggExists
)

var aggregateNames = [...]string{"count", "sum", "min", "max", "exists"}

func (op AggregateOp) String() string {
	if int(op) < len(aggregateNames) {
		return aggregateNames[op]
	}
	return fmt.Sprintf("AggregateOp(%d)", uint8(op))
}

// Aggregation reduces the facts matching Body, grouped by the GroupBy
// variables, into Result.
//
// Of lists the variables whose distinct bindings are aggregated. count
// counts them, sum, min and max use the first one, exists ignores them.
// The aggregated relation must be fully computed in a lower stratum.
type Aggregation struct {
	Result  Var
	Op      AggregateOp
	Of      []Var
	GroupBy []Var
	Body    Atom
}

func (Atom) literal()        {}
func (Negation) literal()    {}
func (PredCall) literal()    {}
func (Comparison) literal()  {}
func (Aggregation) literal() {}

func (a Atom) String() string {
	return a.Relation + "(" + joinTerms(a.Args) + ")"
}

func (n Negation) String() string {
	return "not " + n.Atom.String()
}

func (p PredCall) String() string {
	return p.Predicate + "(" + joinTerms(p.Args) + ")"
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

func (a Aggregation) String() string {
	of := make([]string, len(a.Of))
	for i, v := range a.Of {
		of[i] = v.Name
	}
	s := fmt.Sprintf("%s = %s(%s: %s", a.Result, a.Op, strings.Join(of, ", "), a.Body)
	if len(a.GroupBy) > 0 {
		groups := make([]string, len(a.GroupBy))
		for i, v := range a.GroupBy {
			groups[i] = v.Name
		}
		s += " group by " + strings.Join(groups, ", ")
	}
	return s + ")"
}

// A creates an atom
func A(relation string, args ...Term) Atom {
	return Atom{Relation: relation, Args: args}
}

// Not creates a negated atom
func Not(relation string, args ...Term) Negation {
	return Negation{Atom: A(relation, args...)}
}

// P creates a foreign predicate call
func P(predicate string, args ...Term) PredCall {
	return PredCall{Predicate: predicate, Args: args}
}

// Cmp creates a comparison literal
func Cmp(op CompareOp, left, right Term) Comparison {
	return Comparison{Op: op, Left: left, Right: right}
}

// Eq creates an equality, which binds left when it is an unbound variable
func Eq(left, right Term) Comparison {
	return Comparison{Op: OpEq, Left: left, Right: right}
}

// Agg creates an aggregation literal
func Agg(result Var, op AggregateOp, of []Var, body Atom, groupBy ...Var) Aggregation {
	return Aggregation{Result: result, Op: op, Of: of, GroupBy: groupBy, Body: body}
}

// literalVars returns the variables a literal mentions. For aggregations
// only the variables visible to the rule are returned.
func literalVars(l Literal) []string {
	var out []string
	switch l := l.(type) {
	case Atom:
		for _, t := range l.Args {
			out = termVars(t, out)
		}
	case Negation:
		for _, t := range l.Atom.Args {
			out = termVars(t, out)
		}
	case PredCall:
		for _, t := range l.Args {
			out = termVars(t, out)
		}
	case Comparison:
		out = termVars(l.Left, out)
		out = termVars(l.Right, out)
	case Aggregation:
		out = append(out, l.Result.Name)
		for _, v := range l.GroupBy {
			out = append(out, v.Name)
		}
	}
	return out
}
