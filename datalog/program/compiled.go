package program

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/foreign"
)

// Expr is a term compiled against the variable slots of one rule
type Expr interface {
	expr()
}

// SlotExpr reads a bound variable
type SlotExpr struct {
	Slot int
}

// ConstExpr is a literal value
type ConstExpr struct {
	Value datalog.Value
}

// CallExpr invokes a resolved foreign function
type CallExpr struct {
	Function foreign.Function
	Args     []Expr
}

// ArithExpr applies an arithmetic operator
type ArithExpr struct {
	Op          ArithOp
	Left, Right Expr
}

func (SlotExpr) expr()  {}
func (ConstExpr) expr() {}
func (CallExpr) expr()  {}
func (ArithExpr) expr() {}

// ArgMode says what a step does with one position of a matched tuple
type ArgMode uint8

const (
	// ArgIgnore skips the position (wildcards)
	ArgIgnore ArgMode = iota
	// ArgBind stores the value in Slot
	ArgBind
	// ArgCheck compares the value with Expr
	ArgCheck
)

// Arg is one position of an atom-like step
type Arg struct {
	Mode ArgMode
	Slot int
	Expr Expr
}

// Step is one planned literal of a rule body
type Step interface {
	step()
	String() string
}

// ScanStep joins the binding with the facts of a relation. Key lists the
// positions whose values are known before the step; KeyExprs computes
// them.
type ScanStep struct {
	Relation string
	Args     []Arg
	Key      []int
	KeyExprs []Expr
	// Recursive is set when the relation is defined in the same stratum
	// as the rule, so the step can read a delta
	Recursive bool
	Source    Atom
}

// NegationStep multiplies the binding's tag by the negated tag of the
// matching facts
type NegationStep struct {
	Relation string
	Args     []Arg
	Key      []int
	KeyExprs []Expr
	Source   Negation
}

// PredicateStep fans a binding out over a foreign predicate's results
type PredicateStep struct {
	Predicate foreign.Predicate
	Bounded   []Expr
	Free      []Arg
	Source    PredCall
}

// FilterStep drops bindings for which the comparison does not hold
type FilterStep struct {
	Op          CompareOp
	Left, Right Expr
	Source      Comparison
}

// BindStep assigns a computed value to a fresh variable
type BindStep struct {
	Slot   int
	Expr   Expr
	Source Comparison
}

// AggregateStep evaluates an aggregation. Body positions are matched in
// a local slot space of NumLocals slots. Groups and Of are local slots;
// GroupTargets and Result say how the rule's binding receives the group
// values and the aggregate.
type AggregateStep struct {
	Op           AggregateOp
	Relation     string
	Args         []Arg
	NumLocals    int
	Groups       []int
	GroupTargets []Arg
	Of           []int
	Result       Arg
	Source       Aggregation
}

func (ScanStep) step()      {}
func (NegationStep) step()  {}
func (PredicateStep) step() {}
func (FilterStep) step()    {}
func (BindStep) step()      {}
func (AggregateStep) step() {}

func (s ScanStep) String() string      { return s.Source.String() }
func (s NegationStep) String() string  { return s.Source.String() }
func (s PredicateStep) String() string { return s.Source.String() }
func (s FilterStep) String() string    { return s.Source.String() }
func (s BindStep) String() string      { return s.Source.String() }
func (s AggregateStep) String() string { return s.Source.String() }

// CompiledRule is a rule with its body planned into steps
type CompiledRule struct {
	Index    int
	Source   Rule
	Head     string
	HeadArgs []Expr
	Steps    []Step
	NumSlots int
	Vars     []string // variable name per slot
	Stratum  int
}

func (r *CompiledRule) String() string {
	return r.Source.String()
}

// Plan renders the planned step order
func (r *CompiledRule) Plan() string {
	parts := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		parts[i] = s.String()
	}
	return fmt.Sprintf("%s <- [%s]", r.Source.Head, strings.Join(parts, "; "))
}

// Stratum is a set of mutually dependent relations evaluated together
type Stratum struct {
	Index     int
	Relations []string
	Rules     []*CompiledRule
	// Recursive is set when some rule reads a relation of its own stratum
	Recursive bool
	// Inputs are the relations outside the stratum read by positive atoms
	Inputs []string
	// NonMonotone are the relations read through negation or aggregation
	NonMonotone []string
}

// Defines checks if the stratum derives the relation
func (s *Stratum) Defines(relation string) bool {
	for _, r := range s.Relations {
		if r == relation {
			return true
		}
	}
	return false
}

// Compiled is an immutable, checked and planned program
type Compiled struct {
	Relations map[string]*Relation
	Order     []string
	Strata    []*Stratum
	Rules     []*CompiledRule
	Queries   []string
	// UsesNegation is set when any rule contains a negated atom
	UsesNegation bool
}

// Relation looks up a relation schema
func (c *Compiled) Relation(name string) (*Relation, bool) {
	r, ok := c.Relations[name]
	return r, ok
}

// StratumOf returns the index of the stratum deriving relation
func (c *Compiled) StratumOf(relation string) (int, bool) {
	for _, s := range c.Strata {
		if s.Defines(relation) {
			return s.Index, true
		}
	}
	return 0, false
}

// String renders the strata and rule plans
func (c *Compiled) String() string {
	var b strings.Builder
	for _, s := range c.Strata {
		fmt.Fprintf(&b, "stratum %d %v", s.Index, s.Relations)
		if s.Recursive {
			b.WriteString(" (recursive)")
		}
		b.WriteByte('\n')
		for _, r := range s.Rules {
			fmt.Fprintf(&b, "  %s\n", r.Plan())
		}
	}
	return b.String()
}
