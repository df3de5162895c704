package program

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/foreign"
)

// ruleCompiler checks one rule and plans its body. Literals are scheduled
// greedily: a ready filter (comparison, negation, foreign predicate) runs
// as soon as its inputs are bound, otherwise the next generator (atom or
// aggregation) is chosen, preferring one connected to the bound variables.
type ruleCompiler struct {
	rule     Rule
	lookup   relationLookup
	registry *foreign.Registry

	slots map[string]int
	vars  []string
	types map[string]datalog.ValueType
	steps []Step
}

func compileRule(rule Rule, lookup relationLookup, registry *foreign.Registry) (*CompiledRule, error) {
	if registry == nil {
		registry = foreign.NewEmptyRegistry()
	}
	c := &ruleCompiler{
		rule:     rule,
		lookup:   lookup,
		registry: registry,
		slots:    make(map[string]int),
		types:    make(map[string]datalog.ValueType),
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule, err)
	}
	if err := c.inferTypes(); err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule, err)
	}
	if err := c.plan(); err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule, err)
	}

	head := make([]Expr, len(rule.Head.Args))
	for i, arg := range rule.Head.Args {
		for _, v := range termVars(arg, nil) {
			if _, ok := c.slots[v]; !ok {
				return nil, fmt.Errorf("rule %s: %w: head variable %s is not bound by the body", rule, ErrUnboundVariable, v)
			}
		}
		head[i] = c.expr(arg)
	}

	return &CompiledRule{
		Source:   rule,
		Head:     rule.Head.Relation,
		HeadArgs: head,
		Steps:    c.steps,
		NumSlots: len(c.vars),
		Vars:     c.vars,
	}, nil
}

// validate checks arities, foreign references and wildcard placement
func (c *ruleCompiler) validate() error {
	if c.rule.Head.Relation == "" {
		return fmt.Errorf("%w: head without a relation", ErrInvalidRule)
	}
	if err := c.checkAtomArity(c.rule.Head); err != nil {
		return err
	}
	for _, arg := range c.rule.Head.Args {
		if err := c.checkTerm(arg, false); err != nil {
			return err
		}
	}

	for _, l := range c.rule.Body {
		switch l := l.(type) {
		case Atom:
			if err := c.checkAtomArity(l); err != nil {
				return err
			}
			for _, arg := range l.Args {
				if err := c.checkTerm(arg, true); err != nil {
					return err
				}
			}
		case Negation:
			if err := c.checkAtomArity(l.Atom); err != nil {
				return err
			}
			for _, arg := range l.Atom.Args {
				if err := c.checkTerm(arg, true); err != nil {
					return err
				}
			}
		case PredCall:
			p, err := c.registry.ValidatePredicate(l.Predicate, len(l.Args))
			if err != nil {
				return foreignError(err)
			}
			for i, arg := range l.Args {
				if err := c.checkTerm(arg, i >= p.NumBounded()); err != nil {
					return err
				}
			}
		case Comparison:
			if err := c.checkTerm(l.Left, false); err != nil {
				return err
			}
			if err := c.checkTerm(l.Right, false); err != nil {
				return err
			}
		case Aggregation:
			if err := c.checkAtomArity(l.Body); err != nil {
				return err
			}
			for _, arg := range l.Body.Args {
				switch arg.(type) {
				case Var, Const, Wildcard:
				default:
					return fmt.Errorf("%w: aggregation body %s may only use variables and constants", ErrInvalidRule, l.Body)
				}
			}
			if err := c.checkAggregationVars(l); err != nil {
				return err
			}
		case nil:
			return fmt.Errorf("%w: nil literal", ErrInvalidRule)
		default:
			return fmt.Errorf("%w: unsupported literal %T", ErrInvalidRule, l)
		}
	}
	return nil
}

func (c *ruleCompiler) checkAtomArity(a Atom) error {
	r, err := c.lookup(a.Relation)
	if err != nil {
		return err
	}
	if r != nil && r.Arity() != len(a.Args) {
		return fmt.Errorf("%w: %s has arity %d, used with %d arguments", ErrArityMismatch, a.Relation, r.Arity(), len(a.Args))
	}
	return nil
}

// checkTerm validates foreign calls and rejects wildcards where a value is
// required
func (c *ruleCompiler) checkTerm(t Term, wildcardOK bool) error {
	switch t := t.(type) {
	case nil:
		return fmt.Errorf("%w: nil term", ErrInvalidRule)
	case Wildcard:
		if !wildcardOK {
			return fmt.Errorf("%w: wildcard used where a value is required", ErrInvalidRule)
		}
	case Var:
		if t.Name == "" || t.Name == "_" {
			return fmt.Errorf("%w: variable without a name", ErrInvalidRule)
		}
	case Const:
		if _, ok := datalog.TypeOf(t.Value); !ok {
			return fmt.Errorf("%w: constant %v has unsupported Go type %T", ErrTypeMismatch, t.Value, t.Value)
		}
	case Call:
		if _, err := c.registry.ValidateFunction(t.Function, len(t.Args)); err != nil {
			return foreignError(err)
		}
		for _, a := range t.Args {
			if err := c.checkTerm(a, false); err != nil {
				return err
			}
		}
	case Arith:
		if err := c.checkTerm(t.Left, false); err != nil {
			return err
		}
		return c.checkTerm(t.Right, false)
	}
	return nil
}

func (c *ruleCompiler) checkAggregationVars(a Aggregation) error {
	inBody := make(map[string]bool)
	for _, v := range literalVars(a.Body) {
		inBody[v] = true
	}
	for _, v := range a.GroupBy {
		if !inBody[v.Name] {
			return fmt.Errorf("%w: group variable %s does not appear in %s", ErrUnboundVariable, v.Name, a.Body)
		}
		if v.Name == a.Result.Name {
			return fmt.Errorf("%w: aggregation result %s is also a group variable", ErrInvalidRule, v.Name)
		}
	}
	for _, v := range a.Of {
		if !inBody[v.Name] {
			return fmt.Errorf("%w: aggregated variable %s does not appear in %s", ErrUnboundVariable, v.Name, a.Body)
		}
		if v.Name == a.Result.Name {
			return fmt.Errorf("%w: aggregation result %s is also aggregated", ErrInvalidRule, v.Name)
		}
	}
	if inBody[a.Result.Name] {
		return fmt.Errorf("%w: aggregation result %s appears in its own body", ErrInvalidRule, a.Result.Name)
	}
	switch a.Op {
	case AggSum, AggMin, AggMax:
		if len(a.Of) == 0 {
			return fmt.Errorf("%w: %s needs a variable to aggregate", ErrInvalidRule, a.Op)
		}
	case AggCount, AggExists:
	default:
		return fmt.Errorf("%w: unknown aggregation %s", ErrInvalidRule, a.Op)
	}
	return nil
}

// foreignError maps registry errors onto the compile error vocabulary
func foreignError(err error) error {
	if errors.Is(err, foreign.ErrArity) {
		return fmt.Errorf("%w: %w", ErrArityMismatch, err)
	}
	return fmt.Errorf("%w: %w", ErrUnknownForeign, err)
}

// inferTypes unifies variable types across the declared relation types and
// foreign signatures, and checks constants against them
func (c *ruleCompiler) inferTypes() error {
	expectAtom := func(a Atom) error {
		r, _ := c.lookup(a.Relation)
		for i, arg := range a.Args {
			t := datalog.TypeAny
			if r != nil && r.Declared {
				t = r.Types[i]
			}
			if err := c.expect(arg, t, a.String()); err != nil {
				return err
			}
		}
		return nil
	}

	for _, l := range c.rule.Body {
		var err error
		switch l := l.(type) {
		case Atom:
			err = expectAtom(l)
		case Negation:
			err = expectAtom(l.Atom)
		case PredCall:
			p, _ := c.registry.Predicate(l.Predicate)
			for i, arg := range l.Args {
				if err = c.expect(arg, p.Types()[i], l.String()); err != nil {
					break
				}
			}
		case Aggregation:
			if err = expectAtom(l.Body); err != nil {
				break
			}
			switch l.Op {
			case AggCount:
				err = c.unify(l.Result.Name, datalog.TypeUSize, l.String())
			case AggExists:
				err = c.unify(l.Result.Name, datalog.TypeBool, l.String())
			default:
				err = c.unify(l.Result.Name, c.termType(l.Of[0]), l.String())
			}
		}
		if err != nil {
			return err
		}
	}

	// Comparisons last so that both sides have their best known type
	for _, l := range c.rule.Body {
		if cmp, ok := l.(Comparison); ok {
			lt, rt := c.termType(cmp.Left), c.termType(cmp.Right)
			if err := c.expect(cmp.Left, rt, cmp.String()); err != nil {
				return err
			}
			if err := c.expect(cmp.Right, lt, cmp.String()); err != nil {
				return err
			}
		}
	}

	return expectAtom(c.rule.Head)
}

// unify narrows the known type of a variable
func (c *ruleCompiler) unify(name string, t datalog.ValueType, where string) error {
	if t == datalog.TypeAny || t == datalog.TypeInvalid {
		return nil
	}
	cur, ok := c.types[name]
	if !ok || cur == datalog.TypeAny {
		c.types[name] = t
		return nil
	}
	if !cur.Accepts(t) && !t.Accepts(cur) {
		return fmt.Errorf("%w: variable %s is used as %s and %s in %s", ErrTypeMismatch, name, cur, t, where)
	}
	if cur.IsFamily() && !t.IsFamily() {
		c.types[name] = t
	}
	return nil
}

// expect checks that a term can produce a value of type t
func (c *ruleCompiler) expect(term Term, t datalog.ValueType, where string) error {
	switch term := term.(type) {
	case Var:
		return c.unify(term.Name, t, where)
	case Const:
		vt, _ := datalog.TypeOf(term.Value)
		if !t.Accepts(vt) {
			return fmt.Errorf("%w: constant %s is %s, expected %s in %s", ErrTypeMismatch, term, vt, t, where)
		}
	case Call:
		f, _ := c.registry.Function(term.Function)
		sig := f.Signature()
		for i, arg := range term.Args {
			if err := c.expect(arg, sig.Params[i], where); err != nil {
				return err
			}
		}
		if !t.Accepts(sig.Return) {
			return fmt.Errorf("%w: $%s returns %s, expected %s in %s", ErrTypeMismatch, term.Function, sig.Return, t, where)
		}
	case Arith:
		if !t.Accepts(datalog.TypeNumber) {
			return fmt.Errorf("%w: arithmetic %s produces a number, expected %s in %s", ErrTypeMismatch, term, t, where)
		}
		if err := c.expect(term.Left, t, where); err != nil {
			return err
		}
		return c.expect(term.Right, t, where)
	}
	return nil
}

func (c *ruleCompiler) termType(term Term) datalog.ValueType {
	switch term := term.(type) {
	case Var:
		if t, ok := c.types[term.Name]; ok {
			return t
		}
	case Const:
		t, _ := datalog.TypeOf(term.Value)
		return t
	case Call:
		if f, ok := c.registry.Function(term.Function); ok {
			return f.Signature().Return
		}
	case Arith:
		if t := c.termType(term.Left); t != datalog.TypeAny {
			return t
		}
		return c.termType(term.Right)
	}
	return datalog.TypeAny
}

// plan schedules every body literal
func (c *ruleCompiler) plan() error {
	done := make([]bool, len(c.rule.Body))
	for remaining := len(done); remaining > 0; remaining-- {
		next := c.pickNext(done)
		if next < 0 {
			return c.unplannable(done)
		}
		if err := c.compileLiteral(c.rule.Body[next]); err != nil {
			return err
		}
		done[next] = true
	}
	return nil
}

func (c *ruleCompiler) pickNext(done []bool) int {
	// Filters first, as soon as they are ready
	for i, l := range c.rule.Body {
		if done[i] {
			continue
		}
		switch l.(type) {
		case Negation, PredCall, Comparison:
			if c.ready(l) {
				return i
			}
		}
	}

	// Then generators, preferring those sharing a bound variable
	first := -1
	for i, l := range c.rule.Body {
		if done[i] {
			continue
		}
		switch l := l.(type) {
		case Atom:
			if !c.ready(l) {
				continue
			}
			if c.connected(l.Args) {
				return i
			}
		case Aggregation:
			for _, g := range l.GroupBy {
				if c.isBound(g.Name) {
					return i
				}
			}
		default:
			continue
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

func (c *ruleCompiler) ready(l Literal) bool {
	switch l := l.(type) {
	case Atom:
		for _, arg := range l.Args {
			switch arg.(type) {
			case Call, Arith:
				if !c.evaluable(arg) {
					return false
				}
			}
		}
		return true
	case Negation:
		for _, arg := range l.Atom.Args {
			if _, ok := arg.(Wildcard); ok {
				continue
			}
			if !c.evaluable(arg) {
				return false
			}
		}
		return true
	case PredCall:
		p, _ := c.registry.Predicate(l.Predicate)
		for _, arg := range l.Args[:p.NumBounded()] {
			if !c.evaluable(arg) {
				return false
			}
		}
		for _, arg := range l.Args[p.NumBounded():] {
			switch arg.(type) {
			case Call, Arith:
				if !c.evaluable(arg) {
					return false
				}
			}
		}
		return true
	case Comparison:
		if c.evaluable(l.Left) && c.evaluable(l.Right) {
			return true
		}
		_, ok := c.bindTarget(l)
		return ok
	case Aggregation:
		return true
	}
	return false
}

// bindTarget returns the variable an equality binds, if any
func (c *ruleCompiler) bindTarget(cmp Comparison) (string, bool) {
	if cmp.Op != OpEq {
		return "", false
	}
	if v, ok := cmp.Left.(Var); ok && !c.isBound(v.Name) && c.evaluable(cmp.Right) {
		return v.Name, true
	}
	if v, ok := cmp.Right.(Var); ok && !c.isBound(v.Name) && c.evaluable(cmp.Left) {
		return v.Name, true
	}
	return "", false
}

func (c *ruleCompiler) evaluable(t Term) bool {
	if _, ok := t.(Wildcard); ok {
		return false
	}
	for _, v := range termVars(t, nil) {
		if !c.isBound(v) {
			return false
		}
	}
	return true
}

func (c *ruleCompiler) connected(args []Term) bool {
	for _, arg := range args {
		switch arg := arg.(type) {
		case Const, Call, Arith:
			return true
		case Var:
			if c.isBound(arg.Name) {
				return true
			}
		}
	}
	return false
}

func (c *ruleCompiler) isBound(name string) bool {
	_, ok := c.slots[name]
	return ok
}

func (c *ruleCompiler) bind(name string) int {
	slot := len(c.vars)
	c.slots[name] = slot
	c.vars = append(c.vars, name)
	return slot
}

func (c *ruleCompiler) unplannable(done []bool) error {
	var parts []string
	for i, l := range c.rule.Body {
		if done[i] {
			continue
		}
		var unbound []string
		for _, v := range literalVars(l) {
			if !c.isBound(v) {
				unbound = append(unbound, v)
			}
		}
		parts = append(parts, fmt.Sprintf("%s in %s", strings.Join(unbound, ", "), l))
	}
	return fmt.Errorf("%w: %s", ErrUnboundVariable, strings.Join(parts, "; "))
}

func (c *ruleCompiler) expr(t Term) Expr {
	switch t := t.(type) {
	case Var:
		return SlotExpr{Slot: c.slots[t.Name]}
	case Const:
		return ConstExpr{Value: t.Value}
	case Call:
		f, _ := c.registry.Function(t.Function)
		args := make([]Expr, len(t.Args))
		for i, a := range t.Args {
			args[i] = c.expr(a)
		}
		return CallExpr{Function: f, Args: args}
	case Arith:
		return ArithExpr{Op: t.Op, Left: c.expr(t.Left), Right: c.expr(t.Right)}
	}
	return nil
}

// atomArgs compiles the positions of an atom-like literal. Positions known
// before the step are returned as the lookup key.
func (c *ruleCompiler) atomArgs(terms []Term) (args []Arg, key []int, keyExprs []Expr) {
	fresh := make(map[string]bool)
	args = make([]Arg, len(terms))
	for i, t := range terms {
		switch t := t.(type) {
		case Wildcard:
			args[i] = Arg{Mode: ArgIgnore}
		case Var:
			if slot, ok := c.slots[t.Name]; ok {
				args[i] = Arg{Mode: ArgCheck, Expr: SlotExpr{Slot: slot}}
				if !fresh[t.Name] {
					key = append(key, i)
					keyExprs = append(keyExprs, args[i].Expr)
				}
				continue
			}
			fresh[t.Name] = true
			args[i] = Arg{Mode: ArgBind, Slot: c.bind(t.Name)}
		default:
			args[i] = Arg{Mode: ArgCheck, Expr: c.expr(t)}
			key = append(key, i)
			keyExprs = append(keyExprs, args[i].Expr)
		}
	}
	return args, key, keyExprs
}

func (c *ruleCompiler) compileLiteral(l Literal) error {
	switch l := l.(type) {
	case Atom:
		args, key, keyExprs := c.atomArgs(l.Args)
		c.steps = append(c.steps, ScanStep{Relation: l.Relation, Args: args, Key: key, KeyExprs: keyExprs, Source: l})
	case Negation:
		args, key, keyExprs := c.atomArgs(l.Atom.Args)
		c.steps = append(c.steps, NegationStep{Relation: l.Atom.Relation, Args: args, Key: key, KeyExprs: keyExprs, Source: l})
	case PredCall:
		p, _ := c.registry.Predicate(l.Predicate)
		bounded := make([]Expr, p.NumBounded())
		for i, arg := range l.Args[:p.NumBounded()] {
			bounded[i] = c.expr(arg)
		}
		free, _, _ := c.atomArgs(l.Args[p.NumBounded():])
		c.steps = append(c.steps, PredicateStep{Predicate: p, Bounded: bounded, Free: free, Source: l})
	case Comparison:
		if c.evaluable(l.Left) && c.evaluable(l.Right) {
			c.steps = append(c.steps, FilterStep{Op: l.Op, Left: c.expr(l.Left), Right: c.expr(l.Right), Source: l})
			return nil
		}
		name, _ := c.bindTarget(l)
		other := l.Right
		if v, ok := l.Right.(Var); ok && v.Name == name {
			other = l.Left
		}
		e := c.expr(other)
		c.steps = append(c.steps, BindStep{Slot: c.bind(name), Expr: e, Source: l})
	case Aggregation:
		return c.compileAggregation(l)
	}
	return nil
}

func (c *ruleCompiler) compileAggregation(a Aggregation) error {
	step := AggregateStep{Op: a.Op, Relation: a.Body.Relation, Source: a}

	local := make(map[string]int)
	step.Args = make([]Arg, len(a.Body.Args))
	for i, t := range a.Body.Args {
		switch t := t.(type) {
		case Wildcard:
			step.Args[i] = Arg{Mode: ArgIgnore}
		case Const:
			step.Args[i] = Arg{Mode: ArgCheck, Expr: ConstExpr{Value: t.Value}}
		case Var:
			if slot, ok := local[t.Name]; ok {
				step.Args[i] = Arg{Mode: ArgCheck, Expr: SlotExpr{Slot: slot}}
				continue
			}
			slot := len(local)
			local[t.Name] = slot
			step.Args[i] = Arg{Mode: ArgBind, Slot: slot}
		}
	}
	step.NumLocals = len(local)

	for _, g := range a.GroupBy {
		step.Groups = append(step.Groups, local[g.Name])
	}
	for _, v := range a.Of {
		step.Of = append(step.Of, local[v.Name])
	}

	// Rule-level targets are resolved after the local scope so that a
	// group variable bound earlier in the body is checked, not rebound.
	for _, g := range a.GroupBy {
		if slot, ok := c.slots[g.Name]; ok {
			step.GroupTargets = append(step.GroupTargets, Arg{Mode: ArgCheck, Expr: SlotExpr{Slot: slot}})
		} else {
			step.GroupTargets = append(step.GroupTargets, Arg{Mode: ArgBind, Slot: c.bind(g.Name)})
		}
	}
	if slot, ok := c.slots[a.Result.Name]; ok {
		step.Result = Arg{Mode: ArgCheck, Expr: SlotExpr{Slot: slot}}
	} else {
		step.Result = Arg{Mode: ArgBind, Slot: c.bind(a.Result.Name)}
	}

	c.steps = append(c.steps, step)
	return nil
}
