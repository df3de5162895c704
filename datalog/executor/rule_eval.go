package executor

import (
	"context"
	"sync"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/program"
	"github.com/wbrown/janus-provenance/datalog/provenance"
	"github.com/wbrown/janus-provenance/datalog/storage"
)

// stratumRun is the state shared by the rule tasks of one stratum
type stratumRun[T any] struct {
	prov       provenance.Provenance[T]
	negator    provenance.Negator[T]
	db         *Database[T]
	prog       *program.Compiled
	stratum    *program.Stratum
	totals     map[string]*storage.Collection[T]
	predicates *predicateCache[T]

	aggMu sync.Mutex
	aggs  map[aggKey][]aggGroup[T]
}

// source returns the facts a step reads: the stratum's own totals for
// relations it derives, the database otherwise
func (s *stratumRun[T]) source(relation string) *storage.Collection[T] {
	if c, ok := s.totals[relation]; ok {
		return c
	}
	return s.db.Relation(relation)
}

// ruleTask evaluates one rule, optionally reading a delta at one scan step
type ruleTask[T any] struct {
	rule      *program.CompiledRule
	deltaStep int
	delta     *storage.Collection[T]
}

func (t ruleTask[T]) deltaName() string {
	if t.delta == nil {
		return ""
	}
	return t.delta.Name()
}

type derivation[T any] struct {
	relation string
	tag      T
	tuple    datalog.Tuple
}

// evaluate runs a task to completion and returns its derivations in
// discovery order
func (s *stratumRun[T]) evaluate(ctx context.Context, t ruleTask[T]) ([]derivation[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &ruleWalker[T]{
		run:     s,
		task:    t,
		binding: make([]datalog.Value, t.rule.NumSlots),
	}
	if rel, ok := s.prog.Relation(t.rule.Head); ok {
		w.head = rel
	}
	w.walk(0, s.prov.One())
	return w.out, nil
}

// ruleWalker enumerates the bindings of a rule body depth first. Every
// step writes only the slots it binds, so the binding is reused in place.
type ruleWalker[T any] struct {
	run     *stratumRun[T]
	task    ruleTask[T]
	head    *program.Relation
	binding []datalog.Value
	out     []derivation[T]
}

func (w *ruleWalker[T]) walk(i int, tag T) {
	steps := w.task.rule.Steps
	if i == len(steps) {
		w.emit(tag)
		return
	}

	switch step := steps[i].(type) {
	case program.ScanStep:
		w.scan(i, step, tag)
	case program.NegationStep:
		w.negate(i, step, tag)
	case program.PredicateStep:
		w.predicate(i, step, tag)
	case program.FilterStep:
		l, ok := evalExpr(step.Left, w.binding)
		if !ok {
			return
		}
		r, ok := evalExpr(step.Right, w.binding)
		if !ok || !compare(step.Op, l, r) {
			return
		}
		w.walk(i+1, tag)
	case program.BindStep:
		v, ok := evalExpr(step.Expr, w.binding)
		if !ok {
			return
		}
		w.binding[step.Slot] = v
		w.walk(i+1, tag)
	case program.AggregateStep:
		w.aggregate(i, step, tag)
	}
}

func (w *ruleWalker[T]) emit(tag T) {
	tuple := make(datalog.Tuple, len(w.task.rule.HeadArgs))
	for i, e := range w.task.rule.HeadArgs {
		v, ok := evalExpr(e, w.binding)
		if !ok {
			return
		}
		tuple[i] = v
	}
	if w.head != nil && w.head.CheckTuple(tuple) != nil {
		return
	}
	w.out = append(w.out, derivation[T]{relation: w.task.rule.Head, tag: tag, tuple: tuple})
}

// key computes the lookup key of an atom-like step
func (w *ruleWalker[T]) key(exprs []program.Expr) (datalog.Tuple, bool) {
	key := make(datalog.Tuple, len(exprs))
	for i, e := range exprs {
		v, ok := evalExpr(e, w.binding)
		if !ok {
			return nil, false
		}
		key[i] = v
	}
	return key, true
}

// match applies the argument modes of a step to a fact
func (w *ruleWalker[T]) match(args []program.Arg, tuple datalog.Tuple) bool {
	if len(tuple) != len(args) {
		return false
	}
	for i, a := range args {
		switch a.Mode {
		case program.ArgBind:
			w.binding[a.Slot] = tuple[i]
		case program.ArgCheck:
			v, ok := evalExpr(a.Expr, w.binding)
			if !ok || !datalog.ValuesEqual(v, tuple[i]) {
				return false
			}
		}
	}
	return true
}

// candidates lists the facts of source that can match a step
func (w *ruleWalker[T]) candidates(source *storage.Collection[T], positions []int, exprs []program.Expr) ([]storage.Fact[T], bool) {
	if len(positions) == 0 {
		return source.Facts(), true
	}
	key, ok := w.key(exprs)
	if !ok {
		return nil, false
	}
	slots := source.Lookup(positions, key)
	facts := make([]storage.Fact[T], len(slots))
	for i, slot := range slots {
		facts[i] = source.At(slot)
	}
	return facts, true
}

func (w *ruleWalker[T]) scan(i int, step program.ScanStep, tag T) {
	source := w.run.source(step.Relation)
	if i == w.task.deltaStep {
		source = w.task.delta
	}
	if source == nil {
		return
	}
	facts, ok := w.candidates(source, step.Key, step.KeyExprs)
	if !ok {
		return
	}

	prov := w.run.prov
	for _, f := range facts {
		if !w.match(step.Args, f.Tuple) {
			continue
		}
		next := prov.Mult(tag, f.Tag)
		if provenance.IsZero(prov, next) {
			continue
		}
		w.walk(i+1, next)
	}
}

// negate multiplies the tag by the negation of every matching fact's tag.
// Without matches the negated literal certainly holds.
func (w *ruleWalker[T]) negate(i int, step program.NegationStep, tag T) {
	prov := w.run.prov
	if source := w.run.source(step.Relation); source != nil {
		facts, ok := w.candidates(source, step.Key, step.KeyExprs)
		if !ok {
			return
		}
		sum := prov.Zero()
		found := false
		for _, f := range facts {
			if !w.match(step.Args, f.Tuple) {
				continue
			}
			sum = prov.Add(sum, f.Tag)
			found = true
		}
		if found {
			tag = prov.Mult(tag, w.run.negator.Negate(sum))
			if provenance.IsZero(prov, tag) {
				return
			}
		}
	}
	w.walk(i+1, tag)
}

func (w *ruleWalker[T]) predicate(i int, step program.PredicateStep, tag T) {
	bounded, ok := w.key(step.Bounded)
	if !ok {
		return
	}
	prov := w.run.prov
	for _, r := range w.run.predicates.results(step.Predicate, bounded) {
		if !w.match(step.Free, r.values) {
			continue
		}
		next := prov.Mult(tag, r.tag)
		if provenance.IsZero(prov, next) {
			continue
		}
		w.walk(i+1, next)
	}
}

func (w *ruleWalker[T]) aggregate(i int, step program.AggregateStep, tag T) {
	prov := w.run.prov
	for _, g := range w.run.aggregate(w.task.rule.Index, i, step) {
		if !w.match(step.GroupTargets, g.key) {
			continue
		}
		if !w.match([]program.Arg{step.Result}, datalog.Tuple{g.value}) {
			continue
		}
		next := prov.Mult(tag, g.tag)
		if provenance.IsZero(prov, next) {
			continue
		}
		w.walk(i+1, next)
	}
}
