package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/program"
	"github.com/wbrown/janus-provenance/datalog/provenance"
	"github.com/wbrown/janus-provenance/datalog/storage"
)

// ErrIterationLimit is returned when a stratum does not reach its fixpoint
// within Options.MaxIterations rounds
var ErrIterationLimit = errors.New("iteration limit reached")

// Stats summarizes one run
type Stats struct {
	Strata  int
	Rounds  int
	Changed int
	// Recomputed is the first stratum an incremental run had to recompute
	// from scratch, or -1
	Recomputed int
}

// Evaluator computes the fixpoint of a compiled program over a database.
// Strata are evaluated in order; within a stratum semi-naive rounds run
// until no tag changes.
type Evaluator[T any] struct {
	prov       provenance.Provenance[T]
	negator    provenance.Negator[T]
	options    Options
	pool       *WorkerPool
	predicates *predicateCache[T]
}

// NewEvaluator creates an evaluator. Foreign predicate results are cached
// for the evaluator's lifetime.
func NewEvaluator[T any](prov provenance.Provenance[T], opts Options) *Evaluator[T] {
	e := &Evaluator[T]{
		prov:       prov,
		options:    opts,
		predicates: newPredicateCache(prov),
	}
	if n, ok := prov.(provenance.Negator[T]); ok {
		e.negator = n
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	e.pool = NewWorkerPool(workers)
	return e
}

// Options returns the evaluator's options
func (e *Evaluator[T]) Options() Options {
	return e.options
}

// Run evaluates prog over db. In ModeIncremental the facts asserted since
// the previous run are propagated through the existing totals; strata
// that read a changed relation through negation or aggregation, and every
// stratum after them, are recomputed. Non-distributive strategies always
// recompute. A database that was never evaluated
// is always evaluated in full.
func (e *Evaluator[T]) Run(ctx context.Context, ectx Context, prog *program.Compiled, db *Database[T], mode Mode) (Stats, error) {
	if ectx == nil {
		ectx = &BaseContext{}
	}
	if prog.UsesNegation && e.negator == nil {
		return Stats{}, fmt.Errorf("%w: %s", program.ErrNegationUnsupported, e.prov.Name())
	}
	if mode == ModeIncremental && !db.Derived() {
		mode = ModeFull
	}

	stats := Stats{Strata: len(prog.Strata), Recomputed: -1}
	ectx.RunBegin(mode, e.prov.Name(), len(prog.Strata))

	firstFull := 0
	if mode == ModeIncremental {
		firstFull = e.firstNonMonotone(ectx, prog, db)
		if firstFull < len(prog.Strata) {
			stats.Recomputed = firstFull
		}
	}

	// Facts changed by earlier strata, per relation, for incremental strata
	changes := make(map[string]*storage.Collection[T])
	for _, name := range db.PendingRelations() {
		changes[name] = db.Pending(name)
	}

	var err error
	for _, s := range prog.Strata {
		run := &stratumRun[T]{
			prov:       e.prov,
			negator:    e.negator,
			db:         db,
			prog:       prog,
			stratum:    s,
			predicates: e.predicates,
		}
		stratumMode := ModeFull
		if mode == ModeIncremental && s.Index < firstFull {
			stratumMode = ModeIncremental
		}

		err = ectx.EvaluateStratum(s, stratumMode, func() (int, int, error) {
			var rounds, changed int
			var serr error
			if stratumMode == ModeFull {
				rounds, changed, serr = e.evaluateFull(ctx, ectx, run)
			} else {
				rounds, changed, serr = e.evaluateIncremental(ctx, ectx, run, changes)
			}
			stats.Rounds += rounds
			stats.Changed += changed
			return rounds, changed, serr
		})
		if err != nil {
			break
		}
	}

	if err == nil {
		db.finishRun()
	} else {
		// Totals may be partially updated; the next run starts over
		db.Invalidate()
	}
	ectx.RunComplete(stats.Rounds, stats.Changed, err)
	return stats, err
}

// firstNonMonotone finds the first stratum that reads a changed relation
// through negation or aggregation. Change is propagated along positive
// dependencies only, since later strata are recomputed anyway. Under a
// strategy that is not distributive every change recomputes from the
// first stratum.
func (e *Evaluator[T]) firstNonMonotone(ectx Context, prog *program.Compiled, db *Database[T]) int {
	pending := db.PendingRelations()
	if len(pending) > 0 && len(prog.Strata) > 0 && !provenance.IsDistributive(e.prov) {
		ectx.IncrementalFallback(0, pending[0])
		return 0
	}

	affected := make(map[string]bool)
	for _, name := range pending {
		affected[name] = true
	}

	for _, s := range prog.Strata {
		for _, r := range s.NonMonotone {
			if affected[r] {
				ectx.IncrementalFallback(s.Index, r)
				return s.Index
			}
		}
		hit := false
		for _, r := range s.Inputs {
			hit = hit || affected[r]
		}
		for _, r := range s.Relations {
			hit = hit || affected[r]
		}
		if hit {
			for _, r := range s.Relations {
				affected[r] = true
			}
		}
	}
	return len(prog.Strata)
}

// evaluateFull recomputes a stratum from its asserted facts. Round 0 runs
// every rule against the totals; later rounds read the previous round's
// delta at one recursive step at a time.
func (e *Evaluator[T]) evaluateFull(ctx context.Context, ectx Context, run *stratumRun[T]) (int, int, error) {
	run.totals = run.db.resetTotals(run.stratum.Relations)

	tasks := make([]ruleTask[T], 0, len(run.stratum.Rules))
	for _, r := range run.stratum.Rules {
		tasks = append(tasks, ruleTask[T]{rule: r, deltaStep: -1})
	}
	return e.fixpoint(ctx, ectx, run, tasks, nil, nil)
}

// evaluateIncremental propagates changes into a stratum whose totals are
// current as of the previous run. changes receives the facts this stratum
// changed.
func (e *Evaluator[T]) evaluateIncremental(ctx context.Context, ectx Context, run *stratumRun[T], changes map[string]*storage.Collection[T]) (int, int, error) {
	run.totals = run.db.ensureTotals(run.stratum.Relations)

	// Assertions into relations the stratum derives seed the first delta
	var seed []derivation[T]
	for _, name := range run.stratum.Relations {
		if p := run.db.Pending(name); p != nil {
			for _, f := range p.Facts() {
				seed = append(seed, derivation[T]{relation: name, tag: f.Tag, tuple: f.Tuple})
			}
		}
	}

	var tasks []ruleTask[T]
	for _, r := range run.stratum.Rules {
		for i, st := range r.Steps {
			scan, ok := st.(program.ScanStep)
			if !ok || scan.Recursive {
				continue
			}
			if c := changes[scan.Relation]; c != nil && c.Len() > 0 {
				tasks = append(tasks, ruleTask[T]{rule: r, deltaStep: i, delta: c})
			}
		}
	}

	touched := make(map[string]*storage.Collection[T])
	rounds, changed, err := e.fixpoint(ctx, ectx, run, tasks, seed, touched)
	for _, name := range run.stratum.Relations {
		delete(changes, name)
	}
	for name, c := range touched {
		changes[name] = c
	}
	return rounds, changed, err
}

// fixpoint runs rounds until no fact of the stratum changes. seed holds
// derivations merged before round 0. When touched is non-nil it collects
// every fact that changed, tagged with its final total.
func (e *Evaluator[T]) fixpoint(
	ctx context.Context,
	ectx Context,
	run *stratumRun[T],
	tasks []ruleTask[T],
	seed []derivation[T],
	touched map[string]*storage.Collection[T],
) (int, int, error) {
	if len(tasks) == 0 && len(seed) == 0 {
		return 0, 0, nil
	}

	changed := 0
	seeded := make(map[string]*storage.Collection[T])
	if len(seed) > 0 {
		changed += e.merge(run, [][]derivation[T]{seed}, seeded, touched)
	}

	delta := seeded
	round := 0
	for {
		if err := ctx.Err(); err != nil {
			return round, changed, err
		}
		if round > 0 {
			tasks = e.deltaTasks(run, delta)
			if len(tasks) == 0 {
				return round, changed, nil
			}
		}
		if e.options.MaxIterations > 0 && round >= e.options.MaxIterations {
			return round, changed, fmt.Errorf("%w: stratum %d did not converge in %d rounds",
				ErrIterationLimit, run.stratum.Index, e.options.MaxIterations)
		}

		start := time.Now()
		results, err := e.runTasks(ctx, ectx, run, tasks, round)
		if err != nil {
			return round, changed, err
		}

		next := make(map[string]*storage.Collection[T])
		changed += e.merge(run, results, next, touched)
		if round == 0 {
			// Seeded changes feed round 1 together with round 0's output
			for name, c := range seeded {
				for _, f := range c.Facts() {
					tag, _ := run.totals[name].Get(f.Tuple)
					record(next, name, e.prov, tag, f.Tuple)
				}
			}
		}
		delta = next

		ectx.RoundComplete(run.stratum.Index, round, len(tasks), deltaSize(delta), start)
		round++
	}
}

// deltaTasks schedules one task per rule and recursive step whose relation
// changed in the previous round
func (e *Evaluator[T]) deltaTasks(run *stratumRun[T], delta map[string]*storage.Collection[T]) []ruleTask[T] {
	var tasks []ruleTask[T]
	for _, r := range run.stratum.Rules {
		for i, st := range r.Steps {
			scan, ok := st.(program.ScanStep)
			if !ok || !scan.Recursive {
				continue
			}
			if d := delta[scan.Relation]; d != nil && d.Len() > 0 {
				tasks = append(tasks, ruleTask[T]{rule: r, deltaStep: i, delta: d})
			}
		}
	}
	return tasks
}

// runTasks evaluates the tasks of one round, in parallel when configured.
// Results keep task order so merging is deterministic.
func (e *Evaluator[T]) runTasks(ctx context.Context, ectx Context, run *stratumRun[T], tasks []ruleTask[T], round int) ([][]derivation[T], error) {
	if e.pool.WorkerCount() > 1 {
		prepareIndexes(run, tasks)
	}
	return ExecuteParallel(ctx, e.pool, tasks, func(ctx context.Context, t ruleTask[T]) ([]derivation[T], error) {
		var out []derivation[T]
		_, err := ectx.EvaluateRule(t.rule, t.deltaName(), round, func() (int, error) {
			var err error
			out, err = run.evaluate(ctx, t)
			return len(out), err
		})
		return out, err
	})
}

// merge folds derivations into the totals. Facts whose tag changed are
// recorded in delta (and touched) with their merged tag. Returns the
// number of changes.
func (e *Evaluator[T]) merge(run *stratumRun[T], results [][]derivation[T], delta, touched map[string]*storage.Collection[T]) int {
	n := 0
	for _, derivs := range results {
		for _, d := range derivs {
			total, ok := run.totals[d.relation]
			if !ok {
				continue
			}
			if changed, _ := total.Insert(d.tag, d.tuple); !changed {
				continue
			}
			n++
			tag, _ := total.Get(d.tuple)
			record(delta, d.relation, e.prov, tag, d.tuple)
			if touched != nil {
				record(touched, d.relation, e.prov, tag, d.tuple)
			}
		}
	}
	return n
}

func record[T any](into map[string]*storage.Collection[T], relation string, prov provenance.Provenance[T], tag T, tuple datalog.Tuple) {
	c, ok := into[relation]
	if !ok {
		c = storage.NewCollection(relation, prov)
		into[relation] = c
	}
	c.Insert(tag, tuple)
}

// prepareIndexes builds the indexes a round will look up before tasks run
// concurrently
func prepareIndexes[T any](run *stratumRun[T], tasks []ruleTask[T]) {
	for _, t := range tasks {
		for i, st := range t.rule.Steps {
			var relation string
			var key []int
			switch s := st.(type) {
			case program.ScanStep:
				relation, key = s.Relation, s.Key
			case program.NegationStep:
				relation, key = s.Relation, s.Key
			default:
				continue
			}
			if len(key) == 0 {
				continue
			}
			source := run.source(relation)
			if i == t.deltaStep {
				source = t.delta
			}
			if source != nil {
				source.EnsureIndex(key)
			}
		}
	}
}

func deltaSize[T any](delta map[string]*storage.Collection[T]) int {
	n := 0
	for _, c := range delta {
		n += c.Len()
	}
	return n
}
