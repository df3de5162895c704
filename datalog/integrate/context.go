// Package integrate is the entry point for embedding the engine: a Context
// owns a program, its facts and the provenance they are tagged with, and
// evaluates them either from scratch on every run or incrementally.
package integrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/annotations"
	"github.com/wbrown/janus-provenance/datalog/executor"
	"github.com/wbrown/janus-provenance/datalog/foreign"
	"github.com/wbrown/janus-provenance/datalog/program"
	"github.com/wbrown/janus-provenance/datalog/provenance"
	"github.com/wbrown/janus-provenance/datalog/storage"
)

// ErrConcurrentRun is returned when Run is called while another Run on the
// same context is in progress
var ErrConcurrentRun = errors.New("context is already running")

// InputFact is a tuple with its optional input tag
type InputFact = storage.InputFact

// Fact builds an InputFact
func Fact(tag *provenance.InputTag, values ...datalog.Value) InputFact {
	return InputFact{Tag: tag, Tuple: datalog.NewTuple(values...)}
}

// AddResult counts what AddFacts did: Added tuples were new to the
// relation, Merged tuples already existed and had their tag combined,
// Dropped tuples were new but seeded with a zero tag and not stored
type AddResult struct {
	Added   int
	Merged  int
	Dropped int
}

// Context is a program together with its facts under provenance T
type Context[T any] struct {
	prov        provenance.Provenance[T]
	options     Options
	incremental bool

	mu        sync.Mutex
	registry  *foreign.Registry
	program   *program.Program
	compiled  *program.Compiled
	db        *executor.Database[T]
	evaluator *executor.Evaluator[T]
	ectx      executor.Context
	log       *storage.FactLog
	stats     executor.Stats

	running atomic.Bool
}

// New creates a batch context: every Run recomputes derived relations from
// all asserted facts
func New[T any](prov provenance.Provenance[T], opts ...Option) *Context[T] {
	return newContext(prov, false, opts)
}

// NewIncremental creates a context whose runs propagate only the facts
// asserted since the previous run
func NewIncremental[T any](prov provenance.Provenance[T], opts ...Option) *Context[T] {
	return newContext(prov, true, opts)
}

func newContext[T any](prov provenance.Provenance[T], incremental bool, opts []Option) *Context[T] {
	o := buildOptions(opts)
	return &Context[T]{
		prov:        prov,
		options:     o,
		incremental: incremental,
		registry:    foreign.NewRegistry(),
		program:     program.New(),
		db:          executor.NewDatabase(prov),
		evaluator:   executor.NewEvaluator(prov, o.executorOptions()),
		ectx:        executor.NewContext(o.Handler),
	}
}

// Provenance returns the strategy facts are tagged with
func (c *Context[T]) Provenance() provenance.Provenance[T] {
	return c.prov
}

// IsIncremental reports whether runs are incremental
func (c *Context[T]) IsIncremental() bool {
	return c.incremental
}

// Registry returns the foreign functions and predicates visible to rules
func (c *Context[T]) Registry() *foreign.Registry {
	return c.registry
}

// AddRelation declares an input relation
func (c *Context[T]) AddRelation(name string, types ...datalog.ValueType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.program.Declare(name, types...); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// AddRule adds a rule. Relations named only in rules are created as
// derived relations. Arity and foreign references are checked here; the
// whole program is checked by the next Run.
func (c *Context[T]) AddRule(rule program.Rule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.program.AddRule(rule, c.registry); err != nil {
		c.annotateError(annotations.ErrorCompile, err)
		return err
	}
	c.invalidate()
	return nil
}

// AddQuery marks a relation as an output of interest
func (c *Context[T]) AddQuery(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.program.AddQuery(name)
	c.compiled = nil
}

// RegisterForeignFunction makes f callable from rules as $name(...)
func (c *Context[T]) RegisterForeignFunction(f foreign.Function) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.RegisterFunction(f)
}

// RegisterForeignPredicate makes p usable as a body literal
func (c *Context[T]) RegisterForeignPredicate(p foreign.Predicate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.RegisterPredicate(p)
}

// AddFacts asserts facts into a relation. Every tuple is checked against
// the relation's schema before any is inserted. Tuples already present
// merge their tags.
func (c *Context[T]) AddFacts(relation string, facts []InputFact) (AddResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addFacts(relation, facts, true)
}

func (c *Context[T]) addFacts(relation string, facts []InputFact, journal bool) (AddResult, error) {
	rel, ok := c.program.Relation(relation)
	if !ok {
		err := fmt.Errorf("%w: %s", program.ErrUnknownRelation, relation)
		c.annotateError(annotations.ErrorFactCheck, err)
		return AddResult{}, err
	}
	for i, f := range facts {
		if err := rel.CheckTuple(f.Tuple); err != nil {
			err = fmt.Errorf("fact %d of %s: %w", i, relation, err)
			c.annotateError(annotations.ErrorFactCheck, err)
			return AddResult{}, err
		}
	}
	if journal && c.log != nil {
		if err := c.log.Append(relation, facts); err != nil {
			return AddResult{}, fmt.Errorf("failed to journal facts: %w", err)
		}
	}

	var result AddResult
	for _, f := range facts {
		tag := c.prov.FromInput(f.Tag)
		if provenance.IsZero(c.prov, tag) && !c.hasInput(relation, f.Tuple) {
			result.Dropped++
			continue
		}
		_, added := c.db.Assert(relation, tag, f.Tuple)
		if added {
			result.Added++
		} else {
			result.Merged++
		}
	}
	total := 0
	if in := c.db.Input(relation); in != nil {
		total = in.Len()
	}
	c.ectx.FactsAdded(relation, result.Added, result.Merged, total)
	return result, nil
}

func (c *Context[T]) hasInput(relation string, tuple datalog.Tuple) bool {
	in := c.db.Input(relation)
	return in != nil && in.Contains(tuple)
}

// AttachLog replays the facts journaled in log into the context and
// journals every later AddFacts to it. The caller keeps ownership of log.
func (c *Context[T]) AttachLog(log *storage.FactLog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := log.Replay(func(relation string, facts []InputFact) error {
		_, err := c.addFacts(relation, facts, false)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to replay fact log: %w", err)
	}
	c.log = log
	return nil
}

// Run evaluates the program to its fixpoint
func (c *Context[T]) Run() error {
	return c.RunContext(context.Background())
}

// RunContext evaluates the program, stopping early when ctx is cancelled
func (c *Context[T]) RunContext(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrConcurrentRun
	}
	defer c.running.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()

	compiled, err := c.compile()
	if err != nil {
		return err
	}

	mode := executor.ModeFull
	if c.incremental {
		mode = executor.ModeIncremental
	}
	stats, err := c.evaluator.Run(ctx, c.ectx, compiled, c.db, mode)
	c.stats = stats
	return err
}

// Compiled returns the checked and planned program
func (c *Context[T]) Compiled() (*program.Compiled, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compile()
}

// Stats returns the statistics of the last run
func (c *Context[T]) Stats() executor.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Relation returns a snapshot of a relation's facts. Derived relations
// reflect the last run.
func (c *Context[T]) Relation(name string) (*OutputRelation[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rel, ok := c.program.Relation(name)
	if !ok {
		return nil, false
	}
	facts := storage.NewCollection(name, c.prov)
	if src := c.db.Relation(name); src != nil {
		facts = src.Clone()
	}
	return &OutputRelation[T]{schema: rel.Clone(), prov: c.prov, facts: facts}, true
}

// Queries returns the relations marked with AddQuery
func (c *Context[T]) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.program.Queries()
}

func (c *Context[T]) compile() (*program.Compiled, error) {
	if c.compiled != nil {
		return c.compiled, nil
	}
	_, negation := c.prov.(provenance.Negator[T])
	compiled, err := c.program.Compile(c.registry, program.CompileOptions{Negation: negation})
	if err != nil {
		c.annotateError(annotations.ErrorCompile, err)
		return nil, err
	}
	c.compiled = compiled
	return compiled, nil
}

// invalidate drops the compiled program and derived facts after the
// program changed
func (c *Context[T]) invalidate() {
	c.compiled = nil
	c.db.Invalidate()
}

func (c *Context[T]) annotateError(name string, err error) {
	if col := c.ectx.Collector(); col != nil {
		col.Add(annotations.Event{
			Name:  name,
			Start: time.Now(),
			Data: map[string]interface{}{
				"error": err.Error(),
			},
		})
	}
}
