package executor

import (
	"sync"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/foreign"
	"github.com/wbrown/janus-provenance/datalog/provenance"
)

type predicateResult[T any] struct {
	tag    T
	values datalog.Tuple
}

// predicateCache memoizes foreign predicate results per bounded arguments.
// Predicates are deterministic, and reusing the seeded tags keeps input
// fact ids stable across rounds and runs.
type predicateCache[T any] struct {
	prov provenance.Provenance[T]

	mu      sync.Mutex
	entries map[string]*datalog.TupleKeyMap
}

func newPredicateCache[T any](prov provenance.Provenance[T]) *predicateCache[T] {
	return &predicateCache[T]{
		prov:    prov,
		entries: make(map[string]*datalog.TupleKeyMap),
	}
}

// results evaluates p for the bounded arguments, or returns the cached
// results. Results whose values do not match the predicate's free types
// are dropped.
func (c *predicateCache[T]) results(p foreign.Predicate, bounded datalog.Tuple) []predicateResult[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	byArgs, ok := c.entries[p.Name()]
	if !ok {
		byArgs = datalog.NewTupleKeyMap()
		c.entries[p.Name()] = byArgs
	}
	key := datalog.NewTupleKeyFull(bounded)
	if cached, ok := byArgs.Get(key); ok {
		return cached.([]predicateResult[T])
	}

	types := p.Types()[p.NumBounded():]
	var out []predicateResult[T]
	for _, r := range p.Evaluate(bounded) {
		if !matchesTypes(r.Values, types) {
			continue
		}
		tag := c.prov.FromInput(r.Tag)
		if provenance.IsZero(c.prov, tag) {
			continue
		}
		out = append(out, predicateResult[T]{tag: tag, values: r.Values})
	}
	byArgs.Put(key, out)
	return out
}

func matchesTypes(values datalog.Tuple, types []datalog.ValueType) bool {
	if len(values) != len(types) {
		return false
	}
	for i, v := range values {
		t, ok := datalog.TypeOf(v)
		if !ok || !types[i].Accepts(t) {
			return false
		}
	}
	return true
}
