package executor

import (
	"sort"
	"sync"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/provenance"
	"github.com/wbrown/janus-provenance/datalog/storage"
)

// Database holds the facts of one context: the asserted facts per
// relation, the totals of derived relations and the assertions that have
// not been propagated yet.
type Database[T any] struct {
	prov provenance.Provenance[T]

	mu      sync.RWMutex
	inputs  map[string]*storage.Collection[T]
	totals  map[string]*storage.Collection[T]
	pending map[string]*storage.Collection[T]

	// derived is set once totals are consistent with the asserted facts
	// as of the last run
	derived bool
}

// NewDatabase creates an empty database
func NewDatabase[T any](prov provenance.Provenance[T]) *Database[T] {
	return &Database[T]{
		prov:    prov,
		inputs:  make(map[string]*storage.Collection[T]),
		totals:  make(map[string]*storage.Collection[T]),
		pending: make(map[string]*storage.Collection[T]),
	}
}

// Provenance returns the strategy tags are computed under
func (db *Database[T]) Provenance() provenance.Provenance[T] {
	return db.prov
}

// Assert adds an input fact. The fact merges with an existing fact of the
// same tuple through Add. Changed facts are remembered until the next run.
func (db *Database[T]) Assert(relation string, tag T, tuple datalog.Tuple) (changed, added bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	in, ok := db.inputs[relation]
	if !ok {
		in = storage.NewCollection(relation, db.prov)
		db.inputs[relation] = in
	}
	changed, added = in.Insert(tag, tuple)
	if !changed {
		return false, false
	}

	merged, _ := in.Get(tuple)
	p, ok := db.pending[relation]
	if !ok {
		p = storage.NewCollection(relation, db.prov)
		db.pending[relation] = p
	}
	p.Insert(merged, tuple)
	return changed, added
}

// Input returns the asserted facts of a relation, or nil
func (db *Database[T]) Input(relation string) *storage.Collection[T] {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.inputs[relation]
}

// Relation returns every fact of a relation: the derived totals when the
// relation has rules, the asserted facts otherwise. Returns nil for a
// relation with no facts.
func (db *Database[T]) Relation(relation string) *storage.Collection[T] {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if t, ok := db.totals[relation]; ok {
		return t
	}
	return db.inputs[relation]
}

// HasPending reports whether facts were asserted since the last run
func (db *Database[T]) HasPending() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.pending) > 0
}

// PendingRelations lists the relations with unpropagated assertions, sorted
func (db *Database[T]) PendingRelations() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.pending))
	for name := range db.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pending returns the unpropagated assertions of a relation, or nil
func (db *Database[T]) Pending(relation string) *storage.Collection[T] {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.pending[relation]
}

// Invalidate forgets derived facts so the next run recomputes everything
func (db *Database[T]) Invalidate() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.derived = false
}

// Derived reports whether the totals reflect the last run
func (db *Database[T]) Derived() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.derived
}

// resetTotals replaces the totals of derived relations with copies of
// their asserted facts
func (db *Database[T]) resetTotals(relations []string) map[string]*storage.Collection[T] {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make(map[string]*storage.Collection[T], len(relations))
	for _, name := range relations {
		var c *storage.Collection[T]
		if in, ok := db.inputs[name]; ok {
			c = in.Clone()
		} else {
			c = storage.NewCollection(name, db.prov)
		}
		db.totals[name] = c
		out[name] = c
	}
	return out
}

// ensureTotals returns the totals of derived relations, creating them from
// the asserted facts when missing
func (db *Database[T]) ensureTotals(relations []string) map[string]*storage.Collection[T] {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make(map[string]*storage.Collection[T], len(relations))
	for _, name := range relations {
		c, ok := db.totals[name]
		if !ok {
			if in, ok := db.inputs[name]; ok {
				c = in.Clone()
			} else {
				c = storage.NewCollection(name, db.prov)
			}
			db.totals[name] = c
		}
		out[name] = c
	}
	return out
}

// finishRun drops pending assertions and marks the totals consistent
func (db *Database[T]) finishRun() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.pending = make(map[string]*storage.Collection[T])
	db.derived = true
}
