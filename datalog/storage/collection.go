package storage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/provenance"
)

// Fact is a tuple annotated with its provenance tag
type Fact[T any] struct {
	Tag   T
	Tuple datalog.Tuple
}

// Collection holds the facts of one relation, deduplicated by tuple
// identity. Inserting a tuple that is already present merges the tags with
// the provenance's Add.
//
// Writes must be serialized by the caller. Reads, including index lookups,
// are safe to run concurrently with each other.
type Collection[T any] struct {
	name  string
	prov  provenance.Provenance[T]
	facts []Fact[T]
	slots *datalog.TupleKeyMap // full tuple -> slot in facts

	mu      sync.Mutex
	indexes map[string]*index
}

// index maps the values at a set of positions to the slots holding them
type index struct {
	positions []int
	entries   *datalog.TupleKeyMap // key -> []int
}

// NewCollection creates an empty collection
func NewCollection[T any](name string, prov provenance.Provenance[T]) *Collection[T] {
	return &Collection[T]{
		name:    name,
		prov:    prov,
		slots:   datalog.NewTupleKeyMap(),
		indexes: make(map[string]*index),
	}
}

// Name returns the relation name
func (c *Collection[T]) Name() string {
	return c.name
}

// Insert adds a fact or merges its tag into an existing one. added reports
// whether the tuple was new, changed whether the stored tag differs from
// what it was before the call. Facts with a zero tag are never stored.
func (c *Collection[T]) Insert(tag T, tuple datalog.Tuple) (changed bool, added bool) {
	key := datalog.NewTupleKeyFull(tuple)
	if slot, ok := c.slots.Get(key); ok {
		f := &c.facts[slot.(int)]
		merged := c.prov.Add(f.Tag, tag)
		if c.prov.Equal(merged, f.Tag) {
			return false, false
		}
		f.Tag = merged
		return true, false
	}

	if provenance.IsZero(c.prov, tag) {
		return false, false
	}

	slot := len(c.facts)
	c.facts = append(c.facts, Fact[T]{Tag: tag, Tuple: tuple})
	c.slots.Put(key, slot)

	c.mu.Lock()
	for _, idx := range c.indexes {
		idx.add(tuple, slot)
	}
	c.mu.Unlock()

	return true, true
}

// Get returns the tag of a tuple
func (c *Collection[T]) Get(tuple datalog.Tuple) (T, bool) {
	if slot, ok := c.slots.Get(datalog.NewTupleKeyFull(tuple)); ok {
		return c.facts[slot.(int)].Tag, true
	}
	var zero T
	return zero, false
}

// Contains checks if a tuple is present
func (c *Collection[T]) Contains(tuple datalog.Tuple) bool {
	return c.slots.Exists(datalog.NewTupleKeyFull(tuple))
}

// Len returns the number of distinct tuples
func (c *Collection[T]) Len() int {
	return len(c.facts)
}

// Facts returns the facts in insertion order. The slice must not be
// modified and is only valid until the next Insert.
func (c *Collection[T]) Facts() []Fact[T] {
	return c.facts
}

// At returns the fact stored in a slot
func (c *Collection[T]) At(slot int) Fact[T] {
	return c.facts[slot]
}

// Each calls fn for every fact in insertion order until fn returns false
func (c *Collection[T]) Each(fn func(Fact[T]) bool) {
	for _, f := range c.facts {
		if !fn(f) {
			return
		}
	}
}

// Clear removes every fact
func (c *Collection[T]) Clear() {
	c.facts = nil
	c.slots = datalog.NewTupleKeyMap()
	c.mu.Lock()
	c.indexes = make(map[string]*index)
	c.mu.Unlock()
}

// Clone returns an independent copy of the facts. Indexes are not copied.
func (c *Collection[T]) Clone() *Collection[T] {
	out := NewCollection(c.name, c.prov)
	out.facts = make([]Fact[T], len(c.facts))
	copy(out.facts, c.facts)
	out.slots = datalog.NewTupleKeyMapWithCapacity(len(c.facts))
	for i, f := range out.facts {
		out.slots.Put(datalog.NewTupleKeyFull(f.Tuple), i)
	}
	return out
}

// EnsureIndex builds the index on positions if it does not exist yet
func (c *Collection[T]) EnsureIndex(positions []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexLocked(positions)
}

// Lookup returns the slots of facts whose values at positions equal key.
// The index is built on first use.
func (c *Collection[T]) Lookup(positions []int, key datalog.Tuple) []int {
	c.mu.Lock()
	idx := c.indexLocked(positions)
	c.mu.Unlock()

	if v, ok := idx.entries.Get(datalog.NewTupleKeyFull(key)); ok {
		return v.([]int)
	}
	return nil
}

// HasIndex checks if an index exists for positions
func (c *Collection[T]) HasIndex(positions []int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.indexes[indexName(positions)]
	return ok
}

func (c *Collection[T]) indexLocked(positions []int) *index {
	name := indexName(positions)
	if idx, ok := c.indexes[name]; ok {
		return idx
	}
	idx := &index{
		positions: append([]int(nil), positions...),
		entries:   datalog.NewTupleKeyMapWithCapacity(len(c.facts)),
	}
	for slot, f := range c.facts {
		idx.add(f.Tuple, slot)
	}
	c.indexes[name] = idx
	return idx
}

func (idx *index) add(tuple datalog.Tuple, slot int) {
	key := datalog.NewTupleKey(tuple, idx.positions)
	var slots []int
	if v, ok := idx.entries.Get(key); ok {
		slots = v.([]int)
	}
	idx.entries.Put(key, append(slots, slot))
}

func indexName(positions []int) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ",")
}

// String renders the collection for debugging
func (c *Collection[T]) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d facts)", c.name, len(c.facts))
	for _, f := range c.facts {
		fmt.Fprintf(&b, "\n  %s :: %s", c.prov.Format(f.Tag), f.Tuple)
	}
	return b.String()
}
