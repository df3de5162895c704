package integrate

import (
	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/executor"
	"github.com/wbrown/janus-provenance/datalog/program"
	"github.com/wbrown/janus-provenance/datalog/provenance"
	"github.com/wbrown/janus-provenance/datalog/storage"
)

// OutputRelation is a snapshot of a relation's facts. Later runs do not
// change it.
type OutputRelation[T any] struct {
	schema *program.Relation
	prov   provenance.Provenance[T]
	facts  *storage.Collection[T]
}

// Name returns the relation name
func (r *OutputRelation[T]) Name() string {
	return r.schema.Name
}

// Schema returns the relation's declared or inferred types
func (r *OutputRelation[T]) Schema() *program.Relation {
	return r.schema
}

// Len returns the number of facts
func (r *OutputRelation[T]) Len() int {
	return r.facts.Len()
}

// Facts returns the facts in insertion order
func (r *OutputRelation[T]) Facts() []storage.Fact[T] {
	return r.facts.Facts()
}

// Each calls fn for every fact until it returns false
func (r *OutputRelation[T]) Each(fn func(tag T, tuple datalog.Tuple) bool) {
	r.facts.Each(func(f storage.Fact[T]) bool {
		return fn(f.Tag, f.Tuple)
	})
}

// Tag returns the tag of a tuple
func (r *OutputRelation[T]) Tag(tuple datalog.Tuple) (T, bool) {
	return r.facts.Get(tuple)
}

// Contains checks if the relation holds a tuple
func (r *OutputRelation[T]) Contains(tuple datalog.Tuple) bool {
	return r.facts.Contains(tuple)
}

// Weight returns the truth or probability of a tuple; absent tuples weigh 0
func (r *OutputRelation[T]) Weight(tuple datalog.Tuple) float64 {
	tag, ok := r.facts.Get(tuple)
	if !ok {
		return 0
	}
	return r.prov.Weight(tag)
}

// Table renders the relation as a markdown table
func (r *OutputRelation[T]) Table() string {
	return executor.FormatCollection(executor.NewTableFormatter(), r.schema, r.facts, r.prov)
}
