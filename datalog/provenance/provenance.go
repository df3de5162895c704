// Package provenance defines the tag algebra facts are annotated with and
// the concrete strategies the engine can run under.
//
// Every strategy is a semiring over its tag type T: Zero is the tag of a
// fact that does not hold, One the tag of a fact that certainly holds, Add
// combines alternative derivations of the same fact and Mult combines the
// body literals of a single derivation. The evaluator is written against
// Provenance[T] only and never inspects a concrete strategy.
package provenance

import (
	"fmt"
)

// Provenance is the capability set every strategy implements.
//
// Laws: Add(Zero(), x) == x, Mult(One(), x) == x, Mult(Zero(), x) == Zero().
// Add must be commutative and associative; the shipped strategies are also
// idempotent, which semi-naive evaluation relies on when a derivation is
// found more than once.
type Provenance[T any] interface {
	// Name identifies the strategy ("unit", "minmaxprob", "topkproofs")
	Name() string

	Zero() T
	One() T

	// Add combines alternative derivations of the same tuple
	Add(a, b T) T

	// Mult combines the literals of one derivation
	Mult(a, b T) T

	// FromInput seeds the tag of a freshly asserted fact. A nil input maps
	// to One().
	FromInput(input *InputTag) T

	// Weight maps a tag to a comparable scalar (truth or probability)
	Weight(tag T) float64

	// Equal is the saturation check: a merge that leaves the tag Equal to
	// its previous value does not produce a delta.
	Equal(a, b T) bool

	// Format renders a tag for display
	Format(tag T) string
}

// Negator is implemented by strategies that support negated body literals
type Negator[T any] interface {
	Negate(tag T) T
}

// Distributive is implemented by strategies that report whether Mult
// distributes over Add for all of their tags. Deltas can only be
// propagated incrementally under a distributive strategy.
type Distributive interface {
	Distributive() bool
}

// IsDistributive reports whether p declares itself distributive.
// Strategies that do not implement Distributive are assumed not to be.
func IsDistributive[T any](p Provenance[T]) bool {
	d, ok := p.(Distributive)
	return ok && d.Distributive()
}

// IsZero reports whether tag is the strategy's zero
func IsZero[T any](p Provenance[T], tag T) bool {
	return p.Equal(tag, p.Zero())
}

// InputKind selects which fields of an InputTag are meaningful
type InputKind uint8

const (
	InputNone InputKind = iota
	InputBool
	InputProb
	InputExclusiveProb
)

// InputTag is the optional, user-supplied seed of a fact's tag
type InputTag struct {
	Kind InputKind
	Bool bool
	Prob float64
	// Exclusion groups facts into a disjunction: at most one fact of the
	// same exclusion id can be true at a time.
	Exclusion int
}

// None returns an InputTag carrying no information (maps to One)
func None() *InputTag {
	return &InputTag{Kind: InputNone}
}

// BoolTag seeds a tag from a truth value
func BoolTag(b bool) *InputTag {
	return &InputTag{Kind: InputBool, Bool: b}
}

// Prob seeds a tag from a probability
func Prob(p float64) *InputTag {
	return &InputTag{Kind: InputProb, Prob: p}
}

// ExclusiveProb seeds a tag from a probability and a disjunction id
func ExclusiveProb(p float64, exclusion int) *InputTag {
	return &InputTag{Kind: InputExclusiveProb, Prob: p, Exclusion: exclusion}
}

// Probability returns the probability an input carries: 1 for nil/none,
// 1 or 0 for booleans.
func (t *InputTag) Probability() float64 {
	if t == nil {
		return 1
	}
	switch t.Kind {
	case InputBool:
		if t.Bool {
			return 1
		}
		return 0
	case InputProb, InputExclusiveProb:
		return clamp(t.Prob)
	}
	return 1
}

func (t *InputTag) String() string {
	if t == nil {
		return "none"
	}
	switch t.Kind {
	case InputBool:
		return fmt.Sprintf("%t", t.Bool)
	case InputProb:
		return fmt.Sprintf("%g", t.Prob)
	case InputExclusiveProb:
		return fmt.Sprintf("%g::%d", t.Prob, t.Exclusion)
	}
	return "none"
}

func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
