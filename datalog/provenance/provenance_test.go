package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkLaws verifies the semiring identity laws for every reachable tag
func checkLaws[T any](t *testing.T, p Provenance[T], tags []T) {
	t.Helper()
	for i, x := range tags {
		assert.True(t, p.Equal(p.Add(p.Zero(), x), x), "%s: add(zero, x) != x for tag %d", p.Name(), i)
		assert.True(t, p.Equal(p.Add(x, p.Zero()), x), "%s: add(x, zero) != x for tag %d", p.Name(), i)
		assert.True(t, p.Equal(p.Mult(p.One(), x), x), "%s: mult(one, x) != x for tag %d", p.Name(), i)
		assert.True(t, p.Equal(p.Mult(p.Zero(), x), p.Zero()), "%s: mult(zero, x) != zero for tag %d", p.Name(), i)
		assert.True(t, p.Equal(p.Add(x, x), x), "%s: add is not idempotent for tag %d", p.Name(), i)
		for j, y := range tags {
			assert.True(t, p.Equal(p.Add(x, y), p.Add(y, x)), "%s: add not commutative for %d,%d", p.Name(), i, j)
		}
	}
}

func TestSemiringLaws(t *testing.T) {
	t.Run("unit", func(t *testing.T) {
		p := NewUnit()
		checkLaws[bool](t, p, []bool{true, false, p.FromInput(nil), p.FromInput(BoolTag(false))})
	})

	t.Run("minmaxprob", func(t *testing.T) {
		p := NewMinMaxProb()
		checkLaws[float64](t, p, []float64{0, 0.3, 0.9, 1, p.FromInput(Prob(0.42))})
	})

	t.Run("topkproofs", func(t *testing.T) {
		p := NewTopKProofs(3, false)
		a := p.FromInput(Prob(0.5))
		b := p.FromInput(Prob(0.7))
		c := p.FromInput(Prob(0.9))
		ab := p.Mult(a, b)
		tags := []Proofs{p.One(), p.Zero(), a, b, c, ab, p.Add(ab, c), p.Add(a, p.Add(b, c))}
		checkLaws[Proofs](t, p, tags)
	})
}

func TestUnitProvenance(t *testing.T) {
	p := NewUnit()
	assert.True(t, p.Add(false, true))
	assert.False(t, p.Mult(true, false))
	assert.False(t, p.Negate(true))
	assert.True(t, p.FromInput(Prob(0.2)), "probabilities are ignored by unit provenance")
	assert.Equal(t, 1.0, p.Weight(true))
}

func TestMinMaxProb(t *testing.T) {
	p := NewMinMaxProb()

	// path(0,2) = max(0.6 direct, min(0.9, 0.8) via 1)
	via := p.Mult(p.FromInput(Prob(0.9)), p.FromInput(Prob(0.8)))
	assert.Equal(t, 0.8, p.Add(p.FromInput(Prob(0.6)), via))

	assert.InDelta(t, 0.25, p.Negate(0.75), 1e-12)
	assert.Equal(t, 1.0, p.FromInput(nil))
	assert.Equal(t, 0.0, p.FromInput(BoolTag(false)))
	assert.Equal(t, 1.0, p.FromInput(Prob(3)), "probabilities are clamped")
	assert.Equal(t, "0.8000", p.Format(0.8))
}

func TestTopKProofsWMC(t *testing.T) {
	p := NewTopKProofs(3, false)

	e01 := p.FromInput(Prob(0.8))
	e12 := p.FromInput(Prob(0.9))
	p.FromInput(Prob(0.7)) // e23, unused
	e02 := p.FromInput(Prob(0.6))

	twoHop := p.Mult(e01, e12)
	assert.InDelta(t, 0.72, p.Weight(twoHop), 1e-9)

	path02 := p.Add(e02, twoHop)
	require.Len(t, path02, 2)
	assert.Equal(t, Proof{{Fact: 0}, {Fact: 1}}, path02[0], "more probable proof ranks first")
	assert.InDelta(t, 0.888, p.Weight(path02), 1e-9)
}

func TestTopKProofsWMCSharedFacts(t *testing.T) {
	p := NewTopKProofs(5, false)
	a := p.FromInput(Prob(0.5))
	b := p.FromInput(Prob(0.5))
	c := p.FromInput(Prob(0.5))

	// (a ∧ b) ∨ (a ∧ c): a is counted once
	tag := p.Add(p.Mult(a, b), p.Mult(a, c))
	assert.InDelta(t, enumerate(t, p, tag), p.Weight(tag), 1e-12)
	assert.InDelta(t, 0.375, p.Weight(tag), 1e-12)

	// Three overlapping proofs
	tag = p.Add(tag, p.Mult(b, c))
	assert.InDelta(t, enumerate(t, p, tag), p.Weight(tag), 1e-12)
}

func TestTopKProofsWMCManyProofs(t *testing.T) {
	p := NewTopKProofs(64, false)
	var facts []Proofs
	for _, prob := range []float64{0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2} {
		facts = append(facts, p.FromInput(Prob(prob)))
	}

	// Every pair of facts: 28 proofs over 8 facts
	tag := p.Zero()
	for i := range facts {
		for j := i + 1; j < len(facts); j++ {
			tag = p.Add(tag, p.Mult(facts[i], facts[j]))
		}
	}
	require.Len(t, tag, 28)
	assert.InDelta(t, enumerate(t, p, tag), p.Weight(tag), 1e-12)
}

func TestWMCStrategiesAgree(t *testing.T) {
	tests := []struct {
		name         string
		disjunctions bool
	}{
		{"independent", false},
		{"disjunctions", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTopKProofs(8, tt.disjunctions)
			p.FromInput(ExclusiveProb(0.3, 1))
			p.FromInput(ExclusiveProb(0.5, 1))
			p.FromInput(Prob(0.4))
			p.FromInput(Prob(0.7))

			proofs := Proofs{
				{{Fact: 0}},
				{{Fact: 1}, {Fact: 2}},
				{{Fact: 2}, {Fact: 3}},
				{{Fact: 1}, {Fact: 3, Negated: true}},
				{{Fact: 0, Negated: true}, {Fact: 3}},
			}
			byWorlds := p.worlds(proofs, proofFacts(proofs))
			assert.InDelta(t, p.inclusionExclusion(proofs), byWorlds, 1e-12)
			if !tt.disjunctions {
				assert.InDelta(t, enumerate(t, p, proofs), byWorlds, 1e-12)
			}
		})
	}
}

func TestAbsorb(t *testing.T) {
	a := Proof{{Fact: 0}}
	ab := Proof{{Fact: 0}, {Fact: 1}}
	bc := Proof{{Fact: 1}, {Fact: 2}}
	notA := Proof{{Fact: 0, Negated: true}, {Fact: 1}}

	assert.Equal(t, Proofs{a, bc, notA}, absorb(Proofs{a, ab, bc, a, notA}))
	assert.Equal(t, Proofs{Proof{}}, absorb(Proofs{ab, Proof{}, bc}), "the empty proof absorbs everything")
}

func TestTopKProofsTruncation(t *testing.T) {
	p := NewTopKProofs(2, false)
	low := p.FromInput(Prob(0.1))
	mid := p.FromInput(Prob(0.5))
	high := p.FromInput(Prob(0.9))

	tag := p.Add(p.Add(low, mid), high)
	require.Len(t, tag, 2)
	assert.Equal(t, high[0], tag[0])
	assert.Equal(t, mid[0], tag[1])
}

func TestTopKProofsTieBreakFirstSeen(t *testing.T) {
	p := NewTopKProofs(1, false)
	first := p.FromInput(Prob(0.5))
	second := p.FromInput(Prob(0.5))

	assert.Equal(t, first, p.Add(first, second))
	assert.Equal(t, second, p.Add(second, first))
}

func TestTopKProofsDisjunctions(t *testing.T) {
	p := NewTopKProofs(3, true)
	red := p.FromInput(ExclusiveProb(0.3, 1))
	blue := p.FromInput(ExclusiveProb(0.6, 1))

	assert.Empty(t, p.Mult(red, blue), "facts of one disjunction cannot hold together")

	either := p.Add(red, blue)
	assert.InDelta(t, 0.9, p.Weight(either), 1e-12, "exclusive events add up")

	// Without disjunction support the two facts are independent
	q := NewTopKProofs(3, false)
	r := q.FromInput(ExclusiveProb(0.3, 1))
	b := q.FromInput(ExclusiveProb(0.6, 1))
	assert.Len(t, q.Mult(r, b), 1)
	assert.InDelta(t, 0.72, q.Weight(q.Add(r, b)), 1e-12)
}

func TestTopKProofsNegation(t *testing.T) {
	p := NewTopKProofs(4, false)
	a := p.FromInput(Prob(0.4))
	b := p.FromInput(Prob(0.5))

	assert.True(t, p.Equal(p.Negate(p.Zero()), p.One()))
	assert.True(t, p.Equal(p.Negate(p.One()), p.Zero()))

	notA := p.Negate(a)
	assert.InDelta(t, 0.6, p.Weight(notA), 1e-12)
	assert.Empty(t, p.Mult(a, notA), "a ∧ ¬a is contradictory")

	// ¬(a ∨ b) = ¬a ∧ ¬b
	neither := p.Negate(p.Add(a, b))
	assert.InDelta(t, 0.6*0.5, p.Weight(neither), 1e-12)
}

// enumerate computes the probability of a tag by brute force over every
// assignment of the input facts.
func enumerate(t *testing.T, p *TopKProofs, tag Proofs) float64 {
	t.Helper()
	n := p.NumFacts()
	require.LessOrEqual(t, n, 16)

	total := 0.0
	for mask := 0; mask < 1<<n; mask++ {
		weight := 1.0
		for id := 0; id < n; id++ {
			prob, _ := p.FactProbability(id)
			if mask&(1<<id) != 0 {
				weight *= prob
			} else {
				weight *= 1 - prob
			}
		}
		for _, proof := range tag {
			holds := true
			for _, l := range proof {
				if (mask&(1<<l.Fact) != 0) == l.Negated {
					holds = false
					break
				}
			}
			if holds {
				total += weight
				break
			}
		}
	}
	return total
}

func TestIsDistributive(t *testing.T) {
	assert.True(t, IsDistributive[bool](NewUnit()))
	assert.True(t, IsDistributive[float64](NewMinMaxProb()))
	assert.False(t, IsDistributive[Proofs](NewTopKProofs(3, false)), "truncation does not distribute")
}
