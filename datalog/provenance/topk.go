package provenance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Literal is one input fact used by a proof, possibly negated
type Literal struct {
	Fact    int
	Negated bool
}

func (l Literal) String() string {
	if l.Negated {
		return "~" + strconv.Itoa(l.Fact)
	}
	return strconv.Itoa(l.Fact)
}

// Proof is a conjunction of literals, sorted by fact id. The empty proof is
// trivially true.
type Proof []Literal

func (p Proof) key() string {
	var b strings.Builder
	for _, l := range p {
		b.WriteString(l.String())
		b.WriteByte(',')
	}
	return b.String()
}

func (p Proof) String() string {
	parts := make([]string, len(p))
	for i, l := range p {
		parts[i] = l.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Proofs is the TopKProofs tag: at most K proofs, best first. The empty
// set is Zero and the set holding only the empty proof is One.
type Proofs []Proof

func (ps Proofs) String() string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type factInfo struct {
	prob      float64
	exclusion int // -1 when the fact is not part of a disjunction
}

// TopKProofs tracks, for every fact, the K most probable proofs over input
// fact ids. Probabilities of input facts live in a table owned by the
// strategy, so one *TopKProofs must be used per context.
//
// Ranking ties are broken by position: proofs from the left operand come
// before proofs from the right one, and the first occurrence of a proof is
// kept.
type TopKProofs struct {
	k            int
	disjunctions bool

	mu    sync.RWMutex
	facts []factInfo
}

// NewTopKProofs creates the strategy. With disjunctions enabled, facts
// seeded with ExclusiveProb sharing an exclusion id are mutually exclusive
// and proofs that use two of them are pruned.
func NewTopKProofs(k int, disjunctions bool) *TopKProofs {
	if k <= 0 {
		k = 1
	}
	return &TopKProofs{
		k:            k,
		disjunctions: disjunctions,
	}
}

// K returns the number of proofs retained per tag
func (p *TopKProofs) K() int {
	return p.k
}

func (p *TopKProofs) Name() string { return "topkproofs" }

func (p *TopKProofs) Zero() Proofs { return Proofs{} }

func (p *TopKProofs) One() Proofs { return Proofs{Proof{}} }

// FromInput allocates a fresh fact id for probabilistic inputs
func (p *TopKProofs) FromInput(input *InputTag) Proofs {
	if input == nil {
		return p.One()
	}
	switch input.Kind {
	case InputBool:
		if input.Bool {
			return p.One()
		}
		return p.Zero()
	case InputProb, InputExclusiveProb:
		exclusion := -1
		if p.disjunctions && input.Kind == InputExclusiveProb {
			exclusion = input.Exclusion
		}
		p.mu.Lock()
		id := len(p.facts)
		p.facts = append(p.facts, factInfo{prob: clamp(input.Prob), exclusion: exclusion})
		p.mu.Unlock()
		return Proofs{Proof{{Fact: id}}}
	}
	return p.One()
}

// FactProbability returns the probability recorded for an input fact id
func (p *TopKProofs) FactProbability(id int) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id < 0 || id >= len(p.facts) {
		return 0, false
	}
	return p.facts[id].prob, true
}

// NumFacts returns how many input facts have been registered
func (p *TopKProofs) NumFacts() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.facts)
}

func (p *TopKProofs) Add(a, b Proofs) Proofs {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.add(a, b)
}

func (p *TopKProofs) Mult(a, b Proofs) Proofs {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mult(a, b)
}

// Negate computes the DNF of the negated disjunction: every proof must
// fail, so one literal of each proof is negated.
func (p *TopKProofs) Negate(tag Proofs) Proofs {
	p.mu.RLock()
	defer p.mu.RUnlock()

	acc := p.One()
	for _, proof := range tag {
		clause := make(Proofs, 0, len(proof))
		for _, l := range proof {
			clause = append(clause, Proof{{Fact: l.Fact, Negated: !l.Negated}})
		}
		acc = p.mult(acc, clause)
		if len(acc) == 0 {
			break
		}
	}
	return acc
}

// Distributive is false: truncating to K proofs before a Mult can drop a
// proof that would rank in the top K after it
func (p *TopKProofs) Distributive() bool { return false }

func (p *TopKProofs) Weight(tag Proofs) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.wmc(tag)
}

// Equal compares proof sets regardless of order
func (p *TopKProofs) Equal(a, b Proofs) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, proof := range a {
		seen[proof.key()] = true
	}
	for _, proof := range b {
		if !seen[proof.key()] {
			return false
		}
	}
	return true
}

func (p *TopKProofs) Format(tag Proofs) string {
	return fmt.Sprintf("%.4f %s", p.Weight(tag), tag)
}

func (p *TopKProofs) add(a, b Proofs) Proofs {
	candidates := make([]Proof, 0, len(a)+len(b))
	candidates = append(candidates, a...)
	candidates = append(candidates, b...)
	return p.rank(candidates)
}

func (p *TopKProofs) mult(a, b Proofs) Proofs {
	candidates := make([]Proof, 0, len(a)*len(b))
	for _, pa := range a {
		for _, pb := range b {
			if u, ok := p.union(pa, pb); ok {
				candidates = append(candidates, u)
			}
		}
	}
	return p.rank(candidates)
}

// rank removes duplicate proofs and keeps the K most probable ones. The
// sort is stable so earlier candidates win ties.
func (p *TopKProofs) rank(candidates []Proof) Proofs {
	type weighted struct {
		proof  Proof
		weight float64
	}

	seen := make(map[string]bool, len(candidates))
	unique := make([]weighted, 0, len(candidates))
	for _, proof := range candidates {
		key := proof.key()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, weighted{proof: proof, weight: p.conjunctionProb(proof)})
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].weight > unique[j].weight
	})

	if len(unique) > p.k {
		unique = unique[:p.k]
	}
	result := make(Proofs, len(unique))
	for i, w := range unique {
		result[i] = w.proof
	}
	return result
}

// union merges two sorted proofs. It fails when the result uses a fact
// both positively and negatively, or two facts of the same disjunction.
func (p *TopKProofs) union(a, b Proof) (Proof, bool) {
	out := make(Proof, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var next Literal
		switch {
		case j >= len(b) || (i < len(a) && a[i].Fact < b[j].Fact):
			next = a[i]
			i++
		case i >= len(a) || b[j].Fact < a[i].Fact:
			next = b[j]
			j++
		default:
			if a[i].Negated != b[j].Negated {
				return nil, false
			}
			next = a[i]
			i++
			j++
		}
		if n := len(out); n > 0 && out[n-1].Fact == next.Fact {
			if out[n-1].Negated != next.Negated {
				return nil, false
			}
			continue
		}
		out = append(out, next)
	}

	if p.disjunctions {
		chosen := make(map[int]int)
		for _, l := range out {
			if l.Negated {
				continue
			}
			ex := p.facts[l.Fact].exclusion
			if ex < 0 {
				continue
			}
			if other, ok := chosen[ex]; ok && other != l.Fact {
				return nil, false
			}
			chosen[ex] = l.Fact
		}
	}
	return out, true
}

// conjunctionProb is the exact probability that every literal holds.
// Facts are independent except within a disjunction, where they are
// mutually exclusive.
func (p *TopKProofs) conjunctionProb(lits Proof) float64 {
	type group struct {
		positive int
		negated  []int
	}
	var groups map[int]*group

	prob := 1.0
	for _, l := range lits {
		info := p.facts[l.Fact]
		if p.disjunctions && info.exclusion >= 0 {
			if groups == nil {
				groups = make(map[int]*group)
			}
			g, ok := groups[info.exclusion]
			if !ok {
				g = &group{positive: -1}
				groups[info.exclusion] = g
			}
			if l.Negated {
				g.negated = append(g.negated, l.Fact)
			} else {
				if g.positive >= 0 && g.positive != l.Fact {
					return 0
				}
				g.positive = l.Fact
			}
			continue
		}
		if l.Negated {
			prob *= 1 - info.prob
		} else {
			prob *= info.prob
		}
	}

	for _, g := range groups {
		if g.positive >= 0 {
			// The chosen fact implies every other member is false
			for _, n := range g.negated {
				if n == g.positive {
					return 0
				}
			}
			prob *= p.facts[g.positive].prob
			continue
		}
		none := 1.0
		for _, n := range g.negated {
			none -= p.facts[n].prob
		}
		if none < 0 {
			none = 0
		}
		prob *= none
	}
	return prob
}
