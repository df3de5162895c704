package provenance

// wmc computes the probability that at least one proof holds. Proofs that
// contain another retained proof are absorbed first. The remaining ones are
// counted by enumerating the possible worlds of the facts they use when
// there are fewer facts than proofs, and by inclusion-exclusion over the
// proofs otherwise. Callers must hold p.mu.
func (p *TopKProofs) wmc(proofs Proofs) float64 {
	proofs = absorb(proofs)
	if len(proofs) == 0 {
		return 0
	}
	if facts := proofFacts(proofs); len(facts) < len(proofs) {
		return clamp(p.worlds(proofs, facts))
	}
	return clamp(p.inclusionExclusion(proofs))
}

// inclusionExclusion expands over every non-empty subset of the proofs:
//
//	P(p1 ∨ … ∨ pn) = Σ_{S ≠ ∅} (-1)^{|S|+1} · P(∧_{i∈S} pi)
//
// The conjunction of a subset is the union of its literals, so facts shared
// between proofs are counted once. A subset whose union is contradictory
// has probability zero, and so does every superset of it; those branches
// are pruned.
func (p *TopKProofs) inclusionExclusion(proofs Proofs) float64 {
	var total float64

	var expand func(start int, acc Proof, size int)
	expand = func(start int, acc Proof, size int) {
		for i := start; i < len(proofs); i++ {
			u, ok := p.union(acc, proofs[i])
			if !ok {
				continue
			}
			prob := p.conjunctionProb(u)
			if prob == 0 {
				continue
			}
			if (size+1)%2 == 1 {
				total += prob
			} else {
				total -= prob
			}
			expand(i+1, u, size+1)
		}
	}
	expand(0, Proof{}, 0)

	return total
}

// choice is one independent dimension of a possible world: a single fact
// that holds or not, or a disjunction group of which at most one member
// holds
type choice struct {
	facts []int
	group bool
}

// worlds sums the probability of every assignment of facts under which some
// proof holds. Facts of one disjunction group are mutually exclusive; the
// group's other members are marginalized out.
func (p *TopKProofs) worlds(proofs Proofs, facts []int) float64 {
	local := make(map[int]int, len(facts))
	var choices []choice
	groups := make(map[int]int)
	for i, id := range facts {
		local[id] = i
		info := p.facts[id]
		if !p.disjunctions || info.exclusion < 0 {
			choices = append(choices, choice{facts: []int{id}})
			continue
		}
		if at, ok := groups[info.exclusion]; ok {
			choices[at].facts = append(choices[at].facts, id)
			continue
		}
		groups[info.exclusion] = len(choices)
		choices = append(choices, choice{facts: []int{id}, group: true})
	}

	truth := make([]bool, len(facts))
	holds := func() bool {
		for _, proof := range proofs {
			ok := true
			for _, l := range proof {
				if truth[local[l.Fact]] == l.Negated {
					ok = false
					break
				}
			}
			if ok {
				return true
			}
		}
		return false
	}

	var total float64
	var walk func(i int, weight float64)
	walk = func(i int, weight float64) {
		if weight == 0 {
			return
		}
		if i == len(choices) {
			if holds() {
				total += weight
			}
			return
		}
		c := choices[i]
		if !c.group {
			id := c.facts[0]
			prob := p.facts[id].prob
			truth[local[id]] = true
			walk(i+1, weight*prob)
			truth[local[id]] = false
			walk(i+1, weight*(1-prob))
			return
		}
		none := 1.0
		for _, id := range c.facts {
			prob := p.facts[id].prob
			truth[local[id]] = true
			walk(i+1, weight*prob)
			truth[local[id]] = false
			none -= prob
		}
		walk(i+1, weight*max(none, 0))
	}
	walk(0, 1)

	return total
}

// proofFacts returns the distinct fact ids the proofs mention, in order of
// first use
func proofFacts(proofs Proofs) []int {
	seen := make(map[int]bool)
	var facts []int
	for _, proof := range proofs {
		for _, l := range proof {
			if !seen[l.Fact] {
				seen[l.Fact] = true
				facts = append(facts, l.Fact)
			}
		}
	}
	return facts
}

// absorb drops every proof that contains another proof of the set. Such a
// proof never holds without the smaller one, so the disjunction keeps its
// probability.
func absorb(proofs Proofs) Proofs {
	out := make(Proofs, 0, len(proofs))
	for i, candidate := range proofs {
		redundant := false
		for j, other := range proofs {
			if i == j || !contains(candidate, other) {
				continue
			}
			// Of two equal proofs keep the first
			if len(other) < len(candidate) || j < i {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, candidate)
		}
	}
	return out
}

// contains reports whether every literal of sub appears in proof. Both are
// sorted by fact id.
func contains(proof, sub Proof) bool {
	i := 0
	for _, l := range sub {
		for i < len(proof) && proof[i].Fact < l.Fact {
			i++
		}
		if i == len(proof) || proof[i] != l {
			return false
		}
		i++
	}
	return true
}
