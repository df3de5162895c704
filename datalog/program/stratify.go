package program

import (
	"fmt"
	"strings"
)

// stratify groups derived relations into strongly connected components of
// the dependency graph and orders them so that every stratum only reads
// relations of earlier strata, or of itself through positive atoms.
func stratify(order []string, rules []*CompiledRule) ([]*Stratum, error) {
	byHead := make(map[string][]*CompiledRule)
	var heads []string
	for _, name := range order {
		for _, r := range rules {
			if r.Head == name {
				if len(byHead[name]) == 0 {
					heads = append(heads, name)
				}
				byHead[name] = append(byHead[name], r)
			}
		}
	}

	edges := make(map[string][]dependency)
	for _, name := range heads {
		for _, r := range byHead[name] {
			for _, d := range r.Source.dependencies() {
				if _, derived := byHead[d.relation]; derived {
					edges[name] = append(edges[name], d)
				}
			}
		}
	}

	components := tarjan(heads, edges)

	component := make(map[string]int)
	for i, scc := range components {
		for _, name := range scc {
			component[name] = i
		}
	}

	strata := make([]*Stratum, 0, len(components))
	for i, scc := range components {
		s := &Stratum{Index: i, Relations: scc}

		for _, name := range scc {
			for _, d := range edges[name] {
				if component[d.relation] != i {
					continue
				}
				if d.negative {
					return nil, fmt.Errorf("%w: %s depends on %s through negation or aggregation within the cycle {%s}",
						ErrUnstratifiable, name, d.relation, strings.Join(scc, ", "))
				}
				s.Recursive = true
			}
		}

		// Rules keep program order inside a stratum
		for _, r := range rules {
			if component[r.Head] == i && byHead[r.Head] != nil {
				r.Stratum = i
				s.Rules = append(s.Rules, r)
			}
		}

		inputs := make(map[string]bool)
		nonMonotone := make(map[string]bool)
		for _, r := range s.Rules {
			for j, step := range r.Steps {
				switch st := step.(type) {
				case ScanStep:
					if s.Defines(st.Relation) {
						st.Recursive = true
						r.Steps[j] = st
					} else if !inputs[st.Relation] {
						inputs[st.Relation] = true
						s.Inputs = append(s.Inputs, st.Relation)
					}
				case NegationStep:
					if !nonMonotone[st.Relation] {
						nonMonotone[st.Relation] = true
						s.NonMonotone = append(s.NonMonotone, st.Relation)
					}
				case AggregateStep:
					if !nonMonotone[st.Relation] {
						nonMonotone[st.Relation] = true
						s.NonMonotone = append(s.NonMonotone, st.Relation)
					}
				}
			}
		}
		strata = append(strata, s)
	}
	return strata, nil
}

// tarjan returns the strongly connected components in reverse topological
// order of the edges, which puts dependencies before their dependents.
// Nodes are visited in the given order so the result is deterministic.
func tarjan(nodes []string, edges map[string][]dependency) [][]string {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var components [][]string

	var connect func(v string)
	connect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, d := range edges[v] {
			w := d.relation
			if _, seen := indices[w]; !seen {
				connect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			// Restore declaration order inside the component
			ordered := make([]string, 0, len(scc))
			for _, n := range nodes {
				for _, m := range scc {
					if n == m {
						ordered = append(ordered, n)
					}
				}
			}
			components = append(components, ordered)
		}
	}

	for _, v := range nodes {
		if _, seen := indices[v]; !seen {
			connect(v)
		}
	}
	return components
}
