package program

import (
	"fmt"

	"github.com/wbrown/janus-provenance/datalog/foreign"
)

// CompileOptions carries the capabilities of the provenance the program
// will run under
type CompileOptions struct {
	// Negation must be set when the provenance implements Negator
	Negation bool
}

// Compile checks the whole program, stratifies it and plans every rule.
// The result does not share mutable state with the program.
func (p *Program) Compile(registry *foreign.Registry, opts CompileOptions) (*Compiled, error) {
	relations := make(map[string]*Relation, len(p.relations))
	for name, r := range p.relations {
		relations[name] = r.Clone()
	}
	lookup := func(name string) (*Relation, error) {
		if r, ok := relations[name]; ok {
			return r, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownRelation, name)
	}

	compiled := &Compiled{
		Relations: relations,
		Order:     append([]string(nil), p.order...),
	}

	for i, rule := range p.rules {
		cr, err := compileRule(rule, lookup, registry)
		if err != nil {
			return nil, err
		}
		cr.Index = i
		for _, l := range rule.Body {
			if _, ok := l.(Negation); ok {
				compiled.UsesNegation = true
				if !opts.Negation {
					return nil, fmt.Errorf("rule %s: %w", rule, ErrNegationUnsupported)
				}
			}
		}
		compiled.Rules = append(compiled.Rules, cr)
	}

	for _, q := range p.queries {
		r, ok := relations[q]
		if !ok {
			return nil, fmt.Errorf("%w: query %s", ErrUnknownRelation, q)
		}
		r.Query = true
		compiled.Queries = append(compiled.Queries, q)
	}

	strata, err := stratify(compiled.Order, compiled.Rules)
	if err != nil {
		return nil, err
	}
	compiled.Strata = strata
	return compiled, nil
}
