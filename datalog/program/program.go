// Package program holds the logical structure the engine evaluates:
// relation schemas, rules built from terms and literals, and the compiler
// that checks a program, stratifies it and plans every rule body.
package program

import (
	"fmt"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/foreign"
)

// Program is a mutable collection of relations and rules
type Program struct {
	relations map[string]*Relation
	order     []string
	rules     []Rule
	queries   []string
}

// New creates an empty program
func New() *Program {
	return &Program{
		relations: make(map[string]*Relation),
	}
}

// Declare adds a relation with explicit types. Declaring the same
// relation twice with identical types is a no-op.
func (p *Program) Declare(name string, types ...datalog.ValueType) (*Relation, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: relation without a name", ErrInvalidRule)
	}
	for i, t := range types {
		if t == datalog.TypeInvalid {
			return nil, fmt.Errorf("%w: %s position %d has an invalid type", ErrTypeMismatch, name, i)
		}
	}

	if r, ok := p.relations[name]; ok {
		if len(r.Types) != len(types) {
			return nil, fmt.Errorf("%w: %s has arity %d, redeclared with %d", ErrArityMismatch, name, len(r.Types), len(types))
		}
		if r.Declared {
			for i := range types {
				if r.Types[i] != types[i] {
					return nil, fmt.Errorf("%w: %s redeclared as %s", ErrDuplicateRelation, r, (&Relation{Name: name, Types: types}))
				}
			}
			return r, nil
		}
		r.Types = append([]datalog.ValueType(nil), types...)
		r.Declared = true
		return r, nil
	}

	r := &Relation{
		Name:     name,
		Types:    append([]datalog.ValueType(nil), types...),
		Declared: true,
	}
	p.relations[name] = r
	p.order = append(p.order, name)
	return r, nil
}

// AddRule checks a rule against what is known so far and adds it. Rules
// may reference relations that are only defined later; those references
// are resolved by Compile.
func (p *Program) AddRule(rule Rule, registry *foreign.Registry) error {
	head, ok := p.relations[rule.Head.Relation]
	if ok && head.Arity() != len(rule.Head.Args) {
		return fmt.Errorf("%w: rule head %s has %d arguments, relation %s has %d",
			ErrArityMismatch, rule.Head, len(rule.Head.Args), head.Name, head.Arity())
	}

	if _, err := compileRule(rule, p.lookup(false), registry); err != nil {
		return err
	}

	if !ok {
		head = &Relation{
			Name:  rule.Head.Relation,
			Types: anyTypes(len(rule.Head.Args)),
		}
		p.relations[head.Name] = head
		p.order = append(p.order, head.Name)
	}
	head.Derived = true
	p.rules = append(p.rules, rule)
	return nil
}

// AddQuery marks a relation as an output. The relation may be defined by
// rules added later.
func (p *Program) AddQuery(name string) {
	for _, q := range p.queries {
		if q == name {
			return
		}
	}
	p.queries = append(p.queries, name)
	if r, ok := p.relations[name]; ok {
		r.Query = true
	}
}

// Relation looks up a relation
func (p *Program) Relation(name string) (*Relation, bool) {
	r, ok := p.relations[name]
	return r, ok
}

// Relations returns every relation in the order it became known
func (p *Program) Relations() []*Relation {
	out := make([]*Relation, len(p.order))
	for i, name := range p.order {
		out[i] = p.relations[name]
	}
	return out
}

// Rules returns the rules in the order they were added
func (p *Program) Rules() []Rule {
	return p.rules
}

// Queries returns the relations marked as outputs
func (p *Program) Queries() []string {
	return p.queries
}

// lookup returns a resolver for relation schemas. When strict is false,
// unknown relations resolve to nil so rule-local checks can proceed.
func (p *Program) lookup(strict bool) relationLookup {
	return func(name string) (*Relation, error) {
		if r, ok := p.relations[name]; ok {
			return r, nil
		}
		if strict {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRelation, name)
		}
		return nil, nil
	}
}

type relationLookup func(name string) (*Relation, error)
