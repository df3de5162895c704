package program

import (
	"fmt"
	"strings"
)

// Rule derives facts of the head relation from its body. The head may use
// computed terms, e.g. result(w, $string_length(w)).
type Rule struct {
	Head Atom
	Body []Literal
}

// NewRule creates a rule
func NewRule(head Atom, body ...Literal) Rule {
	return Rule{Head: head, Body: body}
}

// Fact creates a body-less rule asserting a constant tuple
func Fact(relation string, args ...Term) Rule {
	return Rule{Head: A(relation, args...)}
}

func (r Rule) String() string {
	if len(r.Body) == 0 {
		return r.Head.String()
	}
	parts := make([]string, len(r.Body))
	for i, l := range r.Body {
		parts[i] = l.String()
	}
	return fmt.Sprintf("%s = %s", r.Head, strings.Join(parts, ", "))
}

// dependency is an edge from a rule head to a relation its body reads
type dependency struct {
	relation string
	negative bool // read through negation or aggregation
}

func (r Rule) dependencies() []dependency {
	var deps []dependency
	for _, l := range r.Body {
		switch l := l.(type) {
		case Atom:
			deps = append(deps, dependency{relation: l.Relation})
		case Negation:
			deps = append(deps, dependency{relation: l.Atom.Relation, negative: true})
		case Aggregation:
			deps = append(deps, dependency{relation: l.Body.Relation, negative: true})
		}
	}
	return deps
}
