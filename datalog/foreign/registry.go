package foreign

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrDuplicateName is returned when a function or predicate name is
	// already taken. Functions and predicates share one namespace.
	ErrDuplicateName = errors.New("duplicate foreign name")

	// ErrUnknownName is returned when a rule references a name that was
	// never registered
	ErrUnknownName = errors.New("unknown foreign name")

	// ErrArity is returned when a call site passes the wrong number of
	// arguments
	ErrArity = errors.New("foreign arity mismatch")

	// ErrInvalidRegistration is returned for malformed registrations
	ErrInvalidRegistration = errors.New("invalid foreign registration")
)

// Registry tracks the foreign functions and predicates available to rules.
// Registration fails at load time rather than at evaluation time.
type Registry struct {
	mu         sync.RWMutex
	functions  map[string]Function
	predicates map[string]Predicate
	builtins   map[string]bool
}

// NewRegistry creates a registry preloaded with the builtin functions and
// predicates
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for _, f := range builtinFunctions() {
		r.functions[f.Name()] = f
		r.builtins[f.Name()] = true
	}
	for _, p := range builtinPredicates() {
		r.predicates[p.Name()] = p
		r.builtins[p.Name()] = true
	}
	return r
}

// NewEmptyRegistry creates a registry without builtins
func NewEmptyRegistry() *Registry {
	return &Registry{
		functions:  make(map[string]Function),
		predicates: make(map[string]Predicate),
		builtins:   make(map[string]bool),
	}
}

// RegisterFunction adds a foreign function
func (r *Registry) RegisterFunction(f Function) error {
	if f == nil || f.Name() == "" {
		return fmt.Errorf("%w: function without a name", ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkAvailable(f.Name()); err != nil {
		return err
	}
	r.functions[f.Name()] = f
	return nil
}

// RegisterPredicate adds a foreign predicate
func (r *Registry) RegisterPredicate(p Predicate) error {
	if p == nil || p.Name() == "" {
		return fmt.Errorf("%w: predicate without a name", ErrInvalidRegistration)
	}
	if p.NumBounded() < 0 || p.NumBounded() > len(p.Types()) {
		return fmt.Errorf("%w: predicate '%s' has %d bounded arguments but arity %d",
			ErrInvalidRegistration, p.Name(), p.NumBounded(), len(p.Types()))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkAvailable(p.Name()); err != nil {
		return err
	}
	r.predicates[p.Name()] = p
	return nil
}

func (r *Registry) checkAvailable(name string) error {
	_, isFunction := r.functions[name]
	_, isPredicate := r.predicates[name]
	if !isFunction && !isPredicate {
		return nil
	}
	kind := "user"
	if r.builtins[name] {
		kind = "builtin"
	}
	return fmt.Errorf("%w: '%s' collides with a %s registration", ErrDuplicateName, name, kind)
}

// Function looks up a foreign function
func (r *Registry) Function(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.functions[name]
	return f, ok
}

// Predicate looks up a foreign predicate
func (r *Registry) Predicate(name string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predicates[name]
	return p, ok
}

// IsRegistered checks if a function or predicate name is taken
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, f := r.functions[name]
	_, p := r.predicates[name]
	return f || p
}

// IsBuiltin reports whether name is one of the preloaded registrations
func (r *Registry) IsBuiltin(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.builtins[name]
}

// ValidateFunction checks if a function call is valid
func (r *Registry) ValidateFunction(name string, argCount int) (Function, error) {
	f, ok := r.Function(name)
	if !ok {
		if _, isPred := r.Predicate(name); isPred {
			return nil, fmt.Errorf("%w: '%s' is a predicate, not a function", ErrUnknownName, name)
		}
		return nil, fmt.Errorf("%w: function '%s' - registered: %s", ErrUnknownName, name, r.ListNames())
	}
	if want := len(f.Signature().Params); argCount != want {
		return nil, fmt.Errorf("%w: function '%s' takes %d arguments, got %d", ErrArity, name, want, argCount)
	}
	return f, nil
}

// ValidatePredicate checks if a predicate call is valid
func (r *Registry) ValidatePredicate(name string, argCount int) (Predicate, error) {
	p, ok := r.Predicate(name)
	if !ok {
		if _, isFn := r.Function(name); isFn {
			return nil, fmt.Errorf("%w: '%s' is a function, not a predicate", ErrUnknownName, name)
		}
		return nil, fmt.Errorf("%w: predicate '%s' - registered: %s", ErrUnknownName, name, r.ListNames())
	}
	if want := len(p.Types()); argCount != want {
		return nil, fmt.Errorf("%w: predicate '%s' takes %d arguments, got %d", ErrArity, name, want, argCount)
	}
	return p, nil
}

// Names returns every registered name, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions)+len(r.predicates))
	for name := range r.functions {
		names = append(names, name)
	}
	for name := range r.predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListNames returns a comma-separated list of registered names
func (r *Registry) ListNames() string {
	return strings.Join(r.Names(), ", ")
}

// Clone returns an independent copy. Registrations added to the clone do
// not affect the original.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewEmptyRegistry()
	for k, v := range r.functions {
		c.functions[k] = v
	}
	for k, v := range r.predicates {
		c.predicates[k] = v
	}
	for k, v := range r.builtins {
		c.builtins[k] = v
	}
	return c
}
