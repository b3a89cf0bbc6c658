package runtime

import (
	werrors "github.com/sambeau/wml/pkg/wml/errors"
)

// Scope is a prototype-chained data scope. Names defined in a child shadow
// the parent; lookups that miss fall through to the parent and finally to
// the root data object.
type Scope struct {
	parent   *Scope
	vars     map[string]any
	data     any
	poisoned map[string]bool
}

// NewScope creates a root scope over data.
func NewScope(data any) *Scope {
	return &Scope{vars: map[string]any{}, data: data}
}

// Child creates a scope whose lookups fall through to s.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, vars: map[string]any{}}
}

// Define binds name in this scope.
func (s *Scope) Define(name string, value any) {
	s.vars[name] = value
	delete(s.poisoned, name)
}

// Poison marks names that are not in scope for internal evaluation.
// Reading a poisoned name fails with an invalid context error.
func (s *Scope) Poison(names ...string) {
	if s.poisoned == nil {
		s.poisoned = map[string]bool{}
	}
	for _, name := range names {
		delete(s.vars, name)
		s.poisoned[name] = true
	}
}

// Data returns the root data object.
func (s *Scope) Data() any {
	for s.parent != nil {
		s = s.parent
	}
	return s.data
}

// Lookup resolves name, returning Undefined when it is not bound anywhere.
func (s *Scope) Lookup(name string) (any, error) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.poisoned[name] {
			return nil, werrors.New("RUNTIME-0003", map[string]any{"Expression": name})
		}
		if v, ok := cur.vars[name]; ok {
			return v, nil
		}
		if cur.parent == nil && cur.data != nil {
			return property(cur.data, name), nil
		}
	}
	return Undefined, nil
}

// Assign sets name where it is defined. An unknown name is written to the
// root data object when it accepts properties, otherwise it is defined here.
func (s *Scope) Assign(name string, value any) error {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.poisoned[name] {
			return werrors.New("RUNTIME-0003", map[string]any{"Expression": name})
		}
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = value
			return nil
		}
		if cur.parent == nil && cur.data != nil {
			if err := setProperty(cur.data, name, value); err == nil {
				return nil
			}
		}
	}
	s.vars[name] = value
	return nil
}

// Flatten copies every visible name of the scope chain into a map. The
// root data object contributes its own properties.
func (s *Scope) Flatten() map[string]any {
	var chain []*Scope
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	out := map[string]any{}
	for i := len(chain) - 1; i >= 0; i-- {
		cur := chain[i]
		if cur.parent == nil && cur.data != nil {
			for _, k := range Keys(cur.data) {
				out[k] = property(cur.data, k)
			}
		}
		for k, v := range cur.vars {
			out[k] = v
		}
		for k := range cur.poisoned {
			delete(out, k)
		}
	}
	return out
}

// Env is what a compiled expression evaluates against.
type Env struct {
	Scope *Scope
	// Self is the value of this.
	Self any
	// FuncContext is the invocation context of bare function calls.
	FuncContext any
	Ctx         *Context
	Methods     *Methods
}

// Evaluator is a compiled value expression.
type Evaluator func(env *Env) (any, error)

// Assigner is a compiled bind target.
type Assigner func(env *Env, value any) error
