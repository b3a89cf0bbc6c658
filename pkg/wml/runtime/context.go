package runtime

import (
	"sync"
)

// Mode selects how a body is executed.
type Mode int

const (
	// RenderMode produces output.
	RenderMode Mode = iota
	// InternalMode evaluates the dirty-check expression set.
	InternalMode
)

// DeferredResults collects values produced outside the synchronous render,
// such as asynchronous control options. It is safe for concurrent use.
type DeferredResults struct {
	mu      sync.Mutex
	results map[string]any
	order   []string
}

// NewDeferredResults creates an empty sink.
func NewDeferredResults() *DeferredResults {
	return &DeferredResults{results: map[string]any{}}
}

// Put records a result under key.
func (d *DeferredResults) Put(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.results[key]; !ok {
		d.order = append(d.order, key)
	}
	d.results[key] = value
}

// Get returns the result stored under key.
func (d *DeferredResults) Get(key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.results[key]
	return v, ok
}

// Keys lists keys in the order they were first put.
func (d *DeferredResults) Keys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

// Context is the state of one template invocation. It is owned by the
// invocation and never shared.
type Context struct {
	Global *Description
	// Args holds the invocation arguments: data and attributes.
	Args       []any
	Attributes map[string]any
	Key        string
	Scope      *Scope
	Self       any
	// ViewController is the owning component, the function context of
	// bare calls.
	ViewController any
	Deferred       *DeferredResults
	Generator      Generator
	Mode           Mode
	Compatible     bool
	// ContextData is the data of the ambient context, read by context.x.
	ContextData map[string]any
	// Children are the named children, read by _children.x.
	Children map[string]any
	// Internals receives dirty-check values in InternalMode.
	Internals map[int]any

	parent *Context
	in     *interp
}

// Spawn creates a child context for a nested construct. The key gains the
// discriminator so sibling constructs get distinct keys.
func (c *Context) Spawn(discriminator string) *Context {
	child := *c
	child.parent = c
	if discriminator != "" {
		child.Key = c.Key + discriminator + "_"
	}
	return &child
}

// Parent returns the context this one was spawned from.
func (c *Context) Parent() *Context { return c.parent }

// ContextValue looks up name in the ambient context data, walking outward
// through parent contexts.
func (c *Context) ContextValue(name string) any {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.ContextData[name]; ok {
			return v
		}
	}
	return Undefined
}

// Child returns a named child registered by name="...".
func (c *Context) Child(name string) any {
	if v, ok := c.Children[name]; ok {
		return v
	}
	return Undefined
}

// Env builds the evaluation environment of the context.
func (c *Context) Env(m *Methods) *Env {
	return &Env{
		Scope:       c.Scope,
		Self:        c.Self,
		FuncContext: c.funcContext(),
		Ctx:         c,
		Methods:     m,
	}
}

func (c *Context) funcContext() any {
	if c.ViewController != nil {
		return c.ViewController
	}
	return c.Self
}
