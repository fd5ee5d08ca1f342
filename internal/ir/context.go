package ir

import (
	"sort"
)

// Context is one snapshot of the state-variable bindings. Contexts are
// immutable: every update constructs a new Context, so a retained trace
// can hold every step's snapshot without copying defensively.
type Context struct {
	vars map[string]Value
}

// EmptyContext returns the context with no bindings, used before the
// init action runs.
func EmptyContext() *Context {
	return &Context{vars: map[string]Value{}}
}

// NewContext builds a context from the given bindings.
func NewContext(vars map[string]Value) *Context {
	out := make(map[string]Value, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return &Context{vars: out}
}

// Get returns the value bound to name.
func (c *Context) Get(name string) (Value, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Len returns the number of bound variables.
func (c *Context) Len() int { return len(c.vars) }

// Names returns the bound variable names in sorted order.
func (c *Context) Names() []string {
	names := make([]string, 0, len(c.vars))
	for k := range c.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// WithAll returns a new context with the given bindings applied on top
// of the receiver. The receiver is unchanged.
func (c *Context) WithAll(updates map[string]Value) *Context {
	out := make(map[string]Value, len(c.vars)+len(updates))
	for k, v := range c.vars {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return &Context{vars: out}
}

// EqualContext reports deep structural equality of two contexts.
func EqualContext(a, b *Context) bool {
	if len(a.vars) != len(b.vars) {
		return false
	}
	for k, av := range a.vars {
		bv, ok := b.vars[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}
