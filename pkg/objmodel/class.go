// Package objmodel provides a small dynamic object model: classes with mutable
// method tables, objects whose runtime class can be swapped, invocations that
// can be re-dispatched, and per-class forwarders for unimplemented messages.
package objmodel

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// RootClassName is the name of the class every other class derives from.
const RootClassName = "Object"

// Lifecycle selectors declared by the root class.
const (
	SelectorRetain      = "retain"
	SelectorRelease     = "release"
	SelectorAutorelease = "autorelease"
	SelectorDealloc     = "dealloc"
)

// Forwarder receives invocations for forwarding methods.
type Forwarder func(inv *Invocation) error

// Class is a named, single-inheritance type with a mutable method table.
type Class struct {
	name  string
	super *Class

	mu        sync.RWMutex
	methods   map[string]*Method
	forwarder Forwarder

	reported atomic.Pointer[Class]
	assoc    Associations
}

var registry = struct {
	sync.RWMutex
	classes map[string]*Class
}{classes: make(map[string]*Class)}

var rootClass = newRootClass()

func newRootClass() *Class {
	c := &Class{name: RootClassName, methods: make(map[string]*Method)}
	for _, sel := range []string{SelectorRetain, SelectorRelease, SelectorAutorelease, SelectorDealloc} {
		m, err := NewMethod(sel, func(*Object) {})
		if err != nil {
			panic(err)
		}
		c.methods[sel] = m
	}
	registry.Lock()
	registry.classes[c.name] = c
	registry.Unlock()
	return c
}

// RootClass returns the class every class ultimately derives from.
func RootClass() *Class { return rootClass }

// NewClass registers a class named name deriving from super. A nil super
// means the root class.
func NewClass(name string, super *Class) (*Class, error) {
	if name == "" {
		return nil, fmt.Errorf("objmodel: class name cannot be empty")
	}
	if super == nil {
		super = rootClass
	}

	registry.Lock()
	defer registry.Unlock()

	if _, exists := registry.classes[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrClassExists, name)
	}
	c := &Class{name: name, super: super, methods: make(map[string]*Method)}
	registry.classes[name] = c
	return c, nil
}

// MustNewClass is like NewClass but panics on error.
func MustNewClass(name string, super *Class) *Class {
	c, err := NewClass(name, super)
	if err != nil {
		panic(err)
	}
	return c
}

// LookupClass returns the registered class with the given name, or nil.
func LookupClass(name string) *Class {
	registry.RLock()
	defer registry.RUnlock()
	return registry.classes[name]
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// String implements fmt.Stringer.
func (c *Class) String() string { return c.name }

// Superclass returns the parent class, or nil for the root class.
func (c *Class) Superclass() *Class { return c.super }

// IsSubclassOf reports whether c is other or derives from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.super {
		if k == other {
			return true
		}
	}
	return false
}

// AddMethod declares a new method on c. It fails if c already declares one
// with the same name; inherited methods may be overridden.
func (c *Class) AddMethod(name string, fn any) error {
	m, err := NewMethod(name, fn)
	if err != nil {
		return err
	}
	return c.Install(m)
}

// MustAddMethod is like AddMethod but panics on error. It returns c so
// declarations can be chained.
func (c *Class) MustAddMethod(name string, fn any) *Class {
	if err := c.AddMethod(name, fn); err != nil {
		panic(err)
	}
	return c
}

// Install adds m to c's own table unless c already declares m.Name().
func (c *Class) Install(m *Method) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.methods[m.name]; exists {
		return fmt.Errorf("%w: %s.%s", ErrMethodExists, c.name, m.name)
	}
	c.methods[m.name] = m
	return nil
}

// ReplaceMethod sets m in c's own table and returns the method it replaced,
// or nil when c did not declare one.
func (c *Class) ReplaceMethod(m *Method) *Method {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.methods[m.name]
	c.methods[m.name] = m
	return prev
}

// RemoveMethod deletes name from c's own table and returns what was there.
func (c *Class) RemoveMethod(name string) *Method {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.methods[name]
	delete(c.methods, name)
	return prev
}

// OwnMethod returns the method c itself declares for name.
func (c *Class) OwnMethod(name string) *Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.methods[name]
}

// Method resolves name through c and its superclasses.
func (c *Class) Method(name string) *Method {
	for k := c; k != nil; k = k.super {
		if m := k.OwnMethod(name); m != nil {
			return m
		}
	}
	return nil
}

// MethodNames returns the names c itself declares, sorted.
func (c *Class) MethodNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RespondsTo reports whether instances of c respond to name.
func (c *Class) RespondsTo(name string) bool {
	return c.Method(name) != nil
}

// SetForwarder installs f as c's own forwarder and returns the previous one.
func (c *Class) SetForwarder(f Forwarder) Forwarder {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.forwarder
	c.forwarder = f
	return prev
}

// Forwarder returns c's own forwarder, or nil.
func (c *Class) Forwarder() Forwarder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.forwarder
}

// Forward hands inv to the nearest forwarder of c or its superclasses. When
// there is none, the forwarding method may have been replaced since inv was
// resolved, so the target is asked again before the send faults.
func (c *Class) Forward(inv *Invocation) error {
	for k := c; k != nil; k = k.super {
		if f := k.Forwarder(); f != nil {
			return f(inv)
		}
	}
	if inv.target != nil {
		if m := inv.target.RuntimeClass().Method(inv.selector); m != nil && !m.forward {
			inv.ret = m.call(inv.target, inv.args)
			return nil
		}
	}
	return &UnrecognizedSelectorError{Class: c.Identity().name, Selector: inv.Selector()}
}

// SetReportedClass makes c report r as its identity. A nil r resets it.
func (c *Class) SetReportedClass(r *Class) {
	c.reported.Store(r)
}

// Identity returns the class c reports itself as.
func (c *Class) Identity() *Class {
	if r := c.reported.Load(); r != nil {
		return r
	}
	return c
}

// Associations returns the values attached to the class itself.
func (c *Class) Associations() *Associations { return &c.assoc }

// New allocates an instance of c.
func (c *Class) New() *Object {
	o := &Object{}
	o.isa.Store(c)
	return o
}
