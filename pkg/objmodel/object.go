package objmodel

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Object is an instance whose behavior comes from its runtime class.
type Object struct {
	isa      atomic.Pointer[Class]
	released atomic.Bool
	assoc    Associations
}

// Class returns the class the object reports, which may differ from the
// runtime class when the runtime class is a substitute.
func (o *Object) Class() *Class {
	return o.isa.Load().Identity()
}

// RuntimeClass returns the class messages are actually resolved against.
func (o *Object) RuntimeClass() *Class {
	return o.isa.Load()
}

// SetRuntimeClass rebinds the object to c and returns the previous class.
func (o *Object) SetRuntimeClass(c *Class) *Class {
	return o.isa.Swap(c)
}

// RespondsTo reports whether the object handles name.
func (o *Object) RespondsTo(name string) bool {
	return o.isa.Load().RespondsTo(name)
}

// Associations returns the values attached to the object.
func (o *Object) Associations() *Associations { return &o.assoc }

// Released reports whether Release has completed.
func (o *Object) Released() bool { return o.released.Load() }

// Send dispatches name with args and returns the method result, or nil when
// the method declares none.
func (o *Object) Send(name string, args ...any) (any, error) {
	if o.released.Load() {
		return nil, fmt.Errorf("%w: %s", ErrReleased, name)
	}

	cls := o.isa.Load()
	m := cls.Method(name)
	if m == nil {
		return nil, &UnrecognizedSelectorError{Class: cls.Identity().name, Selector: name}
	}

	in, err := m.convertArgs(args)
	if err != nil {
		return nil, err
	}

	if m.forward {
		inv := NewInvocation(o, cls, m, in)
		if err := cls.Forward(inv); err != nil {
			return nil, err
		}
		return inv.ReturnValue(), nil
	}
	return valueInterface(m.call(o, in)), nil
}

// Release sends dealloc, then marks the object released and drops its
// associations. Releasing twice returns ErrReleased.
func (o *Object) Release() error {
	if o.released.Load() {
		return ErrReleased
	}
	_, err := o.Send(SelectorDealloc)
	o.released.Store(true)
	o.assoc.clear()
	return err
}

// Associations is a concurrent key/value table attached to an object or class.
type Associations struct {
	m sync.Map
}

// Load returns the value stored under key.
func (a *Associations) Load(key string) (any, bool) {
	return a.m.Load(key)
}

// Store sets key to value.
func (a *Associations) Store(key string, value any) {
	a.m.Store(key, value)
}

// LoadOrStore returns the existing value for key if present. Otherwise it
// stores and returns value. loaded reports whether the value was present.
func (a *Associations) LoadOrStore(key string, value any) (actual any, loaded bool) {
	return a.m.LoadOrStore(key, value)
}

// Delete removes key.
func (a *Associations) Delete(key string) {
	a.m.Delete(key)
}

// Range calls fn for each entry until fn returns false.
func (a *Associations) Range(fn func(key string, value any) bool) {
	a.m.Range(func(k, v any) bool {
		return fn(k.(string), v)
	})
}

func (a *Associations) clear() {
	a.m.Clear()
}
