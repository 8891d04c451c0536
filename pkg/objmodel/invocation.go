package objmodel

import (
	"fmt"
	"reflect"
)

// Invocation is a captured message send: target, selector, arguments and,
// once invoked, the return value. It can be re-dispatched with Invoke.
type Invocation struct {
	target   *Object
	class    *Class
	selector string
	method   *Method
	args     []reflect.Value
	ret      reflect.Value
}

// NewInvocation captures a send of m to target, resolved against cls, with
// already converted args. A nil cls means the target's runtime class.
func NewInvocation(target *Object, cls *Class, m *Method, args []reflect.Value) *Invocation {
	return &Invocation{
		target:   target,
		class:    cls,
		selector: m.name,
		method:   m,
		args:     args,
	}
}

// Target returns the receiving object.
func (inv *Invocation) Target() *Object { return inv.target }

// ResolvedClass returns the class the send was resolved against. It stays
// the same when the target is rebound while the invocation is in flight.
func (inv *Invocation) ResolvedClass() *Class {
	if inv.class == nil && inv.target != nil {
		return inv.target.RuntimeClass()
	}
	return inv.class
}

// Selector returns the selector Invoke will dispatch.
func (inv *Invocation) Selector() string { return inv.selector }

// SetSelector changes the selector Invoke will dispatch.
func (inv *Invocation) SetSelector(sel string) { inv.selector = sel }

// Signature returns the method the invocation was built from.
func (inv *Invocation) Signature() *Method { return inv.method }

// NumArguments returns the number of arguments, receiver excluded.
func (inv *Invocation) NumArguments() int { return len(inv.args) }

// Argument returns argument i boxed as any.
func (inv *Invocation) Argument(i int) any { return valueInterface(inv.args[i]) }

// ArgumentValue returns argument i as a reflect.Value of its declared type.
func (inv *Invocation) ArgumentValue(i int) reflect.Value { return inv.args[i] }

// Arguments boxes every argument.
func (inv *Invocation) Arguments() []any {
	out := make([]any, len(inv.args))
	for i := range inv.args {
		out[i] = inv.Argument(i)
	}
	return out
}

// SetArgument replaces argument i.
func (inv *Invocation) SetArgument(i int, v any) error {
	if i < 0 || i >= len(inv.args) {
		return fmt.Errorf("%w: index %d out of range for %s", ErrArgumentCount, i, inv.method.name)
	}
	rv, err := convertValue(v, inv.method.ArgumentType(i))
	if err != nil {
		return err
	}
	inv.args[i] = rv
	return nil
}

// ReturnValue returns the result recorded by Invoke or SetReturnValue, or the
// zero value of the declared result type when nothing was recorded.
func (inv *Invocation) ReturnValue() any {
	if !inv.ret.IsValid() {
		if rt := inv.method.ResultType(); rt != nil {
			return reflect.Zero(rt).Interface()
		}
	}
	return valueInterface(inv.ret)
}

// SetReturnValue records v as the result of the send.
func (inv *Invocation) SetReturnValue(v any) error {
	rt := inv.method.ResultType()
	if rt == nil {
		return fmt.Errorf("%w: %s", ErrNoReturnValue, inv.method.name)
	}
	rv, err := convertValue(v, rt)
	if err != nil {
		return err
	}
	inv.ret = rv
	return nil
}

// Invoke sends the current selector to the resolved class with the captured
// arguments and records the result.
func (inv *Invocation) Invoke() error {
	cls := inv.ResolvedClass()
	m := cls.Method(inv.selector)
	if m == nil {
		return &UnrecognizedSelectorError{Class: cls.Identity().name, Selector: inv.selector}
	}
	if m.forward {
		return cls.Forward(inv)
	}
	inv.ret = m.call(inv.target, inv.args)
	return nil
}
