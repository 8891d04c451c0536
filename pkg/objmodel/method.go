package objmodel

import (
	"fmt"
	"reflect"
)

var objectPtrType = reflect.TypeOf((*Object)(nil))

// Method is a named entry in a class's method table.
//
// The body is a Go func whose first parameter is the receiving *Object and
// which returns at most one value. A forwarding method keeps the signature but
// has no body: sending it routes an Invocation to the class forwarder.
type Method struct {
	name    string
	fn      reflect.Value
	typ     reflect.Type
	forward bool
}

// NewMethod validates fn and wraps it as a method named name.
func NewMethod(name string, fn any) (*Method, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: method name cannot be empty", ErrInvalidImplementation)
	}
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: %s: body must be a non-nil func, got %T", ErrInvalidImplementation, name, fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: %s: variadic bodies are not supported", ErrInvalidImplementation, name)
	}
	if t.NumIn() == 0 || t.In(0) != objectPtrType {
		return nil, fmt.Errorf("%w: %s: first parameter must be *objmodel.Object", ErrInvalidImplementation, name)
	}
	if t.NumOut() > 1 {
		return nil, fmt.Errorf("%w: %s: at most one result is supported", ErrInvalidImplementation, name)
	}
	return &Method{name: name, fn: v, typ: t}, nil
}

// Name returns the selector the method is registered under.
func (m *Method) Name() string { return m.name }

// Type returns the func type of the body, receiver included.
func (m *Method) Type() reflect.Type { return m.typ }

// NumArguments returns the number of declared arguments, excluding the receiver.
func (m *Method) NumArguments() int { return m.typ.NumIn() - 1 }

// ArgumentType returns the declared type of argument i (receiver excluded).
func (m *Method) ArgumentType(i int) reflect.Type { return m.typ.In(i + 1) }

// ResultType returns the declared result type, or nil.
func (m *Method) ResultType() reflect.Type {
	if m.typ.NumOut() == 0 {
		return nil
	}
	return m.typ.Out(0)
}

// IsForwarding reports whether the method routes to the class forwarder.
func (m *Method) IsForwarding() bool { return m.forward }

// Forwarding returns a body-less copy of m with the same name and signature.
func (m *Method) Forwarding() *Method {
	return &Method{name: m.name, typ: m.typ, forward: true}
}

// Renamed returns a copy of m registered under another selector.
func (m *Method) Renamed(name string) *Method {
	cp := *m
	cp.name = name
	return &cp
}

func (m *Method) call(self *Object, args []reflect.Value) reflect.Value {
	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, reflect.ValueOf(self))
	in = append(in, args...)
	out := m.fn.Call(in)
	if len(out) == 0 {
		return reflect.Value{}
	}
	return out[0]
}

func (m *Method) convertArgs(args []any) ([]reflect.Value, error) {
	if len(args) != m.NumArguments() {
		return nil, fmt.Errorf("%w: %s expects %d, got %d", ErrArgumentCount, m.name, m.NumArguments(), len(args))
	}
	out := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := convertValue(a, m.ArgumentType(i))
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", m.name, i, err)
		}
		out[i] = v
	}
	return out, nil
}

// convertValue turns a boxed argument into a value of type t. Numeric values
// are converted between widths so untyped constants can be sent as-is.
func convertValue(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil is not a valid %s", ErrArgumentType, t)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		if t.Kind() == reflect.Interface {
			nv := reflect.New(t).Elem()
			nv.Set(v)
			return nv, nil
		}
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %s is not assignable to %s", ErrArgumentType, v.Type(), t)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func valueInterface(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}
