// Package signature describes handler parameter lists and checks whether a
// handler can be attached to a method.
package signature

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/codysoyland/aspecthooks/pkg/objmodel"
)

var (
	// ErrMissingSignature indicates the callable exposes no usable parameter list.
	ErrMissingSignature = errors.New("signature: callable exposes no discoverable signature")

	// ErrIncompatible indicates the handler's parameters do not fit the method.
	ErrIncompatible = errors.New("signature: incompatible handler signature")
)

// TypeTag is the coarse category of a parameter type. Two parameters are
// compatible when their tags are equal, whatever their exact types.
type TypeTag byte

// Type tags. Signed and unsigned integers are told apart by width, references
// of any kind share TagObject.
const (
	TagObject  TypeTag = '@'
	TagInt8    TypeTag = 'c'
	TagInt16   TypeTag = 's'
	TagInt32   TypeTag = 'i'
	TagInt64   TypeTag = 'q'
	TagUint8   TypeTag = 'C'
	TagUint16  TypeTag = 'S'
	TagUint32  TypeTag = 'I'
	TagUint64  TypeTag = 'Q'
	TagFloat32 TypeTag = 'f'
	TagFloat64 TypeTag = 'd'
	TagComplex TypeTag = 'j'
	TagBool    TypeTag = 'B'
	TagStruct  TypeTag = '{'
	TagArray   TypeTag = '['
	TagUnknown TypeTag = '?'
)

// String implements fmt.Stringer.
func (t TypeTag) String() string { return string(rune(t)) }

// TagOf returns the category of t. Integer tags follow the storage width, so
// int and int64 agree on 64-bit platforms.
func TagOf(t reflect.Type) TypeTag {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return [...]TypeTag{1: TagInt8, 2: TagInt16, 4: TagInt32, 8: TagInt64}[t.Size()]
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return [...]TypeTag{1: TagUint8, 2: TagUint16, 4: TagUint32, 8: TagUint64}[t.Size()]
	case reflect.Float32:
		return TagFloat32
	case reflect.Float64:
		return TagFloat64
	case reflect.Complex64, reflect.Complex128:
		return TagComplex
	case reflect.Bool:
		return TagBool
	case reflect.Struct:
		return TagStruct
	case reflect.Array:
		return TagArray
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan,
		reflect.Func, reflect.String, reflect.UnsafePointer:
		return TagObject
	}
	return TagUnknown
}

// Reader reports the declared parameter types of a callable.
type Reader interface {
	ParameterKinds(fn any) ([]reflect.Type, error)
}

// ReflectReader reads parameter lists with package reflect.
type ReflectReader struct{}

// ParameterKinds implements Reader.
func (ReflectReader) ParameterKinds(fn any) ([]reflect.Type, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: %T is not a func", ErrMissingSignature, fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic handlers are not supported", ErrMissingSignature)
	}
	types := make([]reflect.Type, t.NumIn())
	for i := range types {
		types[i] = t.In(i)
	}
	return types, nil
}

// Descriptor is the captured parameter list of a handler. It is immutable.
type Descriptor struct {
	types []reflect.Type
	tags  []TypeTag
}

// Describe captures fn's parameter list through r, or through ReflectReader
// when r is nil.
func Describe(r Reader, fn any) (*Descriptor, error) {
	if r == nil {
		r = ReflectReader{}
	}
	types, err := r.ParameterKinds(fn)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{
		types: append([]reflect.Type(nil), types...),
		tags:  make([]TypeTag, len(types)),
	}
	for i, t := range types {
		d.tags[i] = TagOf(t)
	}
	return d, nil
}

// NumParameters returns the number of declared parameters.
func (d *Descriptor) NumParameters() int { return len(d.types) }

// Type returns the declared type of parameter i.
func (d *Descriptor) Type(i int) reflect.Type { return d.types[i] }

// Tags returns a copy of the parameter categories.
func (d *Descriptor) Tags() []TypeTag { return append([]TypeTag(nil), d.tags...) }

func (d *Descriptor) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, tag := range d.tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte(byte(tag))
	}
	b.WriteByte(')')
	return b.String()
}

// CompatibleWith checks the handler against m.
//
// Parameter 0 of the handler receives the interception context, so it must be
// a reference type that a value of type info can be assigned to. Parameter i
// (i >= 1) receives argument i-1 of m and must share its TypeTag. The handler
// may stop early but may not declare more parameters than m can supply.
func (d *Descriptor) CompatibleWith(m *objmodel.Method, info reflect.Type) error {
	n := len(d.types)
	if n > m.NumArguments()+1 {
		return fmt.Errorf("%w: handler declares %d parameters but %s supplies at most %d",
			ErrIncompatible, n, m.Name(), m.NumArguments()+1)
	}
	if n >= 1 {
		if d.tags[0] != TagObject || !info.AssignableTo(d.types[0]) {
			return fmt.Errorf("%w: first parameter %s cannot receive the interception context",
				ErrIncompatible, d.types[0])
		}
	}
	for i := 1; i < n; i++ {
		mt := m.ArgumentType(i - 1)
		if mtag := TagOf(mt); mtag != d.tags[i] {
			return fmt.Errorf("%w: parameter %d is %s (%s) but %s declares %s (%s)",
				ErrIncompatible, i, d.types[i], d.tags[i], m.Name(), mt, mtag)
		}
	}
	return nil
}
