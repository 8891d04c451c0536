// Package hook provides the bookkeeping for method hooks: the record of a
// single registration and the per-target container grouping records by
// position.
package hook

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"weak"

	"github.com/google/uuid"

	"github.com/codysoyland/aspecthooks/pkg/objmodel"
	"github.com/codysoyland/aspecthooks/pkg/signature"
)

var (
	// ErrRecordInvalidated indicates the record was removed.
	ErrRecordInvalidated = errors.New("hook: record has been removed")

	// ErrTooManyParameters indicates the handler wants more arguments than the call has.
	ErrTooManyParameters = errors.New("hook: handler declares more parameters than the invocation provides")
)

// Record is one registered hook.
type Record struct {
	id         uuid.UUID
	selector   string
	options    Options
	descriptor *signature.Descriptor

	mu      sync.RWMutex
	valid   bool
	object  weak.Pointer[objmodel.Object]
	class   *objmodel.Class
	handler reflect.Value
}

// NewRecord creates a record for handler on target. Object targets are held
// weakly; class targets are held strongly.
func NewRecord(selector string, target Target, opts Options, handler any, desc *signature.Descriptor) *Record {
	r := &Record{
		id:         uuid.New(),
		selector:   selector,
		options:    opts,
		descriptor: desc,
		valid:      true,
		handler:    reflect.ValueOf(handler),
	}
	switch t := target.(type) {
	case *objmodel.Object:
		r.object = weak.Make(t)
	case *objmodel.Class:
		r.class = t
	}
	return r
}

// ID returns the unique identifier of the record.
func (r *Record) ID() uuid.UUID { return r.id }

// Selector returns the hooked selector.
func (r *Record) Selector() string { return r.selector }

// Options returns the registration options.
func (r *Record) Options() Options { return r.options }

// Descriptor returns the handler's parameter description.
func (r *Record) Descriptor() *signature.Descriptor { return r.descriptor }

// IsClassWide reports whether the record targets a class.
func (r *Record) IsClassWide() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.class != nil
}

// Target returns the owning target while the record is valid and the target
// is alive.
func (r *Record) Target() (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.valid {
		return nil, false
	}
	if r.class != nil {
		return r.class, true
	}
	obj := r.object.Value()
	if obj == nil || obj.Released() {
		return nil, false
	}
	return obj, true
}

// Valid reports whether the record is still registered.
func (r *Record) Valid() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.valid
}

// Invalidate clears the target and handler. An invalidated record never runs.
func (r *Record) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.valid = false
	r.object = weak.Pointer[objmodel.Object]{}
	r.class = nil
	r.handler = reflect.Value{}
}

// Invoke calls the handler with info followed by as many invocation
// arguments as the handler declares.
func (r *Record) Invoke(info Info) error {
	r.mu.RLock()
	handler, valid := r.handler, r.valid
	r.mu.RUnlock()

	if !valid {
		return ErrRecordInvalidated
	}

	inv := info.OriginalInvocation()
	n := r.descriptor.NumParameters()
	if n-1 > inv.NumArguments() {
		return fmt.Errorf("%w: %s wants %d, call has %d", ErrTooManyParameters, r.selector, n-1, inv.NumArguments())
	}

	in := make([]reflect.Value, n)
	for i := range in {
		want := r.descriptor.Type(i)
		if i == 0 {
			v := reflect.New(want).Elem()
			v.Set(reflect.ValueOf(info))
			in[0] = v
			continue
		}
		arg := inv.ArgumentValue(i - 1)
		switch {
		case arg.Type().AssignableTo(want):
		case arg.Type().ConvertibleTo(want):
			arg = arg.Convert(want)
		default:
			return fmt.Errorf("hook: %s argument %d of type %s cannot be passed as %s", r.selector, i-1, arg.Type(), want)
		}
		in[i] = arg
	}

	handler.Call(in)
	return nil
}

func (r *Record) String() string {
	return fmt.Sprintf("hook %s {selector: %s, position: %s, signature: %s}", r.id, r.selector, r.options, r.descriptor)
}
