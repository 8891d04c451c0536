package hook

import (
	"reflect"

	"github.com/codysoyland/aspecthooks/pkg/objmodel"
)

// Options selects where a hook runs and how long it stays registered.
type Options uint

const (
	PositionAfter   Options = 0 // After the original implementation
	PositionInstead Options = 1 // Replaces the original implementation
	PositionBefore  Options = 2 // Before the original implementation

	// OptionAutomaticRemoval removes the hook after its first execution.
	OptionAutomaticRemoval Options = 1 << 3

	positionFilter Options = 0x07
)

// Position returns only the position bits of o.
func (o Options) Position() Options {
	return o & positionFilter
}

// AutomaticRemoval reports whether OptionAutomaticRemoval is set.
func (o Options) AutomaticRemoval() bool {
	return o&OptionAutomaticRemoval != 0
}

// String returns the position name, used for logs and metric labels.
func (o Options) String() string {
	switch o.Position() {
	case PositionBefore:
		return "before"
	case PositionInstead:
		return "instead"
	case PositionAfter:
		return "after"
	}
	return "invalid"
}

// Target is something hooks can be attached to: a single *objmodel.Object,
// or a *objmodel.Class to affect every instance.
type Target interface {
	Associations() *objmodel.Associations
}

// Info is the interception context handed to a handler as its first parameter.
type Info interface {
	// Instance returns the object the hooked message was sent to.
	Instance() *objmodel.Object

	// Arguments returns the boxed call arguments, receiver excluded.
	Arguments() []any

	// OriginalInvocation returns the captured call. Instead handlers may set
	// its return value or call Invoke to run the original implementation.
	OriginalInvocation() *objmodel.Invocation
}

// InfoType is the reflect.Type of Info.
var InfoType = reflect.TypeOf((*Info)(nil)).Elem()
