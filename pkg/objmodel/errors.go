package objmodel

import (
	"errors"
	"fmt"
)

// Object model errors.
var (
	// ErrUnrecognizedSelector is the fault raised when a message reaches an
	// object whose class neither implements nor forwards it.
	ErrUnrecognizedSelector = errors.New("objmodel: unrecognized selector")

	// ErrClassExists indicates a class with the same name is already registered.
	ErrClassExists = errors.New("objmodel: class already exists")

	// ErrMethodExists indicates the class already declares the method itself.
	ErrMethodExists = errors.New("objmodel: method already exists")

	// ErrInvalidImplementation indicates a method body is not a usable func.
	ErrInvalidImplementation = errors.New("objmodel: invalid method implementation")

	// ErrArgumentCount indicates a message was sent with the wrong arity.
	ErrArgumentCount = errors.New("objmodel: wrong number of arguments")

	// ErrArgumentType indicates an argument cannot be passed as the declared type.
	ErrArgumentType = errors.New("objmodel: argument type mismatch")

	// ErrNoReturnValue indicates the method does not declare a result.
	ErrNoReturnValue = errors.New("objmodel: method has no return value")

	// ErrReleased indicates a message was sent to a released object.
	ErrReleased = errors.New("objmodel: message sent to released object")
)

// UnrecognizedSelectorError reports which class failed to handle which selector.
type UnrecognizedSelectorError struct {
	Class    string
	Selector string
}

func (e *UnrecognizedSelectorError) Error() string {
	return fmt.Sprintf("objmodel: unrecognized selector %q sent to instance of %s", e.Selector, e.Class)
}

// Unwrap allows errors.Is(err, ErrUnrecognizedSelector).
func (e *UnrecognizedSelectorError) Unwrap() error {
	return ErrUnrecognizedSelector
}
