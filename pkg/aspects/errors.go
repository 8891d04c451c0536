package aspects

import (
	"errors"
	"fmt"

	"github.com/codysoyland/aspecthooks/pkg/signature"
)

// Registration and removal errors.
var (
	// ErrSelectorBlacklisted indicates the selector is a protected lifecycle primitive.
	ErrSelectorBlacklisted = errors.New("aspects: selector is blacklisted")

	// ErrInvalidDestructorPosition indicates dealloc was hooked with a position other than Before.
	ErrInvalidDestructorPosition = errors.New("aspects: dealloc can only be hooked before")

	// ErrNoSuchMethod indicates the target does not respond to the selector.
	ErrNoSuchMethod = errors.New("aspects: target does not respond to selector")

	// ErrIncompatibleSignature indicates the handler parameters do not match the method.
	ErrIncompatibleSignature = signature.ErrIncompatible

	// ErrMissingSignature indicates the handler exposes no usable parameter list.
	ErrMissingSignature = signature.ErrMissingSignature

	// ErrAlreadyHookedInHierarchy indicates a class-wide hook collides with
	// one at another level of the same inheritance chain.
	ErrAlreadyHookedInHierarchy = errors.New("aspects: selector already hooked in class hierarchy")

	// ErrTargetAlreadyReleased indicates the hook's target is gone or the hook
	// was already removed.
	ErrTargetAlreadyReleased = errors.New("aspects: target already released or hook already removed")

	// ErrAllocationFailed indicates the per-instance subclass could not be created.
	ErrAllocationFailed = errors.New("aspects: failed to allocate subclass")

	// ErrInvalidTarget indicates the target is nil or of an unsupported type.
	ErrInvalidTarget = errors.New("aspects: invalid target")

	// ErrNilHandler indicates no handler was supplied.
	ErrNilHandler = errors.New("aspects: handler cannot be nil")
)

// HierarchyError reports a class-wide hook rejected because the selector is
// already hooked elsewhere in the class's inheritance chain.
type HierarchyError struct {
	Selector string
	Class    string
	HookedIn string
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("aspects: %s already hooked in %s, cannot hook it again in %s; a method can only be hooked once per class hierarchy",
		e.Selector, e.HookedIn, e.Class)
}

// Unwrap allows errors.Is(err, ErrAlreadyHookedInHierarchy).
func (e *HierarchyError) Unwrap() error {
	return ErrAlreadyHookedInHierarchy
}
