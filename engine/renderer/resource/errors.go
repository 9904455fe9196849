package resource

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDescriptor is returned when a descriptor's kind or params are malformed.
	ErrInvalidDescriptor = errors.New("invalid resource descriptor")

	// ErrKindMismatch is returned when a resource or descriptor of the wrong kind is supplied to an entry.
	ErrKindMismatch = errors.New("resource kind mismatch")

	// ErrNotExternal is returned when a resource is injected into an entry the factory owns.
	ErrNotExternal = errors.New("resource entry is not external")

	// ErrDuplicateName is returned when an entry is added under a name that is already registered.
	// The existing entry is left untouched.
	ErrDuplicateName = errors.New("resource name already registered")

	// ErrUnknownResource is returned when a name does not resolve to an entry.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrCyclicDependency is returned when an entry transitively references itself.
	ErrCyclicDependency = errors.New("cyclic resource dependency")

	// ErrCreationFailed matches every *CreateError.
	ErrCreationFailed = errors.New("resource creation failed")
)

// CreateError reports a factory failure for a single entry. Failures are not memoized;
// the entry is rebuilt from scratch on its next CreateResource call.
type CreateError struct {
	Name  string
	Kind  Kind
	Cause error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("failed to create %s %q: %v", e.Kind, e.Name, e.Cause)
}

// Unwrap exposes both ErrCreationFailed and the underlying cause to errors.Is and errors.As.
func (e *CreateError) Unwrap() []error {
	return []error{ErrCreationFailed, e.Cause}
}
