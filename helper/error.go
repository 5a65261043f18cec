package helper

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a lookup that requires an existing equipment or tag
	ErrNotFound = errors.New("not found")
	// ErrConflict signals that the exact record already exists, the call was a no-op
	ErrConflict = errors.New("conflict")
	// ErrDependencyDegraded signals an unavailable collaborator, such as the embedding function
	ErrDependencyDegraded = errors.New("dependency degraded")
	// ErrInvalidInput signals arguments rejected before any work was done
	ErrInvalidInput = errors.New("invalid input")
)

// Error is an error with a trace of the operation that failed
type Error struct {
	Trace string
	Err   error
}

// NewError wraps err with the operation trace.
// The wrapped error stays reachable through errors.Is and errors.As.
func NewError(trace string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Trace: trace, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Trace, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewNotFoundError returns an ErrNotFound with a description of what was missing
func NewNotFoundError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// NewInvalidInputError returns an ErrInvalidInput with a description of the bad argument
func NewInvalidInputError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NewConflictError returns an ErrConflict with a description of the duplicate
func NewConflictError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
