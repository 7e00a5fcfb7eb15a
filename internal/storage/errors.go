// ABOUTME: Typed storage errors shared by every PrimaryStore implementation.
// ABOUTME: Adapters classify driver failures once so callers branch with errors.Is.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the store could not be reached or its schema is unusable.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrDuplicate means a record with the same id already exists.
	ErrDuplicate = errors.New("record already exists")
)

// Error is a classified storage failure.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// Unavailable wraps err as an ErrUnavailable failure of op.
func Unavailable(op string, err error) error {
	return &Error{Op: op, Kind: ErrUnavailable, Err: err}
}

// Duplicate wraps err as an ErrDuplicate failure of op.
func Duplicate(op string, err error) error {
	return &Error{Op: op, Kind: ErrDuplicate, Err: err}
}

// IsUnavailable reports whether err signals an unreachable store.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
