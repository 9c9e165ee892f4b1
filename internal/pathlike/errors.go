package pathlike

import (
	"errors"
	"fmt"
)

var (
	ErrPathTraversal           = errors.New("'..' segments are not allowed")
	ErrWorkspacePathsDisabled  = errors.New("workspace paths are disabled")
	ErrAbsolutePathsDisabled   = errors.New("absolute paths are disabled")
	ErrUnsupportedArgumentType = errors.New("unsupported argument type")
)

// PathError records a path that could not be resolved.
type PathError struct {
	Path     string
	Location Location
	Err      error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: path %q: %v", e.Location, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// UnsupportedArgumentTypeError is returned for values of a shape the
// current resolution mode cannot handle.
type UnsupportedArgumentTypeError struct {
	Value    any
	Location Location
	Reason   string
}

func (e *UnsupportedArgumentTypeError) Error() string {
	msg := fmt.Sprintf("%s: %v %T", e.Location, ErrUnsupportedArgumentType, e.Value)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnsupportedArgumentTypeError) Unwrap() error { return ErrUnsupportedArgumentType }

func unsupported(v any, reason string) error {
	var loc Location
	if value, ok := v.(Value); ok {
		loc = LocationOf(value)
	}
	return &UnsupportedArgumentTypeError{Value: v, Location: loc, Reason: reason}
}
