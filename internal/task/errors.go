package task

import (
	"errors"
	"fmt"

	"github.com/vk/gridbuild/internal/action"
	"github.com/vk/gridbuild/internal/pathlike"
)

var (
	ErrInvalidName  = errors.New("invalid task name")
	ErrActionFailed = errors.New("action exited with non-zero status")
)

// DuplicateTaskError is returned when a build file declares a name twice.
type DuplicateTaskError struct {
	Name   string
	First  pathlike.Location
	Second pathlike.Location
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("%s: task %q is already declared at %s", e.Second, e.Name, e.First)
}

// UnknownOutputError is returned for a reference to an undeclared output key.
type UnknownOutputError struct {
	Task string
	Key  OutputKey
}

func (e *UnknownOutputError) Error() string {
	return fmt.Sprintf("task %s has no output %q", e.Task, string(e.Key))
}

// ExecutionError wraps the first failing action of a task.
type ExecutionError struct {
	Task     string
	Location pathlike.Location
	Action   action.Kind
	// ActionLocation is where the failing action was declared.
	ActionLocation pathlike.Location
	Output         action.CommandOutput
	Err            error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %s (%s): %s action at %s: %v", e.Task, e.Location, e.Action, e.ActionLocation, e.cause())
}

func (e *ExecutionError) Unwrap() error { return e.cause() }

func (e *ExecutionError) cause() error {
	if e.Err != nil {
		return e.Err
	}
	return fmt.Errorf("%w: %d", ErrActionFailed, e.Output.ExitCode)
}
