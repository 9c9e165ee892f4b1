// Package action defines the steps a task runs and the eight built-in
// actions.
//
// Every action goes through two phases. TransformArguments resolves the
// declarative fields written in the build file into concrete paths and
// strings without touching the file system beyond existence checks.
// RunWithArguments performs the side effect with those arguments, and Hash
// turns them into the digest incremental builds key on.
package action

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/vk/gridbuild/internal/ctxlog"
	"github.com/vk/gridbuild/internal/pathlike"
	"github.com/vk/gridbuild/internal/process"
	"github.com/vk/gridbuild/internal/workspace"
)

var (
	ErrMissingField             = errors.New("missing required field")
	ErrMissingSource            = errors.New("source does not exist")
	ErrExecutableNotFound       = errors.New("executable not found")
	ErrArchiveKindUnimplemented = errors.New("archive kind is not implemented")
	ErrUnknownArchiveKind       = errors.New("cannot infer archive kind")
)

// Kind names an action in logs and build files.
type Kind string

const (
	KindExecute        Kind = "execute"
	KindShell          Kind = "shell"
	KindCopy           Kind = "copy"
	KindSynchronize    Kind = "synchronize"
	KindWrite          Kind = "write"
	KindSetEnvironment Kind = "environment"
	KindArchive        Kind = "archive"
	KindPrint          Kind = "print"
)

// Arguments are the resolved values of one action. Each action defines its
// own concrete type and only accepts that type back.
type Arguments any

// HashFunc digests a string. Actions apply it repeatedly over their
// resolved arguments in a fixed order.
type HashFunc func(string) string

// SHA256 is the default HashFunc.
func SHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CommandOutput is the result of running an action.
type CommandOutput struct {
	ExitCode int
	Output   []byte
}

// Success reports whether the action exited cleanly.
func (o CommandOutput) Success() bool { return o.ExitCode == 0 }

// Action is one step of a task.
type Action interface {
	Kind() Kind
	Location() pathlike.Location
	TransformArguments(ctx context.Context, ec *ExecContext) (Arguments, error)
	RunWithArguments(ctx context.Context, ec *ExecContext, args Arguments) (CommandOutput, error)
	Hash(ec *ExecContext, args Arguments, fn HashFunc) string
	Requirements() []pathlike.TaskReference
}

// TaskInfo is the part of a task an action may look at.
type TaskInfo struct {
	Name       string
	Key        string
	InputPath  string
	OutputPath string
	Location   pathlike.Location
}

// ExecContext is shared by the actions of one task run. Environment is
// mutated by SetEnvironment and seen by the actions that follow it.
type ExecContext struct {
	Workspace   *workspace.Workspace
	Task        TaskInfo
	Environment map[string]string
	DryRun      bool
	Launcher    process.Launcher
	Paths       *pathlike.Context
	Stdout      io.Writer
	Shell       []string
}

// Clone returns a copy with its own Environment map.
func (ec *ExecContext) Clone() *ExecContext {
	cp := *ec
	cp.Environment = maps.Clone(ec.Environment)
	if cp.Environment == nil {
		cp.Environment = make(map[string]string)
	}
	return &cp
}

// PathContext returns the resolution context, defaulting to one bound to
// the workspace.
func (ec *ExecContext) PathContext() *pathlike.Context {
	if ec.Paths != nil {
		return ec.Paths
	}
	return &pathlike.Context{Workspace: ec.Workspace}
}

// Env is the process environment merged with ec.Environment, sorted.
func (ec *ExecContext) Env() []string {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	maps.Copy(merged, ec.Environment)

	env := make([]string, 0, len(merged))
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		env = append(env, k+"="+merged[k])
	}
	return env
}

func (ec *ExecContext) stdout() io.Writer {
	if ec.Stdout != nil {
		return ec.Stdout
	}
	return os.Stdout
}

func (ec *ExecContext) launcher() process.Launcher {
	if ec.Launcher != nil {
		return ec.Launcher
	}
	return process.ExecLauncher{}
}

func (ec *ExecContext) logger(ctx context.Context, kind Kind) *slog.Logger {
	return ctxlog.FromContext(ctx).With("task", ec.Task.Name, "action", string(kind))
}

// Base carries what every action has: where it was declared.
type Base struct {
	Loc pathlike.Location
}

// Location returns the declaration site.
func (b Base) Location() pathlike.Location { return b.Loc }

// chain folds parts through fn: each step hashes the previous digest
// concatenated with the next part.
func chain(fn HashFunc, parts ...string) string {
	digest := ""
	for _, part := range parts {
		digest = fn(digest + "\x00" + part)
	}
	return digest
}

func argsOf[T any](kind Kind, args Arguments) (T, error) {
	v, ok := args.(T)
	if !ok {
		var zero T
		return zero, &ArgumentsError{Kind: kind, Got: args}
	}
	return v, nil
}

// ArgumentsError is returned when an action is handed the arguments of a
// different action.
type ArgumentsError struct {
	Kind Kind
	Got  Arguments
}

func (e *ArgumentsError) Error() string {
	return fmt.Sprintf("action %s: unexpected arguments %T", e.Kind, e.Got)
}
