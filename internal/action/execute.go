package action

import (
	"bytes"
	"context"
	"strings"

	"github.com/vk/gridbuild/internal/pathlike"
	"github.com/vk/gridbuild/internal/process"
)

// Execute runs a program with the task input directory as working directory.
type Execute struct {
	Base
	Executable pathlike.Value
	Arguments  []pathlike.Value
}

// ExecuteArgs are the resolved arguments of Execute.
type ExecuteArgs struct {
	Executable string
	Arguments  []string
}

func (a *Execute) Kind() Kind { return KindExecute }

func (a *Execute) Requirements() []pathlike.TaskReference {
	return pathlike.References(append([]pathlike.Value{a.Executable}, a.Arguments...)...)
}

func (a *Execute) TransformArguments(ctx context.Context, ec *ExecContext) (Arguments, error) {
	exe, err := LocateExecutable(ec, a.Executable)
	if err != nil {
		return nil, err
	}
	args, err := pathlike.ResolveStringList(ec.PathContext(), a.Arguments, ec.Task.InputPath)
	if err != nil {
		return nil, err
	}
	return ExecuteArgs{Executable: exe, Arguments: args}, nil
}

func (a *Execute) RunWithArguments(ctx context.Context, ec *ExecContext, args Arguments) (CommandOutput, error) {
	resolved, err := argsOf[ExecuteArgs](KindExecute, args)
	if err != nil {
		return CommandOutput{}, err
	}
	logger := ec.logger(ctx, KindExecute)
	if ec.DryRun {
		logger.Info("Dry run, not executing.", "executable", resolved.Executable, "arguments", resolved.Arguments)
		return CommandOutput{}, nil
	}

	logger.Debug("Executing.", "executable", resolved.Executable, "arguments", resolved.Arguments)
	out, err := ec.launcher().Run(ctx, process.Command{
		Args: append([]string{resolved.Executable}, resolved.Arguments...),
		Env:  ec.Env(),
		Dir:  ec.Task.InputPath,
	})
	if err != nil {
		return CommandOutput{}, err
	}
	return CommandOutput{ExitCode: out.ExitCode, Output: bytes.Join([][]byte{out.Stdout, out.Stderr}, nil)}, nil
}

func (a *Execute) Hash(ec *ExecContext, args Arguments, fn HashFunc) string {
	resolved, _ := args.(ExecuteArgs)
	return chain(fn, string(KindExecute), resolved.Executable, strings.Join(resolved.Arguments, " "))
}
