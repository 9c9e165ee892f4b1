package action

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/vk/gridbuild/internal/config"
	"github.com/vk/gridbuild/internal/pathlike"
	"github.com/vk/gridbuild/internal/process"
)

// ShellPreamble is prepended to every shell script.
const ShellPreamble = "set -o errexit -o nounset -o pipefail"

// Shell pipes script lines into the workspace shell.
type Shell struct {
	Base
	Script []string
}

// ShellArgs are the resolved arguments of Shell.
type ShellArgs struct {
	Preamble string
	Lines    []string
}

func (a *Shell) Kind() Kind { return KindShell }

func (a *Shell) Requirements() []pathlike.TaskReference { return nil }

func (a *Shell) TransformArguments(ctx context.Context, ec *ExecContext) (Arguments, error) {
	return ShellArgs{Preamble: ShellPreamble, Lines: append([]string(nil), a.Script...)}, nil
}

// Script renders the text fed to the shell. Each line is guarded so that a
// failure reports the line and exits with its status.
func (s ShellArgs) Script() string {
	var sb strings.Builder
	sb.WriteString(s.Preamble)
	sb.WriteByte('\n')
	for _, line := range s.Lines {
		fmt.Fprintf(&sb, "%s || { status=$?; echo %s \"failed with status $status\" >&2; exit $status; }\n",
			line, shellQuote(line))
	}
	return sb.String()
}

func (a *Shell) RunWithArguments(ctx context.Context, ec *ExecContext, args Arguments) (CommandOutput, error) {
	resolved, err := argsOf[ShellArgs](KindShell, args)
	if err != nil {
		return CommandOutput{}, err
	}
	logger := ec.logger(ctx, KindShell)
	if len(resolved.Lines) == 0 {
		logger.Debug("Empty script.")
		return CommandOutput{}, nil
	}
	if ec.DryRun {
		logger.Info("Dry run, not running script.", "lines", len(resolved.Lines))
		return CommandOutput{}, nil
	}

	shell := ec.Shell
	if len(shell) == 0 && ec.Workspace != nil {
		shell = ec.Workspace.Config.Shell
	}
	if len(shell) == 0 {
		shell = config.Default().Shell
	}
	out, err := ec.launcher().Run(ctx, process.Command{
		Args:  shell,
		Env:   ec.Env(),
		Dir:   ec.Task.InputPath,
		Stdin: strings.NewReader(resolved.Script()),
	})
	if err != nil {
		return CommandOutput{}, err
	}
	return CommandOutput{ExitCode: out.ExitCode, Output: bytes.Join([][]byte{out.Stdout, out.Stderr}, nil)}, nil
}

func (a *Shell) Hash(ec *ExecContext, args Arguments, fn HashFunc) string {
	resolved, _ := args.(ShellArgs)
	return chain(fn, string(KindShell), strings.Join(resolved.Lines, "\n"))
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
