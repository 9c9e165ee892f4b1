// Package process spawns external programs for the Execute and Shell
// actions and captures their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/vk/gridbuild/internal/ctxlog"
)

// Command is one program invocation.
type Command struct {
	Args  []string
	Env   []string
	Dir   string
	Stdin io.Reader
}

// Output is what a finished program left behind.
type Output struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Launcher runs a Command to completion. A non-zero exit is reported in
// Output.ExitCode, not as an error; errors mean the program could not run.
type Launcher interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecLauncher implements Launcher with os/exec. Stdout and Stderr, when
// set, receive a live copy of the program's streams.
type ExecLauncher struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run starts cmd.Args[0] and waits for it.
func (l ExecLauncher) Run(ctx context.Context, cmd Command) (Output, error) {
	if len(cmd.Args) == 0 {
		return Output{}, errors.New("empty command line")
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Launching process.", "argv", strings.Join(cmd.Args, " "), "dir", cmd.Dir)

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdin = cmd.Stdin
	c.Stdout = tee(&stdout, l.Stdout)
	c.Stderr = tee(&stderr, l.Stderr)

	err := c.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
		logger.Debug("Process exited with failure.", "argv0", cmd.Args[0], "exit_code", out.ExitCode)
		return out, nil
	}
	return out, fmt.Errorf("running %s: %w", cmd.Args[0], err)
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}
