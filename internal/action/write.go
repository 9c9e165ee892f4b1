package action

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vk/gridbuild/internal/pathlike"
)

// Write creates a file with the given payload, or touches it when there is
// no payload.
type Write struct {
	Base
	Path       pathlike.Value
	Data       *string
	Executable bool
}

// WriteArgs are the resolved arguments of Write.
type WriteArgs struct {
	Path       string
	Data       *string
	Executable bool
}

func (a *Write) Kind() Kind { return KindWrite }

func (a *Write) Requirements() []pathlike.TaskReference {
	return pathlike.References(a.Path)
}

func (a *Write) TransformArguments(ctx context.Context, ec *ExecContext) (Arguments, error) {
	if a.Path == nil {
		return nil, fmt.Errorf("%s: write: %w: path", a.Loc, ErrMissingField)
	}
	path, err := pathlike.ResolvePath(ec.PathContext(), a.Path, ec.Task.OutputPath)
	if err != nil {
		return nil, err
	}
	return WriteArgs{Path: path, Data: a.Data, Executable: a.Executable}, nil
}

func (a *Write) RunWithArguments(ctx context.Context, ec *ExecContext, args Arguments) (CommandOutput, error) {
	resolved, err := argsOf[WriteArgs](KindWrite, args)
	if err != nil {
		return CommandOutput{}, err
	}
	logger := ec.logger(ctx, KindWrite)
	if ec.DryRun {
		logger.Info("Dry run, not writing.", "path", resolved.Path)
		return CommandOutput{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved.Path), 0o755); err != nil {
		return CommandOutput{}, err
	}
	if resolved.Data == nil {
		logger.Debug("Touching file.", "path", resolved.Path)
		err = touch(resolved.Path)
	} else {
		logger.Debug("Writing file.", "path", resolved.Path, "bytes", len(*resolved.Data))
		err = os.WriteFile(resolved.Path, []byte(*resolved.Data), 0o644)
	}
	if err != nil {
		return CommandOutput{}, err
	}

	if resolved.Executable {
		info, err := os.Stat(resolved.Path)
		if err != nil {
			return CommandOutput{}, err
		}
		if err := os.Chmod(resolved.Path, info.Mode().Perm()|0o111); err != nil {
			return CommandOutput{}, err
		}
	}
	return CommandOutput{}, nil
}

func (a *Write) Hash(ec *ExecContext, args Arguments, fn HashFunc) string {
	resolved, _ := args.(WriteArgs)
	payload := "<touch>"
	if resolved.Data != nil {
		payload = *resolved.Data
	}
	return chain(fn, string(KindWrite), filepath.ToSlash(resolved.Path), payload, strconv.FormatBool(resolved.Executable))
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	now := time.Now()
	return os.Chtimes(path, now, now)
}
