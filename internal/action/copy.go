package action

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vk/gridbuild/internal/fsutil"
	"github.com/vk/gridbuild/internal/pathlike"
)

// Copy copies files and directories into a destination directory.
type Copy struct {
	Base
	Sources     []pathlike.Value
	Destination pathlike.Value
	Exclude     []string
}

// CopyArgs are the resolved arguments of Copy. Exclude is a regular
// expression over absolute slash separated paths, empty when unset.
type CopyArgs struct {
	Sources     []string
	Destination string
	Exclude     string
}

func (a *Copy) Kind() Kind { return KindCopy }

func (a *Copy) Requirements() []pathlike.TaskReference {
	return pathlike.References(append([]pathlike.Value{a.Destination}, a.Sources...)...)
}

func (a *Copy) TransformArguments(ctx context.Context, ec *ExecContext) (Arguments, error) {
	exclude, err := fsutil.CombineGlobs(a.Exclude)
	if err != nil {
		return nil, fmt.Errorf("%s: copy exclude: %w", a.Loc, err)
	}
	paths := ec.PathContext()
	if exclude != nil {
		paths = paths.WithExclude(exclude)
	}
	sources, err := pathlike.ResolvePathList(paths, a.Sources, ec.Task.InputPath)
	if err != nil {
		return nil, err
	}
	dest, err := destination(ec, a.Destination)
	if err != nil {
		return nil, err
	}

	args := CopyArgs{Sources: sources, Destination: dest}
	if exclude != nil {
		args.Exclude = exclude.String()
	}
	return args, nil
}

func (a *Copy) RunWithArguments(ctx context.Context, ec *ExecContext, args Arguments) (CommandOutput, error) {
	resolved, err := argsOf[CopyArgs](KindCopy, args)
	if err != nil {
		return CommandOutput{}, err
	}
	logger := ec.logger(ctx, KindCopy)
	if ec.DryRun {
		logger.Info("Dry run, not copying.", "sources", len(resolved.Sources), "destination", resolved.Destination)
		return CommandOutput{}, nil
	}

	var exclude *regexp.Regexp
	if resolved.Exclude != "" {
		if exclude, err = regexp.Compile(resolved.Exclude); err != nil {
			return CommandOutput{}, err
		}
	}
	// Exclusions match the absolute path. The workspace ignore set matches the
	// path relative to the parent of the named source, so a source that lives
	// below an ignored directory is still copied.
	excluded := func(parent, path string) bool {
		if exclude != nil && exclude.MatchString(filepath.ToSlash(path)) {
			return true
		}
		ignore := ignorePattern(ec)
		if ignore == nil {
			return false
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		return ignore.MatchString(filepath.ToSlash(rel))
	}

	if err := os.MkdirAll(resolved.Destination, 0o755); err != nil {
		return CommandOutput{}, err
	}
	for _, src := range resolved.Sources {
		info, err := os.Stat(src)
		if err != nil {
			return CommandOutput{}, missing(ec, KindCopy, src, err)
		}
		parent := filepath.Dir(src)
		if excluded(parent, src) {
			logger.Debug("Excluded.", "source", src)
			continue
		}
		target := filepath.Join(resolved.Destination, filepath.Base(src))
		logger.Debug("Copying.", "source", src, "target", target)
		if !info.IsDir() {
			err = fsutil.CopyFile(src, target)
		} else {
			err = fsutil.CopyTree(src, target, fsutil.CopyOptions{
				Skip: func(path string, _ fs.DirEntry) bool { return excluded(parent, path) },
			})
		}
		if err != nil {
			return CommandOutput{}, fmt.Errorf("copying %s: %w", src, err)
		}
	}
	return CommandOutput{}, nil
}

func (a *Copy) Hash(ec *ExecContext, args Arguments, fn HashFunc) string {
	resolved, _ := args.(CopyArgs)
	parts := []string{string(KindCopy)}
	for _, src := range resolved.Sources {
		parts = append(parts, filepath.ToSlash(src))
	}
	return chain(fn, append(parts, filepath.ToSlash(resolved.Destination), resolved.Exclude)...)
}

// Synchronize mirrors sources below a destination, keeping their position
// relative to the task input directory.
type Synchronize struct {
	Base
	Sources          []pathlike.Value
	Destination      pathlike.Value
	PreserveSymlinks bool
}

// SynchronizeArgs are the resolved arguments of Synchronize.
type SynchronizeArgs struct {
	Sources          []string
	Destination      string
	PreserveSymlinks bool
}

func (a *Synchronize) Kind() Kind { return KindSynchronize }

func (a *Synchronize) Requirements() []pathlike.TaskReference {
	return pathlike.References(append([]pathlike.Value{a.Destination}, a.Sources...)...)
}

func (a *Synchronize) TransformArguments(ctx context.Context, ec *ExecContext) (Arguments, error) {
	sources, err := pathlike.ResolvePathList(ec.PathContext(), a.Sources, ec.Task.InputPath)
	if err != nil {
		return nil, err
	}
	dest, err := destination(ec, a.Destination)
	if err != nil {
		return nil, err
	}
	return SynchronizeArgs{Sources: sources, Destination: dest, PreserveSymlinks: a.PreserveSymlinks}, nil
}

// Target is where src ends up below the destination.
func (s SynchronizeArgs) Target(inputDir, src string) string {
	rel, err := filepath.Rel(inputDir, filepath.Dir(src))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = ""
	}
	return filepath.Join(s.Destination, rel, filepath.Base(src))
}

func (a *Synchronize) RunWithArguments(ctx context.Context, ec *ExecContext, args Arguments) (CommandOutput, error) {
	resolved, err := argsOf[SynchronizeArgs](KindSynchronize, args)
	if err != nil {
		return CommandOutput{}, err
	}
	logger := ec.logger(ctx, KindSynchronize)
	if ec.DryRun {
		logger.Info("Dry run, not synchronizing.", "sources", len(resolved.Sources), "destination", resolved.Destination)
		return CommandOutput{}, nil
	}

	outputFolder := ""
	if ec.Workspace != nil {
		outputFolder = ec.Workspace.OutputFolder()
	}
	opts := fsutil.CopyOptions{
		PreserveSymlinks: resolved.PreserveSymlinks,
		Skip: func(_ string, d fs.DirEntry) bool {
			return d.IsDir() && d.Name() == outputFolder
		},
	}

	for _, src := range resolved.Sources {
		info, err := os.Lstat(src)
		if err != nil {
			return CommandOutput{}, missing(ec, KindSynchronize, src, err)
		}
		target := resolved.Target(ec.Task.InputPath, src)
		logger.Debug("Synchronizing.", "source", src, "target", target)

		switch {
		case info.Mode()&fs.ModeSymlink != 0 && resolved.PreserveSymlinks:
			err = fsutil.CopyTree(src, target, opts)
		case info.IsDir():
			err = fsutil.CopyTree(src, target, opts)
		default:
			if info.Mode()&fs.ModeSymlink != 0 {
				if info, err = os.Stat(src); err != nil {
					return CommandOutput{}, missing(ec, KindSynchronize, src, err)
				}
				if info.IsDir() {
					err = fsutil.CopyTree(src, target, opts)
					break
				}
			}
			err = fsutil.CopyFile(src, target)
		}
		if err != nil {
			return CommandOutput{}, fmt.Errorf("synchronizing %s: %w", src, err)
		}
	}
	return CommandOutput{}, nil
}

func (a *Synchronize) Hash(ec *ExecContext, args Arguments, fn HashFunc) string {
	resolved, _ := args.(SynchronizeArgs)
	parts := []string{string(KindSynchronize), filepath.ToSlash(resolved.Destination)}
	for _, src := range resolved.Sources {
		parts = append(parts, filepath.ToSlash(src))
	}
	return chain(fn, parts...)
}

// destination resolves an optional destination against the task output
// directory.
func destination(ec *ExecContext, value pathlike.Value) (string, error) {
	if value == nil {
		return ec.Task.OutputPath, nil
	}
	return pathlike.ResolvePath(ec.PathContext(), value, ec.Task.OutputPath)
}

func ignorePattern(ec *ExecContext) *regexp.Regexp {
	if ec.Workspace == nil {
		return nil
	}
	return ec.Workspace.IgnorePattern()
}

func missing(ec *ExecContext, kind Kind, src string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("task %s: %s: %w: %s", ec.Task.Name, kind, ErrMissingSource, src)
	}
	return err
}
