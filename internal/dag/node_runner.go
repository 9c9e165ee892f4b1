package dag

import (
	"context"
	"fmt"
	"maps"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/gridbuild/internal/action"
	"github.com/vk/gridbuild/internal/cache"
	"github.com/vk/gridbuild/internal/ctxlog"
	"github.com/vk/gridbuild/internal/fsutil"
	"github.com/vk/gridbuild/internal/outputs"
	"github.com/vk/gridbuild/internal/pathlike"
	"github.com/vk/gridbuild/internal/task"
)

// checksumWorkers bounds the concurrent input checksums of one task.
const checksumWorkers = 8

// runNode computes the digest of a task, skips it when the cache says it
// is up to date and executes it otherwise.
func (e *Executor) runNode(ctx context.Context, node *Node) (State, error) {
	t := node.Task
	ctx, logger := ctxlog.With(ctx, "task", t.Name, "file", e.Workspace.Rel(t.File))

	outputPath, err := e.outputPath(t)
	if err != nil {
		return Failed, err
	}
	node.OutputPath = outputPath

	ec := e.execContext(node)
	digest, err := e.digest(ctx, node, ec)
	if err != nil {
		return Failed, err
	}
	node.Digest = digest

	key := string(t.Key())
	if !e.opts.Force && e.opts.Cache != nil && e.opts.Cache.Fresh(key, digest) && exists(outputPath) {
		logger.Info("Task is up to date.")
		return Cached, nil
	}

	unlock := e.lockPath(outputPath)
	defer unlock()

	logger.Info("Running task.", "output", e.Workspace.Rel(outputPath), "dryRun", e.opts.DryRun)
	start := time.Now()
	if _, err := t.Execute(ctx, ec); err != nil {
		return Failed, err
	}
	logger.Info("Task finished.", "duration", time.Since(start).Round(time.Millisecond))

	if e.opts.Cache != nil && !e.opts.DryRun {
		e.opts.Cache.Put(key, cache.Entry{Name: t.Name, File: e.Workspace.Rel(t.File), Digest: digest})
	}
	return Done, nil
}

// outputPath is the task's Path override when set, its allocated directory
// otherwise. Dry runs compute the directory without creating it.
func (e *Executor) outputPath(t *task.Task) (string, error) {
	if t.Path != nil {
		path, err := pathlike.Resolve(t.Path, t.Directory(), e.Workspace)
		if err != nil {
			return "", err
		}
		if !e.opts.DryRun {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return "", fmt.Errorf("creating output directory: %w", err)
			}
		}
		return path, nil
	}
	if e.opts.DryRun {
		return outputs.Paths(t.Name, t.Variants, t.Directory(), e.Workspace).Path(), nil
	}
	alloc, err := e.opts.Allocator.Allocate(t.Name, t.Variants, t.Directory(), e.Workspace)
	if err != nil {
		return "", err
	}
	return alloc.Path(), nil
}

func (e *Executor) execContext(node *Node) *action.ExecContext {
	base := &pathlike.Context{Workspace: e.Workspace, Finder: e.opts.Finder}
	paths := *base
	paths.TaskOutputs = func(ref pathlike.TaskReference) ([]string, error) {
		dep, ok := node.dependency(ref)
		if !ok {
			return nil, fmt.Errorf("%s: task %s was not resolved", ref.Location, ref)
		}
		return dep.Task.ResolveOutputs(base, dep.OutputPath, task.Unnamed)
	}
	environment := maps.Clone(e.Workspace.Config.Environment)
	if environment == nil {
		environment = make(map[string]string)
	}
	return &action.ExecContext{
		Workspace:   e.Workspace,
		Task:        node.Task.Info(node.OutputPath),
		Environment: environment,
		DryRun:      e.opts.DryRun,
		Launcher:    e.opts.Launcher,
		Paths:       &paths,
		Stdout:      e.opts.Stdout,
		Shell:       e.Workspace.Config.Shell,
	}
}

// digest chains the build file hash, the action hashes, the checksums of
// required input files and the digests of required tasks.
func (e *Executor) digest(ctx context.Context, node *Node, ec *action.ExecContext) (string, error) {
	t := node.Task
	fn := e.opts.HashFunc
	parts := []string{string(t.Key())}

	if e.opts.Files != nil {
		if f, ok := e.opts.Files.Get(t.File); ok {
			parts = append(parts, f.Hash(e.opts.Version))
		}
	}

	actions, err := t.Digest(ctx, ec.Clone(), fn)
	if err != nil {
		return "", err
	}
	parts = append(parts, actions)

	sums, err := e.inputChecksums(ctx, node, ec.PathContext())
	if err != nil {
		return "", err
	}
	parts = append(parts, sums...)

	for _, dep := range node.Deps {
		parts = append(parts, dep.Digest)
	}

	digest := ""
	for _, part := range parts {
		digest = fn(digest + "\x00" + part)
	}
	return digest, nil
}

func (e *Executor) inputChecksums(ctx context.Context, node *Node, paths *pathlike.Context) ([]string, error) {
	t := node.Task
	files, err := pathlike.ResolvePathList(paths, t.InputRequires(), t.Directory())
	if err != nil {
		return nil, fmt.Errorf("task %s: resolving inputs: %w", t.Name, err)
	}

	sums := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(checksumWorkers)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum, err := fsutil.Checksum(file)
			if err != nil {
				return fmt.Errorf("task %s: input %s: %w", t.Name, e.Workspace.Rel(file), err)
			}
			sums[i] = e.Workspace.Rel(file) + "=" + sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sums, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
