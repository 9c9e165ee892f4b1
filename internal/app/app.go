package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/vk/gridbuild/internal/buildfile"
	"github.com/vk/gridbuild/internal/cache"
	"github.com/vk/gridbuild/internal/config"
	"github.com/vk/gridbuild/internal/ctxlog"
	"github.com/vk/gridbuild/internal/dag"
	"github.com/vk/gridbuild/internal/hclfront"
	"github.com/vk/gridbuild/internal/pathlike"
	"github.com/vk/gridbuild/internal/process"
	"github.com/vk/gridbuild/internal/task"
	"github.com/vk/gridbuild/internal/workspace"
)

// ErrInvalidTarget is returned for a target that is not a task reference.
var ErrInvalidTarget = errors.New("invalid target")

// App encapsulates the dependencies and configuration of one invocation.
type App struct {
	outW     io.Writer
	errW     io.Writer
	logger   *slog.Logger
	config   *Config
	ws       *workspace.Workspace
	dir      string
	files    *buildfile.Cache
	launcher process.Launcher
}

// Option customizes an App.
type Option func(*App)

// WithLauncher replaces the process launcher.
func WithLauncher(l process.Launcher) Option {
	return func(a *App) { a.launcher = l }
}

// WithFrontend replaces the build file front end.
func WithFrontend(f buildfile.Frontend) Option {
	return func(a *App) { a.files = buildfile.NewCache(a.ws, f) }
}

// NewApp detects the workspace around cfg.Directory and prepares the build
// file cache. Task output goes to outW, logs to errW.
func NewApp(outW, errW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)

	dir, err := filepath.Abs(cfg.Directory)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.Detect(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace: %w", err)
	}
	logger.Debug("Workspace detected.", "root", ws.Root, "name", ws.Name, "engine", config.EngineVersion)

	a := &App{
		outW:     outW,
		errW:     errW,
		logger:   logger,
		config:   cfg,
		ws:       ws,
		dir:      dir,
		files:    buildfile.NewCache(ws, hclfront.New()),
		launcher: process.ExecLauncher{Stdout: outW, Stderr: errW},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Workspace returns the detected workspace.
func (a *App) Workspace() *workspace.Workspace { return a.ws }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Tasks returns the tasks declared in the build file of the directory.
func (a *App) Tasks(ctx context.Context) ([]*task.Task, error) {
	f, err := a.files.Load(a.context(ctx), a.dir)
	if err != nil {
		return nil, err
	}
	return f.Tasks(), nil
}

// Targets resolves the configured targets. Without targets every task of
// the directory's build file is a target.
func (a *App) Targets(ctx context.Context) ([]*task.Task, error) {
	ctx = a.context(ctx)
	if len(a.config.Targets) == 0 {
		return a.Tasks(ctx)
	}

	var roots []*task.Task
	for _, target := range a.config.Targets {
		ref, err := parseTarget(target)
		if err != nil {
			return nil, err
		}
		path := a.dir
		if ref.Path != nil {
			if path, err = pathlike.Resolve(ref.Path, a.dir, a.ws); err != nil {
				return nil, err
			}
		}
		f, err := a.files.Load(ctx, path)
		if err != nil {
			return nil, err
		}
		t, ok := f.Task(ref.Name)
		if !ok {
			return nil, &buildfile.UnknownTaskError{Name: ref.Name, File: a.ws.Rel(f.Path), Location: ref.Location}
		}
		roots = append(roots, t)
	}
	return roots, nil
}

func parseTarget(s string) (pathlike.TaskReference, error) {
	if !strings.Contains(s, ":") {
		s += ":"
	}
	values, err := task.NormalizeRequires([]any{s}, pathlike.Location{File: "<command line>"})
	if err != nil {
		return pathlike.TaskReference{}, err
	}
	ref, ok := values[0].(pathlike.TaskReference)
	if !ok {
		return pathlike.TaskReference{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}
	return ref, nil
}

// Graph resolves the dependency graph of the targets.
func (a *App) Graph(ctx context.Context) (*dag.Graph, error) {
	ctx = a.context(ctx)
	roots, err := a.Targets(ctx)
	if err != nil {
		return nil, err
	}
	return dag.Resolve(ctx, roots, a.files.Lookup)
}

// Result is the outcome of one task in a run.
type Result struct {
	Name   string
	File   string
	State  dag.State
	Digest string
	Err    error
}

// Run builds the targets and reports every task of the graph in
// topological order. The error is the first task failure, if any.
func (a *App) Run(ctx context.Context) ([]Result, error) {
	ctx = a.context(ctx)
	a.logger.Debug("App.Run method started.")

	g, err := a.Graph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	if len(g.Nodes) == 0 {
		a.logger.Warn("No tasks found, nothing to build.")
		return nil, nil
	}

	store, err := cache.Open(ctx, a.ws.OutputRoot())
	if err != nil {
		return nil, err
	}

	exec := dag.NewExecutor(g, a.ws, dag.Options{
		Workers:  a.config.Workers,
		DryRun:   a.config.DryRun,
		Force:    a.config.Force,
		Cache:    store,
		Launcher: a.launcher,
		Files:    a.files,
		Stdout:   a.outW,
	})
	a.logger.Info("Starting build.", "tasks", len(g.Nodes), "dryRun", a.config.DryRun)
	runErr := exec.Run(ctx)

	results := make([]Result, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		results = append(results, Result{
			Name:   n.Task.Name,
			File:   a.ws.Rel(n.Task.File),
			State:  n.State(),
			Digest: n.Digest,
			Err:    n.Err,
		})
	}
	return results, runErr
}

// FileHash is the composed hash of one loaded build file.
type FileHash struct {
	File string
	Hash string
}

// Hashes loads the targets with their requirements and returns the hash of
// every build file that was read, sorted by path.
func (a *App) Hashes(ctx context.Context) ([]FileHash, error) {
	if _, err := a.Graph(ctx); err != nil {
		return nil, err
	}
	var hashes []FileHash
	for _, f := range a.files.Files() {
		hashes = append(hashes, FileHash{File: a.ws.Rel(f.Path), Hash: f.Hash(config.EngineVersion)})
	}
	return hashes, nil
}
