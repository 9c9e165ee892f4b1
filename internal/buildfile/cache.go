package buildfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/vk/gridbuild/internal/ctxlog"
	"github.com/vk/gridbuild/internal/pathlike"
	"github.com/vk/gridbuild/internal/task"
	"github.com/vk/gridbuild/internal/workspace"
)

// ErrIncludeCycle is wrapped by IncludeCycleError.
var ErrIncludeCycle = errors.New("include cycle")

// IncludeCycleError reports files that include each other.
type IncludeCycleError struct {
	Chain []string
}

func (e *IncludeCycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrIncludeCycle, strings.Join(e.Chain, " includes "))
}

func (e *IncludeCycleError) Unwrap() error { return ErrIncludeCycle }

// UnknownTaskError is returned when a reference names a task its target
// file does not declare.
type UnknownTaskError struct {
	Name     string
	File     string
	Location pathlike.Location
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("%s: no task %q in %s", e.Location, e.Name, e.File)
}

type chainKey struct{}

// Cache loads build files once per path and keeps the successful ones.
// Loading the same file from several goroutines is safe; includes are
// followed on the goroutine that loads the including file.
type Cache struct {
	workspace *workspace.Workspace
	frontend  Frontend

	group singleflight.Group
	mu    sync.RWMutex
	files map[string]*BuildFile
}

// NewCache returns an empty Cache.
func NewCache(ws *workspace.Workspace, frontend Frontend) *Cache {
	return &Cache{workspace: ws, frontend: frontend, files: make(map[string]*BuildFile)}
}

// Get returns an already loaded file.
func (c *Cache) Get(path string) (*BuildFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.files[path]
	return f, ok
}

// Files returns every loaded file, sorted by path.
func (c *Cache) Files() []*BuildFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	files := make([]*BuildFile, 0, len(c.files))
	for _, f := range c.files {
		files = append(files, f)
	}
	slices.SortFunc(files, func(a, b *BuildFile) int { return strings.Compare(a.Path, b.Path) })
	return files
}

// BuildFilePath maps a directory to its build file; other paths are
// returned cleaned and absolute.
func (c *Cache) BuildFilePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return c.workspace.BuildFile(abs), nil
	}
	return abs, nil
}

// Load returns the build file at path (a file or a directory), evaluating
// it on first use. Failed loads are not cached.
func (c *Cache) Load(ctx context.Context, path string) (*BuildFile, error) {
	path, err := c.BuildFilePath(path)
	if err != nil {
		return nil, err
	}

	chain, _ := ctx.Value(chainKey{}).([]string)
	if i := slices.Index(chain, path); i >= 0 {
		return nil, &IncludeCycleError{Chain: append(slices.Clone(chain[i:]), path)}
	}
	if f, ok := c.Get(path); ok {
		return f, nil
	}

	v, err, _ := c.group.Do(path, func() (any, error) {
		if f, ok := c.Get(path); ok {
			return f, nil
		}
		return c.load(ctx, path, chain)
	})
	if err != nil {
		return nil, err
	}
	return v.(*BuildFile), nil
}

func (c *Cache) load(ctx context.Context, path string, chain []string) (*BuildFile, error) {
	logger := ctxlog.FromContext(ctx).With("file", c.workspace.Rel(path))
	logger.Debug("Loading build file.")

	next := append(slices.Clone(chain), path)
	b := NewBuilder(path, c.workspace)
	b.include = func(ctx context.Context, inc string) (*BuildFile, error) {
		return c.Load(context.WithValue(ctx, chainKey{}, next), inc)
	}

	if err := c.frontend.Load(ctx, path, b); err != nil {
		logger.Debug("Build file failed to load.", "error", err)
		return nil, err
	}

	f := b.Build()
	c.mu.Lock()
	c.files[path] = f
	c.mu.Unlock()
	logger.Debug("Build file loaded.", "tasks", len(f.tasks), "includes", len(f.Includes))
	return f, nil
}

// Lookup resolves a task reference made by from. A reference without a
// path names a task of from's own file.
func (c *Cache) Lookup(ctx context.Context, from *task.Task, ref pathlike.TaskReference) (*task.Task, error) {
	file := from.File
	if ref.Path != nil {
		p, err := pathlike.Resolve(ref.Path, from.Directory(), c.workspace)
		if err != nil {
			return nil, err
		}
		file = p
	}
	f, err := c.Load(ctx, file)
	if err != nil {
		return nil, err
	}
	t, ok := f.Task(ref.Name)
	if !ok {
		return nil, &UnknownTaskError{Name: ref.Name, File: c.workspace.Rel(f.Path), Location: ref.Location}
	}
	return t, nil
}
