// Package buildfile holds the per-file registries of tasks and macros.
//
// A file is populated through a Builder while the front end evaluates it
// and then frozen into a *BuildFile, which has no mutators. Files are
// loaded through a Cache so that every path is evaluated at most once.
package buildfile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/gridbuild/internal/task"
	"github.com/vk/gridbuild/internal/workspace"
)

// Frontend evaluates one build file, declaring its tasks and macros on b.
type Frontend interface {
	Load(ctx context.Context, path string, b *Builder) error
}

// Builder is the mutable registry of a file that is being loaded.
type Builder struct {
	path      string
	workspace *workspace.Workspace
	tasks     []*task.Task
	byName    map[string]*task.Task
	macros    map[string]function.Function
	checksum  string
	envReads  map[string]string
	includes  []*BuildFile
	include   func(ctx context.Context, path string) (*BuildFile, error)
}

// NewBuilder starts the registry of the file at path.
func NewBuilder(path string, ws *workspace.Workspace) *Builder {
	return &Builder{
		path:      path,
		workspace: ws,
		byName:    make(map[string]*task.Task),
		macros:    make(map[string]function.Function),
		envReads:  make(map[string]string),
	}
}

// Path is the absolute path of the file being loaded.
func (b *Builder) Path() string { return b.path }

// Directory is the task input directory of the file.
func (b *Builder) Directory() string { return filepath.Dir(b.path) }

func (b *Builder) Workspace() *workspace.Workspace { return b.workspace }

// SetSource records the checksum of the file's text.
func (b *Builder) SetSource(src []byte) {
	sum := sha256.Sum256(src)
	b.checksum = hex.EncodeToString(sum[:])
}

// AddTask validates and registers a task. A name that is already taken is
// rejected and the first registration stays.
func (b *Builder) AddTask(decl task.Declaration) (*task.Task, error) {
	if decl.File == "" {
		decl.File = b.path
	}
	if err := task.ValidateName(decl.Name); err != nil {
		return nil, fmt.Errorf("%s: %w", decl.Location, err)
	}
	if first, ok := b.byName[decl.Name]; ok {
		return nil, &task.DuplicateTaskError{Name: decl.Name, First: first.Location, Second: decl.Location}
	}
	t, err := task.New(decl, b.workspace)
	if err != nil {
		return nil, err
	}
	b.tasks = append(b.tasks, t)
	b.byName[t.Name] = t
	return t, nil
}

// Task returns a task registered so far.
func (b *Builder) Task(name string) (*task.Task, bool) {
	t, ok := b.byName[name]
	return t, ok
}

// AddMacro registers a callable other files can use after including this one.
func (b *Builder) AddMacro(name string, fn function.Function) error {
	if _, ok := b.macros[name]; ok {
		return fmt.Errorf("%s: macro %q is declared twice", b.path, name)
	}
	b.macros[name] = fn
	return nil
}

// RecordEnv notes that evaluation read an environment variable.
func (b *Builder) RecordEnv(name, value string) {
	b.envReads[name] = value
}

// Include loads another file through the cache and records it.
func (b *Builder) Include(ctx context.Context, path string) (*BuildFile, error) {
	if b.include == nil {
		return nil, fmt.Errorf("%s: includes are not available", b.path)
	}
	f, err := b.include(ctx, path)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(b.includes, f) {
		b.includes = append(b.includes, f)
	}
	return f, nil
}

// Build freezes the registry.
func (b *Builder) Build() *BuildFile {
	return &BuildFile{
		Path:            b.path,
		Directory:       filepath.Dir(b.path),
		Checksum:        b.checksum,
		EnvironmentHash: environmentHash(b.envReads),
		Includes:        slices.Clone(b.includes),
		tasks:           slices.Clone(b.tasks),
		byName:          maps.Clone(b.byName),
		macros:          maps.Clone(b.macros),
	}
}

func environmentHash(reads map[string]string) string {
	if len(reads) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, name := range slices.Sorted(maps.Keys(reads)) {
		fmt.Fprintf(&sb, "%s=%s\n", name, reads[name])
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// BuildFile is a loaded build file. It is safe for concurrent use.
type BuildFile struct {
	Path            string
	Directory       string
	Checksum        string
	EnvironmentHash string
	Includes        []*BuildFile

	tasks  []*task.Task
	byName map[string]*task.Task
	macros map[string]function.Function
}

// Tasks returns the tasks in declaration order.
func (f *BuildFile) Tasks() []*task.Task { return slices.Clone(f.tasks) }

// Task looks a task up by name.
func (f *BuildFile) Task(name string) (*task.Task, bool) {
	t, ok := f.byName[name]
	return t, ok
}

// Macros returns the macros declared in this file.
func (f *BuildFile) Macros() map[string]function.Function { return maps.Clone(f.macros) }

// HashParts lists the values Hash digests: the version tag, this file's
// environment hash and checksum, then the same pair for every transitively
// included file, depth first, each file once.
func (f *BuildFile) HashParts(version string) []string {
	parts := []string{version, f.EnvironmentHash, f.Checksum}
	seen := map[*BuildFile]bool{f: true}
	var walk func(*BuildFile)
	walk = func(file *BuildFile) {
		for _, inc := range file.Includes {
			if seen[inc] {
				continue
			}
			seen[inc] = true
			parts = append(parts, inc.EnvironmentHash, inc.Checksum)
			walk(inc)
		}
	}
	walk(f)
	return parts
}

// Hash is the composed hash of the file and its includes.
func (f *BuildFile) Hash(version string) string {
	sum := sha256.Sum256([]byte(strings.Join(f.HashParts(version), "|")))
	return hex.EncodeToString(sum[:])
}
