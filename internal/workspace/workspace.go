// Package workspace defines the Workspace handle: the root directory that
// `//` paths are anchored at, together with the settings loaded from the
// workspace file.
package workspace

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/vk/gridbuild/internal/config"
	"github.com/vk/gridbuild/internal/fsutil"
)

// Workspace is immutable after construction and safe for concurrent use.
type Workspace struct {
	Name   string
	Root   string
	Config config.Config

	outputRoot    string
	ignoreNames   []string
	ignorePattern *regexp.Regexp
}

// New builds a Workspace rooted at root.
func New(root string, cfg config.Config) (*Workspace, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	outputRoot := cfg.OutputRoot
	if !filepath.IsAbs(outputRoot) {
		outputRoot = filepath.Join(root, outputRoot)
	}
	outputRoot = filepath.Clean(outputRoot)

	ignoreNames := []string{cfg.OutputFolder}
	if rel, err := filepath.Rel(root, outputRoot); err == nil && rel != "." && filepath.IsLocal(rel) {
		if name := filepath.Base(outputRoot); !slices.Contains(cfg.Ignore, name) {
			ignoreNames = append(ignoreNames, name)
		}
	}
	ignoreNames = append(ignoreNames, cfg.Ignore...)

	ignorePattern, err := fsutil.CombineGlobs(ignoreNames)
	if err != nil {
		return nil, fmt.Errorf("compiling ignore patterns: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = filepath.Base(root)
	}

	return &Workspace{
		Name:          name,
		Root:          root,
		Config:        cfg,
		outputRoot:    outputRoot,
		ignoreNames:   ignoreNames,
		ignorePattern: ignorePattern,
	}, nil
}

// Detect finds the workspace containing dir. Without a workspace file, dir
// itself becomes the root and the defaults apply.
func Detect(dir string) (*Workspace, error) {
	path, err := config.Find(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return New(dir, config.Default())
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(filepath.Dir(path), cfg)
}

// OutputRoot is the absolute directory holding task output caches.
func (w *Workspace) OutputRoot() string {
	return w.outputRoot
}

// OutputFolder is the name of per-directory output links.
func (w *Workspace) OutputFolder() string {
	return w.Config.OutputFolder
}

// IgnoreNames returns the names skipped during expansion. The output folder
// and, when it lies inside the workspace, the output root are always part of
// the set.
func (w *Workspace) IgnoreNames() []string {
	return slices.Clone(w.ignoreNames)
}

// Ignored reports whether a base name is in the ignore set.
func (w *Workspace) Ignored(name string) bool {
	for _, pattern := range w.ignoreNames {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// IgnorePattern matches absolute slash separated paths that fall under any
// ignored name.
func (w *Workspace) IgnorePattern() *regexp.Regexp {
	return w.ignorePattern
}

// BuildFile returns the build file path of a directory.
func (w *Workspace) BuildFile(dir string) string {
	return filepath.Join(dir, w.Config.BuildFile)
}

// Rel renders path relative to the root with forward slashes, for keys and
// messages. Paths outside the workspace are returned unchanged.
func (w *Workspace) Rel(path string) string {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return path
	}
	return filepath.ToSlash(rel)
}
