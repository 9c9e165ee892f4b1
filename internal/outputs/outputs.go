package outputs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vk/gridbuild/internal/workspace"
)

// ErrLinkOccupied is returned when the link location holds something other
// than a symbolic link.
var ErrLinkOccupied = errors.New("link location is occupied")

// Allocation is where a task writes its outputs. LinkPath is empty when
// links are disabled.
type Allocation struct {
	CachePath string
	LinkPath  string
}

// Path is the directory actions see as the task output path.
func (a Allocation) Path() string {
	return a.CachePath
}

// Allocator hands out output directories.
type Allocator interface {
	Allocate(name string, variants []string, inputDir string, ws *workspace.Workspace) (Allocation, error)
}

type result struct {
	once  sync.Once
	alloc Allocation
	err   error
}

// Tree is the default Allocator. It creates the cache directory and the
// link on first use and returns the memoized allocation afterwards.
type Tree struct {
	results sync.Map // Key: request string, Value: *result
}

// New creates an empty Tree.
func New() *Tree {
	return &Tree{}
}

// Allocate returns the directories for a task, creating them when needed.
// Identical requests always return the same allocation.
func (t *Tree) Allocate(name string, variants []string, inputDir string, ws *workspace.Workspace) (Allocation, error) {
	key := strings.Join(append([]string{ws.Root, inputDir, name}, variants...), "\x00")
	v, _ := t.results.LoadOrStore(key, &result{})
	r := v.(*result)
	r.once.Do(func() {
		r.alloc, r.err = allocate(name, variants, inputDir, ws)
		if r.err != nil {
			t.results.Delete(key)
		}
	})
	return r.alloc, r.err
}

// Paths computes an allocation without touching the filesystem.
func Paths(name string, variants []string, inputDir string, ws *workspace.Workspace) Allocation {
	leaf := strings.Join(append([]string{name}, variants...), "-")
	alloc := Allocation{
		CachePath: filepath.Join(ws.OutputRoot(), DirectoryDigest(ws.Rel(inputDir)), leaf),
	}
	if ws.Config.LinkOutputs {
		alloc.LinkPath = filepath.Join(inputDir, ws.OutputFolder(), leaf)
	}
	return alloc
}

// DirectoryDigest shortens a relative directory into a stable name.
func DirectoryDigest(rel string) string {
	sum := sha256.Sum256([]byte(rel))
	return hex.EncodeToString(sum[:])[:12]
}

func allocate(name string, variants []string, inputDir string, ws *workspace.Workspace) (Allocation, error) {
	alloc := Paths(name, variants, inputDir, ws)
	if err := os.MkdirAll(alloc.CachePath, 0o755); err != nil {
		return Allocation{}, fmt.Errorf("creating output directory for %s: %w", name, err)
	}
	if alloc.LinkPath == "" {
		return alloc, nil
	}
	if err := link(alloc.CachePath, alloc.LinkPath); err != nil {
		return Allocation{}, fmt.Errorf("linking outputs of %s: %w", name, err)
	}
	return alloc, nil
}

// link points path at target, replacing a stale symbolic link.
func link(target, path string) error {
	info, err := os.Lstat(path)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink == 0:
		return fmt.Errorf("%w: %s", ErrLinkOccupied, path)
	case err == nil:
		if current, err := os.Readlink(path); err == nil && current == target {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	case !errors.Is(err, os.ErrNotExist):
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.Symlink(target, path)
}
