// Package task defines the Task entity: a named unit of build work with
// requirements, ordered actions and declared outputs.
package task

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"slices"
	"sync"

	"github.com/vk/gridbuild/internal/action"
	"github.com/vk/gridbuild/internal/pathlike"
	"github.com/vk/gridbuild/internal/workspace"
)

// Identity is what two tasks are compared on.
type Identity struct {
	Name string
	File string
}

// Key is the stable handle of a task: the hex sha256 of "file:name".
type Key string

// KeyOf computes the Key of the task name declared in file.
func KeyOf(name, file string) Key {
	sum := sha256.Sum256([]byte(file + ":" + name))
	return Key(hex.EncodeToString(sum[:]))
}

// Key returns the Key of the identity.
func (id Identity) Key() Key { return KeyOf(id.Name, id.File) }

func (id Identity) String() string { return id.Name + " (" + id.File + ")" }

// OutputKey names one output bucket. Unnamed holds every output of the list
// form; list positions are also available as "0", "1", ...
type OutputKey string

const Unnamed OutputKey = ""

// Task is built once during loading and read-only afterwards, except for
// the resolved requirement handles, which only grow.
type Task struct {
	Name        string
	File        string
	Description string
	// Path overrides the allocated output directory when set.
	Path      pathlike.Value
	Requires  []pathlike.Value
	Actions   []action.Action
	Outputs   map[OutputKey][]pathlike.Value
	Variants  []string
	Workspace *workspace.Workspace
	Location  pathlike.Location

	mu       sync.Mutex
	resolved []Key
}

// Identity returns the (name, file) pair of t.
func (t *Task) Identity() Identity { return Identity{Name: t.Name, File: t.File} }

// Key returns the stable handle of t.
func (t *Task) Key() Key { return KeyOf(t.Name, t.File) }

// Directory is the task input directory: the directory of its build file.
func (t *Task) Directory() string { return filepath.Dir(t.File) }

func (t *Task) String() string { return t.Name }

// AddResolved records a resolved dependency. Duplicates are ignored.
func (t *Task) AddResolved(k Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !slices.Contains(t.resolved, k) {
		t.resolved = append(t.resolved, k)
	}
}

// ResolvedRequires returns the dependency handles recorded so far.
func (t *Task) ResolvedRequires() []Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.resolved)
}

// References lists the tasks t depends on: explicit references in Requires
// followed by the ones embedded in its actions.
func (t *Task) References() []pathlike.TaskReference {
	refs := pathlike.References(t.Requires...)
	for _, a := range t.Actions {
		refs = append(refs, a.Requirements()...)
	}
	return refs
}

// InputRequires returns the requirements that denote files rather than tasks.
func (t *Task) InputRequires() []pathlike.Value {
	var inputs []pathlike.Value
	for _, r := range t.Requires {
		switch r.(type) {
		case pathlike.TaskReference, pathlike.Object:
		default:
			inputs = append(inputs, r)
		}
	}
	return inputs
}

// ResolveOutputs returns the absolute output paths of t below outputDir.
// Without declared outputs the output directory itself is the output.
func (t *Task) ResolveOutputs(paths *pathlike.Context, outputDir string, key OutputKey) ([]string, error) {
	values, ok := t.Outputs[key]
	if !ok {
		if key != Unnamed {
			return nil, &UnknownOutputError{Task: t.Name, Key: key}
		}
		return []string{outputDir}, nil
	}
	return pathlike.ResolvePathList(paths, values, outputDir)
}

// Info is the view of t handed to actions.
func (t *Task) Info(outputPath string) action.TaskInfo {
	return action.TaskInfo{
		Name:       t.Name,
		Key:        string(t.Key()),
		InputPath:  t.Directory(),
		OutputPath: outputPath,
		Location:   t.Location,
	}
}
