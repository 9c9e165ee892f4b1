package action

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/gridbuild/internal/pathlike"
)

// LocateExecutable finds the program an Execute action names. A value
// containing a path separator is resolved as a path and must exist. A bare
// name is looked up in the task input directory and then in PATH.
func LocateExecutable(ec *ExecContext, value pathlike.Value) (string, error) {
	var name string
	switch v := value.(type) {
	case nil:
		return "", fmt.Errorf("%s: execute: %w: executable", ec.Task.Location, ErrMissingField)
	case pathlike.Literal:
		name = v.Value
	case pathlike.Element:
		if v.Resolved != "" || len(v.Parts) != 1 {
			return existing(ec, value)
		}
		name = v.Parts[0]
	default:
		return existing(ec, value)
	}

	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return existing(ec, value)
	}

	dirs := append([]string{ec.Task.InputPath}, filepath.SplitList(os.Getenv("PATH"))...)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", notFound(ec, name)
}

func existing(ec *ExecContext, value pathlike.Value) (string, error) {
	path, err := pathlike.ResolvePath(ec.PathContext(), value, ec.Task.InputPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", notFound(ec, path)
	}
	return path, nil
}

func notFound(ec *ExecContext, name string) error {
	return fmt.Errorf("task %s: %w: %s", ec.Task.Name, ErrExecutableNotFound, name)
}
