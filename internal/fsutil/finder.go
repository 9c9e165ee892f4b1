// Package fsutil provides the file system primitives used by path expansion
// and the file-oriented actions: lazy recursive search, glob translation,
// content checksums and tree copies.
package fsutil

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Query describes one recursive search below Root.
type Query struct {
	Root string
	// Pattern is matched against the slash separated path relative to Root.
	// A nil Pattern matches everything.
	Pattern *regexp.Regexp
	// Ignore is consulted with the base name of every entry. Ignored
	// directories are not descended into.
	Ignore func(name string) bool
	// Dirs makes directories eligible results, not only regular files.
	Dirs bool
	// MaxDepth limits how many path segments below Root are visited; zero
	// means unlimited.
	MaxDepth int
}

// Finder is the file system search collaborator.
type Finder interface {
	Find(q Query) iter.Seq2[string, error]
}

// WalkFinder implements Finder on top of filepath.WalkDir.
type WalkFinder struct{}

var errStop = errors.New("stop iteration")

// Find returns a lazy sequence of absolute paths below q.Root, in lexical
// walk order. A missing root yields nothing.
func (WalkFinder) Find(q Query) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if _, err := os.Stat(q.Root); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				yield("", err)
			}
			return
		}

		err := filepath.WalkDir(q.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == q.Root {
				return nil
			}
			if q.Ignore != nil && q.Ignore(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(q.Root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			depth := strings.Count(rel, "/") + 1
			if q.MaxDepth > 0 && depth > q.MaxDepth {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() && !q.Dirs {
				return nil
			}
			if q.Pattern != nil && !q.Pattern.MatchString(rel) {
				return nil
			}
			if !yield(path, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield("", err)
		}
	}
}

// Collect drains a search sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	var paths []string
	for path, err := range seq {
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
