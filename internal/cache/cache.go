// Package cache remembers the digest each task was last built with so that
// unchanged tasks can be skipped.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vk/gridbuild/internal/ctxlog"
)

// FileName is the name of the cache file inside the output root.
const FileName = ".cache.json"

// Entry is the record of one successful build.
type Entry struct {
	Name    string    `json:"name"`
	File    string    `json:"file"`
	Digest  string    `json:"digest"`
	BuiltAt time.Time `json:"built_at"`
}

type document struct {
	Entries map[string]Entry `json:"entries"`
}

// Store is a JSON backed map from task key to Entry. It is safe for
// concurrent use; Save takes an advisory lock on the file so that two
// processes sharing an output root do not interleave writes.
type Store struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
	dirty   bool
}

// Open loads the cache file in dir. A missing file is an empty cache.
func Open(ctx context.Context, dir string) (*Store, error) {
	s := &Store{path: filepath.Join(dir, FileName), entries: make(map[string]Entry)}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("reading cache: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		ctxlog.FromContext(ctx).Warn("Discarding unreadable cache file.", "path", s.path, "error", err)
		return s, nil
	}
	if doc.Entries != nil {
		s.entries = doc.Entries
	}
	return s, nil
}

// Path is the location of the cache file.
func (s *Store) Path() string { return s.path }

// Get returns the entry for key.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// Fresh reports whether key was last built with digest.
func (s *Store) Fresh(key, digest string) bool {
	e, ok := s.Get(key)
	return ok && e.Digest == digest
}

// Put records a successful build.
func (s *Store) Put(key string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.BuiltAt.IsZero() {
		e.BuiltAt = time.Now().UTC()
	}
	s.entries[key] = e
	s.dirty = true
}

// Forget drops the entry for key.
func (s *Store) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		delete(s.entries, key)
		s.dirty = true
	}
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Save writes the cache file if anything changed since it was loaded.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(document{Entries: maps.Clone(s.entries)}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	defer f.Close()

	if err := lock(f); err != nil {
		return fmt.Errorf("locking cache: %w", err)
	}
	defer unlock(f)

	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	s.dirty = false
	return nil
}
