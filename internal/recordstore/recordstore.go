// Package recordstore persists named JSON documents to a data directory.
//
// Documents are written in full on every mutation as pretty-printed UTF-8
// JSON so they stay human-diffable. Reads are lenient: a missing or corrupt
// document yields the caller-supplied default rather than an error, which
// keeps the process alive on ephemeral or read-only storage.
package recordstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store is a collection of JSON documents rooted at a single directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating the directory (recursively)
// if it does not exist. Failure here is a bootstrap error and should be
// fatal to startup.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("recordstore: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("recordstore: create dir: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute path of the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute path of a named document.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Read returns the document decoded into T, or def when the document is
// missing or cannot be parsed. It never returns an error; callers decide
// whether absence matters.
func Read[T any](s *Store, name string, def T) T {
	v, err := ReadStrict[T](s, name)
	if err != nil {
		return def
	}
	return v
}

// ReadStrict returns the decoded document or an error on absence or parse
// failure. Bootstrap paths use it to distinguish first run from a readable
// document.
func ReadStrict[T any](s *Store, name string) (T, error) {
	var v T
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return v, fmt.Errorf("recordstore: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("recordstore: parse %s: %w", name, err)
	}
	return v, nil
}

// Exists reports whether a document with the given name is present.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Write replaces the named document with the pretty-printed JSON encoding of
// v. The write is atomic: tmp file → fsync → rename, so readers never observe
// a half-written document.
func Write(s *Store, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("recordstore: encode %s: %w", name, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".quill-tmp-*")
	if err != nil {
		return fmt.Errorf("recordstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("recordstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("recordstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("recordstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		return fmt.Errorf("recordstore: rename: %w", err)
	}
	success = true
	return nil
}
