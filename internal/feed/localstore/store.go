// Package localstore is the durable key-value store behind the local post
// cache, the local account and the intent queue.
//
// Each key is one JSON document at {dir}/{key}.json. Writes go through a
// temp file and a rename so readers never see a half-written document, and
// an advisory lock on {dir}/.lock serializes writers across processes (the
// CLI and the sync daemon share a data directory).
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var validKey = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)

// Store is a directory of JSON documents.
type Store struct {
	dir string
	mu  sync.Mutex
}

// Open creates the data directory if needed and returns a store over it.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file holding key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get decodes the document under key into v.
// It returns false if the key is missing or holds malformed JSON; the
// malformed document is left on disk and overwritten by the next Set.
func (s *Store) Get(key string, v any) bool {
	if !validKey.MatchString(key) {
		return false
	}
	data, err := os.ReadFile(s.Path(key))
	if err != nil || len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false
	}
	return true
}

// Set encodes v under key.
func (s *Store) Set(key string, v any) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.write(key, data)
}

// SetRaw stores data under key without re-encoding it.
func (s *Store) SetRaw(key string, data []byte) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	return s.write(key, data)
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := lockDir(s.dir)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (s *Store) write(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := lockDir(s.dir)
	if err != nil {
		return err
	}
	defer unlock()

	path := s.Path(key)
	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
