// Package kvstore is a small file-backed string key-value store.
//
// Every mutation runs load-modify-persist under an exclusive lock on a sibling
// ".lock" file, so several processes sharing one store cannot overwrite each
// other's writes. Writes go through a temp file and rename.
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	dirPerm       = 0o700
	filePerm      = 0o600
	lockRetryWait = 25 * time.Millisecond
)

var (
	ErrInvalidPath     = errors.New("kvstore: invalid path")
	ErrLockTimeout     = errors.New("kvstore: lock timeout")
	ErrLockUnavailable = errors.New("kvstore: lock unavailable")
	ErrDecodeFailed    = errors.New("kvstore: decode failed")
)

// Store persists a flat map of string keys to string values in a JSON file.
type Store struct {
	path     string
	lockPath string
	mu       sync.Mutex
}

// Open returns a store rooted at path. The file is created on first write.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return &Store{path: abs, lockPath: abs + ".lock"}, nil
}

// Path returns the absolute path of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	values, err := s.Load(ctx)
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

// Load returns a snapshot of all stored values.
func (s *Store) Load(ctx context.Context) (map[string]string, error) {
	var values map[string]string
	err := s.withLock(ctx, func() error {
		var err error
		values, err = s.read()
		return err
	})
	return values, err
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.Update(ctx, func(values map[string]string) error {
		values[key] = value
		return nil
	})
}

// Delete removes the given keys.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	return s.Update(ctx, func(values map[string]string) error {
		for _, key := range keys {
			delete(values, key)
		}
		return nil
	})
}

// Update applies fn to the current values and persists the result. fn runs
// while the file lock is held; returning an error discards its changes.
func (s *Store) Update(ctx context.Context, fn func(values map[string]string) error) error {
	return s.withLock(ctx, func() error {
		values, err := s.read()
		if err != nil {
			return err
		}
		if err := fn(values); err != nil {
			return err
		}
		return s.write(values)
	})
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("kvstore ensure dir: %w", err)
	}
	return withLockFile(ctx, s.lockPath, fn)
}

func (s *Store) read() (map[string]string, error) {
	values := map[string]string{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("kvstore read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, s.path, err)
	}
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

func (s *Store) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("kvstore encode: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("kvstore create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("kvstore write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("kvstore sync temp: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return fmt.Errorf("kvstore chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kvstore close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("kvstore rename: %w", err)
	}
	return nil
}

func waitForLockRetry(ctx context.Context, lockPath string) error {
	timer := time.NewTimer(lockRetryWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrLockTimeout, lockPath, ctx.Err())
	case <-timer.C:
		return nil
	}
}
