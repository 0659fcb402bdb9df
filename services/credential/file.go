package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	tempPrefix = ".tmp-"
	fileSuffix = ".txt"
)

// FileStore keeps one file per key, named "{user}_{channel}.txt", under dir.
// Writes go through a temp file and rename so readers never see a partial
// payload. The directory must not be shared between processes.
type FileStore struct {
	dir string

	// mu orders renames into place against the sweep's final re-read and
	// remove, so a sweep never evicts a payload written after it looked.
	mu sync.Mutex

	beforeEvict func(path string)
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create pending code directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key Key) string {
	return filepath.Join(s.dir, key.String()+fileSuffix)
}

func (s *FileStore) Put(_ context.Context, key Key, code string, issuedAt time.Time) error {
	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create pending code file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(EncodePayload(code, issuedAt)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write pending code: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write pending code: %w", err)
	}

	s.mu.Lock()
	err = os.Rename(tmpName, s.path(key))
	s.mu.Unlock()
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to store pending code: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key Key) (*Record, error) {
	content, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending code: %w", err)
	}
	return DecodePayload(string(content))
}

func (s *FileStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	err := os.Remove(s.path(key))
	s.mu.Unlock()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete pending code: %w", err)
	}
	return nil
}

func (s *FileStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending codes: %w", err)
	}

	var removed int64
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}

		path := filepath.Join(s.dir, name)
		if !stale(path, cutoff) {
			continue
		}
		if s.beforeEvict != nil {
			s.beforeEvict(path)
		}
		if s.evict(path, cutoff) {
			removed++
		}
	}
	return removed, nil
}

// evict re-reads path under the lock and removes it only if it is still
// stale.
func (s *FileStore) evict(path string, cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !stale(path, cutoff) {
		return false
	}
	return os.Remove(path) == nil
}

// stale reports whether the file at path holds a corrupt payload or one
// issued before cutoff. Unreadable files are left alone.
func stale(path string, cutoff time.Time) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	record, err := DecodePayload(string(content))
	return err != nil || record.IssuedAt.Before(cutoff)
}
