package jobqueue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"singalong/internal/fileutil"
)

// ErrCorrupt reports a persisted job list that could not be decoded.
var ErrCorrupt = errors.New("job store corrupt")

// Store persists a family's full job list.
type Store[T any] interface {
	Load() ([]T, error)
	Save(jobs []T) error
}

// FileStore keeps jobs as a pretty-printed JSON array in a single file.
type FileStore[T any] struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore[T any](path string) *FileStore[T] {
	return &FileStore[T]{path: path}
}

// Path returns the backing file.
func (s *FileStore[T]) Path() string {
	return s.path
}

// Load returns nil without error when the file does not exist yet.
func (s *FileStore[T]) Load() ([]T, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read job store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var jobs []T
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return jobs, nil
}

// Save replaces the file atomically.
func (s *FileStore[T]) Save(jobs []T) error {
	if jobs == nil {
		jobs = []T{}
	}
	return fileutil.WriteJSONAtomic(s.path, jobs)
}

// MemoryStore keeps the last saved list in memory. It backs queues that do
// not persist and is convenient in tests.
type MemoryStore[T any] struct {
	mu    sync.Mutex
	jobs  []T
	saves int
	err   error
}

// NewMemoryStore seeds the store with jobs.
func NewMemoryStore[T any](jobs ...T) *MemoryStore[T] {
	return &MemoryStore[T]{jobs: append([]T(nil), jobs...)}
}

func (s *MemoryStore[T]) Load() ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.jobs...), nil
}

func (s *MemoryStore[T]) Save(jobs []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.err != nil {
		return s.err
	}
	s.jobs = append([]T(nil), jobs...)
	return nil
}

// FailSaves makes subsequent Save calls return err. Pass nil to recover.
func (s *MemoryStore[T]) FailSaves(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Saves reports how many times Save has been called.
func (s *MemoryStore[T]) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
