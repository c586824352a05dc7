package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
)

// fileState is the on-disk layout of a FileStorage.
type fileState struct {
	Capacity float64 `json:"capacity"`
	Details  []Row   `json:"details"`
}

// FileStorage is a MemoryStorage that writes its state to a JSON file after
// every change, so the request list survives restarts. A change is applied in
// memory only once it has been written to disk.
type FileStorage struct {
	*MemoryStorage

	path           string
	loadedCapacity bool
	writeMu        sync.Mutex
}

// NewFileStorage loads state from path. A missing file starts an empty list
// and is created on the first change.
func NewFileStorage(path string) (*FileStorage, error) {
	s := &FileStorage{
		MemoryStorage: NewMemoryStorage(),
		path:          path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read storage file: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse storage file: %w", err)
	}
	s.loadedCapacity = cutting.ValidLength(state.Capacity)
	s.MemoryStorage.restore(state)
	return s, nil
}

// Path returns the file backing the storage.
func (s *FileStorage) Path() string {
	return s.path
}

// CapacityLoaded reports whether the file held a valid capacity when opened.
func (s *FileStorage) CapacityLoaded() bool {
	return s.loadedCapacity
}

// SetCapacity stores the capacity and persists it.
func (s *FileStorage) SetCapacity(capacity float64) error {
	return s.update(func(m *MemoryStorage) error {
		return m.SetCapacity(capacity)
	})
}

// AddDetail appends a row and persists the list.
func (s *FileStorage) AddDetail(name string, length float64, quantity int) (Row, error) {
	var row Row
	err := s.update(func(m *MemoryStorage) error {
		var err error
		row, err = m.AddDetail(name, length, quantity)
		return err
	})
	if err != nil {
		return Row{}, err
	}
	return row, nil
}

// RemoveDetail deletes a row and persists the list.
func (s *FileStorage) RemoveDetail(id string) error {
	return s.update(func(m *MemoryStorage) error {
		return m.RemoveDetail(id)
	})
}

// ClearDetails empties the list and persists it.
func (s *FileStorage) ClearDetails() error {
	return s.update(func(m *MemoryStorage) error {
		return m.ClearDetails()
	})
}

// update applies mutate to a copy of the current state, writes the copy to
// disk and only then makes it visible to readers.
func (s *FileStorage) update(mutate func(*MemoryStorage) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := NewMemoryStorage()
	next.restore(s.MemoryStorage.snapshot())
	if err := mutate(next); err != nil {
		return err
	}

	state := next.snapshot()
	if err := s.write(state); err != nil {
		return err
	}
	s.MemoryStorage.restore(state)
	return nil
}

func (s *FileStorage) write(state fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}
