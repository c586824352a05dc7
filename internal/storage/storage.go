package storage

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
)

var (
	// ErrInvalidCapacity indicates the provided stock capacity is not positive.
	ErrInvalidCapacity = errors.New("stock capacity must be a positive number")
	// ErrInvalidDetail indicates a request row violates validation rules.
	ErrInvalidDetail = errors.New("detail requires a non-empty name, a positive length and a positive quantity")
	// ErrNotFound indicates no request row has the given id.
	ErrNotFound = errors.New("detail not found")
)

// Row is one requested detail as entered by the user.
type Row struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Length   float64 `json:"length"`
	Quantity int     `json:"quantity"`
}

// Storage provides access to the request list and the stock capacity used by the planner.
type Storage interface {
	GetCapacity() (float64, error)
	SetCapacity(capacity float64) error
	ListDetails() ([]Row, error)
	AddDetail(name string, length float64, quantity int) (Row, error)
	RemoveDetail(id string) error
	ClearDetails() error
}

// MemoryStorage keeps the request list in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu       sync.RWMutex
	capacity float64
	rows     []Row
}

// NewMemoryStorage initialises an empty request list with the default capacity.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		capacity: cutting.DefaultCapacity,
		rows:     []Row{},
	}
}

// GetCapacity returns the configured stock capacity.
func (s *MemoryStorage) GetCapacity() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.capacity, nil
}

// SetCapacity validates and stores the stock capacity.
func (s *MemoryStorage) SetCapacity(capacity float64) error {
	if !cutting.ValidLength(capacity) {
		return ErrInvalidCapacity
	}

	s.mu.Lock()
	s.capacity = capacity
	s.mu.Unlock()

	return nil
}

// ListDetails returns a defensive copy of the request list in insertion order.
func (s *MemoryStorage) ListDetails() ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.rows), nil
}

// AddDetail validates the row, assigns it an id and appends it to the list.
func (s *MemoryStorage) AddDetail(name string, length float64, quantity int) (Row, error) {
	row, err := newRow(name, length, quantity)
	if err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	s.rows = append(s.rows, row)
	s.mu.Unlock()

	return row, nil
}

// RemoveDetail deletes the row with the given id.
func (s *MemoryStorage) RemoveDetail(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.rows, func(r Row) bool { return r.ID == id })
	if idx < 0 {
		return ErrNotFound
	}
	s.rows = slices.Delete(s.rows, idx, idx+1)
	return nil
}

// ClearDetails empties the request list.
func (s *MemoryStorage) ClearDetails() error {
	s.mu.Lock()
	s.rows = []Row{}
	s.mu.Unlock()

	return nil
}

func (s *MemoryStorage) snapshot() fileState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fileState{Capacity: s.capacity, Details: slices.Clone(s.rows)}
}

func (s *MemoryStorage) restore(state fileState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cutting.ValidLength(state.Capacity) {
		s.capacity = state.Capacity
	}
	s.rows = slices.Clone(state.Details)
	if s.rows == nil {
		s.rows = []Row{}
	}
}

// ToDetails converts request rows into planner input. Rows sharing a name are
// merged when their lengths agree.
func ToDetails(rows []Row) []cutting.Detail {
	details := make([]cutting.Detail, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, r := range rows {
		if i, ok := index[r.Name]; ok && details[i].Length == r.Length {
			details[i].Amount += r.Quantity
			continue
		}
		index[r.Name] = len(details)
		details = append(details, cutting.Detail{Name: r.Name, Length: r.Length, Amount: r.Quantity})
	}
	return details
}

func newRow(name string, length float64, quantity int) (Row, error) {
	name = strings.TrimSpace(name)
	if name == "" || !cutting.ValidLength(length) || quantity <= 0 {
		return Row{}, ErrInvalidDetail
	}
	return Row{
		ID:       uuid.New().String(),
		Name:     name,
		Length:   length,
		Quantity: quantity,
	}, nil
}
