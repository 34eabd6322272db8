package storage

import (
	"context"
	"sync"
)

// MemoryStore is a process-local [Store]. Values are kept encoded, so
// callers never share memory with the store.
type MemoryStore[T any] struct {
	scope string

	mu      sync.RWMutex
	entries map[string][]byte
}

var _ Store[struct{}] = (*MemoryStore[struct{}])(nil)

// NewMemoryStore returns an empty store for scope. An empty scope is
// allowed and only used in error messages.
func NewMemoryStore[T any](scope string) *MemoryStore[T] {
	return &MemoryStore[T]{scope: scope, entries: make(map[string][]byte)}
}

// Get implements [Store].
func (s *MemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := validateID(id); err != nil {
		return zero, err
	}
	s.mu.RLock()
	data, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return zero, notFound(s.scope, id)
	}
	return decode[T](data, id)
}

// Add implements [Store].
func (s *MemoryStore[T]) Add(ctx context.Context, id string, v T) error {
	if err := validateID(id); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return alreadyExists(s.scope, id)
	}
	s.entries[id] = data
	return nil
}

// Update implements [Store].
func (s *MemoryStore[T]) Update(ctx context.Context, id string, v T) error {
	if err := validateID(id); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return notFound(s.scope, id)
	}
	s.entries[id] = data
	return nil
}

// Remove implements [Store].
func (s *MemoryStore[T]) Remove(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return notFound(s.scope, id)
	}
	delete(s.entries, id)
	return nil
}

// GetAll implements [Store].
func (s *MemoryStore[T]) GetAll(ctx context.Context) (map[string]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]T, len(s.entries))
	for id, data := range s.entries {
		v, err := decode[T](data, id)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

// Count implements [Store].
func (s *MemoryStore[T]) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
