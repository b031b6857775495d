// Package store provides a generic in-memory dao.Service.
package store

import (
	"context"
	"sync"

	"github.com/viant/hybrid/service/dao"
)

// MemoryStore keeps records of type *T under the key returned by keyOf.
type MemoryStore[K comparable, T any] struct {
	mu      sync.RWMutex
	records map[K]*T
	order   []K
	keyOf   func(*T) K
	copier  func(*T) *T
	filter  func(*T, []*dao.Parameter) bool
	sorter  func([]*T)
}

// Option configures a MemoryStore.
type Option[K comparable, T any] func(s *MemoryStore[K, T])

// WithCopier isolates stored records from callers by copying on Save and Load.
func WithCopier[K comparable, T any](copier func(*T) *T) Option[K, T] {
	return func(s *MemoryStore[K, T]) {
		s.copier = copier
	}
}

// WithFilter makes List honour parameters; without it parameters are ignored.
func WithFilter[K comparable, T any](filter func(*T, []*dao.Parameter) bool) Option[K, T] {
	return func(s *MemoryStore[K, T]) {
		s.filter = filter
	}
}

// WithSorter orders List output; the default is insertion order.
func WithSorter[K comparable, T any](sorter func([]*T)) Option[K, T] {
	return func(s *MemoryStore[K, T]) {
		s.sorter = sorter
	}
}

// NewMemoryStore creates a store keyed by keyOf.
func NewMemoryStore[K comparable, T any](keyOf func(*T) K, opts ...Option[K, T]) *MemoryStore[K, T] {
	ret := &MemoryStore[K, T]{
		records: make(map[K]*T),
		keyOf:   keyOf,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (s *MemoryStore[K, T]) copy(v *T) *T {
	if s.copier == nil || v == nil {
		return v
	}
	return s.copier(v)
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keyOf(v)
	var zero K
	if key == zero {
		return dao.ErrInvalidID
	}
	v = s.copy(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		s.order = append(s.order, key)
	}
	s.records[key] = v
	return nil
}

// Load returns a record by key or dao.ErrNotFound.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return s.copy(v), nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return dao.ErrNotFound
	}
	delete(s.records, key)
	for i, candidate := range s.order {
		if candidate == key {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns records accepted by the filter.
func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	out := make([]*T, 0, len(s.order))
	for _, key := range s.order {
		record := s.records[key]
		if s.filter != nil && !s.filter(record, parameters) {
			continue
		}
		out = append(out, s.copy(record))
	}
	s.mu.RUnlock()
	if s.sorter != nil {
		s.sorter(out)
	}
	return out, nil
}

var _ dao.Service[string, struct{}] = (*MemoryStore[string, struct{}])(nil)
