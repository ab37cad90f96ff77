package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps artifacts in a map. Used by tests and by deployments
// that only care about analysis results, not raster retention.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, name string, data []byte) (string, error) {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	s.objects[name] = cp
	s.mu.Unlock()
	return "memory://" + name, nil
}

func (s *MemoryStore) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.objects[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.objects))
	for name := range s.objects {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[name]; !ok {
		return ErrNotFound
	}
	delete(s.objects, name)
	return nil
}
