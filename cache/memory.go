package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage keeps partitions in process memory.
type MemoryStorage struct {
	mu         sync.Mutex
	partitions map[string]*memPartition
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{partitions: make(map[string]*memPartition)}
}

// Open returns the named partition, creating it if needed.
func (s *MemoryStorage) Open(_ context.Context, name string) (Partition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partitions[name]
	if !ok {
		p = &memPartition{name: name, entries: make(map[string]*Entry)}
		s.partitions[name] = p
	}
	return p, nil
}

func (s *MemoryStorage) Has(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.partitions[name]
	return ok, nil
}

func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partitions[name]; !ok {
		return false, nil
	}
	delete(s.partitions, name)
	return true, nil
}

func (s *MemoryStorage) Names(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.partitions))
	for n := range s.partitions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

type memPartition struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*Entry
}

func (p *memPartition) Name() string { return p.name }

func (p *memPartition) Match(_ context.Context, key string) (*Entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

// Put stores a copy of e. The last writer for a key wins.
func (p *memPartition) Put(_ context.Context, e *Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[e.Key] = e.Clone()
	return nil
}

func (p *memPartition) Delete(_ context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[key]; !ok {
		return false, nil
	}
	delete(p.entries, key)
	return true, nil
}

func (p *memPartition) Keys(_ context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
