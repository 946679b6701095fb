package cache

import (
	"context"
	"sync"
)

// Store holds serialized partition values. Implementations must be safe for
// concurrent use; every operation is atomic on its own.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// DeletePartition removes every key the partition contains and returns how many were removed.
	DeletePartition(ctx context.Context, p Partition) (int, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string][]byte{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.mu.Lock()
	s.entries[key] = v
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeletePartition(_ context.Context, p Partition) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.entries {
		if p.Contains(key) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

var _ Store = (*MemoryStore)(nil)
