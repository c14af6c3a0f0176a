package progress

import (
	"context"
	"sort"
	"sync"
)

// Storage is durable key/value storage scoped to one learner.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// Backend hands out per-learner Storage from a shared connection.
type Backend interface {
	Storage(learnerID string) Storage
	HealthCheck(ctx context.Context) error
	Close() error
}

// MemoryBackend keeps all learners' progress in memory. Used for tests and
// when persistence is disabled.
type MemoryBackend struct {
	learners map[string]map[string]string
	mu       sync.RWMutex
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		learners: make(map[string]map[string]string),
	}
}

func (b *MemoryBackend) Storage(learnerID string) Storage {
	return &memoryStorage{backend: b, learnerID: learnerID}
}

func (b *MemoryBackend) HealthCheck(context.Context) error { return nil }

func (b *MemoryBackend) Close() error { return nil }

// NewMemoryStorage returns standalone in-memory storage for a single learner.
func NewMemoryStorage() Storage {
	return NewMemoryBackend().Storage("local")
}

type memoryStorage struct {
	backend   *MemoryBackend
	learnerID string
}

func (s *memoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	v, ok := s.backend.learners[s.learnerID][key]
	return v, ok, nil
}

func (s *memoryStorage) Set(_ context.Context, key, value string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	kv, ok := s.backend.learners[s.learnerID]
	if !ok {
		kv = make(map[string]string)
		s.backend.learners[s.learnerID] = kv
	}
	kv[key] = value
	return nil
}

func (s *memoryStorage) Keys(_ context.Context) ([]string, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	keys := make([]string, 0, len(s.backend.learners[s.learnerID]))
	for k := range s.backend.learners[s.learnerID] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memoryStorage) Clear(_ context.Context) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.learners, s.learnerID)
	return nil
}
