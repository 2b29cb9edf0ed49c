package kvstore

import (
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned when a single write is larger than the
// store's configured quota unit.
var ErrQuotaExceeded = errors.New("kvstore: value exceeds storage quota")

// Store is persistent string-keyed blob storage surviving process restarts.
// Values are JSON blobs; interpretation is left to the caller.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Remove(key string)
	Clear()
}

// MemoryStore is an in-process Store. It backs tests and the volatile
// fallback used when durable writes keep failing.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string][]byte

	// MaxValueBytes caps a single value when > 0, mimicking storage quota.
	MaxValueBytes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string][]byte{}}
}

func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true
}

func (s *MemoryStore) Set(key string, value []byte) error {
	if s.MaxValueBytes > 0 && len(value) > s.MaxValueBytes {
		return ErrQuotaExceeded
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.mu.Lock()
	s.m[key] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.m = map[string][]byte{}
	s.mu.Unlock()
}

// Len reports the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
