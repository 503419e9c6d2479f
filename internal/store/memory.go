// SPDX-License-Identifier: MIT

package store

import "sync"

// MemoryStore is a volatile Store for tests and simulated hardware rigs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]int64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{values: make(map[string]int64)}
}

func (s *MemoryStore) GetInt(key string, fallback int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return fallback, nil
}

func (s *MemoryStore) SetInt(key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Close() error { return nil }
