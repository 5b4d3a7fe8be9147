package state

import (
	"sort"
	"sync"
)

// MemoryStorage is a process-local LocalStorage. Set stages values and Save
// commits them; Get sees staged values first.
type MemoryStorage struct {
	mu        sync.RWMutex
	committed map[string]string
	staged    map[string]*string
	saves     int
}

// NewMemoryStorage returns an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		committed: map[string]string{},
		staged:    map[string]*string{},
	}
}

func (s *MemoryStorage) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if staged, ok := s.staged[key]; ok {
		if staged == nil {
			return "", false, nil
		}
		return *staged, true, nil
	}
	value, ok := s.committed[key]
	return value, ok, nil
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[key] = &value
	return nil
}

// Delete stages the removal of key.
func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[key] = nil
	return nil
}

func (s *MemoryStorage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range s.staged {
		if value == nil {
			delete(s.committed, key)
			continue
		}
		s.committed[key] = *value
	}
	s.staged = map[string]*string{}
	s.saves++
	return nil
}

// Keys lists committed and staged keys.
func (s *MemoryStorage) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{}, len(s.committed)+len(s.staged))
	for key := range s.committed {
		seen[key] = struct{}{}
	}
	for key, value := range s.staged {
		if value == nil {
			delete(seen, key)
			continue
		}
		seen[key] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Saves reports how many commits have happened.
func (s *MemoryStorage) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
