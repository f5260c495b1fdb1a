package storage

import (
	"fmt"
	"sync"
)

// InMemoryStore is a Store implementation powered by a map. A single mutex
// guards the whole map, so all gets and puts, whatever the key, serialize on
// it. Nothing is evicted and nothing outlives the process.
type InMemoryStore struct {
	sync.Mutex
	m map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		m: make(map[string][]byte),
	}
}

func (s *InMemoryStore) Put(key, value []byte) (err error) {
	value = dup(value)
	s.Lock()
	s.m[string(key)] = value
	s.Unlock()
	return nil
}

func (s *InMemoryStore) Get(key []byte) (value []byte, err error) {
	s.Lock()
	value, ok := s.m[string(key)]
	s.Unlock()
	if !ok {
		return nil, fmt.Errorf("%.40q: %w", key, ErrNotFound)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Len returns the number of keys stored.
func (s *InMemoryStore) Len() int {
	s.Lock()
	defer s.Unlock()
	return len(s.m)
}
