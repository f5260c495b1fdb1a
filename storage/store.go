package storage

import (
	"errors"
	"sync"
)

// Store represents a key-value store.
type Store interface {
	Put(key, value []byte) (err error)

	// Get should return ErrNotFound if the key is not in the store.
	Get(key []byte) (value []byte, err error)
}

var (
	// ErrNotFound indicates a key is not in the store.
	ErrNotFound = errors.New("not found")
)

// Serialized is a Store implementation wrapping a given Store so that every
// call, get or put, happens inside one critical section. Calls from different
// connections are totally ordered by lock acquisition, and the last put to
// acquire the lock wins.
type Serialized struct {
	sync.Mutex
	delegate Store
}

func NewSerialized(delegate Store) *Serialized {
	return &Serialized{delegate: delegate}
}

func (s *Serialized) Put(key, value []byte) error {
	s.Lock()
	defer s.Unlock()
	return s.delegate.Put(key, value)
}

func (s *Serialized) Get(key []byte) (value []byte, err error) {
	s.Lock()
	defer s.Unlock()
	return s.delegate.Get(key)
}

func dup(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
