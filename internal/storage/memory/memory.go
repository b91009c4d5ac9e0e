// Package memory keeps the encoded state in process memory. Used by tests and
// by STATE_BACKEND=memory.
package memory

import (
	"context"
	"sync"

	"splitpay/internal/storage"
)

type Store struct {
	mu   sync.RWMutex
	data []byte
	// ReadErr, when set, is returned by Read to simulate a failing backend.
	ReadErr error
}

func New() *Store {
	return &Store{}
}

// Seed stores data as if it had been written earlier.
func (s *Store) Seed(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
}

// Bytes returns a copy of the stored record, nil if nothing was written.
func (s *Store) Bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil
	}
	return append([]byte(nil), s.data...)
}

func (s *Store) Read(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	if s.data == nil {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

func (s *Store) Write(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	return nil
}

func (s *Store) Close() error { return nil }
