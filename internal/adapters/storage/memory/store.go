package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/sessionkit/internal/domain"
	"github.com/bnema/sessionkit/internal/ports"
)

// Store is a process-local Storage. Useful for embedding and tests.
type Store struct {
	mu      sync.RWMutex
	entries map[string]string
}

var _ ports.Storage = (*Store)(nil)

func NewStore() *Store {
	return &Store{entries: map[string]string{}}
}

// NewStoreWith seeds the store with entries.
func NewStoreWith(entries map[string]string) *Store {
	store := NewStore()
	for key, value := range entries {
		store.entries[key] = value
	}
	return store
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[key]
	if !ok {
		return "", fmt.Errorf("memory entry %q: %w", key, domain.ErrKeyNotFound)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = value
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
