// Package chain layers two storages: the primary is authoritative and the
// fallback only holds what the primary could not take.
package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/sessionkit/internal/adapters/storage/file"
	passstore "github.com/bnema/sessionkit/internal/adapters/storage/pass"
	"github.com/bnema/sessionkit/internal/ports"
)

type Store struct {
	primary  ports.Storage
	fallback ports.Storage
}

var _ ports.Storage = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary storage is nil")
	errNilFallbackStore = errors.New("fallback storage is nil")
)

// NewStore panics on nil backends; use NewStoreChecked for input that is not
// known to be valid.
func NewStore(primary, fallback ports.Storage) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}
	return store
}

func NewStoreChecked(primary, fallback ports.Storage) (*Store, error) {
	switch {
	case primary == nil:
		return nil, errNilPrimaryStore
	case fallback == nil:
		return nil, errNilFallbackStore
	}
	return &Store{primary: primary, fallback: fallback}, nil
}

// NewPassFirstWithFileFallback keeps tokens in pass under passPrefix and in
// token files below fileRoot when pass is not usable.
func NewPassFirstWithFileFallback(passPrefix, fileRoot string) (*Store, error) {
	return NewStoreChecked(passstore.NewStore(passPrefix), filestore.NewStore(fileRoot))
}

// Set writes to the primary and drops any copy the fallback still holds, so
// a later primary outage cannot surface an older token. Only when the
// primary fails does the value go to the fallback.
func (s *Store) Set(ctx context.Context, key string, value string) error {
	primaryErr := s.primary.Set(ctx, key, value)
	if primaryErr == nil {
		_ = s.fallback.Remove(ctx, key)
		return nil
	}
	if interrupted(primaryErr) {
		return primaryErr
	}

	if err := s.fallback.Set(ctx, key, value); err != nil {
		return joinFailures("set", primaryErr, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, primaryErr := s.primary.Get(ctx, key)
	if primaryErr == nil {
		return value, nil
	}
	if interrupted(primaryErr) {
		return "", primaryErr
	}

	value, err := s.fallback.Get(ctx, key)
	if err != nil {
		return "", joinFailures("get", primaryErr, err)
	}
	return value, nil
}

// Remove clears the key from both backends and reports every failure.
func (s *Store) Remove(ctx context.Context, key string) error {
	primaryErr := s.primary.Remove(ctx, key)
	if interrupted(primaryErr) {
		return primaryErr
	}
	fallbackErr := s.fallback.Remove(ctx, key)

	switch {
	case primaryErr != nil && fallbackErr != nil:
		return joinFailures("remove", primaryErr, fallbackErr)
	case primaryErr != nil:
		return fmt.Errorf("primary backend remove failed: %w", primaryErr)
	case fallbackErr != nil:
		return fmt.Errorf("fallback backend remove failed: %w", fallbackErr)
	default:
		return nil
	}
}

func joinFailures(op string, primaryErr, fallbackErr error) error {
	return fmt.Errorf("primary backend %s failed: %w; fallback backend %s failed: %w", op, primaryErr, op, fallbackErr)
}

// interrupted reports errors that mean the caller gave up, where trying the
// other backend would only repeat the failure.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
