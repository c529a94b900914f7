// Package file keeps each storage key in its own token file below a root
// directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/sessionkit/internal/domain"
	"github.com/bnema/sessionkit/internal/ports"
)

const (
	rootDirMode   = 0o700
	tokenFileMode = 0o600
	tokenSuffix   = ".token"
	tempPattern   = ".entry-*.tmp"
)

type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ports.Storage = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// Root is the directory holding the token files.
func (s *Store) Root() string {
	return s.root
}

// Set replaces the entry through a temp file and rename so readers never
// observe a half-written token.
func (s *Store) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.entryPath(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, rootDirMode); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, tempPattern)
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Chmod(tokenFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp token file: %w", err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write token %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace token %q: %w", key, err)
	}
	return nil
}

// Get returns the entry with surrounding whitespace removed, so hand-edited
// files with a trailing newline still work.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.entryPath(key)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("token %q: %w", key, domain.ErrKeyNotFound)
	case err != nil:
		return "", fmt.Errorf("read token %q: %w", key, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.entryPath(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token %q: %w", key, err)
	}
	return nil
}

// entryPath maps key onto <root>/<key>.token. Keys are flat names: anything
// that could leave root is rejected.
func (s *Store) entryPath(key string) (string, error) {
	name := strings.TrimSpace(key)
	if name == "" {
		return "", errors.New("storage key is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, name+tokenSuffix), nil
}
