// Package pass keeps tokens in the pass password store
// (https://www.passwordstore.org) by driving its command line.
package pass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bnema/sessionkit/internal/domain"
	"github.com/bnema/sessionkit/internal/ports"
)

var ErrUnavailable = errors.New("pass command unavailable")

const missingEntryMarker = "is not in the password store"

// invocation is one pass call: its arguments and what goes to stdin.
type invocation struct {
	args  []string
	stdin string
}

type output struct {
	stdout string
	stderr string
}

type runner func(ctx context.Context, call invocation) (output, error)

type Store struct {
	prefix string
	run    runner
}

var _ ports.Storage = (*Store)(nil)

// NewStore stores key under <prefix>/<key>.
func NewStore(prefix string) *Store {
	return &Store{prefix: strings.Trim(prefix, "/"), run: runPass}
}

// Set inserts the value as a single-line entry, replacing any previous one.
func (s *Store) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("pass set %q: value must be a single line", key)
	}

	out, err := s.run(ctx, invocation{
		args:  []string{"insert", "--echo", "--force", s.entry(key)},
		stdin: value + "\n",
	})
	if err != nil {
		return wrap("set", key, err, out)
	}
	return nil
}

// Get returns the first line of the entry; pass keeps metadata below it.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, err := s.run(ctx, invocation{args: []string{"show", s.entry(key)}})
	if err != nil {
		if missing(out) {
			return "", fmt.Errorf("pass entry %q: %w", key, domain.ErrKeyNotFound)
		}
		return "", wrap("get", key, err, out)
	}

	first, _, _ := strings.Cut(out.stdout, "\n")
	return strings.TrimSuffix(first, "\r"), nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := s.run(ctx, invocation{args: []string{"rm", "--force", s.entry(key)}})
	if err != nil && !missing(out) {
		return wrap("remove", key, err, out)
	}
	return nil
}

func (s *Store) entry(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func missing(out output) bool {
	return strings.Contains(out.stderr, missingEntryMarker)
}

func runPass(ctx context.Context, call invocation) (output, error) {
	path, err := exec.LookPath("pass")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return output{}, ErrUnavailable
		}
		return output{}, fmt.Errorf("locate pass command: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, call.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if call.stdin != "" {
		cmd.Stdin = strings.NewReader(call.stdin)
	}

	err = cmd.Run()
	return output{stdout: stdout.String(), stderr: strings.TrimSpace(stderr.String())}, err
}

func wrap(op, key string, err error, out output) error {
	if out.stderr == "" {
		return fmt.Errorf("pass %s %q: %w", op, key, err)
	}
	return fmt.Errorf("pass %s %q: %w: %s", op, key, err, out.stderr)
}
