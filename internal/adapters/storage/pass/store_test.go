package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/sessionkit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const missingStderr = "Error: sessionkit/auth_token is not in the password store."

// scripted answers every call with out and err and records what was asked.
func scripted(out output, err error) (*[]invocation, runner) {
	calls := &[]invocation{}
	return calls, func(_ context.Context, call invocation) (output, error) {
		*calls = append(*calls, call)
		return out, err
	}
}

func TestStoreSetInsertsSingleLineEntryUnderPrefix(t *testing.T) {
	t.Parallel()

	calls, run := scripted(output{}, nil)
	store := &Store{prefix: "sessionkit", run: run}

	require.NoError(t, store.Set(context.Background(), "auth_token", "tok-123"))
	require.Len(t, *calls, 1)
	assert.Equal(t, []string{"insert", "--echo", "--force", "sessionkit/auth_token"}, (*calls)[0].args)
	assert.Equal(t, "tok-123\n", (*calls)[0].stdin)
}

func TestStoreSetRejectsMultiLineValues(t *testing.T) {
	t.Parallel()

	calls, run := scripted(output{}, nil)
	store := &Store{run: run}

	err := store.Set(context.Background(), "auth_token", "line one\nline two")
	require.ErrorContains(t, err, "single line")
	assert.Empty(t, *calls)
}

func TestStoreGetReturnsFirstLine(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		stdout string
		want   string
	}{
		{name: "trailing newline", stdout: "tok-123\n", want: "tok-123"},
		{name: "crlf", stdout: "tok-123\r\n", want: "tok-123"},
		{name: "metadata lines", stdout: "tok-123\nissued: today\n", want: "tok-123"},
		{name: "no newline", stdout: "tok-123", want: "tok-123"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls, run := scripted(output{stdout: tc.stdout}, nil)
			store := &Store{run: run}

			value, err := store.Get(context.Background(), "auth_token")
			require.NoError(t, err)
			assert.Equal(t, tc.want, value)
			assert.Equal(t, []string{"show", "auth_token"}, (*calls)[0].args)
			assert.Empty(t, (*calls)[0].stdin)
		})
	}
}

func TestStoreGetMapsMissingEntryToNotFound(t *testing.T) {
	t.Parallel()

	_, run := scripted(output{stderr: missingStderr}, errors.New("exit status 1"))
	store := &Store{prefix: "sessionkit", run: run}

	_, err := store.Get(context.Background(), "auth_token")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStoreRemoveIgnoresMissingEntry(t *testing.T) {
	t.Parallel()

	calls, run := scripted(output{stderr: missingStderr}, errors.New("exit status 1"))
	store := &Store{prefix: "sessionkit", run: run}

	require.NoError(t, store.Remove(context.Background(), "auth_token"))
	assert.Equal(t, []string{"rm", "--force", "sessionkit/auth_token"}, (*calls)[0].args)
}

func TestStoreGetReportsPassFailure(t *testing.T) {
	t.Parallel()

	_, run := scripted(output{stderr: "gpg: decryption failed"}, errors.New("exit status 2"))
	store := &Store{run: run}

	_, err := store.Get(context.Background(), "auth_token")
	require.Error(t, err)
	assert.ErrorContains(t, err, `pass get "auth_token"`)
	assert.ErrorContains(t, err, "decryption failed")
	assert.NotErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStoreSurfacesUnavailableCommand(t *testing.T) {
	t.Parallel()

	_, run := scripted(output{}, ErrUnavailable)
	store := &Store{run: run}

	err := store.Set(context.Background(), "auth_token", "tok")
	require.ErrorIs(t, err, ErrUnavailable)
}
