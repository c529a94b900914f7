package memory

import (
	"context"
	"testing"

	"github.com/bnema/sessionkit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "auth_token")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "auth_token", "tok"))
	value, err := store.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.Equal(t, "tok", value)

	require.NoError(t, store.Remove(ctx, "auth_token"))
	require.NoError(t, store.Remove(ctx, "auth_token"))
	assert.Equal(t, 0, store.Len())
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	store := NewStoreWith(map[string]string{"auth_token": "tok"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "auth_token")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, store.Set(ctx, "auth_token", "other"), context.Canceled)
	require.ErrorIs(t, store.Remove(ctx, "auth_token"), context.Canceled)
	assert.Equal(t, 1, store.Len())
}
