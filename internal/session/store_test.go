package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", 0))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	require.NoError(t, store.Del(ctx, "k"))
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTTL(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	_, err := store.Get(ctx, "k")
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreMissing(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "absent")
	require.ErrorIs(t, err, ErrNotFound)
}
