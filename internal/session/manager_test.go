package session

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testScope     = "visitor1"
	testIDKey     = "melingo:visitor1:session_id"
	testExpiryKey = "melingo:visitor1:session_expires"
)

func newTestManager(t *testing.T, timeout time.Duration) (*Manager, *MemoryStore, *time.Time) {
	t.Helper()

	store := NewMemoryStore()
	m := NewManager(store, testScope, timeout)

	current := time.Now()
	m.now = func() time.Time { return current }
	store.now = m.now

	return m, store, &current
}

func storedExpiry(t *testing.T, store *MemoryStore) time.Time {
	t.Helper()

	raw, err := store.Get(context.Background(), testExpiryKey)
	require.NoError(t, err)
	millis, err := strconv.ParseInt(raw, 10, 64)
	require.NoError(t, err)
	return time.UnixMilli(millis)
}

func TestGetOrCreateContinuity(t *testing.T) {
	m, store, now := newTestManager(t, 30*time.Minute)
	ctx := context.Background()

	id1, err := m.GetOrCreate(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	*now = now.Add(10 * time.Minute)

	id2, err := m.GetOrCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, id1, id2, "a live session must be reused")

	// Expiry slid to now + timeout at the second touch.
	require.Equal(t, now.Add(30*time.Minute).UnixMilli(), storedExpiry(t, store).UnixMilli())
}

func TestGetOrCreateSurvivesStorageTTL(t *testing.T) {
	m, _, now := newTestManager(t, 30*time.Minute)
	ctx := context.Background()

	id, err := m.GetOrCreate(ctx)
	require.NoError(t, err)

	// Every touch lands inside the window but the session runs far past the
	// storage TTL laid down at creation. The TTL must slide with the window,
	// never end an active session on its own.
	for i := 0; i < 6; i++ {
		*now = now.Add(25 * time.Minute)
		got, err := m.GetOrCreate(ctx)
		require.NoError(t, err)
		require.Equal(t, id, got, "continuously active session must keep its id")
	}
}

func TestGetOrCreateExpiry(t *testing.T) {
	m, store, now := newTestManager(t, 30*time.Minute)
	ctx := context.Background()

	id1, err := m.GetOrCreate(ctx)
	require.NoError(t, err)

	*now = now.Add(31 * time.Minute)

	id2, err := m.GetOrCreate(ctx)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2, "an expired session must be replaced")

	stored, err := store.Get(ctx, testIDKey)
	require.NoError(t, err)
	require.Equal(t, id2, stored)
}

func TestGetOrCreateCorruptExpiry(t *testing.T) {
	m, store, _ := newTestManager(t, 30*time.Minute)
	ctx := context.Background()

	id1, err := m.GetOrCreate(ctx)
	require.NoError(t, err)

	// A persisted expiry that does not parse counts as expired, never as
	// trusted state.
	require.NoError(t, store.Set(ctx, testExpiryKey, "not-a-number", 0))

	id2, err := m.GetOrCreate(ctx)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestGetOrCreateMissingExpiry(t *testing.T) {
	m, store, _ := newTestManager(t, 30*time.Minute)
	ctx := context.Background()

	id1, err := m.GetOrCreate(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Del(ctx, testExpiryKey))

	id2, err := m.GetOrCreate(ctx)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestExtendSlidesWindow(t *testing.T) {
	m, store, now := newTestManager(t, 30*time.Minute)
	ctx := context.Background()

	_, err := m.GetOrCreate(ctx)
	require.NoError(t, err)
	before := storedExpiry(t, store)

	*now = now.Add(5 * time.Second)
	require.NoError(t, m.Extend(ctx))

	after := storedExpiry(t, store)
	require.True(t, after.After(before), "extend must strictly increase the stored expiry")
	require.Equal(t, now.Add(30*time.Minute).UnixMilli(), after.UnixMilli())
}

func TestClearRemovesBothKeys(t *testing.T) {
	m, store, _ := newTestManager(t, 30*time.Minute)
	ctx := context.Background()

	_, err := m.GetOrCreate(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Clear(ctx))

	_, err = store.Get(ctx, testIDKey)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, testExpiryKey)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, m.Current())
}

func TestSessionIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	now := time.Now()
	for i := 0; i < 1000; i++ {
		id := newSessionID(now)
		require.False(t, seen[id], "session ids must not collide")
		seen[id] = true
	}
}
