package kvpkg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.SetEx(ctx, "k", "v", time.Hour))

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestMemoryExpiry(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	kv.Now = func() time.Time { return now }

	require.NoError(t, kv.SetEx(ctx, "k", "v", time.Minute))

	now = now.Add(30 * time.Second)

	_, err := kv.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(31 * time.Second)

	_, err = kv.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryIncr(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := kv.Incr(ctx, "counter")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	require.NoError(t, kv.Expire(ctx, "counter", time.Minute))

	now := time.Now()
	kv.Now = func() time.Time { return now.Add(2 * time.Minute) }

	// The counter restarts after its window expires.
	got, err := kv.Incr(ctx, "counter")
	require.NoError(t, err)
	require.EqualValues(t, 1, got)
}

func TestMemoryExpireMissingKey(t *testing.T) {
	kv := NewMemory()

	require.ErrorIs(t, kv.Expire(context.Background(), "missing", time.Minute), ErrNotFound)
}
