package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestMutexAcquireRelease(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	m := NewMutex(client, "test:lock", time.Second, 100*time.Millisecond)

	token, err := m.Acquire(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, m.Release(ctx, token))

	// Free again after release.
	token2, err := m.Acquire(ctx)
	require.NoError(t, err)
	require.NotEqual(t, token, token2)
	require.NoError(t, m.Release(ctx, token2))
}

func TestMutexContended(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	m := NewMutex(client, "test:lock", time.Second, 60*time.Millisecond)

	token, err := m.Acquire(ctx)
	require.NoError(t, err)

	// A second holder times out within the bounded wait.
	_, err = m.Acquire(ctx)
	require.ErrorIs(t, err, ErrContended)

	require.NoError(t, m.Release(ctx, token))
}

func TestMutexReleaseRequiresToken(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	m := NewMutex(client, "test:lock", time.Second, 60*time.Millisecond)

	token, err := m.Acquire(ctx)
	require.NoError(t, err)

	// Releasing with a stale token leaves the lock held.
	require.NoError(t, m.Release(ctx, "stale"))
	_, err = m.Acquire(ctx)
	require.ErrorIs(t, err, ErrContended)

	require.NoError(t, m.Release(ctx, token))
}

func TestPartitionLockKeyStable(t *testing.T) {
	a := PartitionLockKey("cash", 1, 40)
	require.Equal(t, a, PartitionLockKey("cash", 1, 40))
	require.NotEqual(t, a, PartitionLockKey("stock", 1, 40))
	require.NotEqual(t, a, PartitionLockKey("cash", 2, 40))
	require.NotEqual(t, a, PartitionLockKey("cash", 1, 41))
}
