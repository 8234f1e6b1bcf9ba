package distributed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *redis.Client {
	addr := os.Getenv("CAMRELAY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CAMRELAY_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDistributedLock(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	key := "camrelay:test:lock"
	client.Del(ctx, key)

	first := NewDistributedLock(client, key, time.Minute)
	second := NewDistributedLock(client, key, time.Minute)

	acquired, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, acquired)

	err = second.LockWithTimeout(ctx, 250*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, second.Unlock(ctx), ErrLockNotHeld)

	require.NoError(t, first.Unlock(ctx))
	require.NoError(t, second.LockWithTimeout(ctx, time.Second))
	require.NoError(t, second.Unlock(ctx))
}
