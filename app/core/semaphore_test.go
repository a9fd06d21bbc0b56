package core

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexor/contexor/pkg/testutils"
)

func TestLocalSemaphore(t *testing.T) {
	ctx := context.Background()
	sem := NewLocalSemaphore(2)

	assert.True(t, sem.TryAcquire(ctx))
	assert.True(t, sem.TryAcquire(ctx))
	assert.False(t, sem.TryAcquire(ctx))

	sem.Release(ctx)
	assert.True(t, sem.TryAcquire(ctx))

	// 多余的释放不会让容量变大
	sem.Release(ctx)
	sem.Release(ctx)
	sem.Release(ctx)
	assert.True(t, sem.TryAcquire(ctx))
	assert.True(t, sem.TryAcquire(ctx))
	assert.False(t, sem.TryAcquire(ctx))
}

func TestAcquireHonorsContext(t *testing.T) {
	sem := NewLocalSemaphore(1)
	require.True(t, sem.TryAcquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, Acquire(ctx, sem, 10*time.Millisecond), context.DeadlineExceeded)

	sem.Release(context.Background())
	assert.NoError(t, Acquire(context.Background(), sem, 10*time.Millisecond))
}

func TestDistributedSemaphore(t *testing.T) {
	addr := testutils.RequireEnv(t, "CONTEXOR_TEST_REDIS_ADDR")
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 1})
	defer client.Close()

	ctx := context.Background()
	key := "contexor:test:semaphore"
	client.Del(ctx, key)

	sem := NewDistributedSemaphore(client, key, 1, time.Minute)
	assert.True(t, sem.TryAcquire(ctx))
	assert.False(t, sem.TryAcquire(ctx))
	assert.Equal(t, 1, sem.GetCurrent(ctx))

	sem.Release(ctx)
	sem.Release(ctx)
	assert.Equal(t, 0, sem.GetCurrent(ctx))
}
