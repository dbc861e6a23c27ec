package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shop-service/internal/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestLockReleaseRequiresOwnerToken(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	token, ok, err := c.AcquireLock(ctx, "cart:u1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.AcquireLock(ctx, "cart:u1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "cart:u1", "someone-else"))
	assert.True(t, mr.Exists("lock:cart:u1"))

	require.NoError(t, c.ReleaseLock(ctx, "cart:u1", token))
	assert.False(t, mr.Exists("lock:cart:u1"))
}

func TestWithLockSerializesCallers(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.WithLock(ctx, "cart:u2", 2*time.Second, func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestWithLockGivesUpWithConflict(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.AcquireLock(ctx, "cart:u3", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	called := false
	err = c.WithLock(ctx, "cart:u3", 100*time.Millisecond, func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.False(t, called)
}

func TestIdempotencyKeys(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := c.ReserveIdempotencyKey(ctx, "k1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ReserveIdempotencyKey(ctx, "k1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetIdempotencyKey(ctx, "k1", "order-1", time.Hour))
	val, found, err := c.GetIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "order-1", val)

	mr.FastForward(2 * time.Hour)
	_, found, err = c.GetIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAllowFixedWindow(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.Allow(ctx, "auth:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := c.Allow(ctx, "auth:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, err = c.Allow(ctx, "auth:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
