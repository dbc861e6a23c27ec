package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/util"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/rate_limit.lua
var rateLimitScript string

const lockRetryInterval = 50 * time.Millisecond

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	rateScript    *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return Wrap(rdb), nil
}

// Wrap builds a Client around an existing connection
func Wrap(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		rateScript:    redis.NewScript(rateLimitScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks the connection, used by readiness probes
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock tries once to take lockKey. The returned token must be handed
// back to ReleaseLock.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock failed: %w", err)
	}
	return token, ok, nil
}

// ReleaseLock deletes lockKey only while token still owns it, so an expired
// holder never frees somebody else's lock.
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// WithLock runs fn while holding lockKey. It retries until the lock frees up
// or ttl elapses, then gives up with Conflict.
func (c *Client) WithLock(ctx context.Context, lockKey string, ttl time.Duration, fn func(ctx context.Context) error) error {
	deadline := time.Now().Add(ttl)
	for {
		token, ok, err := c.AcquireLock(ctx, lockKey, ttl)
		if err != nil {
			return err
		}
		if ok {
			defer func() {
				if err := c.ReleaseLock(context.Background(), lockKey, token); err != nil {
					util.GetLogger().Warn("Failed to release lock",
						zap.String("lock", lockKey), zap.Error(err))
				}
			}()
			return fn(ctx)
		}

		util.CartLockContentionTotal.Inc()
		if time.Now().After(deadline) {
			return apperr.Conflict("Resource is busy, please retry")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// ReserveIdempotencyKey claims key for a new request. It returns false when
// the key is already held, either pending or completed.
func (c *Client) ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), "", ttl).Result()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// GetIdempotencyKey returns the stored value; found is false when the key is
// unknown or expired.
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// DeleteIdempotencyKey frees a key whose request failed
func (c *Client) DeleteIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}

// Allow counts a hit for bucket in a fixed window and reports whether it is
// within limit.
func (c *Client) Allow(ctx context.Context, bucket string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s", bucket)
	count, err := c.rateScript.Run(ctx, c.rdb, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script failed: %w", err)
	}
	return count <= int64(limit), nil
}
