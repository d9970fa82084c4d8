package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slowtunes/slowtunes/internal/config"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForCycle generates the Redis key for a user's browsing cycle.
func (c *RedisCache) KeyForCycle(userID uint64) string {
	return fmt.Sprintf("cycle:%d", userID)
}

// PopCycleID pops the next match id off the user's pending cycle.
// ok is false when the cycle is empty or expired.
func (c *RedisCache) PopCycleID(ctx context.Context, userID uint64) (uint64, bool, error) {
	val, err := c.Client.LPop(ctx, c.KeyForCycle(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cycle entry %q: %w", val, err)
	}
	return id, true, nil
}

// FillCycle replaces the user's pending cycle with ids, front of the slice
// popped first, and arms the TTL so abandoned cycles self-expire.
func (c *RedisCache) FillCycle(ctx context.Context, userID uint64, ids []uint64, ttl time.Duration) error {
	if len(ids) == 0 {
		return nil
	}
	key := c.KeyForCycle(userID)
	vals := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		vals = append(vals, strconv.FormatUint(id, 10))
	}

	pipe := c.Client.Pipeline()
	pipe.Del(ctx, key)
	pipe.RPush(ctx, key, vals...)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// DropCycle discards the user's pending cycle, forcing a rebuild on next pop.
func (c *RedisCache) DropCycle(ctx context.Context, userID uint64) error {
	return c.Client.Del(ctx, c.KeyForCycle(userID)).Err()
}

// CycleLen returns the number of ids remaining in the user's cycle.
func (c *RedisCache) CycleLen(ctx context.Context, userID uint64) (int64, error) {
	return c.Client.LLen(ctx, c.KeyForCycle(userID)).Result()
}
