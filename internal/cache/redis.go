package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cufy/campusmatch/internal/config"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes the Redis client from config.
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

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.Client.Incr(ctx, key).Result()
}

func (c *RedisCache) Decr(ctx context.Context, key string) (int64, error) {
	return c.Client.Decr(ctx, key).Result()
}

// KeyForAssignedCount is the per-female counter of assignments currently
// pointing at her profile. Kept warm by the lifecycle service so the admin
// matches view avoids a count query per female user.
func (c *RedisCache) KeyForAssignedCount(femaleUserID string) string {
	return fmt.Sprintf("assignments:count:%s", femaleUserID)
}

// KeyForAdminStats caches the admin analytics payload.
func (c *RedisCache) KeyForAdminStats() string {
	return "admin:stats"
}

// GetAssignedCount returns the cached counter, 0 on a miss. The TTL is
// refreshed on access since the admin console polls this.
func (c *RedisCache) GetAssignedCount(ctx context.Context, femaleUserID string) (int64, error) {
	key := c.KeyForAssignedCount(femaleUserID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	_ = c.Client.Expire(ctx, key, time.Hour).Err()
	return strconv.ParseInt(val, 10, 64)
}

// SetAssignedCount stores the counter with a 1h TTL.
func (c *RedisCache) SetAssignedCount(ctx context.Context, femaleUserID string, count int64) error {
	return c.Client.Set(ctx, c.KeyForAssignedCount(femaleUserID), count, time.Hour).Err()
}
