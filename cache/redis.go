package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/demaxmin/breaker"
)

// RedisCache 使用 Redis 实现 Cache，所有命令经过熔断器。
type RedisCache struct {
	client *redis.Client
	prefix string
	cb     *breaker.Breaker
	stats  *Stats
}

// RedisOption 配置 RedisCache。
type RedisOption func(*RedisCache)

// WithPrefix 为所有键加上 "prefix:" 前缀。
func WithPrefix(prefix string) RedisOption {
	return func(c *RedisCache) { c.prefix = prefix }
}

// WithBreaker 设置熔断器，熔断器应以 IsMiss 作为 IsSuccessful 判定。
func WithBreaker(b *breaker.Breaker) RedisOption {
	return func(c *RedisCache) { c.cb = b }
}

// WithStats 启用指标采集。
func WithStats(s *Stats) RedisOption {
	return func(c *RedisCache) { c.stats = s }
}

// NewRedisCache 基于已有客户端创建缓存，客户端的生命周期由调用方管理。
func NewRedisCache(client *redis.Client, opts ...RedisOption) *RedisCache {
	c := &RedisCache{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) buildKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get 读取并反序列化缓存值。
func (c *RedisCache) Get(ctx context.Context, key string, value any) error {
	defer c.stats.since(c.prefix, "get", time.Now())

	data, err := breaker.ExecuteTyped(c.cb, func() ([]byte, error) {
		data, err := c.client.Get(ctx, c.buildKey(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return data, err
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			c.stats.miss(c.prefix)
		}
		return err
	}
	c.stats.hit(c.prefix)

	return json.Unmarshal(data, value)
}

// Set 序列化并写入缓存值，expiration 为 0 表示不过期。
func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	defer c.stats.since(c.prefix, "set", time.Now())

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return c.cb.Execute(func() error {
		return c.client.Set(ctx, c.buildKey(key), data, expiration).Err()
	})
}

// Delete 删除一个或多个键，不存在的键被忽略。
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	defer c.stats.since(c.prefix, "delete", time.Now())

	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = c.buildKey(key)
	}

	return c.cb.Execute(func() error {
		return c.client.Del(ctx, fullKeys...).Err()
	})
}

// Exists 检查键是否存在。
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	defer c.stats.since(c.prefix, "exists", time.Now())

	return breaker.ExecuteTyped(c.cb, func() (bool, error) {
		n, err := c.client.Exists(ctx, c.buildKey(key)).Result()
		return n > 0, err
	})
}

// Close 不关闭共享的客户端。
func (c *RedisCache) Close() error {
	return nil
}

// Client 返回底层的 Redis 客户端。
func (c *RedisCache) Client() *redis.Client {
	return c.client
}
