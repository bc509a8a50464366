package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wyfcoding/demaxmin/logging"
)

const defaultL1TTL = 30 * time.Second

// MultiLevelCache 是进程内 L1 加共享 L2 的两级缓存，L2 为权威数据源。
// 其它副本删除的键只在 L2 上生效，因此 L1 副本最多保留 l1TTL。
type MultiLevelCache struct {
	l1     Cache
	l2     Cache
	l1TTL  time.Duration
	tracer trace.Tracer
	logger *logging.Logger
}

// MultiLevelOption 配置 MultiLevelCache。
type MultiLevelOption func(*MultiLevelCache)

// WithL1TTL 设置 L1 副本的最长保留时间。
func WithL1TTL(ttl time.Duration) MultiLevelOption {
	return func(c *MultiLevelCache) {
		if ttl > 0 {
			c.l1TTL = ttl
		}
	}
}

// NewMultiLevelCache 组合本地与分布式缓存。
func NewMultiLevelCache(l1, l2 Cache, logger *logging.Logger, opts ...MultiLevelOption) *MultiLevelCache {
	c := &MultiLevelCache{
		l1:     l1,
		l2:     l2,
		l1TTL:  defaultL1TTL,
		tracer: otel.Tracer("github.com/wyfcoding/demaxmin/cache"),
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MultiLevelCache) localTTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < c.l1TTL {
		return expiration
	}
	return c.l1TTL
}

// Get 先查 L1，未命中再查 L2 并回填。
func (c *MultiLevelCache) Get(ctx context.Context, key string, value any) error {
	ctx, span := c.tracer.Start(ctx, "cache.multilevel.get", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if err := c.l1.Get(ctx, key, value); err == nil {
		span.SetAttributes(attribute.String("cache.tier", "l1"))
		return nil
	}

	err := c.l2.Get(ctx, key, value)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			span.SetAttributes(attribute.String("cache.tier", "miss"))
			return err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "l2 get failed")
		return fmt.Errorf("l2 get %s: %w", key, err)
	}

	span.SetAttributes(attribute.String("cache.tier", "l2"))
	if err := c.l1.Set(ctx, key, value, c.l1TTL); err != nil {
		c.logger.WarnContext(ctx, "l1 backfill failed", "key", key, "error", err)
	}
	return nil
}

// Set 写入 L2 成功后才写 L1，保证 L1 中没有 L2 不存在的值。
func (c *MultiLevelCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	ctx, span := c.tracer.Start(ctx, "cache.multilevel.set", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if err := c.l2.Set(ctx, key, value, expiration); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "l2 set failed")
		// L2 写入失败时旧的 L1 副本不再可信。
		_ = c.l1.Delete(ctx, key)
		return fmt.Errorf("l2 set %s: %w", key, err)
	}
	if err := c.l1.Set(ctx, key, value, c.localTTL(expiration)); err != nil {
		c.logger.WarnContext(ctx, "l1 set failed", "key", key, "error", err)
	}
	return nil
}

// Delete 同时删除两级中的键，返回 L2 的结果。
func (c *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	if err := c.l1.Delete(ctx, keys...); err != nil {
		c.logger.WarnContext(ctx, "l1 delete failed", "keys", keys, "error", err)
	}
	return c.l2.Delete(ctx, keys...)
}

// Exists 以 L2 为准。
func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	return c.l2.Exists(ctx, key)
}

// Close 关闭两级缓存。
func (c *MultiLevelCache) Close() error {
	return errors.Join(c.l1.Close(), c.l2.Close())
}
