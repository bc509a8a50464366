package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/wyfcoding/demaxmin/config"
)

// BigCache 使用 allegro/bigcache 实现进程内 Cache。
// bigcache 只支持全局 TTL，Set 的 expiration 参数被忽略。
type BigCache struct {
	cache *bigcache.BigCache
}

// NewBigCache 创建本地缓存，ttl 为所有条目的存活时间。
func NewBigCache(ttl time.Duration, cfg config.BigCacheConfig) (*BigCache, error) {
	bc := bigcache.DefaultConfig(ttl)
	if cfg.Shards > 0 {
		bc.Shards = cfg.Shards
	}
	if cfg.CleanWindow > 0 {
		bc.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntrySize > 0 {
		bc.MaxEntrySize = cfg.MaxEntrySize
	}
	bc.HardMaxCacheSize = cfg.HardMaxCacheSize
	bc.Verbose = false

	c, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, fmt.Errorf("init bigcache failed: %w", err)
	}

	return &BigCache{cache: c}, nil
}

// Get 读取并反序列化缓存值。
func (c *BigCache) Get(_ context.Context, key string, value any) error {
	data, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, value)
}

// Set 序列化并写入缓存值。
func (c *BigCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return c.cache.Set(key, data)
}

// Delete 删除一个或多个键，不存在的键被忽略。
func (c *BigCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Exists 检查键是否存在。
func (c *BigCache) Exists(_ context.Context, key string) (bool, error) {
	_, err := c.cache.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bigcache.ErrEntryNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Len 返回当前条目数。
func (c *BigCache) Len() int {
	return c.cache.Len()
}

// Close 释放后台清理协程。
func (c *BigCache) Close() error {
	return c.cache.Close()
}
