// Package limiter 提供按键限流的本地令牌桶与 Redis 滑动窗口两种实现。
package limiter

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/wyfcoding/demaxmin/config"
)

// Limiter 定义了限流器的通用行为，key 通常为客户端 IP。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// LocalLimiter 为每个 key 维护一个令牌桶，只在单实例内生效。
type LocalLimiter struct {
	rate    rate.Limit
	burst   int
	buckets sync.Map // key -> *rate.Limiter
}

// NewLocalLimiter 创建本地限流器，r 为每秒令牌数，b 为桶容量。
func NewLocalLimiter(r rate.Limit, b int) *LocalLimiter {
	if b <= 0 {
		b = 1
	}
	return &LocalLimiter{rate: r, burst: b}
}

// Allow 实现 Limiter。
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	v, ok := l.buckets.Load(key)
	if !ok {
		v, _ = l.buckets.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	}
	return v.(*rate.Limiter).Allow(), nil
}

// RedisLimiter 使用 ZSet 实现滑动窗口，多实例共享限流状态。
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	seq    atomic.Uint64
}

// NewRedisLimiter 创建分布式限流器，window 内最多放行 limit 个请求。
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow 实现 Limiter，被拒绝的请求同样计入窗口。
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	fullKey := l.prefix + ":" + key
	now := time.Now().UnixNano()
	windowStart := now - l.window.Nanoseconds()
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatUint(l.seq.Add(1), 10)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "0", strconv.FormatInt(windowStart, 10))
	count := pipe.ZCard(ctx, fullKey)
	pipe.ZAdd(ctx, fullKey, redis.Z{Score: float64(now), Member: member})
	pipe.Expire(ctx, fullKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}

	return count.Val() < int64(l.limit), nil
}

// New 根据配置创建限流器，backend 为 redis 时要求 client 非空。
func New(cfg config.RateLimitConfig, client *redis.Client) (Limiter, error) {
	switch cfg.Backend {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis limiter requires a redis client")
		}
		window := cfg.Window
		if window <= 0 {
			window = time.Second
		}
		return NewRedisLimiter(client, "demaxmin:ratelimit", cfg.Rate, window), nil
	case "local", "":
		return NewLocalLimiter(rate.Limit(cfg.Rate), cfg.Burst), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend %q", cfg.Backend)
	}
}
