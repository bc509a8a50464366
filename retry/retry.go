// Package retry 提供带抖动的指数退避重试，用于启动阶段连接 Redis、数据库等依赖。
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config 控制退避节奏，MaxRetries 为 0 时只执行一次。
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64
	MaxRetries     int
}

// DefaultConfig 是依赖连接使用的默认策略，总等待约 10 秒。
func DefaultConfig() Config {
	return Config{
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
		Multiplier:     2,
		Jitter:         0.1,
		MaxRetries:     4,
	}
}

// Do 执行 fn 直到成功、重试次数耗尽或 ctx 结束。
func Do[T any](ctx context.Context, cfg Config, fn func(attempt int) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	backoff := cfg.InitialBackoff
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		v, err := fn(attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == cfg.MaxRetries {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled after %d attempts: %w", attempt+1, lastErr)
		case <-timer.C:
		}
		backoff = cfg.next(backoff)
	}
	return zero, fmt.Errorf("gave up after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

func (cfg Config) next(cur time.Duration) time.Duration {
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}
	next := float64(cur) * mult
	if cfg.Jitter > 0 {
		next += (rand.Float64()*2 - 1) * cfg.Jitter * next
	}
	if cfg.MaxBackoff > 0 && time.Duration(next) > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return time.Duration(next)
}
