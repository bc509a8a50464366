// Package cache 提供了缓存抽象和多种缓存实现，包括本地缓存、分布式缓存和多级缓存。
// 服务用它保存运输问题会话，值统一以 JSON 序列化。
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wyfcoding/demaxmin/metrics"
)

// ErrCacheMiss 表示键不存在或已过期。
var ErrCacheMiss = errors.New("cache miss")

// Cache 定义缓存接口，Get 的 value 必须为指针。
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// IsMiss 判断错误是否为缓存未命中，可作为熔断器的 IsSuccessful 判定。
func IsMiss(err error) bool {
	return err == nil || errors.Is(err, ErrCacheMiss)
}

// Stats 记录缓存命中、未命中与操作耗时。
type Stats struct {
	hits     *prometheus.CounterVec
	misses   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewStats 在 m 上注册缓存指标。
func NewStats(m *metrics.Metrics) *Stats {
	return &Stats{
		hits: m.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "The total number of cache hits",
		}, []string{"prefix"}),
		misses: m.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "The total number of cache misses",
		}, []string{"prefix"}),
		duration: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "The duration of cache operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"prefix", "operation"}),
	}
}

func (s *Stats) hit(prefix string) {
	if s != nil {
		s.hits.WithLabelValues(prefix).Inc()
	}
}

func (s *Stats) miss(prefix string) {
	if s != nil {
		s.misses.WithLabelValues(prefix).Inc()
	}
}

func (s *Stats) since(prefix, op string, start time.Time) {
	if s != nil {
		s.duration.WithLabelValues(prefix, op).Observe(time.Since(start).Seconds())
	}
}
