// Package health 汇总依赖的健康检查，供 HTTP 与 gRPC 健康接口使用。
package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Checker 定义健康检查函数原型。
type Checker func(ctx context.Context) error

// Pinger 是可探活的依赖，例如 database.DB。
type Pinger interface {
	Ping(ctx context.Context) error
}

// DBChecker 返回数据库健康检查函数。
func DBChecker(db Pinger) Checker {
	return func(ctx context.Context) error {
		if db == nil {
			return errors.New("database is nil")
		}
		return db.Ping(ctx)
	}
}

// RedisChecker 返回 Redis 健康检查函数。
func RedisChecker(client redis.UniversalClient) Checker {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		return client.Ping(ctx).Err()
	}
}

// Status 是一次健康检查的结果。
type Status struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks"`
}

// Registry 保存具名的健康检查。
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewRegistry 创建注册表，timeout 约束单项检查耗时。
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Registry{checkers: make(map[string]Checker), timeout: timeout}
}

// Register 添加或覆盖一项检查。
func (r *Registry) Register(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = c
}

// Names 返回按字典序排列的检查名。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check 并发执行全部检查。
func (r *Registry) Check(ctx context.Context) Status {
	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for k, v := range r.checkers {
		checkers[k] = v
	}
	r.mu.RUnlock()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
		st = Status{Healthy: true, Checks: make(map[string]string, len(checkers))}
	)
	for name, check := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			result := "ok"
			if err := check(cctx); err != nil {
				result = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			st.Checks[name] = result
			if result != "ok" {
				st.Healthy = false
			}
		}()
	}
	wg.Wait()
	return st
}
