package app

import (
	"context"
	"log/slog"
	"sync"
)

// Hook 定义了生命周期钩子，包含启动和停止逻辑
type Hook struct {
	Name    string
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// Lifecycle 管理应用程序中多个组件的生命周期
type Lifecycle struct {
	logger  *slog.Logger
	hooks   []Hook
	started int
	mu      sync.Mutex
}

// NewLifecycle 创建一个新的生命周期管理器
func NewLifecycle(logger *slog.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Append 添加一个生命周期钩子
func (l *Lifecycle) Append(hook Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

// Start 按顺序启动所有组件，失败时回滚已启动的组件。
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, hook := range l.hooks {
		if hook.OnStart != nil {
			l.logger.Info("Lifecycle: starting component", "name", hook.Name)
			if err := hook.OnStart(ctx); err != nil {
				l.logger.Error("Lifecycle: failed to start component", "name", hook.Name, "error", err)
				l.started = i
				_ = l.stopLocked(ctx)
				return err
			}
		}
		l.started = i + 1
	}
	return nil
}

// Stop 以相反的顺序停止已启动的组件
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopLocked(ctx)
}

func (l *Lifecycle) stopLocked(ctx context.Context) error {
	var firstErr error
	for i := l.started - 1; i >= 0; i-- {
		hook := l.hooks[i]
		if hook.OnStop != nil {
			l.logger.Info("Lifecycle: stopping component", "name", hook.Name)
			if err := hook.OnStop(ctx); err != nil {
				l.logger.Error("Lifecycle: failed to stop component", "name", hook.Name, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	l.started = 0
	return firstErr
}
