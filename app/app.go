// Package app 提供了应用程序的构建和管理功能，包括服务的启动、停止和资源清理。
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/wyfcoding/demaxmin/server"
)

// App 是应用程序的核心容器，负责管理服务器与组件的生命周期。
type App struct {
	name   string
	logger *slog.Logger
	opts   options
}

// New 创建一个新的应用程序实例。
func New(name string, logger *slog.Logger, opts ...Option) *App {
	o := options{shutdownTimeout: server.DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lifecycle == nil {
		o.lifecycle = NewLifecycle(logger)
	}
	return &App{name: name, logger: logger, opts: o}
}

// Run 启动应用程序并阻塞直到收到 SIGINT/SIGTERM。
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext 启动所有组件与服务器，ctx 取消或任一服务器失败时执行优雅关闭。
func (a *App) RunContext(ctx context.Context) error {
	a.logger.Info("application starting", "name", a.name, "pid", os.Getpid())

	if err := a.opts.lifecycle.Start(ctx); err != nil {
		a.cleanup()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		serveErr error
	)
	for _, srv := range a.opts.servers {
		wg.Add(1)
		go func(s server.Server) {
			defer wg.Done()
			if err := s.Start(runCtx); err != nil {
				a.logger.Error("server exited with error", "error", err)
				errOnce.Do(func() { serveErr = err })
				cancel()
			}
		}(srv)
	}

	<-runCtx.Done()
	a.logger.Info("shutting down application", "name", a.name)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.opts.shutdownTimeout)
	defer shutdownCancel()

	// Start 在 runCtx 取消后自行停止服务器，这里等待它们全部退出。
	wg.Wait()

	err := errors.Join(serveErr, a.opts.lifecycle.Stop(shutdownCtx))
	a.cleanup()

	if err != nil {
		return err
	}
	a.logger.Info("application shut down gracefully")
	return nil
}

func (a *App) cleanup() {
	for i := len(a.opts.cleanups) - 1; i >= 0; i-- {
		a.opts.cleanups[i]()
	}
}
