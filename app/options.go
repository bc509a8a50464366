package app

import (
	"time"

	"github.com/wyfcoding/demaxmin/server"
)

// Option 是一个函数类型，用于配置应用程序选项。
type Option func(*options)

type options struct {
	servers         []server.Server
	cleanups        []func()
	lifecycle       *Lifecycle
	shutdownTimeout time.Duration
}

// WithServer 添加一个或多个服务器，它们随应用启动并在退出时优雅关闭。
func WithServer(servers ...server.Server) Option {
	return func(o *options) {
		o.servers = append(o.servers, servers...)
	}
}

// WithCleanup 添加一个清理函数，按注册的逆序在退出时执行。
func WithCleanup(cleanup func()) Option {
	return func(o *options) {
		if cleanup != nil {
			o.cleanups = append(o.cleanups, cleanup)
		}
	}
}

// WithLifecycle 设置组件生命周期管理器，在服务器启动前 Start，在服务器停止后 Stop。
func WithLifecycle(l *Lifecycle) Option {
	return func(o *options) {
		o.lifecycle = l
	}
}

// WithShutdownTimeout 设置优雅关闭的最长等待时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}
