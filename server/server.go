// Package server 提供了启动和管理 gRPC 与 HTTP 服务器的封装。
package server

import (
	"context"
	"time"
)

// DefaultShutdownTimeout 是优雅关闭的默认等待时间。
const DefaultShutdownTimeout = 10 * time.Second

// Server 定义了服务器生命周期契约。
type Server interface {
	// Start 阻塞运行直到 ctx 取消或服务器出错。
	Start(ctx context.Context) error
	// Stop 优雅停止，等待进行中的请求完成。
	Stop(ctx context.Context) error
}

// Options 定义服务器的通用选项。
type Options struct {
	ShutdownTimeout time.Duration
}

func resolveOptions(options []Options) Options {
	opts := Options{ShutdownTimeout: DefaultShutdownTimeout}
	if len(options) > 0 && options[0].ShutdownTimeout > 0 {
		opts = options[0]
	}
	return opts
}
