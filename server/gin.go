package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GinServer 封装了运行 Gin 引擎的 http.Server，提供优雅启停。
type GinServer struct {
	server *http.Server
	addr   string
	logger *slog.Logger
	opts   Options
}

// NewGinServer 创建 HTTP 服务器，readTimeout/writeTimeout 为 0 时不限制。
func NewGinServer(engine *gin.Engine, addr string, readTimeout, writeTimeout time.Duration, logger *slog.Logger, options ...Options) *GinServer {
	return &GinServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      writeTimeout,
		},
		addr:   addr,
		logger: logger,
		opts:   resolveOptions(options),
	}
}

// Start 监听端口并阻塞，ctx 取消时触发优雅关闭。
func (s *GinServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve 在给定的监听器上运行。
func (s *GinServer) Serve(ctx context.Context, lis net.Listener) error {
	s.logger.Info("starting gin server", "addr", lis.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("gin server stopping due to context cancellation")
		return s.Stop(context.Background())
	case err := <-errChan:
		return err
	}
}

// Stop 在 ShutdownTimeout 内等待请求完成。
func (s *GinServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping gin server gracefully")
	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
