package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// GRPCServer 封装了 grpc.Server 的生命周期管理。
type GRPCServer struct {
	server *grpc.Server
	logger *slog.Logger
	addr   string
	opts   Options
}

// NewGRPCServer 构造 gRPC 服务器，自动挂载 otelgrpc 与反射服务。
func NewGRPCServer(addr string, logger *slog.Logger, register func(*grpc.Server), interceptors []grpc.UnaryServerInterceptor, serverOpts []grpc.ServerOption, options ...Options) *GRPCServer {
	grpcOpts := []grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}
	if len(interceptors) > 0 {
		grpcOpts = append(grpcOpts, grpc.ChainUnaryInterceptor(interceptors...))
	}
	grpcOpts = append(grpcOpts, serverOpts...)

	s := grpc.NewServer(grpcOpts...)
	if register != nil {
		register(s)
	}
	reflection.Register(s)

	return &GRPCServer{
		server: s,
		addr:   addr,
		logger: logger,
		opts:   resolveOptions(options),
	}
}

// Start 启动 TCP 监听并运行 gRPC 服务。
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve 在给定的监听器上运行。
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	s.logger.Info("starting grpc server", "addr", lis.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("grpc server stopping due to context cancellation")
		return s.Stop(context.Background())
	case err := <-errChan:
		return err
	}
}

// Stop 执行优雅关停，超时后强制停止。
func (s *GRPCServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping grpc server gracefully")

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(s.opts.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-stopped:
		return nil
	case <-timer.C:
		s.logger.Warn("grpc server graceful stop timeout, forcing stop")
		s.server.Stop()
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}
