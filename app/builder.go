package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/health"
	"github.com/wyfcoding/demaxmin/limiter"
	"github.com/wyfcoding/demaxmin/logging"
	"github.com/wyfcoding/demaxmin/metrics"
	"github.com/wyfcoding/demaxmin/middleware"
	"github.com/wyfcoding/demaxmin/response"
	"github.com/wyfcoding/demaxmin/server"
	"github.com/wyfcoding/demaxmin/tracing"
)

const (
	defaultMetricsPath = "/metrics"
	healthPath         = "/sys/health"
)

// Runtime 是传给业务初始化函数的公共基础设施。
type Runtime struct {
	Config    *config.Config
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
	Health    *health.Registry
	Lifecycle *Lifecycle
	// Limiter 为空且启用限流时，Build 按配置创建本地限流器。
	Limiter limiter.Limiter
}

// Builder 提供了构建 App 的灵活方式，S 为业务服务类型。
type Builder[S any] struct {
	serviceName string
	cfg         *config.Config
	initService func(*Runtime) (S, func(), error)
	registerGin func(*gin.Engine, S)
}

// NewBuilder 创建一个新的应用构建器。
func NewBuilder[S any](serviceName string, cfg *config.Config) *Builder[S] {
	return &Builder[S]{serviceName: serviceName, cfg: cfg}
}

// WithService 注册核心业务初始化逻辑。
func (b *Builder[S]) WithService(init func(*Runtime) (S, func(), error)) *Builder[S] {
	b.initService = init
	return b
}

// WithGin 注册 Gin 路由注册钩子。
func (b *Builder[S]) WithGin(register func(*gin.Engine, S)) *Builder[S] {
	b.registerGin = register
	return b
}

// Build 构建并组装完整的 App 实例。
func (b *Builder[S]) Build() (*App, error) {
	if b.cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if b.initService == nil {
		return nil, errors.New("app: service initializer is required")
	}
	cfg := b.cfg

	logger := b.initLogger()
	opts := []Option{WithShutdownTimeout(cfg.Server.ShutdownTimeout)}

	shutdownTracer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	opts = append(opts, WithCleanup(func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", "error", err)
		}
	}))

	m := metrics.NewMetrics(b.serviceName)
	m.RegisterBuildInfo(b.serviceName, cfg.Version)
	if cfg.Metrics.Enabled && cfg.Metrics.Port != "" {
		opts = append(opts, WithCleanup(m.ExposeHTTP(cfg.Metrics.Port)))
	}

	rt := &Runtime{
		Config:    cfg,
		Logger:    logger,
		Metrics:   m,
		Health:    health.NewRegistry(2 * time.Second),
		Lifecycle: NewLifecycle(logger.Logger),
	}

	svc, cleanup, err := b.initService(rt)
	if err != nil {
		return nil, fmt.Errorf("init service: %w", err)
	}
	opts = append(opts, WithCleanup(cleanup), WithLifecycle(rt.Lifecycle))

	if cfg.RateLimit.Enabled && rt.Limiter == nil {
		if rt.Limiter, err = limiter.New(cfg.RateLimit, nil); err != nil {
			cleanup()
			return nil, fmt.Errorf("init rate limiter: %w", err)
		}
	}

	var servers []server.Server
	if b.registerGin != nil {
		engine := b.NewEngine(rt)
		b.registerGin(engine, svc)
		addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Addr, cfg.Server.HTTP.Port)
		servers = append(servers, server.NewGinServer(engine, addr, cfg.Server.HTTP.ReadTimeout, cfg.Server.HTTP.WriteTimeout, logger.Logger))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.GRPC.Addr, cfg.Server.GRPC.Port)
	servers = append(servers, server.NewGRPCServer(addr, logger.Logger, func(s *grpc.Server) {
		health.RegisterGRPCHealthServer(s, b.serviceName, rt.Health)
	}, b.interceptors(rt), server.KeepaliveOptions(cfg.Server.GRPC.Keepalive)))

	opts = append(opts, WithServer(servers...))
	return New(b.serviceName, logger.Logger, opts...), nil
}

func (b *Builder[S]) initLogger() *logging.Logger {
	logging.InitLogger(logging.Config{
		Service:    b.serviceName,
		Module:     "app",
		Level:      b.cfg.Log.Level,
		Output:     b.cfg.Log.Output,
		File:       b.cfg.Log.File,
		MaxSize:    b.cfg.Log.MaxSize,
		MaxBackups: b.cfg.Log.MaxBackups,
		MaxAge:     b.cfg.Log.MaxAge,
		Compress:   b.cfg.Log.Compress,
	})
	return logging.Default()
}

func (b *Builder[S]) metricsPath() string {
	if b.cfg.Metrics.Path == "" {
		return defaultMetricsPath
	}
	return b.cfg.Metrics.Path
}

// NewEngine 创建挂载了内置中间件与 /sys 路由的 Gin 引擎。
func (b *Builder[S]) NewEngine(rt *Runtime) *gin.Engine {
	cfg := b.cfg
	skip := []string{healthPath, b.metricsPath()}

	mws := []gin.HandlerFunc{
		middleware.Recovery(rt.Logger.Logger),
		middleware.RequestID(),
	}
	if cfg.Tracing.Enabled {
		mws = append(mws, middleware.TracingMiddleware(b.serviceName), middleware.TraceIDHeader())
	}
	mws = append(mws,
		middleware.Logger(rt.Logger.Named("http").Logger, skip...),
		middleware.HTTPMetricsMiddleware(rt.Metrics, skip...),
		middleware.MaxBodyBytes(cfg.Server.HTTP.MaxBodyBytes),
		middleware.TimeoutMiddleware(cfg.Server.HTTP.WriteTimeout),
	)
	if cfg.RateLimit.Enabled {
		mws = append(mws, middleware.RateLimitMiddleware(rt.Limiter))
	}

	engine := server.NewDefaultGinEngine(server.GinMode(cfg.Server.Environment), mws...)

	engine.GET(healthPath, func(c *gin.Context) {
		st := rt.Health.Check(c.Request.Context())
		code, state := http.StatusOK, "UP"
		if !st.Healthy {
			code, state = http.StatusServiceUnavailable, "DOWN"
		}
		response.SuccessWithRawData(c, code, gin.H{
			"status":    state,
			"service":   b.serviceName,
			"checks":    st.Checks,
			"timestamp": time.Now().Unix(),
		})
	})

	if cfg.Metrics.Enabled && cfg.Metrics.Port == "" {
		engine.GET(b.metricsPath(), gin.WrapH(rt.Metrics.Handler()))
	}
	return engine
}

func (b *Builder[S]) interceptors(rt *Runtime) []grpc.UnaryServerInterceptor {
	chain := []grpc.UnaryServerInterceptor{
		middleware.GRPCRecovery(rt.Logger.Logger),
		middleware.GRPCRequestID(),
		middleware.GRPCRequestLogger(),
		middleware.GRPCMetricsInterceptor(rt.Metrics),
	}
	return append(chain, middleware.GRPCErrorTranslator())
}
