package middleware

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/demaxmin/metrics"
	"github.com/wyfcoding/demaxmin/xerrors"
)

// HTTPMetricsMiddleware 返回一个采集 HTTP 请求数、耗时与报文大小的 Gin 中间件。
// skipPaths 中的路由模板不计入指标，例如 /metrics 本身。
func HTTPMetricsMiddleware(m *metrics.Metrics, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if _, ok := skip[path]; ok || m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		method := c.Request.Method
		m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if c.Request.ContentLength > 0 {
			m.HTTPRequestSizeBytes.WithLabelValues(method, path).Observe(float64(c.Request.ContentLength))
		}
		if size := c.Writer.Size(); size > 0 {
			m.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

// GRPCMetricsInterceptor 返回一个用于采集 gRPC 请求指标的一元拦截器。
func GRPCMetricsInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if m != nil {
			service, method := splitMethod(info.FullMethod)
			m.GRPCRequestsTotal.WithLabelValues(service, method, grpcCode(err).String()).Inc()
			m.GRPCRequestDuration.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}
		return resp, err
	}
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if xe, ok := xerrors.FromError(err); ok {
		return xe.GRPCCode()
	}
	return status.Code(err)
}

// splitMethod 将 "/pkg.Service/Method" 拆分为服务名与方法名。
func splitMethod(full string) (string, string) {
	full = strings.TrimPrefix(full, "/")
	if i := strings.LastIndex(full, "/"); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "unknown", full
}
