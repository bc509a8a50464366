package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/wyfcoding/demaxmin/tracing"
)

// TracingMiddleware 为每个请求创建 OpenTelemetry Span。
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceIDHeader 将当前 Span 的 trace id 写入响应头，需挂在 TracingMiddleware 之后。
func TraceIDHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		if traceID := tracing.GetTraceID(c.Request.Context()); traceID != "" {
			c.Header(HeaderXTraceID, traceID)
		}
		c.Next()
	}
}
