// Package middleware 提供了 Gin 与 gRPC 的通用中间件实现。
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/demaxmin/contextx"
	"github.com/wyfcoding/demaxmin/idgen"
)

const (
	HeaderXRequestID = "X-Request-ID"
	HeaderXTraceID   = "X-Trace-ID"
)

// RequestID 返回一个用于生成或传递请求 ID 的 Gin 中间件，同时注入客户端 IP 与 UA。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = idgen.GenIDString()
		}

		ctx := contextx.WithRequestID(c.Request.Context(), requestID)
		ctx = contextx.WithIP(ctx, c.ClientIP())
		ctx = contextx.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderXRequestID, requestID)

		c.Next()
	}
}
