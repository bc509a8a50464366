package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/demaxmin/limiter"
	"github.com/wyfcoding/demaxmin/response"
	"github.com/wyfcoding/demaxmin/xerrors"
)

func passthrough(c *gin.Context) { c.Next() }

// MaxBodyBytes 限制请求体大小，limit <= 0 时不限制。
// Content-Length 超限的请求直接拒绝，其余在读取时由 http.MaxBytesReader 截断。
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		return passthrough
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			response.ErrorWithStatus(c, http.StatusRequestEntityTooLarge, "problem payload too large", fmt.Sprintf("limit is %d bytes", limit))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// TimeoutMiddleware 为请求设置截止时间，处理器超时且未写出响应时返回 504。
func TimeoutMiddleware(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		return passthrough
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			response.Error(c, xerrors.ErrRequestTimeout.WithDetail("deadline of %s exceeded", d))
		}
	}
}

// RateLimitMiddleware 以客户端 IP 为键限流，限流器故障时放行。
func RateLimitMiddleware(l limiter.Limiter) gin.HandlerFunc {
	if l == nil {
		return passthrough
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := c.ClientIP()

		allowed, err := l.Allow(ctx, key)
		switch {
		case err != nil:
			slog.ErrorContext(ctx, "rate limiter unavailable, request allowed", "key", key, "error", err)
		case !allowed:
			slog.WarnContext(ctx, "request rejected by rate limiter", "key", key, "path", c.FullPath())
			response.Error(c, xerrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
