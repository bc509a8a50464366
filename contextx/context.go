// Package contextx 提供在 context.Context 中注入与提取请求级信息的工具函数，
// 使用私有类型作为 Key 以避免跨包冲突。
package contextx

import (
	"context"
)

type contextKey int

const (
	RequestIDKey contextKey = iota // 请求唯一标识
	IPKey                          // 客户端 IP
	UAKey                          // 用户代理
	SessionIDKey                   // 运输问题会话 ID
	DBTxKey                        // 数据库事务
)

// KeyNames 映射 Key 到日志字段名。
var KeyNames = map[contextKey]string{
	RequestIDKey: "request_id",
	IPKey:        "client_ip",
	UAKey:        "user_agent",
	SessionIDKey: "session_id",
}

func stringValue(ctx context.Context, key contextKey) string {
	if val, ok := ctx.Value(key).(string); ok {
		return val
	}
	return ""
}

// WithRequestID 将请求 ID 注入到 Context 中。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID 从 Context 中提取请求 ID。
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// WithIP 将客户端 IP 地址注入到 Context 中。
func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, IPKey, ip)
}

// GetIP 提取客户端 IP，不存在时返回 "0.0.0.0"。
func GetIP(ctx context.Context) string {
	if ip := stringValue(ctx, IPKey); ip != "" {
		return ip
	}
	return "0.0.0.0"
}

// WithUserAgent 将 User-Agent 注入到 Context 中。
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, UAKey, ua)
}

// GetUserAgent 提取 User-Agent，不存在时返回 "Unknown"。
func GetUserAgent(ctx context.Context) string {
	if ua := stringValue(ctx, UAKey); ua != "" {
		return ua
	}
	return "Unknown"
}

// WithSessionID 将会话 ID 注入到 Context 中。
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// GetSessionID 提取会话 ID。
func GetSessionID(ctx context.Context) string {
	return stringValue(ctx, SessionIDKey)
}

// WithTx 将 GORM 事务实例注入到 Context 中。
func WithTx(ctx context.Context, tx any) context.Context {
	return context.WithValue(ctx, DBTxKey, tx)
}

// GetTx 从 Context 中提取 GORM 事务实例。
func GetTx(ctx context.Context) any {
	return ctx.Value(DBTxKey)
}

// Fields 返回 Context 中已设置的请求级字段，便于作为日志属性输出。
func Fields(ctx context.Context) []any {
	var out []any
	for _, key := range []contextKey{RequestIDKey, SessionIDKey, IPKey, UAKey} {
		if v := stringValue(ctx, key); v != "" {
			out = append(out, KeyNames[key], v)
		}
	}
	return out
}
