package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/wyfcoding/demaxmin/contextx"
	"github.com/wyfcoding/demaxmin/idgen"
	"github.com/wyfcoding/demaxmin/logging"
	"github.com/wyfcoding/demaxmin/tracing"
	"github.com/wyfcoding/demaxmin/xerrors"
)

const (
	grpcRequestIDKey = "x-request-id"
	grpcTraceIDKey   = "x-trace-id"
)

// GRPCRequestID 返回一个 gRPC 一元拦截器，用于生成或提取 Request ID 并注入上下文。
func GRPCRequestID() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(grpcRequestIDKey); len(vals) > 0 {
				requestID = vals[0]
			}
		}
		if requestID == "" {
			requestID = idgen.GenIDString()
		}

		newCtx := contextx.WithRequestID(ctx, requestID)
		header := metadata.Pairs(grpcRequestIDKey, requestID)
		if traceID := tracing.GetTraceID(newCtx); traceID != "" {
			header.Set(grpcTraceIDKey, traceID)
		}
		_ = grpc.SetHeader(newCtx, header)

		return handler(newCtx, req)
	}
}

// GRPCRequestLogger 返回一个 gRPC 一元拦截器，用于记录请求的耗时与状态。
func GRPCRequestLogger() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := grpcCode(err)
		fields := []any{
			"method", info.FullMethod,
			"status", code.String(),
			"duration", time.Since(start),
		}
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			fields = append(fields, "peer", p.Addr.String())
		}
		if err != nil {
			fields = append(fields, "error", err)
		}

		switch code {
		case codes.OK:
			logging.Info(ctx, "grpc request processed", fields...)
		case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.FailedPrecondition, codes.PermissionDenied, codes.Unauthenticated:
			logging.Warn(ctx, "grpc request client error", fields...)
		default:
			logging.Error(ctx, "grpc request server error", fields...)
		}
		return resp, err
	}
}

// GRPCErrorTranslator 将业务错误转换为标准 gRPC 状态码。
func GRPCErrorTranslator() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if xe, ok := xerrors.FromError(err); ok {
			return resp, xe.ToGRPCStatus().Err()
		}
		return resp, err
	}
}
