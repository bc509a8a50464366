// Package response 提供统一的 HTTP 响应封装，支持业务错误码映射及 gRPC 状态码转换。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/demaxmin/contextx"
	"github.com/wyfcoding/demaxmin/xerrors"
)

// Body 是统一响应体。成功时 Code 为 0。
type Body struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Success 发送一个标准的成功响应。
func Success(c *gin.Context, data any) {
	SuccessWithStatus(c, http.StatusOK, data)
}

// SuccessWithStatus 发送一个带有指定 HTTP 状态码的成功响应。
func SuccessWithStatus(c *gin.Context, status int, data any) {
	c.JSON(status, Body{
		Code:      0,
		Msg:       "success",
		RequestID: contextx.GetRequestID(c.Request.Context()),
		Data:      data,
	})
}

// SuccessWithRawData 发送原始数据的成功响应 (不包装 code 和 msg)，用于健康检查等系统接口。
func SuccessWithRawData(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Error 发送错误响应。
// 优先识别 xerrors 业务错误，其次识别 gRPC Status，其余一律按 500 处理且不暴露内部信息。
func Error(c *gin.Context, err error) {
	if err == nil {
		Success(c, nil)
		return
	}

	statusCode := http.StatusInternalServerError
	body := Body{
		Code:      http.StatusInternalServerError,
		Msg:       http.StatusText(http.StatusInternalServerError),
		RequestID: contextx.GetRequestID(c.Request.Context()),
	}

	if e, ok := xerrors.FromError(err); ok {
		statusCode = e.HTTPStatus()
		body.Code = e.Code
		body.Msg = e.Message
		body.Detail = e.Detail
	} else if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		statusCode = grpcCodeToHTTP(st.Code())
		body.Code = statusCode
		body.Msg = st.Message()
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(statusCode, body)
}

// ErrorWithStatus 发送一个带有指定 HTTP 状态码、消息和详情的错误响应。
func ErrorWithStatus(c *gin.Context, status int, msg string, detail string) {
	c.AbortWithStatusJSON(status, Body{
		Code:      status,
		Msg:       msg,
		Detail:    detail,
		RequestID: contextx.GetRequestID(c.Request.Context()),
	})
}

// grpcCodeToHTTP 执行 gRPC 到 HTTP 的标准协议映射。
func grpcCodeToHTTP(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return 499 // Client Closed Request
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
