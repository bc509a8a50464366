package server

import (
	"github.com/gin-gonic/gin"
)

// NewDefaultGinEngine 创建不带默认中间件的 Gin 引擎，中间件顺序由调用方决定。
// mode 为 gin.ReleaseMode、gin.DebugMode 或 gin.TestMode，空值保持当前模式。
func NewDefaultGinEngine(mode string, middlewares ...gin.HandlerFunc) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	engine := gin.New()
	engine.ContextWithFallback = true
	engine.Use(middlewares...)

	return engine
}

// GinMode 将运行环境映射为 Gin 模式。
func GinMode(environment string) string {
	switch environment {
	case "prod":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
