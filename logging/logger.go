// Package logging 提供了统一的结构化日志（slog）封装，支持OpenTelemetry追踪上下文注入和GORM日志集成。
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm/logger"

	"github.com/wyfcoding/demaxmin/contextx"
)

var (
	defaultLogger *Logger
	once          sync.Once

	// level 由所有通过本包创建的 Handler 共享，配置热更新时只需修改这一处。
	level = new(slog.LevelVar)
)

// Config 定义日志配置
type Config struct {
	Service    string
	Module     string
	Level      string
	Output     string // stdout / file / both
	File       string // 日志文件路径
	MaxSize    int    // 每个日志文件最大尺寸 (MB)
	MaxBackups int    // 保留旧日志文件的最大个数
	MaxAge     int    // 保留旧日志文件的最大天数
	Compress   bool   // 是否压缩旧日志
}

// Logger 封装了原生的 `*slog.Logger`，并附带服务名和模块名。
type Logger struct {
	*slog.Logger
	Service string
	Module  string
}

// TraceHandler 从 context 中提取 trace_id、span_id 与 request_id 注入到日志记录。
type TraceHandler struct {
	slog.Handler
}

// Handle 实现 slog.Handler。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if reqID := contextx.GetRequestID(ctx); reqID != "" {
		r.AddAttrs(slog.String("request_id", reqID))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs 保持装饰器不被内层 Handler 丢弃。
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup 同 WithAttrs。
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLevel 将配置中的级别字符串转换为 slog.Level，无法识别时返回 Info。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel 动态调整全局日志级别。
func SetLevel(s string) {
	level.Set(ParseLevel(s))
}

// NewFromConfig 创建一个新的Logger实例，文件输出使用 lumberjack 切割。
func NewFromConfig(cfg Config) *Logger {
	level.Set(ParseLevel(cfg.Level))
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg Config, stdout io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			return a
		},
	}

	var handlers []slog.Handler
	if cfg.File != "" && (cfg.Output == "file" || cfg.Output == "both") {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		handlers = append(handlers, slog.NewJSONHandler(fileWriter, opts))
	}
	if len(handlers) == 0 || cfg.Output == "both" {
		handlers = append(handlers, slog.NewJSONHandler(stdout, opts))
	}

	var handler slog.Handler = handlers[0]
	if len(handlers) > 1 {
		handler = newMultiHandler(handlers...)
	}

	l := slog.New(&TraceHandler{Handler: handler}).With(
		slog.String("service", cfg.Service),
		slog.String("module", cfg.Module),
	)

	return &Logger{Logger: l, Service: cfg.Service, Module: cfg.Module}
}

// NewLogger 是创建一个带有简单参数的 logger 的便捷方法。
func NewLogger(service, module string, lvl ...string) *Logger {
	l := "info"
	if len(lvl) > 0 {
		l = lvl[0]
	}
	return NewFromConfig(Config{Service: service, Module: module, Level: l})
}

// InitLogger 初始化全局默认日志记录器并设置为 slog 默认实例。
func InitLogger(cfg Config) {
	once.Do(func() {
		defaultLogger = NewFromConfig(cfg)
		slog.SetDefault(defaultLogger.Logger)
	})
}

// Default 返回默认日志记录器实例
func Default() *Logger {
	if defaultLogger == nil {
		InitLogger(Config{Service: "demaxmin", Module: "default", Level: "info"})
	}
	return defaultLogger
}

// Named 返回带有指定组件名的子 Logger。
func (l *Logger) Named(module string) *Logger {
	return &Logger{
		Logger:  l.Logger.With(slog.String("component", module)),
		Service: l.Service,
		Module:  module,
	}
}

func Info(ctx context.Context, msg string, args ...any) {
	Default().InfoContext(ctx, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	Default().WarnContext(ctx, msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	Default().ErrorContext(ctx, msg, args...)
}

// LogDuration 返回在调用时以 Debug 级别记录 operation 耗时的函数。
func (l *Logger) LogDuration(ctx context.Context, operation string, args ...any) func() {
	start := time.Now()
	return func() {
		logArgs := append(slices.Clip(args), "duration", time.Since(start))
		l.DebugContext(ctx, fmt.Sprintf("%s finished", operation), logArgs...)
	}
}

// GormLogger 将GORM的日志输出到统一的slog日志系统中。
type GormLogger struct {
	logger        *slog.Logger
	SlowThreshold time.Duration
	level         logger.LogLevel
}

// NewGormLogger 创建一个新的GormLogger实例。
func NewGormLogger(l *Logger, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		logger:        l.Logger,
		SlowThreshold: slowThreshold,
		level:         logger.Info,
	}
}

// LogMode 返回设置了 GORM 日志级别的副本，Silent 会屏蔽全部输出。
func (l *GormLogger) LogMode(lvl logger.LogLevel) logger.Interface {
	out := *l
	out.level = lvl
	return &out
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace 慢查询以Warn级别记录，错误查询以Error级别记录，普通查询以Debug级别记录。
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []any{
		slog.String("sql", sql),
		slog.Duration("elapsed", elapsed),
	}
	if rows != -1 {
		fields = append(fields, slog.Int64("rows", rows))
	}

	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound):
		fields = append(fields, slog.Any("error", err))
		l.logger.ErrorContext(ctx, "gorm trace error", fields...)
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold:
		fields = append(fields, slog.String("type", "slow_query"))
		l.logger.WarnContext(ctx, "gorm trace slow query", fields...)
	default:
		l.logger.DebugContext(ctx, "gorm trace", fields...)
	}
}
