// Package config 提供了统一的配置加载与管理能力。
// 配置文件为 TOML，环境变量以 APP_ 为前缀覆盖 (server.http.port -> APP_SERVER_HTTP_PORT)。
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gorm.io/gorm/logger"

	"github.com/wyfcoding/demaxmin/logging"
)

// Config 全局顶级配置结构。
type Config struct {
	Version        string               `mapstructure:"version"        toml:"version"`
	Server         ServerConfig         `mapstructure:"server"         toml:"server"`
	Log            LogConfig            `mapstructure:"log"            toml:"log"`
	Metrics        MetricsConfig        `mapstructure:"metrics"        toml:"metrics"`
	Tracing        TracingConfig        `mapstructure:"tracing"        toml:"tracing"`
	Snowflake      SnowflakeConfig      `mapstructure:"snowflake"      toml:"snowflake"`
	Data           DataConfig           `mapstructure:"data"           toml:"data"`
	MessageQueue   MessageQueueConfig   `mapstructure:"messagequeue"   toml:"messagequeue"`
	RateLimit      RateLimitConfig      `mapstructure:"ratelimit"      toml:"ratelimit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitbreaker" toml:"circuitbreaker"`
	Solver         SolverConfig         `mapstructure:"solver"         toml:"solver"`
}

// ServerConfig 定义服务器运行时的基础网络与环境参数。
type ServerConfig struct {
	Name            string        `mapstructure:"name"             toml:"name"             validate:"required"`
	Environment     string        `mapstructure:"environment"      toml:"environment"      validate:"oneof=dev test prod"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" toml:"shutdown_timeout"` // 为 0 时使用默认值。
	HTTP            struct {
		Addr         string        `mapstructure:"addr"           toml:"addr"`
		Port         int           `mapstructure:"port"           toml:"port"           validate:"required,min=1,max=65535"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"   toml:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"  toml:"write_timeout"`
		MaxBodyBytes int64         `mapstructure:"max_body_bytes" toml:"max_body_bytes"`
	} `mapstructure:"http" toml:"http"`
	GRPC struct {
		Addr      string              `mapstructure:"addr"      toml:"addr"`
		Port      int                 `mapstructure:"port"      toml:"port"      validate:"required,min=1,max=65535"`
		Keepalive GRPCKeepaliveConfig `mapstructure:"keepalive" toml:"keepalive"`
	} `mapstructure:"grpc" toml:"grpc"`
}

// GRPCKeepaliveConfig 定义 gRPC Keepalive 参数。
type GRPCKeepaliveConfig struct {
	Enabled               bool          `mapstructure:"enabled"                  toml:"enabled"`
	Time                  time.Duration `mapstructure:"time"                     toml:"time"`
	Timeout               time.Duration `mapstructure:"timeout"                  toml:"timeout"`
	PermitWithoutStream   bool          `mapstructure:"permit_without_stream"    toml:"permit_without_stream"`
	MinTime               time.Duration `mapstructure:"min_time"                 toml:"min_time"`
	MaxConnectionIdle     time.Duration `mapstructure:"max_connection_idle"      toml:"max_connection_idle"`
	MaxConnectionAge      time.Duration `mapstructure:"max_connection_age"       toml:"max_connection_age"`
	MaxConnectionAgeGrace time.Duration `mapstructure:"max_connection_age_grace" toml:"max_connection_age_grace"`
}

// LogConfig 定义日志输出、级别与切割策略。
type LogConfig struct {
	Level         string        `mapstructure:"level"          toml:"level"          validate:"oneof=debug info warn error"`
	Output        string        `mapstructure:"output"         toml:"output"         validate:"oneof=stdout file both"`
	File          string        `mapstructure:"file"           toml:"file"           validate:"required_unless=Output stdout"`
	MaxSize       int           `mapstructure:"max_size"       toml:"max_size"`
	MaxBackups    int           `mapstructure:"max_backups"    toml:"max_backups"`
	MaxAge        int           `mapstructure:"max_age"        toml:"max_age"`
	Compress      bool          `mapstructure:"compress"       toml:"compress"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold" toml:"slow_threshold"` // HTTP 慢请求阈值。
}

// MetricsConfig 普罗米修斯监控指标暴露配置。
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Path    string `mapstructure:"path"    toml:"path"`
	Port    string `mapstructure:"port"    toml:"port"` // 非空时在独立端口暴露
}

// TracingConfig 分布式链路追踪配置。
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=Enabled true"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"min=0,max=1"`
}

// SnowflakeConfig 分布式 ID 生成器参数。
type SnowflakeConfig struct {
	Type      string `mapstructure:"type"       toml:"type"       validate:"omitempty,oneof=snowflake sonyflake"`
	StartTime string `mapstructure:"start_time" toml:"start_time"`
	MachineID int64  `mapstructure:"machine_id" toml:"machine_id" validate:"min=0,max=65535"`
}

// DataConfig 汇集了持久化存储与缓存的数据源配置。
type DataConfig struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Redis    RedisConfig    `mapstructure:"redis"    toml:"redis"`
	BigCache BigCacheConfig `mapstructure:"bigcache" toml:"bigcache"`
}

// DatabaseConfig 定义单数据库实例连接与连接池参数，Driver 为空表示不持久化。
type DatabaseConfig struct {
	Driver          string          `mapstructure:"driver"            toml:"driver"            validate:"omitempty,oneof=mysql postgres"`
	DSN             string          `mapstructure:"dsn"               toml:"dsn"               validate:"required_with=Driver"`
	ConnMaxLifetime time.Duration   `mapstructure:"conn_max_lifetime" toml:"conn_max_lifetime"`
	SlowThreshold   time.Duration   `mapstructure:"slow_threshold"    toml:"slow_threshold"`
	LogLevel        logger.LogLevel `mapstructure:"log_level"         toml:"log_level"`
	MaxIdleConns    int             `mapstructure:"max_idle_conns"    toml:"max_idle_conns"`
	MaxOpenConns    int             `mapstructure:"max_open_conns"    toml:"max_open_conns"`
	AutoMigrate     bool            `mapstructure:"auto_migrate"      toml:"auto_migrate"`
}

// RedisConfig 定义 Redis 连接与池化参数。
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"           toml:"addr"`
	Password     string        `mapstructure:"password"       toml:"password"`
	DB           int           `mapstructure:"db"             toml:"db"`
	PoolSize     int           `mapstructure:"pool_size"      toml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" toml:"min_idle_conns"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"   toml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"  toml:"write_timeout"`
}

// BigCacheConfig 本地内存缓存参数。
type BigCacheConfig struct {
	Shards           int           `mapstructure:"shards"              toml:"shards"`
	CleanWindow      time.Duration `mapstructure:"clean_window"        toml:"clean_window"`
	MaxEntrySize     int           `mapstructure:"max_entry_size"      toml:"max_entry_size"`
	HardMaxCacheSize int           `mapstructure:"hard_max_cache_size" toml:"hard_max_cache_size"`
}

// MessageQueueConfig 聚合消息中间件配置。
type MessageQueueConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka" toml:"kafka"`
}

// KafkaConfig 定义 Kafka 生产者参数。
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"       toml:"enabled"`
	Brokers      []string      `mapstructure:"brokers"       toml:"brokers"       validate:"required_if=Enabled true"`
	Topic        string        `mapstructure:"topic"         toml:"topic"         validate:"required_if=Enabled true"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" toml:"write_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"  toml:"max_attempts"`
	Async        bool          `mapstructure:"async"         toml:"async"`
}

// RateLimitConfig 令牌桶 (local) 或滑动窗口 (redis) 限流参数。
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled" toml:"enabled"`
	Backend string        `mapstructure:"backend" toml:"backend" validate:"oneof=local redis"`
	Rate    int           `mapstructure:"rate"    toml:"rate"    validate:"min=0"`
	Burst   int           `mapstructure:"burst"   toml:"burst"`
	Window  time.Duration `mapstructure:"window"  toml:"window"`
}

// CircuitBreakerConfig 熔断器保护策略。
type CircuitBreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"      toml:"enabled"`
	Interval    time.Duration `mapstructure:"interval"     toml:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"      toml:"timeout"`
	MaxRequests uint32        `mapstructure:"max_requests" toml:"max_requests"`
}

// SolverConfig 运输问题求解服务参数。
type SolverConfig struct {
	MaxDimension     int           `mapstructure:"max_dimension"     toml:"max_dimension"     validate:"min=1,max=100"`
	OriginLabel      string        `mapstructure:"origin_label"      toml:"origin_label"      validate:"required,nodigits"`
	DestinationLabel string        `mapstructure:"destination_label" toml:"destination_label" validate:"required,nodigits"`
	SupplyHeader     string        `mapstructure:"supply_header"     toml:"supply_header"`
	DemandHeader     string        `mapstructure:"demand_header"     toml:"demand_header"`
	SessionStore     string        `mapstructure:"session_store"     toml:"session_store"     validate:"oneof=memory redis multilevel"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"       toml:"session_ttl"       validate:"min=1s"`
	BatchConcurrency int           `mapstructure:"batch_concurrency" toml:"batch_concurrency" validate:"min=1"`
	MaxBatchSize     int           `mapstructure:"max_batch_size"    toml:"max_batch_size"    validate:"min=1"`
	Retention        time.Duration `mapstructure:"retention"         toml:"retention"`
	RetentionCron    string        `mapstructure:"retention_cron"    toml:"retention_cron"`
}

// NoDigits 是 "nodigits" 校验规则：字符串中不得出现任何数字。
func NoDigits(fl validator.FieldLevel) bool {
	return !strings.ContainsFunc(fl.Field().String(), unicode.IsDigit)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator 返回注册了自定义规则的校验器实例。
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		if err := validate.RegisterValidation("nodigits", NoDigits); err != nil {
			panic(err)
		}
	})
	return validate
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "demaxmin")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", 10*time.Second)
	v.SetDefault("server.http.write_timeout", 30*time.Second)
	v.SetDefault("server.http.max_body_bytes", 1<<20)
	v.SetDefault("server.grpc.port", 9090)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.slow_threshold", 500*time.Millisecond)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.sampler_ratio", 1.0)
	v.SetDefault("snowflake.type", "snowflake")
	v.SetDefault("snowflake.machine_id", 1)
	v.SetDefault("data.database.slow_threshold", 200*time.Millisecond)
	v.SetDefault("data.database.log_level", int(logger.Warn))
	v.SetDefault("data.bigcache.shards", 64)
	v.SetDefault("data.bigcache.clean_window", time.Minute)
	v.SetDefault("data.bigcache.hard_max_cache_size", 64)
	v.SetDefault("messagequeue.kafka.topic", "demaxmin.solution.computed")
	v.SetDefault("messagequeue.kafka.write_timeout", 5*time.Second)
	v.SetDefault("messagequeue.kafka.max_attempts", 3)
	v.SetDefault("ratelimit.backend", "local")
	v.SetDefault("ratelimit.rate", 50)
	v.SetDefault("ratelimit.burst", 100)
	v.SetDefault("ratelimit.window", time.Second)
	v.SetDefault("circuitbreaker.timeout", 30*time.Second)
	v.SetDefault("circuitbreaker.interval", time.Minute)
	v.SetDefault("solver.max_dimension", 15)
	v.SetDefault("solver.origin_label", "Fábrica")
	v.SetDefault("solver.destination_label", "Ciudad")
	v.SetDefault("solver.supply_header", "Oferta")
	v.SetDefault("solver.demand_header", "Demanda")
	v.SetDefault("solver.session_store", "memory")
	v.SetDefault("solver.session_ttl", 30*time.Minute)
	v.SetDefault("solver.batch_concurrency", 4)
	v.SetDefault("solver.max_batch_size", 64)
	v.SetDefault("solver.retention", 30*24*time.Hour)
	v.SetDefault("solver.retention_cron", "@daily")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func decode(v *viper.Viper, conf *Config) error {
	if err := v.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := Validator().Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Parse 从 TOML 内容解析配置，缺省项使用内置默认值。
func Parse(data []byte) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	conf := &Config{}
	if err := decode(v, conf); err != nil {
		return nil, err
	}
	return conf, nil
}

var (
	vInstance *viper.Viper
	hooksMu   sync.Mutex
	onReload  []func(*Config)
)

// RegisterReloadHook 注册配置热更新回调，回调只会收到通过校验的新配置。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	hooksMu.Lock()
	defer hooksMu.Unlock()
	onReload = append(onReload, hook)
}

// Load 读取配置文件并监听变更，变更通过校验后触发热更新回调。
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	conf := &Config{}
	if err := decode(v, conf); err != nil {
		return nil, err
	}
	vInstance = v

	v.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)

		next := &Config{}
		if err := decode(v, next); err != nil {
			slog.Error("reload config failed, keeping previous configuration", "error", err)
			return
		}
		logging.SetLevel(next.Log.Level)

		hooksMu.Lock()
		hooks := append([]func(*Config){}, onReload...)
		hooksMu.Unlock()
		for _, hook := range hooks {
			hook(next)
		}
		slog.Info("config hot-reloaded and validated successfully")
	})
	v.WatchConfig()

	return conf, nil
}

// PrintWithMask 脱敏打印当前配置。
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}

	var configMap map[string]any
	if err := json.Unmarshal(data, &configMap); err != nil {
		slog.Error("failed to unmarshal config for masking", "error", err)
		return
	}

	mask(configMap)

	maskedJSON, err := json.Marshal(configMap)
	if err != nil {
		slog.Error("failed to marshal masked config", "error", err)
		return
	}

	slog.Info("current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)
			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"
				break
			}
		}
	}
}

// GetViper 返回 Load 使用的 Viper 实例，未加载时为 nil。
func GetViper() *viper.Viper {
	return vInstance
}
