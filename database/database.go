// Package database 封装了 GORM 连接初始化、熔断保护与通用仓储。
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/wyfcoding/demaxmin/breaker"
	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/logging"
	"github.com/wyfcoding/demaxmin/xerrors"
)

// ErrUnsupportedDriver 不支持的数据库驱动。
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// DB 封装了 GORM 实例与熔断器。
type DB struct {
	*gorm.DB
	cfg     config.DatabaseConfig
	breaker *breaker.Breaker
}

// Dialector 根据驱动名创建 GORM 方言。
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// NewDB 打开数据库连接，注册 OpenTelemetry 插件并配置连接池。
func NewDB(cfg config.DatabaseConfig, cbCfg config.CircuitBreakerConfig, l *logging.Logger, state *prometheus.GaugeVec) (*DB, error) {
	dialector, err := Dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, xerrors.New(xerrors.ErrInvalidArg, int(xerrors.ErrInvalidArg), "unsupported database driver", cfg.Driver, err)
	}
	return Open(dialector, cfg, cbCfg, l, state)
}

// Open 使用给定方言完成初始化，便于替换底层连接。
func Open(dialector gorm.Dialector, cfg config.DatabaseConfig, cbCfg config.CircuitBreakerConfig, l *logging.Logger, state *prometheus.GaugeVec) (*DB, error) {
	level := cfg.LogLevel
	if level == 0 {
		level = logger.Warn
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logging.NewGormLogger(l, cfg.SlowThreshold).LogMode(level),
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, xerrors.WrapInternal(err, "failed to open database connection")
	}

	if err := gormDB.Use(tracing.NewPlugin()); err != nil {
		return nil, xerrors.WrapInternal(err, "failed to register gorm otel plugin")
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, xerrors.WrapInternal(err, "failed to get underlying sql.DB")
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	cb := breaker.NewBreaker(breaker.Settings{
		Name:   "database-" + cfg.Driver,
		Config: cbCfg,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound)
		},
	}, state)

	l.Info("database connected", "driver", cfg.Driver)

	return &DB{DB: gormDB, cfg: cfg, breaker: cb}, nil
}

// Breaker 返回保护该连接的熔断器。
func (db *DB) Breaker() *breaker.Breaker {
	return db.breaker
}

// Ping 检查连接可用性，供健康检查使用。
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭底层连接池。
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
