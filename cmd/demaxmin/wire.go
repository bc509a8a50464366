package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/wyfcoding/demaxmin/app"
	"github.com/wyfcoding/demaxmin/breaker"
	"github.com/wyfcoding/demaxmin/cache"
	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/database"
	"github.com/wyfcoding/demaxmin/health"
	"github.com/wyfcoding/demaxmin/idgen"
	"github.com/wyfcoding/demaxmin/limiter"
	"github.com/wyfcoding/demaxmin/messagequeue/kafka"
	"github.com/wyfcoding/demaxmin/metrics"
	"github.com/wyfcoding/demaxmin/redis"
	"github.com/wyfcoding/demaxmin/retry"
	"github.com/wyfcoding/demaxmin/scheduler"
	"github.com/wyfcoding/demaxmin/solver"
)

// cleanups 按注册的逆序释放资源。
type cleanups []func()

func (c *cleanups) add(fn func()) { *c = append(*c, fn) }

func (c cleanups) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func newService(rt *app.Runtime) (svc *solver.Service, cleanup func(), err error) {
	cfg := rt.Config
	logger := rt.Logger

	var cs cleanups
	defer func() {
		if err != nil {
			cs.run()
		}
	}()

	if err = idgen.Init(cfg.Snowflake); err != nil {
		return nil, nil, fmt.Errorf("init id generator: %w", err)
	}
	gauge := breaker.StateGauge(rt.Metrics)

	var client *goredis.Client
	if needsRedis(cfg) {
		type redisConn struct {
			client *goredis.Client
			close  func()
		}
		var conn redisConn
		conn, err = retry.Do(context.Background(), retry.DefaultConfig(), func(attempt int) (redisConn, error) {
			c, closeFn, err := redis.NewClient(cfg.Data.Redis, logger.Named("redis"), rt.Metrics)
			if err != nil {
				logger.Warn("redis not ready", "attempt", attempt+1, "error", err)
			}
			return redisConn{client: c, close: closeFn}, err
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init redis: %w", err)
		}
		client = conn.client
		cs.add(conn.close)
		rt.Health.Register("redis", health.RedisChecker(client))
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.Backend == "redis" {
		if rt.Limiter, err = limiter.New(cfg.RateLimit, client); err != nil {
			return nil, nil, fmt.Errorf("init rate limiter: %w", err)
		}
	}

	sessions, closeSessions, err := newSessionCache(cfg, client, gauge, rt)
	if err != nil {
		return nil, nil, err
	}
	cs.add(closeSessions)

	opts := []solver.Option{solver.WithMetrics(metrics.NewSolverMetrics(rt.Metrics))}

	if cfg.Data.Database.Driver != "" {
		db, dbErr := retry.Do(context.Background(), retry.DefaultConfig(), func(attempt int) (*database.DB, error) {
			db, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger.Named("database"), gauge)
			if err != nil {
				logger.Warn("database not ready", "attempt", attempt+1, "error", err)
			}
			return db, err
		})
		if dbErr != nil {
			return nil, nil, fmt.Errorf("init database: %w", dbErr)
		}
		cs.add(func() {
			if err := db.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		})
		rt.Health.Register("database", health.DBChecker(db))

		repo := solver.NewGormSolutionRepository(db.DB, db.Breaker())
		if cfg.Data.Database.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err = repo.Migrate(ctx)
			cancel()
			if err != nil {
				return nil, nil, fmt.Errorf("migrate solutions: %w", err)
			}
		}
		opts = append(opts, solver.WithRepository(repo))
	}

	if kc := cfg.MessageQueue.Kafka; kc.Enabled {
		cb := breaker.NewBreaker(breaker.Settings{Name: "kafka-producer", Config: cfg.CircuitBreaker}, gauge)
		producer := kafka.NewProducer(kc, cb, logger.Named("kafka"), rt.Metrics)
		cs.add(func() {
			if err := producer.Close(); err != nil {
				logger.Error("failed to close kafka producer", "error", err)
			}
		})
		rt.Health.Register("kafka", health.KafkaChecker(kc.Brokers, kc.Topic, &kafkago.Dialer{Timeout: 2 * time.Second}))
		opts = append(opts, solver.WithPublisher(producer))
	}

	svc = solver.NewService(cfg.Solver, solver.NewSessionStore(sessions, cfg.Solver.SessionTTL), logger.Named("solver"), opts...)
	config.RegisterReloadHook(func(next *config.Config) {
		svc.UpdateConfig(next.Solver)
	})

	sched := scheduler.NewScheduler(logger.Named("scheduler"), rt.Metrics)
	if err = svc.RegisterJobs(sched); err != nil {
		return nil, nil, fmt.Errorf("register jobs: %w", err)
	}
	rt.Lifecycle.Append(app.Hook{
		Name: "scheduler",
		OnStart: func(ctx context.Context) error {
			sched.Start(ctx)
			return nil
		},
		OnStop: sched.Stop,
	})

	return svc, cs.run, nil
}

func needsRedis(cfg *config.Config) bool {
	switch cfg.Solver.SessionStore {
	case "redis", "multilevel":
		return true
	}
	return cfg.RateLimit.Enabled && cfg.RateLimit.Backend == "redis"
}

// newSessionCache 按 session_store 选择进程内、Redis 或两级缓存。
func newSessionCache(cfg *config.Config, client *goredis.Client, gauge *prometheus.GaugeVec, rt *app.Runtime) (cache.Cache, func(), error) {
	newRedis := func() *cache.RedisCache {
		cb := breaker.NewBreaker(breaker.Settings{
			Name:         "session-cache",
			Config:       cfg.CircuitBreaker,
			IsSuccessful: cache.IsMiss,
		}, gauge)
		return cache.NewRedisCache(client,
			cache.WithPrefix("demaxmin"),
			cache.WithBreaker(cb),
			cache.WithStats(cache.NewStats(rt.Metrics)),
		)
	}

	switch cfg.Solver.SessionStore {
	case "redis":
		return newRedis(), func() {}, nil
	case "multilevel":
		l1TTL := cfg.Solver.SessionTTL / 10
		l1, err := cache.NewBigCache(l1TTL, cfg.Data.BigCache)
		if err != nil {
			return nil, nil, fmt.Errorf("init session cache: %w", err)
		}
		c := cache.NewMultiLevelCache(l1, newRedis(), rt.Logger.Named("cache"), cache.WithL1TTL(l1TTL))
		return c, func() { _ = c.Close() }, nil
	default:
		c, err := cache.NewBigCache(cfg.Solver.SessionTTL, cfg.Data.BigCache)
		if err != nil {
			return nil, nil, fmt.Errorf("init session cache: %w", err)
		}
		return c, func() { _ = c.Close() }, nil
	}
}
