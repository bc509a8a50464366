// Package scheduler 基于 robfig/cron 提供带超时、重试与指标的定时任务调度。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/wyfcoding/demaxmin/logging"
	"github.com/wyfcoding/demaxmin/metrics"
)

var (
	// ErrJobNameEmpty 任务名称为空。
	ErrJobNameEmpty = errors.New("job name is empty")
	// ErrJobSpecInvalid 调度表达式非法。
	ErrJobSpecInvalid = errors.New("job spec is invalid")
	// ErrJobAlreadyExists 任务名称重复。
	ErrJobAlreadyExists = errors.New("job already exists")
	// ErrJobHandlerNil 任务处理函数为空。
	ErrJobHandlerNil = errors.New("job handler is nil")
	// ErrJobNotFound 任务不存在。
	ErrJobNotFound = errors.New("job not found")
)

// Job 定义定时任务函数原型。
type Job func(ctx context.Context) error

// JobConfig 定义任务调度参数。
type JobConfig struct {
	Name       string        // 任务名称（唯一）
	Spec       string        // 标准 cron 表达式或 "@every 1h" 等描述符
	Timeout    time.Duration // 单次执行超时
	MaxRetries int           // 失败后的重试次数
	RetryDelay time.Duration
	RunOnStart bool
}

// Scheduler 负责任务的统一调度与生命周期管理，同一任务不会并发执行。
type Scheduler struct {
	logger  *slog.Logger
	cron    *cron.Cron
	mu      sync.Mutex
	jobs    map[string]*jobRunner
	baseCtx context.Context
	metrics *schedulerMetrics
}

type jobRunner struct {
	cfg     JobConfig
	handler Job
	running atomic.Bool
}

type schedulerMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

// cronLogger 将 cron 的内部日志转发到 slog。
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// NewScheduler 创建任务调度器，m 为 nil 时不采集指标。
func NewScheduler(logger *logging.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	l := logger.Named("scheduler").Logger

	var sm *schedulerMetrics
	if m != nil {
		sm = &schedulerMetrics{
			jobRuns: m.NewCounterVec(prometheus.CounterOpts{
				Subsystem: "scheduler",
				Name:      "job_runs_total",
				Help:      "Total number of scheduled job runs",
			}, []string{"job", "status"}),
			jobDuration: m.NewHistogramVec(prometheus.HistogramOpts{
				Subsystem: "scheduler",
				Name:      "job_duration_seconds",
				Help:      "Scheduled job execution duration",
				Buckets:   prometheus.DefBuckets,
			}, []string{"job", "status"}),
		}
	}

	return &Scheduler{
		logger:  l,
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{logger: l})), cron.WithLogger(cronLogger{logger: l})),
		jobs:    make(map[string]*jobRunner),
		baseCtx: context.Background(),
		metrics: sm,
	}
}

// AddJob 注册一个新的调度任务。
func (s *Scheduler) AddJob(cfg JobConfig, handler Job) error {
	if cfg.Name == "" {
		return ErrJobNameEmpty
	}
	if handler == nil {
		return ErrJobHandlerNil
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrJobSpecInvalid, cfg.Spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[cfg.Name]; exists {
		return ErrJobAlreadyExists
	}

	runner := &jobRunner{cfg: cfg, handler: handler}
	if _, err := s.cron.AddFunc(cfg.Spec, func() { s.execute(s.context(), runner) }); err != nil {
		return fmt.Errorf("%w: %w", ErrJobSpecInvalid, err)
	}
	s.jobs[cfg.Name] = runner

	return nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// Start 启动调度器，ctx 作为所有任务执行的父上下文。
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	var onStart []*jobRunner
	for _, runner := range s.jobs {
		if runner.cfg.RunOnStart {
			onStart = append(onStart, runner)
		}
	}
	s.mu.Unlock()

	for _, runner := range onStart {
		go s.execute(ctx, runner)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Trigger 立即同步执行一次指定任务。
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	runner, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, runner)
}

// Stop 停止调度并等待正在执行的任务退出。
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stopped.Done():
		return nil
	}
}

func (s *Scheduler) observe(name, status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.jobRuns.WithLabelValues(name, status).Inc()
	if status != "skipped" {
		s.metrics.jobDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
	}
}

func (s *Scheduler) execute(ctx context.Context, runner *jobRunner) error {
	name := runner.cfg.Name
	start := time.Now()

	if !runner.running.CompareAndSwap(false, true) {
		s.logger.Warn("scheduler job skipped (already running)", "job", name)
		s.observe(name, "skipped", start)
		return nil
	}
	defer runner.running.Store(false)

	err := s.runOnce(ctx, runner)
	for attempt := 1; err != nil && attempt <= runner.cfg.MaxRetries; attempt++ {
		s.logger.Warn("scheduler job attempt failed", "job", name, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return s.fail(name, start, errors.Join(err, ctx.Err()))
		case <-time.After(runner.cfg.RetryDelay):
		}
		err = s.runOnce(ctx, runner)
	}

	if err != nil {
		return s.fail(name, start, err)
	}

	s.observe(name, "success", start)
	s.logger.Debug("scheduler job succeeded", "job", name, "duration", time.Since(start))
	return nil
}

func (s *Scheduler) fail(name string, start time.Time, err error) error {
	s.observe(name, "failed", start)
	s.logger.Error("scheduler job failed", "job", name, "error", err)
	return err
}

func (s *Scheduler) runOnce(ctx context.Context, runner *jobRunner) error {
	if runner.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runner.cfg.Timeout)
		defer cancel()
	}
	return runner.handler(ctx)
}
