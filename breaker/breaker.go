// Package breaker 提供了基于 gobreaker 的熔断器封装，用于保护数据库、Redis 与 Kafka 调用。
package breaker

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/metrics"
)

// ErrServiceUnavailable 表示下游当前处于熔断状态。
var ErrServiceUnavailable = errors.New("service unavailable: circuit breaker is open")

// Breaker 封装了 gobreaker 实例，集成了状态指标与日志。禁用时直接执行函数。
type Breaker struct {
	circuitBreaker *gobreaker.CircuitBreaker
}

// Settings 定义了熔断器的初始化参数。
type Settings struct {
	Name         string
	Config       config.CircuitBreakerConfig
	FailureRatio float64
	MinRequests  uint32
	// IsSuccessful 判定哪些错误不计入失败，例如记录不存在。
	IsSuccessful func(err error) bool
}

// StateGauge 在 m 上注册熔断器状态指标，多个熔断器共享同一个 GaugeVec。
func StateGauge(m *metrics.Metrics) *prometheus.GaugeVec {
	if m == nil {
		return nil
	}
	return m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state (0: Closed, 1: Half-Open, 2: Open)",
	}, []string{"name"})
}

// NewBreaker 初始化并返回一个新的熔断器，state 可为 nil。
func NewBreaker(st Settings, state *prometheus.GaugeVec) *Breaker {
	if !st.Config.Enabled {
		return &Breaker{}
	}

	failureRatio := st.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.5
	}

	minRequests := st.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}

	gs := gobreaker.Settings{
		Name:         st.Name,
		MaxRequests:  st.Config.MaxRequests,
		Interval:     st.Config.Interval,
		Timeout:      st.Config.Timeout,
		IsSuccessful: st.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.Requests >= minRequests && ratio >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			if state != nil {
				state.WithLabelValues(name).Set(float64(to))
			}
		},
	}
	if state != nil {
		state.WithLabelValues(st.Name).Set(float64(gobreaker.StateClosed))
	}

	return &Breaker{circuitBreaker: gobreaker.NewCircuitBreaker(gs)}
}

// State 返回当前熔断状态，禁用时恒为 Closed。
func (b *Breaker) State() gobreaker.State {
	if b == nil || b.circuitBreaker == nil {
		return gobreaker.StateClosed
	}
	return b.circuitBreaker.State()
}

// Execute 执行受熔断保护的函数。
func (b *Breaker) Execute(fn func() error) error {
	_, err := ExecuteTyped(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// ExecuteTyped 是 Execute 的泛型版本。
func ExecuteTyped[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if b == nil || b.circuitBreaker == nil {
		return fn()
	}

	res, err := b.circuitBreaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrServiceUnavailable
		}
		if res == nil {
			return zero, err
		}
		return res.(T), err
	}

	return res.(T), nil
}
