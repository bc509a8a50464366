package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SolverMetrics 记录求解次数、迭代次数、虚拟行列与总成本的分布。
type SolverMetrics struct {
	SolvesTotal   *prometheus.CounterVec   // 维度: mode, status
	Duration      *prometheus.HistogramVec // 维度: mode
	Iterations    prometheus.Histogram
	Swept         prometheus.Histogram
	DummyTotal    *prometheus.CounterVec // 维度: kind
	TotalCost     prometheus.Histogram
	SessionsTotal *prometheus.CounterVec // 维度: action
}

// NewSolverMetrics 在 m 的注册表中注册求解相关指标，m 为 nil 时返回 nil。
func NewSolverMetrics(m *Metrics) *SolverMetrics {
	if m == nil {
		return nil
	}
	iterations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "demaxmin_allocator_iterations",
		Help:    "Main loop iterations per solve",
		Buckets: prometheus.LinearBuckets(1, 4, 16),
	})
	swept := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "demaxmin_swept_assignments",
		Help:    "Assignments made by the zero-cost sweeper per solve",
		Buckets: []float64{0, 1, 2, 4, 8, 16},
	})
	cost := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "demaxmin_total_cost",
		Help:    "Total transportation cost Z of computed solutions",
		Buckets: prometheus.ExponentialBuckets(10, 4, 10),
	})
	m.registry.MustRegister(iterations, swept, cost)

	return &SolverMetrics{
		SolvesTotal: m.NewCounterVec(prometheus.CounterOpts{
			Name: "demaxmin_solves_total",
			Help: "Total number of solve attempts",
		}, []string{"mode", "status"}),
		Duration: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "demaxmin_solve_duration_seconds",
			Help:    "Balance, solve and evaluate latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"mode"}),
		Iterations: iterations,
		Swept:      swept,
		DummyTotal: m.NewCounterVec(prometheus.CounterOpts{
			Name: "demaxmin_dummy_added_total",
			Help: "Problems balanced with a dummy origin or destination",
		}, []string{"kind"}),
		TotalCost: cost,
		SessionsTotal: m.NewCounterVec(prometheus.CounterOpts{
			Name: "demaxmin_sessions_total",
			Help: "Problem session operations",
		}, []string{"action"}),
	}
}

// ObserveSolve 记录一次成功求解。
func (s *SolverMetrics) ObserveSolve(mode string, iterations, swept int, totalCost float64, elapsed time.Duration) {
	if s == nil {
		return
	}
	s.SolvesTotal.WithLabelValues(mode, "success").Inc()
	s.Duration.WithLabelValues(mode).Observe(elapsed.Seconds())
	s.Iterations.Observe(float64(iterations))
	s.Swept.Observe(float64(swept))
	s.TotalCost.Observe(totalCost)
}

// ObserveFailure 记录一次失败求解，reason 取错误分类。
func (s *SolverMetrics) ObserveFailure(mode, reason string) {
	if s == nil {
		return
	}
	s.SolvesTotal.WithLabelValues(mode, reason).Inc()
}

// ObserveDummy 记录平衡时追加的虚拟行或列。
func (s *SolverMetrics) ObserveDummy(kind string) {
	if s == nil {
		return
	}
	s.DummyTotal.WithLabelValues(kind).Inc()
}

// ObserveSession 记录会话的创建、读取与重置。
func (s *SolverMetrics) ObserveSession(action string) {
	if s == nil {
		return
	}
	s.SessionsTotal.WithLabelValues(action).Inc()
}
