// Package solver 将 Demaxmin 运输算法组织为有状态的服务：
// 配置阶段保存平衡后的问题，求解阶段计算分配与总成本，并持久化、发布结果。
package solver

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"github.com/wyfcoding/demaxmin/algorithm/transport"
	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/contextx"
	"github.com/wyfcoding/demaxmin/idgen"
	"github.com/wyfcoding/demaxmin/logging"
	"github.com/wyfcoding/demaxmin/messagequeue"
	"github.com/wyfcoding/demaxmin/metrics"
	"github.com/wyfcoding/demaxmin/tracing"
	"github.com/wyfcoding/demaxmin/xerrors"
)

// EventSolutionComputed 是求解完成事件的类型名。
const EventSolutionComputed = "solution.computed"

const (
	modeSession = "session"
	modeOnce    = "once"
	modeBatch   = "batch"
)

// Service 是求解服务。repo 为 nil 时不持久化结果。
type Service struct {
	cfg       atomic.Pointer[config.SolverConfig]
	sessions  *SessionStore
	repo      SolutionRepository
	publisher messagequeue.EventPublisher
	metrics   *metrics.SolverMetrics
	logger    *logging.Logger
	group     singleflight.Group
	now       func() time.Time
}

// Option 配置 Service 的可选依赖。
type Option func(*Service)

// WithRepository 启用结果持久化。
func WithRepository(repo SolutionRepository) Option {
	return func(s *Service) { s.repo = repo }
}

// WithPublisher 设置事件发布器。
func WithPublisher(p messagequeue.EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithMetrics 设置求解指标。
func WithMetrics(m *metrics.SolverMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService 创建求解服务。
func NewService(cfg config.SolverConfig, sessions *SessionStore, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		sessions:  sessions,
		publisher: messagequeue.NopPublisher{},
		logger:    logger.Named("solver"),
		now:       time.Now,
	}
	s.UpdateConfig(cfg)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateConfig 替换求解参数，用于配置热更新。
func (s *Service) UpdateConfig(cfg config.SolverConfig) {
	s.cfg.Store(&cfg)
}

// Config 返回当前生效的求解参数。
func (s *Service) Config() config.SolverConfig {
	return *s.cfg.Load()
}

// Configure 校验并平衡输入，保存为新的问题会话。
func (s *Service) Configure(ctx context.Context, in transport.Input) (*Session, error) {
	p, err := s.balance(ctx, in)
	if err != nil {
		return nil, err
	}

	sess := &Session{ID: idgen.GenProblemID(), Problem: p, CreatedAt: s.now()}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.metrics.ObserveSession("created")
	s.logger.InfoContext(ctx, "problem configured",
		"problem_id", sess.ID,
		"origins", p.Matrix.Rows(),
		"destinations", p.Matrix.Cols(),
		"dummy", p.Dummy,
	)
	return sess, nil
}

// Get 返回已保存的问题会话。
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSession("loaded")
	return sess, nil
}

// Reset 丢弃问题会话，之后可重新配置。
func (s *Service) Reset(ctx context.Context, id string) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.ObserveSession("reset")
	s.logger.InfoContext(ctx, "problem reset", "problem_id", id)
	return nil
}

// SolveSession 求解已保存的问题。同一会话的并发请求合并为一次求解，已求解的会话直接返回结果。
// 合并后的求解不随任一调用方的 ctx 取消而中止。
func (s *Service) SolveSession(ctx context.Context, id string) (*Result, error) {
	ctx = contextx.WithSessionID(ctx, id)
	v, err, _ := s.group.Do(id, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		sess, err := s.sessions.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess.Result != nil {
			return sess.Result, nil
		}

		res, err := s.solve(ctx, modeSession, id, sess.Problem)
		if err != nil {
			return nil, err
		}

		solved := *sess
		solved.Result = res
		if err := s.sessions.Save(ctx, &solved); err != nil {
			s.logger.WarnContext(ctx, "failed to store solved session", "problem_id", id, "error", err)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// SolveOnce 不保存会话，直接平衡、求解并计算总成本。
func (s *Service) SolveOnce(ctx context.Context, in transport.Input) (*Result, error) {
	return s.solveInput(ctx, modeOnce, in)
}

// SolveBatch 并发求解多个问题，结果按输入顺序返回，单个失败不影响其他问题。
func (s *Service) SolveBatch(ctx context.Context, inputs []transport.Input) (*BatchResult, error) {
	cfg := s.Config()
	if len(inputs) == 0 {
		return nil, xerrors.ErrProblemInvalid.WithDetail("batch must contain at least one problem")
	}
	if len(inputs) > cfg.MaxBatchSize {
		return nil, xerrors.ErrBatchTooLarge.WithDetail("batch has %d problems, limit is %d", len(inputs), cfg.MaxBatchSize)
	}

	batch := &BatchResult{ID: idgen.GenBatchID(), Items: make([]BatchItem, len(inputs))}
	ctx, span := tracing.StartSpan(ctx, "solver.SolveBatch")
	defer span.End()
	tracing.AddTag(ctx, "batch.id", batch.ID)
	tracing.AddTag(ctx, "batch.size", len(inputs))

	p := pool.New().WithMaxGoroutines(cfg.BatchConcurrency)
	for i, in := range inputs {
		p.Go(func() {
			item := BatchItem{Index: i}
			if err := ctx.Err(); err != nil {
				item.Error = err
			} else {
				item.Result, item.Error = s.solveInput(ctx, modeBatch, in)
			}
			batch.Items[i] = item
		})
	}
	p.Wait()

	for _, item := range batch.Items {
		if item.Error != nil {
			batch.Failed++
		} else {
			batch.Succeeded++
		}
	}
	s.logger.InfoContext(ctx, "batch solved", "batch_id", batch.ID, "succeeded", batch.Succeeded, "failed", batch.Failed)
	return batch, nil
}

// GetSolution 读取持久化的求解结果。
func (s *Service) GetSolution(ctx context.Context, id string) (*Result, error) {
	if s.repo == nil {
		return nil, xerrors.ErrSolutionNotFound.WithContext("solution_id", id).WithDetail("persistence is disabled")
	}
	rec, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.result()
}

// PurgeExpired 删除超过保留期的求解记录。
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	retention := s.Config().Retention
	if s.repo == nil || retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-retention)
	n, err := s.repo.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "expired solutions purged", "deleted", n, "cutoff", cutoff)
	return n, nil
}

func (s *Service) solveInput(ctx context.Context, mode string, in transport.Input) (*Result, error) {
	p, err := s.balance(ctx, in)
	if err != nil {
		s.metrics.ObserveFailure(mode, "invalid")
		return nil, err
	}
	return s.solve(ctx, mode, "", p)
}

// balance 校验标签与维度后调用 transport.Balance。
func (s *Service) balance(ctx context.Context, in transport.Input) (*transport.Problem, error) {
	ctx, span := tracing.StartSpan(ctx, "solver.Balance")
	defer span.End()

	cfg := s.Config()
	if in.OriginLabel == "" {
		in.OriginLabel = cfg.OriginLabel
	}
	if in.DestinationLabel == "" {
		in.DestinationLabel = cfg.DestinationLabel
	}
	if err := validateLabels(in.OriginLabel, in.DestinationLabel); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	if err := validateDimensions(in, cfg.MaxDimension); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	p, err := transport.Balance(in)
	if err != nil {
		err = mapError(err)
		tracing.SetError(ctx, err)
		return nil, err
	}
	if p.Dummy != transport.DummyNone {
		s.metrics.ObserveDummy(string(p.Dummy))
	}
	tracing.AddTag(ctx, "problem.dummy", string(p.Dummy))
	return p, nil
}

// solve 执行分配与成本计算，随后持久化并发布事件。
func (s *Service) solve(ctx context.Context, mode, problemID string, p *transport.Problem) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "solver.Solve")
	defer span.End()
	tracing.AddTag(ctx, "solver.mode", mode)

	start := time.Now()
	done := s.logger.LogDuration(ctx, "transport solve", "mode", mode, "origins", len(p.Origins), "destinations", len(p.Destinations))
	sol, err := transport.Solve(p)
	done()
	if err != nil {
		return nil, s.fail(ctx, mode, err)
	}
	eval, err := sol.Evaluate()
	if err != nil {
		return nil, s.fail(ctx, mode, err)
	}
	elapsed := time.Since(start)

	res := &Result{
		ID:           idgen.GenSolutionID(),
		ProblemID:    problemID,
		Dummy:        p.Dummy,
		Origins:      p.Origins,
		Destinations: p.Destinations,
		Supply:       p.Supply,
		Demand:       p.Demand,
		Table:        sol.Matrix.Render(),
		Assignments:  sol.Assignments,
		Steps:        sol.Steps,
		Total:        eval.Total,
		Terms:        eval.Terms,
		Expression:   eval.Expression(),
		Iterations:   sol.Iterations,
		Swept:        sol.Swept,
		CreatedAt:    s.now(),
	}
	tracing.AddTag(ctx, "solution.id", res.ID)
	tracing.AddTag(ctx, "solution.total", res.Total)

	if s.repo != nil {
		if err := s.repo.Save(ctx, newRecord(res, p)); err != nil {
			return nil, s.fail(ctx, mode, err)
		}
	}

	total, _ := res.Total.Float64()
	s.metrics.ObserveSolve(mode, res.Iterations, res.Swept, total, elapsed)
	s.publish(ctx, res)

	s.logger.InfoContext(ctx, "problem solved",
		"solution_id", res.ID,
		"mode", mode,
		"iterations", res.Iterations,
		"swept", res.Swept,
		"total", res.Total.String(),
		"elapsed", elapsed,
	)
	return res, nil
}

func (s *Service) fail(ctx context.Context, mode string, err error) error {
	err = mapError(err)
	reason := "internal"
	if xe, ok := xerrors.FromError(err); ok && xe.Type == xerrors.ErrUnavailable {
		reason = "unavailable"
	}
	s.metrics.ObserveFailure(mode, reason)
	tracing.SetError(ctx, err)
	s.logger.ErrorContext(ctx, "solve failed", "mode", mode, "error", err)
	return err
}

// publish 发布 solution.computed 事件，失败只记录日志。
func (s *Service) publish(ctx context.Context, res *Result) {
	event := messagequeue.Event{
		ID:         res.ID,
		Type:       EventSolutionComputed,
		OccurredAt: res.CreatedAt,
		Payload: map[string]any{
			"solution_id": res.ID,
			"problem_id":  res.ProblemID,
			"dummy":       res.Dummy,
			"total":       res.Total,
			"expression":  res.Expression,
			"assignments": len(res.Assignments),
		},
	}
	if err := s.publisher.Publish(ctx, res.ID, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish solution event", "solution_id", res.ID, "error", err)
	}
}

// mapError 将算法错误转换为业务错误码。
func mapError(err error) error {
	if _, ok := xerrors.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, transport.ErrInvalidInput):
		return xerrors.ErrProblemInvalid.WithDetail("%s", err.Error()).WithCause(err)
	case errors.Is(err, transport.ErrMalformedCell):
		return xerrors.ErrMalformedCell.WithDetail("%s", err.Error()).WithCause(err)
	default:
		return xerrors.WrapInternal(err, "solver failure")
	}
}

func validateLabels(labels ...string) error {
	v := config.Validator()
	for _, label := range labels {
		if strings.TrimSpace(label) == "" {
			return xerrors.ErrLabelInvalid.WithDetail("label must not be empty")
		}
		if err := v.Var(label, "nodigits"); err != nil {
			return xerrors.ErrLabelInvalid.WithDetail("label %q must not contain digits", label)
		}
	}
	return nil
}

func validateDimensions(in transport.Input, limit int) error {
	rows := len(in.Costs)
	cols := 0
	if rows > 0 {
		cols = len(in.Costs[0])
	}
	if rows < 1 || rows > limit {
		return xerrors.ErrDimensionOutOfRange.WithDetail("origins must be between 1 and %d, got %d", limit, rows)
	}
	if cols < 1 || cols > limit {
		return xerrors.ErrDimensionOutOfRange.WithDetail("destinations must be between 1 and %d, got %d", limit, cols)
	}
	return nil
}
