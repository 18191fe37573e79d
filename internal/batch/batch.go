// Package batch 按学科依次运行分配引擎，单个学科失败不影响其他学科
package batch

import (
	"context"
	"strconv"
	"time"

	"github.com/bpp/sloty/internal/config"
	"github.com/bpp/sloty/internal/metrics"
	"github.com/bpp/sloty/pkg/allocation/checkpoint"
	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/allocation/optimizer"
	"github.com/bpp/sloty/pkg/allocation/solver"
	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/logger"
	"github.com/bpp/sloty/pkg/model"
	"github.com/bpp/sloty/pkg/stats"
	"github.com/bpp/sloty/pkg/validator"
)

// Outcome 单个学科的运行结果，Err 非空时其余字段可能为空
type Outcome struct {
	DisciplineID model.DisciplineID     `json:"discipline_id"`
	Strategy     string                 `json:"strategy"`
	Result       *model.SelectionResult `json:"result,omitempty"`
	Report       *stats.QualityReport   `json:"report,omitempty"`
	Conflicts    []validator.Conflict   `json:"conflicts,omitempty"`
	Resumed      bool                   `json:"resumed,omitempty"` // 从断点恢复了初始顺序
	Err          error                  `json:"-"`
}

// resumable 支持断点续跑的策略
type resumable interface {
	SetInitialOrder(order []model.CandidateID)
	OnImprove(fn optimizer.ImproveFunc)
}

// Runner 批量运行器
type Runner struct {
	engine     config.EngineConfig
	checkpoint config.CheckpointConfig
	store      checkpoint.Store
	registry   *solver.Registry
	analyzer   *stats.QualityAnalyzer
	metrics    *metrics.Registry
}

// NewRunner 创建批量运行器。store 为空时不使用断点，m 为空时使用全局指标
func NewRunner(engine config.EngineConfig, ckpt config.CheckpointConfig, store checkpoint.Store, m *metrics.Registry) *Runner {
	if m == nil {
		m = metrics.GetRegistry()
	}
	if store != nil {
		store = &countingStore{Store: store, metrics: m}
	}
	analyzer := stats.NewQualityAnalyzer()
	analyzer.SetMaxCells(engine.MaxCells)

	return &Runner{
		engine:     engine,
		checkpoint: ckpt,
		store:      store,
		registry:   NewRegistry(engine),
		analyzer:   analyzer,
		metrics:    m,
	}
}

// NewRegistry 按引擎配置注册全部策略
func NewRegistry(cfg config.EngineConfig) *solver.Registry {
	r := solver.NewRegistry()
	r.Register(solver.NameGreedy, func() solver.Solver {
		s := solver.NewGreedySolver()
		s.SetWorkers(cfg.Workers)
		s.SetMaxCells(cfg.MaxCells)
		return s
	})

	reorder := cfg.Reorder
	if reorder.Seed == 0 {
		reorder.Seed = cfg.Seed
	}
	r.Register(optimizer.NameReorder, func() solver.Solver {
		return optimizer.NewReorderOptimizer(reorder)
	})

	genetic := cfg.Genetic
	if genetic.Seed == 0 {
		genetic.Seed = cfg.Seed
	}
	if genetic.Workers == 0 {
		genetic.Workers = cfg.Workers
	}
	r.Register(optimizer.NameGenetic, func() solver.Solver {
		return optimizer.NewGeneticOptimizer(genetic)
	})
	return r
}

// Engine 引擎配置
func (r *Runner) Engine() config.EngineConfig {
	return r.engine
}

// Strategies 可用策略名称
func (r *Runner) Strategies() []string {
	return r.registry.Names()
}

// Run 依次处理各学科快照
func (r *Runner) Run(ctx context.Context, snapshots []*model.Snapshot) []Outcome {
	outcomes := make([]Outcome, 0, len(snapshots))
	for _, snap := range snapshots {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, r.failed(snap, r.engine.Strategy, err))
			continue
		}
		outcomes = append(outcomes, r.RunOne(ctx, snap, ""))
	}
	return outcomes
}

// RunOne 处理单个学科，strategy 为空时使用配置的策略
func (r *Runner) RunOne(ctx context.Context, snap *model.Snapshot, strategy string) Outcome {
	if strategy == "" {
		strategy = r.engine.Strategy
	}
	if snap == nil {
		return r.failed(snap, strategy, errors.InvalidInput("snapshot", "快照不能为空"))
	}

	done := r.metrics.RunStarted()
	defer done()

	if r.engine.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.engine.RunTimeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, logger.DisciplineKey, int64(snap.Discipline.ID))
	log := logger.WithContext(ctx)

	start := time.Now()
	out := r.run(ctx, snap, strategy)
	elapsed := time.Since(start)

	var evaluations int64
	if out.Result != nil {
		evaluations = int64(out.Result.Statistics.Evaluations)
	}
	r.metrics.RecordRun(strategy, out.Err == nil, elapsed, evaluations)

	if out.Err != nil {
		log.Error().Err(out.Err).Str("strategy", strategy).Msg("学科分配失败")
		return out
	}

	discipline := strconv.FormatInt(int64(snap.Discipline.ID), 10)
	r.metrics.SetQuality(discipline, strategy,
		out.Report.TotalPoints.Float64(), out.Report.QualityGap.Float64(),
		out.Report.QualityRatio, out.Report.PointsGini)

	log.Info().
		Str("strategy", strategy).
		Str("points", out.Result.TotalPoints.String()).
		Str("ceiling", out.Report.Ceiling.String()).
		Float64("quality_ratio", out.Report.QualityRatio).
		Int("conflicts", len(out.Conflicts)).
		Bool("resumed", out.Resumed).
		Dur("duration", elapsed).
		Msg("学科分配完成")
	return out
}

func (r *Runner) run(ctx context.Context, snap *model.Snapshot, strategy string) Outcome {
	out := Outcome{DisciplineID: snap.Discipline.ID, Strategy: strategy}

	run, err := constraint.NewContext(snap)
	if err != nil {
		out.Err = err
		return out
	}

	s, err := r.registry.New(strategy)
	if err != nil {
		out.Err = err
		return out
	}
	if opt, ok := s.(resumable); ok && r.checkpointing() {
		out.Resumed = r.attach(ctx, opt, run, strategy)
	}

	res, err := s.Solve(ctx, run)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result = res

	out.Conflicts = validator.Validate(run, res)
	for _, c := range out.Conflicts {
		r.metrics.RecordConflict(string(c.Type), c.Severity)
	}
	if validator.HasErrors(out.Conflicts) {
		out.Err = errors.New(errors.CodeInternal, "分配结果未通过校验").
			WithField("conflicts", len(out.Conflicts))
		return out
	}

	out.Report, err = r.analyzer.Analyze(run, res)
	if err != nil {
		out.Err = err
	}
	return out
}

func (r *Runner) checkpointing() bool {
	return r.store != nil && r.checkpoint.Enabled
}

// attach 恢复最近断点并注册保存回调，返回是否恢复成功
func (r *Runner) attach(ctx context.Context, opt resumable, run *constraint.Context, strategy string) bool {
	opt.OnImprove(checkpoint.Recorder(ctx, r.store, run, strategy, r.checkpoint.Interval))
	if !r.checkpoint.Resume {
		return false
	}

	cp, err := r.store.Latest(ctx, run.Discipline.ID, strategy)
	if errors.Is(err, errors.CodeNotFound) {
		return false
	}
	if err != nil {
		logger.WithContext(ctx).Warn().Err(err).Str("strategy", strategy).Msg("读取断点失败，从头开始")
		return false
	}
	opt.SetInitialOrder(cp.Order)
	logger.WithContext(ctx).Info().
		Str("strategy", strategy).
		Str("points", cp.Points.String()).
		Int("generation", cp.Generation).
		Msg("从断点恢复")
	return true
}

func (r *Runner) failed(snap *model.Snapshot, strategy string, err error) Outcome {
	out := Outcome{Strategy: strategy, Err: err}
	if snap != nil {
		out.DisciplineID = snap.Discipline.ID
	}
	r.metrics.RecordRun(strategy, false, 0, 0)
	return out
}

// countingStore 统计断点保存结果
type countingStore struct {
	checkpoint.Store
	metrics *metrics.Registry
}

func (s *countingStore) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	err := s.Store.Save(ctx, cp)
	s.metrics.RecordCheckpointSave(err == nil)
	return err
}
