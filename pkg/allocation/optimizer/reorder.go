package optimizer

import (
	"context"
	"errors"
	"math/rand"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/allocation/solver"
	"github.com/bpp/sloty/pkg/logger"
	"github.com/bpp/sloty/pkg/model"
)

// NameReorder 窗口重排局部搜索策略名称
const NameReorder = "reorder"

// ReorderConfig 窗口重排配置
type ReorderConfig struct {
	MinWindow  int   `koanf:"min_window" json:"min_window"`   // 最小窗口宽度
	MaxWindow  int   `koanf:"max_window" json:"max_window"`   // 最大窗口宽度
	WindowStep int   `koanf:"window_step" json:"window_step"` // 宽度步长
	StartStep  int   `koanf:"start_step" json:"start_step"`   // 起始位置步长
	Repeats    int   `koanf:"repeats" json:"repeats"`         // 每个窗口的重排次数
	Seed       int64 `koanf:"seed" json:"seed"`               // 随机种子，0 表示使用当前时间
}

// DefaultReorderConfig 默认窗口重排配置
func DefaultReorderConfig() ReorderConfig {
	return ReorderConfig{
		MinWindow:  2,
		MaxWindow:  12,
		WindowStep: 2,
		StartStep:  1,
		Repeats:    3,
	}
}

// ReorderOptimizer 窗口重排局部搜索：从分值降序的顺序出发，
// 按网格逐个打乱连续窗口并重新运行顺序准入，保留最优顺序
type ReorderOptimizer struct {
	config    ReorderConfig
	rng       *rand.Rand
	initial   []model.CandidateID
	onImprove ImproveFunc
	logger    *logger.AllocationLogger
}

// NewReorderOptimizer 创建窗口重排优化器
func NewReorderOptimizer(cfg ReorderConfig) *ReorderOptimizer {
	return &ReorderOptimizer{
		config: cfg,
		rng:    newRand(cfg.Seed),
		logger: logger.NewAllocationLogger(NameReorder),
	}
}

// Name 返回求解器名称
func (o *ReorderOptimizer) Name() string {
	return NameReorder
}

// SetRand 注入随机源
func (o *ReorderOptimizer) SetRand(rng *rand.Rand) {
	o.rng = rng
}

// SetInitialOrder 设置初始顺序（断点续跑）
func (o *ReorderOptimizer) SetInitialOrder(order []model.CandidateID) {
	o.initial = order
}

// OnImprove 设置更优顺序回调
func (o *ReorderOptimizer) OnImprove(fn ImproveFunc) {
	o.onImprove = fn
}

// Solve 运行窗口重排并生成结果
func (o *ReorderOptimizer) Solve(ctx context.Context, run *constraint.Context) (*model.SelectionResult, error) {
	var initial []int
	if len(o.initial) > 0 {
		initial = solver.ResolveOrder(run, o.initial)
	}
	return solve(ctx, o, o.logger, run, initial)
}

// Optimize 遍历试验网格，返回最优顺序
func (o *ReorderOptimizer) Optimize(ctx context.Context, run *constraint.Context, initial []int) (*Best, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runID := run.RunID.String()
	o.logger.StartRun(runID, int64(run.Discipline.ID), run.Len(), run.AuthorCount())

	order := initial
	if len(order) != run.Len() {
		order = ValueOrder(run)
	}
	order = cloneOrder(order)

	fitness := solver.NewFitness(run)
	best := &Best{Order: order, Points: fitness.Evaluate(order)}
	ceiling := run.TotalValue()

	grid := NewTrialGrid(run.Len(), o.config)
	trial := cloneOrder(order)
	for best.Points < ceiling {
		if err := ctx.Err(); err != nil {
			o.logger.RunFailed(runID, err)
			return nil, err
		}

		t, err := grid.Next()
		if errors.Is(err, ErrIterationExhausted) {
			best.Stats.Exhausted = true
			break
		}

		copy(trial, best.Order)
		shuffleWindow(o.rng, trial, t.Start, t.Width)
		points := fitness.Evaluate(trial)
		if points > best.Points {
			best.Order, trial = trial, best.Order
			best.Points = points
			o.logger.Improvement(grid.Generated(), points.Float64())
			if o.onImprove != nil {
				o.onImprove(best.Order, best.Points, grid.Generated())
			}
		}
	}

	best.Stats.Iterations = grid.Generated()
	best.Stats.Evaluations = fitness.Evaluations()
	best.Stats.ReachedMaximum = best.Points == ceiling
	reason := "exhausted"
	if best.Stats.ReachedMaximum {
		reason = "maximum"
	}
	o.logger.Stopped(reason, best.Stats.Iterations, best.Points.Float64(), ceiling.Float64())
	return best, nil
}
