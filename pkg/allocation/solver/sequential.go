package solver

import (
	"context"
	"time"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/logger"
	"github.com/bpp/sloty/pkg/model"
)

// NameSequential 顺序准入策略名称
const NameSequential = "sequential"

// SequentialSolver 顺序准入求解器：按调用方给定顺序逐个准入，O(n)，无回溯
type SequentialSolver struct {
	order  []model.CandidateID
	logger *logger.AllocationLogger
}

// NewSequentialSolver 创建顺序准入求解器
func NewSequentialSolver() *SequentialSolver {
	return &SequentialSolver{
		logger: logger.NewAllocationLogger(NameSequential),
	}
}

// Name 返回求解器名称
func (s *SequentialSolver) Name() string {
	return NameSequential
}

// SetOrder 设置候选顺序；未出现在顺序中的候选按输入顺序追加在后
func (s *SequentialSolver) SetOrder(order []model.CandidateID) {
	s.order = order
}

// Solve 按设定顺序运行顺序准入
func (s *SequentialSolver) Solve(ctx context.Context, run *constraint.Context) (*model.SelectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logger.StartRun(run.RunID.String(), int64(run.Discipline.ID), run.Len(), run.AuthorCount())

	res := s.Run(run, ResolveOrder(run, s.order))
	s.logger.RunComplete(res.RunID.String(), res.Duration, res.TotalPoints.Float64(), res.TotalSlots.Float64(), len(res.Selected))
	return res, nil
}

// Run 按下标顺序运行一次顺序准入并生成结果
func (s *SequentialSolver) Run(run *constraint.Context, order []int) *model.SelectionResult {
	started := time.Now()
	e := constraint.NewEngine(run)
	for _, i := range order {
		ok, rule := e.Check(i)
		if !ok {
			s.logger.Rejected(int64(run.Candidates[i].ID), string(rule))
			continue
		}
		e.Admit(i)
	}
	return e.Result(NameSequential, model.Statistics{Evaluations: 1}, started)
}

// ResolveOrder 将候选ID顺序转换为下标顺序，忽略未知或重复ID，
// 缺失的候选按输入顺序追加
func ResolveOrder(run *constraint.Context, ids []model.CandidateID) []int {
	if len(ids) == 0 {
		return run.IdentityOrder()
	}
	seen := make([]bool, run.Len())
	order := make([]int, 0, run.Len())
	for _, id := range ids {
		i, ok := run.CandidateIndex(id)
		if !ok || seen[i] {
			continue
		}
		seen[i] = true
		order = append(order, i)
	}
	for i := range seen {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order
}
