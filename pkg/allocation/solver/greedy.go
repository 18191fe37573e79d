package solver

import (
	"context"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/allocation/knapsack"
	"github.com/bpp/sloty/pkg/logger"
	"github.com/bpp/sloty/pkg/model"
)

// NameGreedy 按作者背包策略名称
const NameGreedy = "greedy"

// GreedySolver 按作者贪心求解器：作者按排序依据降序处理，
// 每位作者在自身配额内做精确背包，入选结果再逐个经过准入引擎
type GreedySolver struct {
	workers  int
	maxCells int64
	logger   *logger.AllocationLogger
}

// NewGreedySolver 创建按作者贪心求解器
func NewGreedySolver() *GreedySolver {
	return &GreedySolver{
		workers:  runtime.NumCPU(),
		maxCells: knapsack.DefaultMaxCells,
		logger:   logger.NewAllocationLogger(NameGreedy),
	}
}

// Name 返回求解器名称
func (s *GreedySolver) Name() string {
	return NameGreedy
}

// SetWorkers 设置并行计算背包的协程数
func (s *GreedySolver) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

// SetMaxCells 设置单次背包动态规划表的规模上限
func (s *GreedySolver) SetMaxCells(n int64) {
	if n > 0 {
		s.maxCells = n
	}
}

// authorPlan 单个作者的背包方案
type authorPlan struct {
	refs  []int
	value model.Fixed
	calls int
}

// Solve 运行按作者贪心
func (s *GreedySolver) Solve(ctx context.Context, run *constraint.Context) (*model.SelectionResult, error) {
	started := time.Now()
	runID := run.RunID.String()
	s.logger.StartRun(runID, int64(run.Discipline.ID), run.Len(), run.AuthorCount())

	authors := run.AuthorOrder()

	// 每位作者只处理一次，处理时其配额尚未被消耗，
	// 因此各作者的背包方案互不依赖，可以并行计算
	plans := make([]authorPlan, run.AuthorCount())
	p := pool.New().WithMaxGoroutines(s.workers).WithContext(ctx).WithCancelOnError()
	for _, a := range authors {
		if len(run.AuthorCandidates(a)) == 0 {
			continue
		}
		a := a
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			plan, err := s.planAuthor(run, a)
			if err != nil {
				return err
			}
			plans[a] = plan
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		s.logger.RunFailed(runID, err)
		return nil, err
	}

	// 机构配额共享，准入必须按作者顺序串行
	e := constraint.NewEngine(run)
	stats := model.Statistics{}
	for _, a := range authors {
		stats.Iterations++
		stats.Evaluations += plans[a].calls
		for _, i := range plans[a].refs {
			ok, rule := e.Check(i)
			if !ok {
				s.logger.Rejected(int64(run.Candidates[i].ID), string(rule))
				continue
			}
			e.Admit(i)
		}
	}

	res := e.Result(NameGreedy, stats, started)
	s.logger.RunComplete(runID, res.Duration, res.TotalPoints.Float64(), res.TotalSlots.Float64(), len(res.Selected))
	return res, nil
}

// planAuthor 比较两种方案并返回分值更高者：
// 先在专著配额内选专著再用剩余总配额选论文，或完全不选专著。
// 分值相同时保留第一种
func (s *GreedySolver) planAuthor(run *constraint.Context, a int) (authorPlan, error) {
	b := run.Budget(a)

	var monographs, others []knapsack.Item
	for _, i := range run.AuthorCandidates(a) {
		c := run.Candidate(i)
		it := knapsack.Item{Weight: c.SlotCost, Value: c.PointValue, Ref: i}
		if c.IsMonograph {
			monographs = append(monographs, it)
		} else {
			others = append(others, it)
		}
	}

	monoCap := b.MonographCap
	if monoCap > b.TotalCap {
		monoCap = b.TotalCap
	}
	monoSol, err := knapsack.SolveWithLimit(monoCap, monographs, s.maxCells)
	if err != nil {
		return authorPlan{}, err
	}
	restSol, err := knapsack.SolveWithLimit(b.TotalCap-monoSol.Weight, others, s.maxCells)
	if err != nil {
		return authorPlan{}, err
	}
	skipSol, err := knapsack.SolveWithLimit(b.TotalCap, others, s.maxCells)
	if err != nil {
		return authorPlan{}, err
	}

	split := monoSol.Value + restSol.Value
	if skipSol.Value > split {
		return authorPlan{refs: skipSol.Refs, value: skipSol.Value, calls: 3}, nil
	}
	refs := make([]int, 0, len(monoSol.Refs)+len(restSol.Refs))
	refs = append(refs, monoSol.Refs...)
	refs = append(refs, restSol.Refs...)
	return authorPlan{refs: refs, value: split, calls: 3}, nil
}
