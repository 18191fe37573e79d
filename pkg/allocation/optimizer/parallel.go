package optimizer

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/allocation/solver"
	"github.com/bpp/sloty/pkg/model"
)

// ParallelEvaluator 并行适应度评估器。
// 每个工作协程从引擎通道借出一份独占的准入状态，只回传标量分值
type ParallelEvaluator struct {
	workers     int
	engines     chan *constraint.Engine
	evaluations atomic.Int64
}

// NewParallelEvaluator 创建并行评估器，workers<=0 时使用 CPU 数
func NewParallelEvaluator(run *constraint.Context, workers int) *ParallelEvaluator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &ParallelEvaluator{
		workers: workers,
		engines: make(chan *constraint.Engine, workers),
	}
	for i := 0; i < workers; i++ {
		p.engines <- constraint.NewEngine(run)
	}
	return p
}

// EvaluateBatch 并行评估一批顺序，结果与输入一一对应
func (p *ParallelEvaluator) EvaluateBatch(ctx context.Context, orders [][]int) ([]model.Fixed, error) {
	results := make([]model.Fixed, len(orders))
	if len(orders) == 0 {
		return results, nil
	}

	cp := pool.New().WithMaxGoroutines(p.workers).WithContext(ctx)
	for i, order := range orders {
		i, order := i, order
		cp.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := <-p.engines
			results[i] = solver.Admit(e, order)
			p.engines <- e
			return nil
		})
	}
	if err := cp.Wait(); err != nil {
		return nil, err
	}
	p.evaluations.Add(int64(len(orders)))
	return results, nil
}

// Evaluations 累计评估次数
func (p *ParallelEvaluator) Evaluations() int {
	return int(p.evaluations.Load())
}

// Workers 工作协程数
func (p *ParallelEvaluator) Workers() int {
	return p.workers
}
