// Package optimizer 提供基于顺序准入的元启发式优化：窗口重排局部搜索与遗传搜索
package optimizer

import (
	"context"
	"math/bits"
	"math/rand"
	"sort"
	"time"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/allocation/solver"
	"github.com/bpp/sloty/pkg/logger"
	"github.com/bpp/sloty/pkg/model"
)

// ImproveFunc 发现更优顺序时的回调（用于断点保存），order 为候选下标，调用方不得修改
type ImproveFunc func(order []int, points model.Fixed, step int)

// Best 优化得到的最优顺序
type Best struct {
	Order  []int            `json:"order"`
	Points model.Fixed      `json:"points"`
	Stats  model.Statistics `json:"statistics"`
}

// Optimizer 基于候选顺序的优化器
type Optimizer interface {
	solver.Solver

	// Optimize 搜索最优顺序，initial 为空时使用默认初始顺序
	Optimize(ctx context.Context, run *constraint.Context, initial []int) (*Best, error)
}

// ValueOrder 按分值降序排列候选，同分保持输入顺序
func ValueOrder(run *constraint.Context) []int {
	order := run.IdentityOrder()
	sort.SliceStable(order, func(i, j int) bool {
		return run.Candidates[order[i]].PointValue > run.Candidates[order[j]].PointValue
	})
	return order
}

// DensityOrder 按分值/槽位密度降序排列候选；零成本候选排在最前，
// 同密度按分值降序，再按输入顺序
func DensityOrder(run *constraint.Context) []int {
	order := run.IdentityOrder()
	sort.SliceStable(order, func(i, j int) bool {
		a, b := run.Candidates[order[i]], run.Candidates[order[j]]
		switch {
		case a.SlotCost == 0 && b.SlotCost == 0:
			return a.PointValue > b.PointValue
		case a.SlotCost == 0:
			return true
		case b.SlotCost == 0:
			return false
		}
		// a.v/a.c > b.v/b.c，交叉相乘避免浮点误差
		left := mulWide(int64(a.PointValue), int64(b.SlotCost))
		right := mulWide(int64(b.PointValue), int64(a.SlotCost))
		if c := left.cmp(right); c != 0 {
			return c > 0
		}
		return a.PointValue > b.PointValue
	})
	return order
}

// solve 运行优化并在最优顺序上生成结果
func solve(ctx context.Context, o Optimizer, log *logger.AllocationLogger, run *constraint.Context, initial []int) (*model.SelectionResult, error) {
	started := time.Now()
	best, err := o.Optimize(ctx, run, initial)
	if err != nil {
		return nil, err
	}
	e := constraint.NewEngine(run)
	solver.Admit(e, best.Order)
	res := e.Result(o.Name(), best.Stats, started)
	log.RunComplete(res.RunID.String(), res.Duration, res.TotalPoints.Float64(), res.TotalSlots.Float64(), len(res.Selected))
	return res, nil
}

// newRand 创建随机源，seed 为 0 时使用当前时间
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func cloneOrder(order []int) []int {
	out := make([]int, len(order))
	copy(out, order)
	return out
}

// shuffleWindow 原地打乱 order[start:start+width]
func shuffleWindow(rng *rand.Rand, order []int, start, width int) {
	w := order[start : start+width]
	rng.Shuffle(len(w), func(i, j int) { w[i], w[j] = w[j], w[i] })
}

// wide 128 位无符号整数，用于比较密度
type wide struct{ hi, lo uint64 }

func mulWide(a, b int64) wide {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	return wide{hi: hi, lo: lo}
}

func (w wide) cmp(o wide) int {
	switch {
	case w.hi != o.hi:
		if w.hi > o.hi {
			return 1
		}
		return -1
	case w.lo > o.lo:
		return 1
	case w.lo < o.lo:
		return -1
	}
	return 0
}
