// Package knapsack 提供基于定点数的精确 0/1 背包求解
package knapsack

import (
	"math"
	"math/bits"

	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/model"
)

// DefaultMaxCells 动态规划表允许的最大单元数（容量刻度 × 物品数）
const DefaultMaxCells int64 = 1 << 26

// Item 背包物品
type Item struct {
	Weight model.Fixed
	Value  model.Fixed
	Ref    int // 调用方引用（通常为候选下标）
}

// Solution 求解结果
type Solution struct {
	Value  model.Fixed `json:"value"`
	Weight model.Fixed `json:"weight"`
	Refs   []int       `json:"refs"` // 按输入顺序
}

// Solve 求解 0/1 背包，返回价值最大的物品子集
func Solve(capacity model.Fixed, items []Item) (Solution, error) {
	return SolveWithLimit(capacity, items, DefaultMaxCells)
}

// SolveWithLimit 求解 0/1 背包，maxCells 限制动态规划表规模。
//
// 权重与容量均为 ×10000 的整数，再按非零权重的最大公约数缩小刻度。
// 只在严格更优时更新状态，因此等价最优解中总是选择按输入顺序扫描时先得到的那个，
// 保证报表可复现。
func SolveWithLimit(capacity model.Fixed, items []Item, maxCells int64) (Solution, error) {
	if capacity < 0 {
		return Solution{}, errors.InvalidInput("capacity", "容量不能为负数")
	}
	for _, it := range items {
		if it.Weight < 0 || it.Value < 0 {
			return Solution{}, errors.InvalidInput("items", "权重与价值不能为负数")
		}
	}

	empty := Solution{Refs: []int{}}
	if capacity == 0 || len(items) == 0 {
		return empty, nil
	}

	// 过滤超重物品并计算刻度
	feasible := make([]int, 0, len(items))
	var step uint64
	var valueSum int64
	for i, it := range items {
		if it.Weight > capacity {
			continue
		}
		if int64(it.Value) > math.MaxInt64-valueSum {
			return Solution{}, errors.NumericOverflow("物品价值总和超出定点数范围")
		}
		valueSum += int64(it.Value)
		feasible = append(feasible, i)
		if it.Weight > 0 {
			step = gcd(step, uint64(it.Weight))
		}
	}
	if len(feasible) == 0 {
		return empty, nil
	}
	if step == 0 {
		step = 1
	}

	capUnits := int64(uint64(capacity) / step)
	width := capUnits + 1
	if width > maxCells || width*int64(len(feasible)) > maxCells {
		return Solution{}, errors.NumericOverflow("背包表规模 %d×%d 超出上限 %d", width, len(feasible), maxCells)
	}

	dp := make([]int64, width)
	words := (width + 63) / 64
	keep := make([][]uint64, len(feasible))

	for k, idx := range feasible {
		w := int64(uint64(items[idx].Weight) / step)
		v := int64(items[idx].Value)
		row := make([]uint64, words)
		for c := capUnits; c >= w; c-- {
			if cand := dp[c-w] + v; cand > dp[c] {
				dp[c] = cand
				row[c>>6] |= 1 << uint(c&63)
			}
		}
		keep[k] = row
	}

	// 回溯最优子集
	chosen := make([]int, 0)
	c := capUnits
	for k := len(feasible) - 1; k >= 0; k-- {
		if keep[k][c>>6]&(1<<uint(c&63)) == 0 {
			continue
		}
		idx := feasible[k]
		chosen = append(chosen, idx)
		c -= int64(uint64(items[idx].Weight) / step)
	}

	sol := Solution{Refs: make([]int, 0, len(chosen))}
	for k := len(chosen) - 1; k >= 0; k-- {
		it := items[chosen[k]]
		sol.Refs = append(sol.Refs, it.Ref)
		sol.Value += it.Value
		sol.Weight += it.Weight
	}
	return sol, nil
}

// gcd 最大公约数
func gcd(a, b uint64) uint64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	shift := bits.TrailingZeros64(a | b)
	a >>= bits.TrailingZeros64(a)
	for b != 0 {
		b >>= bits.TrailingZeros64(b)
		if a > b {
			a, b = b, a
		}
		b -= a
	}
	return a << shift
}
