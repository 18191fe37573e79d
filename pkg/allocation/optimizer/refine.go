package optimizer

import (
	"context"
	"math/rand"
	"time"

	"github.com/bpp/sloty/pkg/allocation/solver"
	"github.com/bpp/sloty/pkg/model"
)

// WindowBudget 随机窗口细化的预算
type WindowBudget struct {
	Width    int           // 窗口宽度，截断到候选数
	Duration time.Duration // 墙钟时间上限，<=0 表示不限
	Attempts int           // 尝试次数上限，<=0 表示不限
}

// Bubble 冒泡细化：前向一轮把每个未入选候选移到最前，后向一轮把每个入选候选移到最后，
// 只保留提高总分的移动；前后两轮都没有提升时结束
func Bubble(ctx context.Context, f *solver.Fitness, order []int) ([]int, model.Fixed, error) {
	n := len(order)
	best := cloneOrder(order)
	bestPoints := f.Evaluate(best)
	if n < 2 {
		return best, bestPoints, nil
	}
	selected := snapshotSelected(f, n)
	trial := make([]int, n)
	walk := make([]int, n)

	for {
		gained := false

		for _, toFront := range []bool{true, false} {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
			copy(walk, best)
			for _, c := range walk {
				// 前向只移动未入选候选，后向只移动入选候选
				if selected[c] == toFront {
					continue
				}
				if toFront {
					moveToFront(trial, best, c)
				} else {
					moveToBack(trial, best, c)
				}
				if p := f.Evaluate(trial); p > bestPoints {
					best, trial = trial, best
					bestPoints = p
					selected = snapshotSelected(f, n)
					gained = true
				}
			}
		}

		if !gained {
			break
		}
	}
	return best, bestPoints, nil
}

// SwapPass 两两交换细化，直到一整轮没有提升，复杂度 O(n²) 次评估
func SwapPass(ctx context.Context, f *solver.Fitness, order []int) ([]int, model.Fixed, error) {
	best := cloneOrder(order)
	bestPoints := f.Evaluate(best)

	for improved := true; improved; {
		improved = false
		for i := 0; i < len(best)-1; i++ {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
			for j := i + 1; j < len(best); j++ {
				best[i], best[j] = best[j], best[i]
				if p := f.Evaluate(best); p > bestPoints {
					bestPoints = p
					improved = true
					continue
				}
				best[i], best[j] = best[j], best[i]
			}
		}
	}
	return best, bestPoints, nil
}

// RandomWindow 在时间与次数预算内随机打乱窗口，保留提高总分的顺序
func RandomWindow(ctx context.Context, f *solver.Fitness, rng *rand.Rand, order []int, budget WindowBudget) ([]int, model.Fixed, error) {
	n := len(order)
	best := cloneOrder(order)
	bestPoints := f.Evaluate(best)

	width := min(budget.Width, n)
	if width < 2 || (budget.Duration <= 0 && budget.Attempts <= 0) {
		return best, bestPoints, nil
	}

	var deadline time.Time
	if budget.Duration > 0 {
		deadline = time.Now().Add(budget.Duration)
	}
	trial := make([]int, n)
	for attempt := 0; budget.Attempts <= 0 || attempt < budget.Attempts; attempt++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		copy(trial, best)
		shuffleWindow(rng, trial, rng.Intn(n-width+1), width)
		if p := f.Evaluate(trial); p > bestPoints {
			best, trial = trial, best
			bestPoints = p
		}
	}
	return best, bestPoints, nil
}

func snapshotSelected(f *solver.Fitness, n int) []bool {
	selected := make([]bool, n)
	for i := range selected {
		selected[i] = f.IsSelected(i)
	}
	return selected
}

// moveToFront dst = [c] + src 去掉 c
func moveToFront(dst, src []int, c int) {
	dst[0] = c
	k := 1
	for _, x := range src {
		if x != c {
			dst[k] = x
			k++
		}
	}
}

// moveToBack dst = src 去掉 c + [c]
func moveToBack(dst, src []int, c int) {
	k := 0
	for _, x := range src {
		if x != c {
			dst[k] = x
			k++
		}
	}
	dst[k] = c
}
