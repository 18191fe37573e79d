package optimizer

import (
	"errors"
)

// ErrIterationExhausted 试验网格已遍历完
var ErrIterationExhausted = errors.New("试验网格已遍历完")

// Trial 一次窗口重排试验
type Trial struct {
	Start  int `json:"start"`
	Width  int `json:"width"`
	Repeat int `json:"repeat"`
}

// TrialGrid 窗口宽度 × 起始位置 × 重复次数的有限试验序列，
// 调度与随机源无关
type TrialGrid struct {
	n         int
	minWidth  int
	maxWidth  int
	widthStep int
	startStep int
	repeats   int
	cur       Trial
	started   bool
	exhausted bool
	generated int
}

// NewTrialGrid 为 n 个候选创建试验网格，宽度上限截断到 n
func NewTrialGrid(n int, cfg ReorderConfig) *TrialGrid {
	g := &TrialGrid{
		n:         n,
		minWidth:  max(cfg.MinWindow, 2),
		maxWidth:  min(cfg.MaxWindow, n),
		widthStep: max(cfg.WindowStep, 1),
		startStep: max(cfg.StartStep, 1),
		repeats:   max(cfg.Repeats, 1),
	}
	if g.minWidth > g.maxWidth {
		g.exhausted = true
	}
	return g
}

// Next 返回下一次试验，遍历完后返回 ErrIterationExhausted
func (g *TrialGrid) Next() (Trial, error) {
	if g.exhausted {
		return Trial{}, ErrIterationExhausted
	}
	if !g.started {
		g.started = true
		g.cur = Trial{Start: 0, Width: g.minWidth}
		g.generated++
		return g.cur, nil
	}

	t := g.cur
	t.Repeat++
	if t.Repeat >= g.repeats {
		t.Repeat = 0
		t.Start += g.startStep
		if t.Start+t.Width > g.n {
			t.Start = 0
			t.Width += g.widthStep
			if t.Width > g.maxWidth {
				g.exhausted = true
				return Trial{}, ErrIterationExhausted
			}
		}
	}
	g.cur = t
	g.generated++
	return t, nil
}

// Generated 已生成的试验数
func (g *TrialGrid) Generated() int {
	return g.generated
}

// Size 网格总试验数
func (g *TrialGrid) Size() int {
	if g.minWidth > g.maxWidth {
		return 0
	}
	total := 0
	for w := g.minWidth; w <= g.maxWidth; w += g.widthStep {
		starts := (g.n-w)/g.startStep + 1
		total += starts * g.repeats
	}
	return total
}
