package constraint

import (
	"time"

	"github.com/bpp/sloty/pkg/model"
)

// State 准入状态：已入选集合及各项累计值
type State struct {
	selected    []bool
	order       []int
	authorTotal []model.Fixed
	authorMono  []model.Fixed
	poolTotal   []model.Fixed
	points      model.Fixed
	slots       model.Fixed
}

// newState 创建空状态
func newState(ctx *Context) *State {
	return &State{
		selected:    make([]bool, ctx.Len()),
		order:       make([]int, 0, ctx.Len()),
		authorTotal: make([]model.Fixed, ctx.AuthorCount()),
		authorMono:  make([]model.Fixed, ctx.AuthorCount()),
		poolTotal:   make([]model.Fixed, len(ctx.Pools())),
	}
}

// reset 清空状态（复用已分配的内存）
func (s *State) reset() {
	for i := range s.selected {
		s.selected[i] = false
	}
	for i := range s.authorTotal {
		s.authorTotal[i] = 0
		s.authorMono[i] = 0
	}
	for i := range s.poolTotal {
		s.poolTotal[i] = 0
	}
	s.order = s.order[:0]
	s.points = 0
	s.slots = 0
}

// Engine 准入控制状态机。非并发安全，每个 goroutine 使用独立实例
type Engine struct {
	ctx   *Context
	rules []Rule
	state *State
}

// NewEngine 使用默认规则链创建准入引擎
func NewEngine(ctx *Context) *Engine {
	return NewEngineWithRules(ctx, DefaultRules())
}

// NewEngineWithRules 使用自定义规则链创建准入引擎
func NewEngineWithRules(ctx *Context, rules []Rule) *Engine {
	return &Engine{
		ctx:   ctx,
		rules: rules,
		state: newState(ctx),
	}
}

// Context 返回运行上下文
func (e *Engine) Context() *Context {
	return e.ctx
}

// Check 按顺序检查所有规则，返回第一个不满足的规则类型
func (e *Engine) Check(i int) (bool, Type) {
	for _, r := range e.rules {
		if !r.Admissible(e.ctx, e.state, i) {
			return false, r.Type()
		}
	}
	return true, TypeNone
}

// CanAdmit 检查候选能否准入
func (e *Engine) CanAdmit(i int) bool {
	ok, _ := e.Check(i)
	return ok
}

// Admit 准入候选并更新累计值。调用方必须先调用 CanAdmit
func (e *Engine) Admit(i int) {
	cand := &e.ctx.Candidates[i]
	a := e.ctx.candidateAuthor[i]
	st := e.state

	st.selected[i] = true
	st.order = append(st.order, i)
	st.authorTotal[a] += cand.SlotCost
	if cand.IsMonograph {
		st.authorMono[a] += cand.SlotCost
	}
	for _, p := range e.ctx.candidatePools[i] {
		st.poolTotal[p] += cand.SlotCost
	}
	st.points += cand.PointValue
	st.slots += cand.SlotCost
}

// TryAdmit 能准入则准入
func (e *Engine) TryAdmit(i int) bool {
	if !e.CanAdmit(i) {
		return false
	}
	e.Admit(i)
	return true
}

// Reset 清空状态
func (e *Engine) Reset() {
	e.state.reset()
}

// IsSelected 候选是否已入选
func (e *Engine) IsSelected(i int) bool {
	return e.state.selected[i]
}

// Selected 入选候选下标（入选顺序）
func (e *Engine) Selected() []int {
	out := make([]int, len(e.state.order))
	copy(out, e.state.order)
	return out
}

// Points 已入选分值总和
func (e *Engine) Points() model.Fixed {
	return e.state.points
}

// Slots 已入选槽位总和
func (e *Engine) Slots() model.Fixed {
	return e.state.slots
}

// AuthorTotal 作者已用槽位
func (e *Engine) AuthorTotal(a int) model.Fixed {
	return e.state.authorTotal[a]
}

// AuthorMonographTotal 作者已用专著槽位
func (e *Engine) AuthorMonographTotal(a int) model.Fixed {
	return e.state.authorMono[a]
}

// RemainingTotal 作者剩余总配额
func (e *Engine) RemainingTotal(a int) model.Fixed {
	return e.ctx.Budgets[a].TotalCap - e.state.authorTotal[a]
}

// RemainingMonograph 作者剩余专著配额
func (e *Engine) RemainingMonograph(a int) model.Fixed {
	return e.ctx.Budgets[a].MonographCap - e.state.authorMono[a]
}

// PoolTotal 配额池已用槽位
func (e *Engine) PoolTotal(p int) model.Fixed {
	return e.state.poolTotal[p]
}

// Result 根据当前状态生成分配结果
func (e *Engine) Result(strategy string, stats model.Statistics, started time.Time) *model.SelectionResult {
	ctx := e.ctx
	st := e.state

	res := &model.SelectionResult{
		RunID:        ctx.RunID,
		DisciplineID: ctx.Discipline.ID,
		Strategy:     strategy,
		Selected:     make([]model.CandidateID, 0, len(st.order)),
		TotalPoints:  st.points,
		TotalSlots:   st.slots,
		Statistics:   stats,
		CreatedAt:    time.Now(),
	}
	if !started.IsZero() {
		res.Duration = time.Since(started)
	}

	points := make([]model.Fixed, ctx.AuthorCount())
	counts := make([]int, ctx.AuthorCount())
	for _, i := range st.order {
		res.Selected = append(res.Selected, ctx.Candidates[i].ID)
		a := ctx.candidateAuthor[i]
		points[a] += ctx.Candidates[i].PointValue
		counts[a]++
	}

	for a := range ctx.Authors {
		if len(ctx.byAuthor[a]) == 0 {
			continue
		}
		res.Authors = append(res.Authors, model.AuthorBreakdown{
			AuthorID:       ctx.Authors[a].ID,
			Points:         points[a],
			Slots:          st.authorTotal[a],
			MonographSlots: st.authorMono[a],
			TotalCap:       ctx.Budgets[a].TotalCap,
			MonographCap:   ctx.Budgets[a].MonographCap,
			Count:          counts[a],
		})
	}

	for p, pool := range ctx.Pools() {
		res.Pools = append(res.Pools, model.PoolBreakdown{
			Name:  pool.Name,
			Slots: st.poolTotal[p],
			Cap:   pool.Cap,
		})
	}

	return res
}
