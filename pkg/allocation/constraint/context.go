// Package constraint 定义准入规则与单次运行上下文
package constraint

import (
	"sort"

	"github.com/bpp/sloty/pkg/allocation/budget"
	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/model"
	"github.com/google/uuid"
)

// Context 单次运行上下文：学科快照加载后预先构建的查找表，
// 按引用传给所有策略，运行期间只读
type Context struct {
	RunID       uuid.UUID            `json:"run_id"`
	Discipline  model.Discipline     `json:"discipline"`
	Window      model.Window         `json:"window"`
	Candidates  []model.Candidate    `json:"candidates"`
	Authors     []model.Author       `json:"authors"`
	Budgets     []model.AuthorBudget `json:"budgets"` // 与 Authors 下标对应
	Institution *budget.Institution  `json:"institution,omitempty"`

	// 索引缓存
	candidateIdx    map[model.CandidateID]int
	authorIdx       map[model.AuthorID]int
	candidateAuthor []int
	candidatePools  [][]int
	byAuthor        [][]int
	hasBudget       []bool
	totalValue      model.Fixed
}

// NewContext 根据快照构建运行上下文，并校验数据完整性与配置
func NewContext(snap *model.Snapshot) (*Context, error) {
	if snap == nil {
		return nil, errors.InvalidInput("snapshot", "快照不能为空")
	}

	inst, err := budget.FromSpec(snap.Institution, snap.Discipline.HST)
	if err != nil {
		return nil, err
	}

	c := &Context{
		RunID:           uuid.New(),
		Discipline:      snap.Discipline,
		Window:          snap.Window,
		Candidates:      make([]model.Candidate, len(snap.Candidates)),
		Authors:         make([]model.Author, len(snap.Authors)),
		Budgets:         make([]model.AuthorBudget, len(snap.Authors)),
		Institution:     inst,
		candidateIdx:    make(map[model.CandidateID]int, len(snap.Candidates)),
		authorIdx:       make(map[model.AuthorID]int, len(snap.Authors)),
		candidateAuthor: make([]int, len(snap.Candidates)),
		candidatePools:  make([][]int, len(snap.Candidates)),
		byAuthor:        make([][]int, len(snap.Authors)),
		hasBudget:       make([]bool, len(snap.Authors)),
	}
	copy(c.Candidates, snap.Candidates)
	copy(c.Authors, snap.Authors)

	for i, a := range c.Authors {
		if _, dup := c.authorIdx[a.ID]; dup {
			return nil, errors.DataIntegrity("作者 %d 重复", a.ID)
		}
		c.authorIdx[a.ID] = i
	}

	for _, b := range snap.Budgets {
		ai, ok := c.authorIdx[b.AuthorID]
		if !ok {
			// 没有候选的作者配额不影响计算
			continue
		}
		if c.hasBudget[ai] {
			return nil, errors.Configuration("作者 %d 配额重复", b.AuthorID)
		}
		if b.TotalCap < 0 || b.MonographCap < 0 {
			return nil, errors.Configuration("作者 %d 配额不能为负数", b.AuthorID)
		}
		if b.MonographCap > b.TotalCap {
			return nil, errors.Configuration("作者 %d 专著配额 %s 超过总配额 %s", b.AuthorID, b.MonographCap, b.TotalCap)
		}
		c.Budgets[ai] = b
		c.hasBudget[ai] = true
	}

	// 分值与槽位总和不溢出时，任何子集的累计值都不会溢出
	var totalSlots model.Fixed
	for i := range c.Candidates {
		cand := &c.Candidates[i]
		if _, dup := c.candidateIdx[cand.ID]; dup {
			return nil, errors.DataIntegrity("候选 %d 重复", cand.ID)
		}
		if cand.DisciplineID != c.Discipline.ID {
			return nil, errors.DataIntegrity("候选 %d 引用未知学科 %d", cand.ID, cand.DisciplineID)
		}
		ai, ok := c.authorIdx[cand.AuthorID]
		if !ok {
			return nil, errors.DataIntegrity("候选 %d 引用未知作者 %d", cand.ID, cand.AuthorID)
		}
		if !c.hasBudget[ai] {
			return nil, errors.Configuration("作者 %d 有候选但没有配额", cand.AuthorID)
		}
		if cand.SlotCost < 0 || cand.PointValue < 0 {
			return nil, errors.InvalidInput("candidates", "候选槽位成本与分值不能为负数")
		}
		if !c.Window.Contains(cand.Year) {
			return nil, errors.DataIntegrity("候选 %d 年份 %d 不在评估窗口内", cand.ID, cand.Year)
		}

		c.candidateIdx[cand.ID] = i
		c.candidateAuthor[i] = ai
		c.byAuthor[ai] = append(c.byAuthor[ai], i)
		if c.totalValue, err = c.totalValue.AddChecked(cand.PointValue); err != nil {
			return nil, errors.NumericOverflow("学科 %d 候选分值总和超出定点数范围", c.Discipline.ID).WithCause(err)
		}
		if totalSlots, err = totalSlots.AddChecked(cand.SlotCost); err != nil {
			return nil, errors.NumericOverflow("学科 %d 候选槽位总和超出定点数范围", c.Discipline.ID).WithCause(err)
		}

		if inst != nil {
			for p := range inst.Pools {
				if inst.Pools[p].Covers(cand) {
					c.candidatePools[i] = append(c.candidatePools[i], p)
				}
			}
		}
	}

	return c, nil
}

// SetInstitution 替换机构配额并重建候选-配额池索引
func (c *Context) SetInstitution(inst *budget.Institution) {
	c.Institution = inst
	for i := range c.Candidates {
		c.candidatePools[i] = nil
		if inst == nil {
			continue
		}
		for p := range inst.Pools {
			if inst.Pools[p].Covers(&c.Candidates[i]) {
				c.candidatePools[i] = append(c.candidatePools[i], p)
			}
		}
	}
}

// Len 候选数量
func (c *Context) Len() int {
	return len(c.Candidates)
}

// Candidate 获取候选
func (c *Context) Candidate(i int) *model.Candidate {
	return &c.Candidates[i]
}

// CandidateIndex 根据ID获取候选下标
func (c *Context) CandidateIndex(id model.CandidateID) (int, bool) {
	i, ok := c.candidateIdx[id]
	return i, ok
}

// AuthorOf 候选所属作者下标
func (c *Context) AuthorOf(i int) int {
	return c.candidateAuthor[i]
}

// AuthorIndex 根据ID获取作者下标
func (c *Context) AuthorIndex(id model.AuthorID) (int, bool) {
	i, ok := c.authorIdx[id]
	return i, ok
}

// AuthorCount 作者数量
func (c *Context) AuthorCount() int {
	return len(c.Authors)
}

// AuthorCandidates 作者的候选下标（输入顺序）
func (c *Context) AuthorCandidates(a int) []int {
	return c.byAuthor[a]
}

// Budget 作者配额
func (c *Context) Budget(a int) model.AuthorBudget {
	return c.Budgets[a]
}

// HasInstitution 是否启用机构配额
func (c *Context) HasInstitution() bool {
	return c.Institution != nil && len(c.Institution.Pools) > 0
}

// Pools 机构配额池
func (c *Context) Pools() []budget.Pool {
	if c.Institution == nil {
		return nil
	}
	return c.Institution.Pools
}

// PoolsOf 候选所属的配额池下标
func (c *Context) PoolsOf(i int) []int {
	return c.candidatePools[i]
}

// TotalValue 所有候选分值之和（理论最大值）
func (c *Context) TotalValue() model.Fixed {
	return c.totalValue
}

// AuthorOrder 按排序依据降序返回作者下标，同分按作者ID升序
func (c *Context) AuthorOrder() []int {
	order := make([]int, len(c.Authors))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		ai, aj := c.Authors[order[i]], c.Authors[order[j]]
		if ai.Rank != aj.Rank {
			return ai.Rank > aj.Rank
		}
		return ai.ID < aj.ID
	})
	return order
}

// IdentityOrder 返回输入顺序 0..n-1
func (c *Context) IdentityOrder() []int {
	order := make([]int, len(c.Candidates))
	for i := range order {
		order[i] = i
	}
	return order
}
