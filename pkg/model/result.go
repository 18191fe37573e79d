package model

import (
	"time"

	"github.com/google/uuid"
)

// SelectionResult 分配结果，生成后不再修改
type SelectionResult struct {
	RunID        uuid.UUID         `json:"run_id"`
	DisciplineID DisciplineID      `json:"discipline_id"`
	Strategy     string            `json:"strategy"`
	Selected     []CandidateID     `json:"selected"` // 按入选顺序，无重复
	TotalPoints  Fixed             `json:"total_points"`
	TotalSlots   Fixed             `json:"total_slots"`
	Authors      []AuthorBreakdown `json:"authors,omitempty"`
	Pools        []PoolBreakdown   `json:"pools,omitempty"`
	Statistics   Statistics        `json:"statistics"`
	Duration     time.Duration     `json:"duration"`
	CreatedAt    time.Time         `json:"created_at"`
}

// AuthorBreakdown 作者维度汇总
type AuthorBreakdown struct {
	AuthorID       AuthorID `json:"author_id"`
	Points         Fixed    `json:"points"`
	Slots          Fixed    `json:"slots"`
	MonographSlots Fixed    `json:"monograph_slots"`
	TotalCap       Fixed    `json:"total_cap"`
	MonographCap   Fixed    `json:"monograph_cap"`
	Count          int      `json:"count"`
}

// PoolBreakdown 机构配额池汇总
type PoolBreakdown struct {
	Name  string `json:"name"`
	Slots Fixed  `json:"slots"`
	Cap   Fixed  `json:"cap"`
}

// Statistics 求解统计
type Statistics struct {
	Evaluations    int  `json:"evaluations"`               // 顺序准入评估次数
	Iterations     int  `json:"iterations,omitempty"`      // 局部搜索试验次数
	Generations    int  `json:"generations,omitempty"`     // 遗传代数
	Exhausted      bool `json:"exhausted,omitempty"`       // 试验网格已耗尽
	Saturated      bool `json:"saturated,omitempty"`       // 连续多代无改进
	ReachedMaximum bool `json:"reached_maximum,omitempty"` // 达到理论最大值
}

// Contains 检查候选是否入选
func (r *SelectionResult) Contains(id CandidateID) bool {
	for _, s := range r.Selected {
		if s == id {
			return true
		}
	}
	return false
}
