// Package model 定义分配引擎的核心数据模型
package model

// CandidateID 候选唯一标识（作者-出版物-学科三元组）
type CandidateID int64

// AuthorID 作者标识
type AuthorID int64

// DisciplineID 学科标识
type DisciplineID int64

// Candidate 可计入评估的候选出版物，加载后不可变
type Candidate struct {
	ID           CandidateID  `json:"id" validate:"required"`
	AuthorID     AuthorID     `json:"author_id" validate:"required"`
	DisciplineID DisciplineID `json:"discipline_id" validate:"required"`
	Year         int          `json:"year" validate:"required"`
	SlotCost     Fixed        `json:"slot_cost"`
	PointValue   Fixed        `json:"point_value"`
	IsMonograph  bool         `json:"is_monograph"`
	Title        string       `json:"title,omitempty"` // 仅用于报表
}

// Author 作者
type Author struct {
	ID   AuthorID `json:"id" validate:"required"`
	Name string   `json:"name,omitempty"`
	Rank Fixed    `json:"rank"` // 外部提供的排序依据（如历史总分），贪心策略按降序处理
}

// AuthorBudget 作者槽位配额
type AuthorBudget struct {
	AuthorID     AuthorID `json:"author_id" validate:"required"`
	TotalCap     Fixed    `json:"total_cap"`
	MonographCap Fixed    `json:"monograph_cap"` // 必须 ≤ TotalCap
}

// Discipline 学科
type Discipline struct {
	ID   DisciplineID `json:"id" validate:"required"`
	Code string       `json:"code,omitempty"`
	Name string       `json:"name,omitempty"`
	HST  bool         `json:"hst"` // 人文社科神学类学科，专著比例上限 20%
}

// BudgetScheme 机构配额方案
type BudgetScheme string

const (
	SchemeLegacy       BudgetScheme = "legacy"        // 两期方案：2.2N + 0.8N
	SchemeSinglePeriod BudgetScheme = "single_period" // 单期方案：3N + 专著比例
)

// InstitutionSpec 机构级配额声明，由外部给出 N 值
type InstitutionSpec struct {
	Scheme    BudgetScheme `json:"scheme" validate:"required,oneof=legacy single_period"`
	N         Fixed        `json:"n"`
	SplitYear int          `json:"split_year,omitempty"` // 仅两期方案：≥ SplitYear 为近期
}

// Window 评估时间窗口
type Window struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains 年份是否在窗口内
func (w Window) Contains(year int) bool {
	if w.From != 0 && year < w.From {
		return false
	}
	if w.To != 0 && year > w.To {
		return false
	}
	return true
}

// Snapshot 单个学科/窗口的输入快照，由外部加载器一次性构建
type Snapshot struct {
	Discipline  Discipline       `json:"discipline"`
	Window      Window           `json:"window"`
	Authors     []Author         `json:"authors" validate:"dive"`
	Budgets     []AuthorBudget   `json:"budgets" validate:"dive"`
	Candidates  []Candidate      `json:"candidates" validate:"dive"`
	Institution *InstitutionSpec `json:"institution,omitempty"`
}
