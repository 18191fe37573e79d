package constraint

// Type 规则类型标识
type Type string

const (
	TypeNone         Type = ""
	TypeDuplicate    Type = "duplicate"        // 候选已入选
	TypeInstitution  Type = "institution_pool" // 机构配额池
	TypeAuthorCap    Type = "author_cap"       // 作者总配额
	TypeMonographCap Type = "monograph_cap"    // 作者专著配额
)

// Rule 准入规则。所有容量比较都是"是否会超出"（严格大于）：
// 恰好填满剩余容量的候选被准入，略微溢出的候选被拒绝
type Rule interface {
	// Name 返回规则名称
	Name() string

	// Type 返回规则类型
	Type() Type

	// Admissible 判断候选在当前状态下能否准入
	Admissible(ctx *Context, st *State, i int) bool
}

// DefaultRules 默认规则链，顺序即检查顺序
func DefaultRules() []Rule {
	return []Rule{
		duplicateRule{},
		institutionRule{},
		authorCapRule{},
		monographCapRule{},
	}
}

// duplicateRule 拒绝已入选的候选
type duplicateRule struct{}

func (duplicateRule) Name() string { return "重复入选" }
func (duplicateRule) Type() Type   { return TypeDuplicate }

func (duplicateRule) Admissible(_ *Context, st *State, i int) bool {
	return !st.selected[i]
}

// institutionRule 机构配额池检查，仅在配置了机构配额时生效。
// 宽松池：当前总量低于 cap-slack 时无条件准入
type institutionRule struct{}

func (institutionRule) Name() string { return "机构配额" }
func (institutionRule) Type() Type   { return TypeInstitution }

func (institutionRule) Admissible(ctx *Context, st *State, i int) bool {
	if ctx.Institution == nil {
		return true
	}
	cost := ctx.Candidates[i].SlotCost
	for _, p := range ctx.candidatePools[i] {
		pool := &ctx.Institution.Pools[p]
		total := st.poolTotal[p]
		if pool.Lenient && total < pool.Threshold() {
			continue
		}
		if total+cost > pool.Cap {
			return false
		}
	}
	return true
}

// authorCapRule 作者总配额
type authorCapRule struct{}

func (authorCapRule) Name() string { return "作者配额" }
func (authorCapRule) Type() Type   { return TypeAuthorCap }

func (authorCapRule) Admissible(ctx *Context, st *State, i int) bool {
	a := ctx.candidateAuthor[i]
	return st.authorTotal[a]+ctx.Candidates[i].SlotCost <= ctx.Budgets[a].TotalCap
}

// monographCapRule 作者专著配额，仅对专著生效
type monographCapRule struct{}

func (monographCapRule) Name() string { return "专著配额" }
func (monographCapRule) Type() Type   { return TypeMonographCap }

func (monographCapRule) Admissible(ctx *Context, st *State, i int) bool {
	cand := &ctx.Candidates[i]
	if !cand.IsMonograph {
		return true
	}
	a := ctx.candidateAuthor[i]
	return st.authorMono[a]+cand.SlotCost <= ctx.Budgets[a].MonographCap
}
