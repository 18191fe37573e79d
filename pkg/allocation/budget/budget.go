// Package budget 根据外部给出的 N 值推导机构级槽位配额池
package budget

import (
	"fmt"

	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/model"
	"github.com/shopspring/decimal"
)

// DefaultSplitYear 两期方案默认分界年份
const DefaultSplitYear = 2019

var (
	legacyRecentMultiplier  = decimal.RequireFromString("2.2")
	legacyEarlierMultiplier = decimal.RequireFromString("0.8")
	singleTotalMultiplier   = decimal.NewFromInt(3)
	monographFractionHST    = decimal.RequireFromString("0.20")
	monographFractionOther  = decimal.RequireFromString("0.05")

	// LegacySlack 两期方案的宽松余量：池总量低于 cap-2 时不做逐项检查
	LegacySlack = model.FixedFromInt(2)
)

// Pool 机构配额池
type Pool struct {
	Name          string      `json:"name"`
	Cap           model.Fixed `json:"cap"`
	Slack         model.Fixed `json:"slack"`
	Lenient       bool        `json:"lenient"` // 总量低于 Cap-Slack 时无条件准入
	YearFrom      int         `json:"year_from,omitempty"`
	YearTo        int         `json:"year_to,omitempty"`
	MonographOnly bool        `json:"monograph_only,omitempty"`
}

// Covers 候选是否计入该池
func (p *Pool) Covers(c *model.Candidate) bool {
	if p.MonographOnly && !c.IsMonograph {
		return false
	}
	if p.YearFrom != 0 && c.Year < p.YearFrom {
		return false
	}
	if p.YearTo != 0 && c.Year > p.YearTo {
		return false
	}
	return true
}

// Threshold 宽松阈值
func (p *Pool) Threshold() model.Fixed {
	return p.Cap - p.Slack
}

// Institution 编译后的机构配额
type Institution struct {
	Scheme model.BudgetScheme `json:"scheme"`
	N      model.Fixed        `json:"n"`
	Pools  []Pool             `json:"pools"`
}

// Legacy 两期方案：近期 2.2N、早期 0.8N，余量 2
func Legacy(n model.Fixed, splitYear int) (*Institution, error) {
	if n < 0 {
		return nil, errors.InvalidInput("n", "N 不能为负数")
	}
	if splitYear == 0 {
		splitYear = DefaultSplitYear
	}
	recent, err := n.MulDecimal(legacyRecentMultiplier)
	if err != nil {
		return nil, err
	}
	earlier, err := n.MulDecimal(legacyEarlierMultiplier)
	if err != nil {
		return nil, err
	}
	return &Institution{
		Scheme: model.SchemeLegacy,
		N:      n,
		Pools: []Pool{
			{Name: fmt.Sprintf("recent_%d+", splitYear), Cap: recent, Slack: LegacySlack, Lenient: true, YearFrom: splitYear},
			{Name: fmt.Sprintf("earlier_-%d", splitYear-1), Cap: earlier, Slack: LegacySlack, Lenient: true, YearTo: splitYear - 1},
		},
	}, nil
}

// SinglePeriod 单期方案：总量 3N，专著占比 HST 学科 20%，其余 5%
func SinglePeriod(n model.Fixed, hst bool) (*Institution, error) {
	if n < 0 {
		return nil, errors.InvalidInput("n", "N 不能为负数")
	}
	total, err := n.MulDecimal(singleTotalMultiplier)
	if err != nil {
		return nil, err
	}
	fraction := monographFractionOther
	if hst {
		fraction = monographFractionHST
	}
	monographs, err := total.MulDecimal(fraction)
	if err != nil {
		return nil, err
	}
	return &Institution{
		Scheme: model.SchemeSinglePeriod,
		N:      n,
		Pools: []Pool{
			{Name: "total", Cap: total},
			{Name: "monographs", Cap: monographs, MonographOnly: true},
		},
	}, nil
}

// FromSpec 根据声明构建机构配额，spec 为 nil 时返回 nil
func FromSpec(spec *model.InstitutionSpec, hst bool) (*Institution, error) {
	if spec == nil {
		return nil, nil
	}
	switch spec.Scheme {
	case model.SchemeLegacy:
		return Legacy(spec.N, spec.SplitYear)
	case model.SchemeSinglePeriod:
		return SinglePeriod(spec.N, hst)
	default:
		return nil, errors.Configuration("未知的机构配额方案 '%s'", spec.Scheme)
	}
}
