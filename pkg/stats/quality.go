// Package stats 提供分配结果的质量与利用率分析
package stats

import (
	"math"
	"sort"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/allocation/knapsack"
	"github.com/bpp/sloty/pkg/model"
)

// QualityReport 分配质量报告
type QualityReport struct {
	DisciplineID model.DisciplineID `json:"discipline_id"`
	Strategy     string             `json:"strategy"`

	// 总体
	TotalPoints  model.Fixed `json:"total_points"`
	TotalSlots   model.Fixed `json:"total_slots"`
	Ceiling      model.Fixed `json:"ceiling"`       // 各作者独立背包最优之和，任何策略的上界
	QualityGap   model.Fixed `json:"quality_gap"`   // Ceiling - TotalPoints
	QualityRatio float64     `json:"quality_ratio"` // TotalPoints / Ceiling

	// 配额利用
	SlotUtilization   float64 `json:"slot_utilization"`    // 已用槽位 / 作者总配额
	UtilizationMean   float64 `json:"utilization_mean"`    // 作者平均利用率
	UtilizationStdDev float64 `json:"utilization_std_dev"` // 作者利用率标准差
	PointsGini        float64 `json:"points_gini"`         // 作者分值基尼系数

	Authors []AuthorStat `json:"authors"`
	Pools   []PoolStat   `json:"pools,omitempty"`
}

// AuthorStat 作者统计
type AuthorStat struct {
	AuthorID    model.AuthorID `json:"author_id"`
	Points      model.Fixed    `json:"points"`
	Slots       model.Fixed    `json:"slots"`
	TotalCap    model.Fixed    `json:"total_cap"`
	Ceiling     model.Fixed    `json:"ceiling"`
	Gap         model.Fixed    `json:"gap"`
	Utilization float64        `json:"utilization"`
}

// PoolStat 机构配额池统计
type PoolStat struct {
	Name        string      `json:"name"`
	Slots       model.Fixed `json:"slots"`
	Cap         model.Fixed `json:"cap"`
	Utilization float64     `json:"utilization"`
	Exceeded    bool        `json:"exceeded"` // 宽松池可能超出
}

// QualityAnalyzer 分配质量分析器
type QualityAnalyzer struct {
	maxCells int64
}

// NewQualityAnalyzer 创建分配质量分析器
func NewQualityAnalyzer() *QualityAnalyzer {
	return &QualityAnalyzer{maxCells: knapsack.DefaultMaxCells}
}

// SetMaxCells 设置背包动态规划表规模上限
func (q *QualityAnalyzer) SetMaxCells(n int64) {
	if n > 0 {
		q.maxCells = n
	}
}

// Ceiling 理论上界：每位作者在总配额内的背包最优之和（忽略专著配额与机构配额）
func Ceiling(run *constraint.Context) (model.Fixed, error) {
	per, err := NewQualityAnalyzer().AuthorCeilings(run)
	if err != nil {
		return 0, err
	}
	return model.SumFixed(per...), nil
}

// AuthorCeilings 按作者下标返回各自的背包最优
func (q *QualityAnalyzer) AuthorCeilings(run *constraint.Context) ([]model.Fixed, error) {
	out := make([]model.Fixed, run.AuthorCount())
	for a := range out {
		cands := run.AuthorCandidates(a)
		if len(cands) == 0 {
			continue
		}
		items := make([]knapsack.Item, len(cands))
		for k, i := range cands {
			c := run.Candidate(i)
			items[k] = knapsack.Item{Weight: c.SlotCost, Value: c.PointValue, Ref: i}
		}
		sol, err := knapsack.SolveWithLimit(run.Budget(a).TotalCap, items, q.maxCells)
		if err != nil {
			return nil, err
		}
		out[a] = sol.Value
	}
	return out, nil
}

// Analyze 分析分配结果
func (q *QualityAnalyzer) Analyze(run *constraint.Context, res *model.SelectionResult) (*QualityReport, error) {
	ceilings, err := q.AuthorCeilings(run)
	if err != nil {
		return nil, err
	}

	report := &QualityReport{
		DisciplineID: res.DisciplineID,
		Strategy:     res.Strategy,
		TotalPoints:  res.TotalPoints,
		TotalSlots:   res.TotalSlots,
		Ceiling:      model.SumFixed(ceilings...),
		Authors:      make([]AuthorStat, 0, len(res.Authors)),
	}
	report.QualityGap = report.Ceiling - report.TotalPoints
	report.QualityRatio = ratio(report.TotalPoints, report.Ceiling)

	var totalCap model.Fixed
	utilizations := make([]float64, 0, len(res.Authors))
	points := make([]float64, 0, len(res.Authors))
	for _, ab := range res.Authors {
		stat := AuthorStat{
			AuthorID:    ab.AuthorID,
			Points:      ab.Points,
			Slots:       ab.Slots,
			TotalCap:    ab.TotalCap,
			Utilization: ratio(ab.Slots, ab.TotalCap),
		}
		if a, ok := run.AuthorIndex(ab.AuthorID); ok {
			stat.Ceiling = ceilings[a]
			stat.Gap = stat.Ceiling - stat.Points
		}
		report.Authors = append(report.Authors, stat)

		totalCap += ab.TotalCap
		utilizations = append(utilizations, stat.Utilization)
		points = append(points, ab.Points.Float64())
	}
	sort.SliceStable(report.Authors, func(i, j int) bool {
		return report.Authors[i].Gap > report.Authors[j].Gap
	})

	report.SlotUtilization = ratio(report.TotalSlots, totalCap)
	report.UtilizationMean = mean(utilizations)
	report.UtilizationStdDev = math.Sqrt(variance(utilizations, report.UtilizationMean))
	report.PointsGini = gini(points)

	for _, p := range res.Pools {
		report.Pools = append(report.Pools, PoolStat{
			Name:        p.Name,
			Slots:       p.Slots,
			Cap:         p.Cap,
			Utilization: ratio(p.Slots, p.Cap),
			Exceeded:    p.Slots > p.Cap,
		})
	}

	return report, nil
}

// ratio a/b，b 为 0 时返回 1
func ratio(a, b model.Fixed) float64 {
	if b == 0 {
		return 1
	}
	return float64(a) / float64(b)
}
