// Package fixture 提供测试用学科快照构建工具
package fixture

import (
	"fmt"
	"math/rand"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/model"
)

// DisciplineID 默认学科ID
const DisciplineID model.DisciplineID = 7

// Fx 解析定点数，格式错误时 panic
func Fx(s string) model.Fixed { return model.MustFixed(s) }

// Builder 快照构建器
type Builder struct {
	snap   model.Snapshot
	nextID model.CandidateID
}

// New 创建构建器
func New() *Builder {
	return &Builder{
		snap: model.Snapshot{
			Discipline: model.Discipline{ID: DisciplineID, Code: "11.3", Name: "测试学科"},
		},
		nextID: 1,
	}
}

// HST 标记学科为人文社科
func (b *Builder) HST() *Builder {
	b.snap.Discipline.HST = true
	return b
}

// Window 设置评估窗口
func (b *Builder) Window(from, to int) *Builder {
	b.snap.Window = model.Window{From: from, To: to}
	return b
}

// Author 添加作者及配额
func (b *Builder) Author(id model.AuthorID, total, mono string) *Builder {
	return b.RankedAuthor(id, "0", total, mono)
}

// RankedAuthor 添加带排序依据的作者及配额
func (b *Builder) RankedAuthor(id model.AuthorID, rank, total, mono string) *Builder {
	b.snap.Authors = append(b.snap.Authors, model.Author{ID: id, Name: fmt.Sprintf("作者%d", id), Rank: Fx(rank)})
	b.snap.Budgets = append(b.snap.Budgets, model.AuthorBudget{AuthorID: id, TotalCap: Fx(total), MonographCap: Fx(mono)})
	return b
}

// Candidate 添加 2021 年的候选
func (b *Builder) Candidate(author model.AuthorID, cost, points string, monograph bool) *Builder {
	return b.CandidateYear(author, 2021, cost, points, monograph)
}

// CandidateYear 添加指定年份的候选
func (b *Builder) CandidateYear(author model.AuthorID, year int, cost, points string, monograph bool) *Builder {
	b.snap.Candidates = append(b.snap.Candidates, model.Candidate{
		ID:           b.nextID,
		AuthorID:     author,
		DisciplineID: b.snap.Discipline.ID,
		Year:         year,
		SlotCost:     Fx(cost),
		PointValue:   Fx(points),
		IsMonograph:  monograph,
		Title:        fmt.Sprintf("成果%d", b.nextID),
	})
	b.nextID++
	return b
}

// Institution 设置机构配额
func (b *Builder) Institution(scheme model.BudgetScheme, n string, splitYear int) *Builder {
	b.snap.Institution = &model.InstitutionSpec{Scheme: scheme, N: Fx(n), SplitYear: splitYear}
	return b
}

// Snapshot 返回快照
func (b *Builder) Snapshot() *model.Snapshot {
	snap := b.snap
	return &snap
}

// MustContext 构建运行上下文，快照不合法时 panic
func (b *Builder) MustContext() *constraint.Context {
	ctx, err := constraint.NewContext(b.Snapshot())
	if err != nil {
		panic(fmt.Sprintf("fixture: NewContext() error = %v", err))
	}
	return ctx
}

var (
	costs  = []string{"0.25", "0.5", "0.75", "1", "1.5", "2"}
	totals = []string{"2", "2.5", "3", "4"}
)

// Random 生成随机快照：每位作者配额 2~4，约两成候选为专著
func Random(rng *rand.Rand, authors, candidates int) *Builder {
	b := New()
	for a := 1; a <= authors; a++ {
		total := totals[rng.Intn(len(totals))]
		b.RankedAuthor(model.AuthorID(a), fmt.Sprintf("%d", rng.Intn(100)), total, "1.5")
	}
	for i := 0; i < candidates; i++ {
		author := model.AuthorID(rng.Intn(authors) + 1)
		cost := costs[rng.Intn(len(costs))]
		points := fmt.Sprintf("%d", 5+rng.Intn(196))
		b.CandidateYear(author, 2017+rng.Intn(5), cost, points, rng.Intn(5) == 0)
	}
	return b
}
