package constraint

import (
	"testing"

	"github.com/bpp/sloty/pkg/model"
)

const testDiscipline model.DisciplineID = 7

func fx(s string) model.Fixed { return model.MustFixed(s) }

// snapshotBuilder 测试用快照构建器
type snapshotBuilder struct {
	snap   model.Snapshot
	nextID model.CandidateID
}

func newSnapshot() *snapshotBuilder {
	return &snapshotBuilder{
		snap:   model.Snapshot{Discipline: model.Discipline{ID: testDiscipline, Code: "11.3"}},
		nextID: 1,
	}
}

func (b *snapshotBuilder) author(id model.AuthorID, total, mono string) *snapshotBuilder {
	b.snap.Authors = append(b.snap.Authors, model.Author{ID: id})
	b.snap.Budgets = append(b.snap.Budgets, model.AuthorBudget{AuthorID: id, TotalCap: fx(total), MonographCap: fx(mono)})
	return b
}

func (b *snapshotBuilder) candidate(author model.AuthorID, cost, points string, monograph bool) *snapshotBuilder {
	b.snap.Candidates = append(b.snap.Candidates, model.Candidate{
		ID:           b.nextID,
		AuthorID:     author,
		DisciplineID: testDiscipline,
		Year:         2021,
		SlotCost:     fx(cost),
		PointValue:   fx(points),
		IsMonograph:  monograph,
	})
	b.nextID++
	return b
}

func (b *snapshotBuilder) build(t *testing.T) *Context {
	t.Helper()
	ctx, err := NewContext(&b.snap)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	return ctx
}
