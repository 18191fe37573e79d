package constraint

import (
	"testing"
	"time"

	"github.com/bpp/sloty/pkg/allocation/budget"
	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/model"
)

func TestEngine_AuthorCapWouldExceed(t *testing.T) {
	// 场景C：已用3.9，配额4.0，成本0.2的候选应被拒绝
	ctx := newSnapshot().
		author(1, "4.0", "2.0").
		candidate(1, "3.9", "100", false).
		candidate(1, "0.2", "20", false).
		candidate(1, "0.1", "5", false).
		build(t)

	e := NewEngine(ctx)
	if !e.TryAdmit(0) {
		t.Fatal("first candidate should be admitted")
	}

	ok, rule := e.Check(1)
	if ok || rule != TypeAuthorCap {
		t.Errorf("Check(0.2) = %v, %q; want rejected by %q", ok, rule, TypeAuthorCap)
	}

	// 恰好填满剩余容量
	if !e.TryAdmit(2) {
		t.Error("candidate exactly filling the cap should be admitted")
	}
	if e.AuthorTotal(0) != fx("4.0") {
		t.Errorf("AuthorTotal = %s, want 4", e.AuthorTotal(0))
	}
	if e.RemainingTotal(0) != 0 {
		t.Errorf("RemainingTotal = %s, want 0", e.RemainingTotal(0))
	}
}

func TestEngine_Duplicate(t *testing.T) {
	ctx := newSnapshot().author(1, "4", "2").candidate(1, "1", "10", false).build(t)
	e := NewEngine(ctx)
	e.Admit(0)

	ok, rule := e.Check(0)
	if ok || rule != TypeDuplicate {
		t.Errorf("Check() = %v, %q; want rejected by %q", ok, rule, TypeDuplicate)
	}
}

func TestEngine_MonographCap(t *testing.T) {
	ctx := newSnapshot().
		author(1, "4", "1.5").
		candidate(1, "1", "60", true).
		candidate(1, "1", "50", true).
		candidate(1, "1", "20", false).
		build(t)

	e := NewEngine(ctx)
	if !e.TryAdmit(0) {
		t.Fatal("first monograph should be admitted")
	}
	ok, rule := e.Check(1)
	if ok || rule != TypeMonographCap {
		t.Errorf("Check() = %v, %q; want rejected by %q", ok, rule, TypeMonographCap)
	}
	if !e.CanAdmit(2) {
		t.Error("article should not be limited by monograph cap")
	}
	if e.AuthorMonographTotal(0) != fx("1") || e.RemainingMonograph(0) != fx("0.5") {
		t.Errorf("monograph totals = %s / %s", e.AuthorMonographTotal(0), e.RemainingMonograph(0))
	}
}

func TestEngine_InstitutionSlack(t *testing.T) {
	// 场景D：池已用50，cap 100，阈值98，成本60的候选无条件准入
	ctx := newSnapshot().
		author(1, "1000", "0").
		candidate(1, "50", "1", false).
		candidate(1, "60", "1", false).
		candidate(1, "1", "1", false).
		build(t)
	ctx.SetInstitution(&budget.Institution{
		Pools: []budget.Pool{{Name: "recent", Cap: fx("100"), Slack: fx("2"), Lenient: true}},
	})

	e := NewEngine(ctx)
	e.Admit(0)
	if !e.TryAdmit(1) {
		t.Fatal("candidate of cost 60 should be admitted while pool total 50 < 98")
	}
	if e.PoolTotal(0) != fx("110") {
		t.Errorf("PoolTotal = %s, want 110", e.PoolTotal(0))
	}

	ok, rule := e.Check(2)
	if ok || rule != TypeInstitution {
		t.Errorf("Check() = %v, %q; want rejected by %q", ok, rule, TypeInstitution)
	}
}

func TestEngine_StrictPool(t *testing.T) {
	ctx := newSnapshot().
		author(1, "1000", "1000").
		candidate(1, "2", "1", false).
		candidate(1, "2", "1", true).
		candidate(1, "1", "1", false).
		build(t)
	ctx.SetInstitution(&budget.Institution{
		Pools: []budget.Pool{
			{Name: "total", Cap: fx("3")},
			{Name: "monographs", Cap: fx("1"), MonographOnly: true},
		},
	})

	e := NewEngine(ctx)
	if !e.TryAdmit(0) {
		t.Fatal("first candidate should fit the total pool")
	}
	if ok, rule := e.Check(1); ok || rule != TypeInstitution {
		t.Errorf("monograph should be rejected by pool, got %v %q", ok, rule)
	}
	if !e.TryAdmit(2) {
		t.Error("candidate exactly filling the pool should be admitted")
	}
}

func TestEngine_ResetAndResult(t *testing.T) {
	ctx := newSnapshot().
		author(1, "4", "2").
		author(2, "4", "2").
		candidate(1, "1", "10", false).
		candidate(2, "2", "30", true).
		build(t)

	e := NewEngine(ctx)
	e.Admit(1)
	e.Admit(0)

	res := e.Result("test", model.Statistics{Evaluations: 1}, time.Time{})
	if res.TotalPoints != fx("40") || res.TotalSlots != fx("3") {
		t.Errorf("totals = %s / %s, want 40 / 3", res.TotalPoints, res.TotalSlots)
	}
	if len(res.Selected) != 2 || res.Selected[0] != 2 || res.Selected[1] != 1 {
		t.Errorf("Selected = %v, want [2 1]", res.Selected)
	}
	if len(res.Authors) != 2 || res.Authors[1].MonographSlots != fx("2") {
		t.Errorf("author breakdown = %+v", res.Authors)
	}

	e.Reset()
	if e.Points() != 0 || len(e.Selected()) != 0 || e.IsSelected(0) {
		t.Error("Reset() should clear the state")
	}
}

func TestNewContext_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(s *model.Snapshot)
		wantCode errors.Code
	}{
		{
			name: "作者有候选但无配额",
			mutate: func(s *model.Snapshot) {
				s.Budgets = s.Budgets[:1]
			},
			wantCode: errors.CodeConfiguration,
		},
		{
			name: "候选引用未知作者",
			mutate: func(s *model.Snapshot) {
				s.Candidates[0].AuthorID = 99
			},
			wantCode: errors.CodeDataIntegrity,
		},
		{
			name: "候选引用未知学科",
			mutate: func(s *model.Snapshot) {
				s.Candidates[0].DisciplineID = 99
			},
			wantCode: errors.CodeDataIntegrity,
		},
		{
			name: "候选ID重复",
			mutate: func(s *model.Snapshot) {
				s.Candidates[1].ID = s.Candidates[0].ID
			},
			wantCode: errors.CodeDataIntegrity,
		},
		{
			name: "专著配额超过总配额",
			mutate: func(s *model.Snapshot) {
				s.Budgets[0].MonographCap = fx("5")
			},
			wantCode: errors.CodeConfiguration,
		},
		{
			name: "分值总和溢出",
			mutate: func(s *model.Snapshot) {
				s.Candidates[0].PointValue = fx("500000000000000")
				s.Candidates[1].PointValue = fx("500000000000000")
			},
			wantCode: errors.CodeNumericOverflow,
		},
		{
			name: "槽位总和溢出",
			mutate: func(s *model.Snapshot) {
				s.Candidates[0].SlotCost = fx("900000000000000")
				s.Candidates[1].SlotCost = fx("900000000000000")
			},
			wantCode: errors.CodeNumericOverflow,
		},
		{
			name: "年份超出窗口",
			mutate: func(s *model.Snapshot) {
				s.Window = model.Window{From: 2022, To: 2025}
			},
			wantCode: errors.CodeDataIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newSnapshot().
				author(1, "4", "2").
				author(2, "4", "2").
				candidate(1, "1", "10", false).
				candidate(2, "1", "10", false)
			tt.mutate(&b.snap)

			_, err := NewContext(&b.snap)
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("NewContext() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestContext_AuthorOrder(t *testing.T) {
	b := newSnapshot().author(3, "4", "2").author(1, "4", "2").author(2, "4", "2")
	b.snap.Authors[0].Rank = fx("10")
	b.snap.Authors[1].Rank = fx("50")
	b.snap.Authors[2].Rank = fx("10")
	ctx := b.build(t)

	order := ctx.AuthorOrder()
	got := []model.AuthorID{ctx.Authors[order[0]].ID, ctx.Authors[order[1]].ID, ctx.Authors[order[2]].ID}
	want := []model.AuthorID{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AuthorOrder = %v, want %v", got, want)
		}
	}
}
