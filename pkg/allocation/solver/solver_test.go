package solver

import (
	"context"
	"math/rand"
	"testing"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/allocation/fixture"
	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/model"
)

var fx = fixture.Fx

func TestGreedySolver_MonographSplit(t *testing.T) {
	// 选专著：30+5=35；不选专著：50+5=55
	run := fixture.New().
		Author(1, "4.0", "2.0").
		Candidate(1, "2.0", "30", true).
		Candidate(1, "3.0", "50", false).
		Candidate(1, "1.0", "5", false).
		MustContext()

	res, err := NewGreedySolver().Solve(context.Background(), run)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if res.TotalPoints != fx("55") {
		t.Errorf("TotalPoints = %s, want 55", res.TotalPoints)
	}
	if res.Contains(1) {
		t.Error("monograph should not be selected")
	}
	if !res.Contains(2) || !res.Contains(3) {
		t.Errorf("Selected = %v, want [2 3]", res.Selected)
	}
}

func TestGreedySolver_SplitWinsTie(t *testing.T) {
	run := fixture.New().
		Author(1, "2", "1").
		Candidate(1, "1", "20", true).
		Candidate(1, "1", "20", false).
		Candidate(1, "1", "20", false).
		MustContext()

	res, err := NewGreedySolver().Solve(context.Background(), run)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if res.TotalPoints != fx("40") || !res.Contains(1) {
		t.Errorf("result = %v / %s, want monograph kept with 40 points", res.Selected, res.TotalPoints)
	}
}

func TestGreedySolver_AuthorRankOrder(t *testing.T) {
	// 机构池只容得下一位作者，排序依据高者优先
	run := fixture.New().
		RankedAuthor(1, "10", "4", "0").
		RankedAuthor(2, "90", "4", "0").
		CandidateYear(1, 2021, "3", "100", false).
		CandidateYear(2, 2021, "3", "60", false).
		Institution(model.SchemeSinglePeriod, "1", 0).
		MustContext()

	res, err := NewGreedySolver().Solve(context.Background(), run)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if len(res.Selected) != 1 || res.Selected[0] != 2 {
		t.Errorf("Selected = %v, want [2]", res.Selected)
	}
}

func TestGreedySolver_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := fixture.Random(rng, 12, 120)

	var first *model.SelectionResult
	for round := 0; round < 5; round++ {
		s := NewGreedySolver()
		s.SetWorkers(round + 1)
		res, err := s.Solve(context.Background(), b.MustContext())
		if err != nil {
			t.Fatalf("Solve() error = %v", err)
		}
		if first == nil {
			first = res
			continue
		}
		if res.TotalPoints != first.TotalPoints || len(res.Selected) != len(first.Selected) {
			t.Fatalf("round %d: %s/%d, want %s/%d", round, res.TotalPoints, len(res.Selected), first.TotalPoints, len(first.Selected))
		}
		for i := range res.Selected {
			if res.Selected[i] != first.Selected[i] {
				t.Fatalf("round %d: Selected differs at %d", round, i)
			}
		}
	}
}

func TestGreedySolver_RespectsCaps(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 20; round++ {
		run := fixture.Random(rng, 6, 40).MustContext()
		res, err := NewGreedySolver().Solve(context.Background(), run)
		if err != nil {
			t.Fatalf("Solve() error = %v", err)
		}
		for _, ab := range res.Authors {
			if ab.Slots > ab.TotalCap || ab.MonographSlots > ab.MonographCap {
				t.Fatalf("round %d: author %d exceeds caps: %+v", round, ab.AuthorID, ab)
			}
		}
	}
}

func TestGreedySolver_TableLimit(t *testing.T) {
	run := fixture.New().
		Author(1, "4", "2").
		Candidate(1, "0.0001", "1", false).
		Candidate(1, "0.0003", "1", false).
		MustContext()

	s := NewGreedySolver()
	s.SetMaxCells(100)
	_, err := s.Solve(context.Background(), run)
	if !errors.Is(err, errors.CodeNumericOverflow) {
		t.Errorf("Solve() error = %v, want %s", err, errors.CodeNumericOverflow)
	}
}

func TestGreedySolver_Cancelled(t *testing.T) {
	run := fixture.New().Author(1, "4", "2").Candidate(1, "1", "10", false).MustContext()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewGreedySolver().Solve(ctx, run); err == nil {
		t.Error("Solve() should fail on cancelled context")
	}
}

func TestSequentialSolver_Order(t *testing.T) {
	run := fixture.New().
		Author(1, "4", "2").
		Candidate(1, "3", "10", false).
		Candidate(1, "3", "50", false).
		MustContext()

	s := NewSequentialSolver()
	res, err := s.Solve(context.Background(), run)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if res.TotalPoints != fx("10") {
		t.Errorf("input order: TotalPoints = %s, want 10", res.TotalPoints)
	}

	s.SetOrder([]model.CandidateID{2, 99, 2})
	res, err = s.Solve(context.Background(), run)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if res.TotalPoints != fx("50") || len(res.Selected) != 1 || res.Selected[0] != 2 {
		t.Errorf("custom order: %v / %s, want [2] / 50", res.Selected, res.TotalPoints)
	}
}

func TestResolveOrder(t *testing.T) {
	run := fixture.New().
		Author(1, "4", "2").
		Candidate(1, "1", "1", false).
		Candidate(1, "1", "1", false).
		Candidate(1, "1", "1", false).
		MustContext()

	got := ResolveOrder(run, []model.CandidateID{3, 42, 3, 1})
	want := []int{2, 0, 1}
	if len(got) != len(want) {
		t.Fatalf("ResolveOrder() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ResolveOrder() = %v, want %v", got, want)
		}
	}
}

func TestAdmit_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	run := fixture.Random(rng, 5, 30).MustContext()
	e := constraint.NewEngine(run)

	order := run.IdentityOrder()
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	first := Admit(e, order)
	for i := 0; i < 3; i++ {
		if got := Admit(e, order); got != first {
			t.Fatalf("Admit() = %s, want %s", got, first)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	names := r.Names()
	if len(names) != 2 || names[0] != NameGreedy || names[1] != NameSequential {
		t.Errorf("Names() = %v", names)
	}

	s, err := r.New(NameGreedy)
	if err != nil || s.Name() != NameGreedy {
		t.Errorf("New(greedy) = %v, %v", s, err)
	}

	if _, err := r.New("annealing"); !errors.Is(err, errors.CodeConfiguration) {
		t.Errorf("New(unknown) error = %v, want %s", err, errors.CodeConfiguration)
	}
}

func TestFitness_MatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	run := fixture.Random(rng, 8, 60).MustContext()
	f := NewFitness(run)

	order := rng.Perm(run.Len())
	points := f.Evaluate(order)
	res := NewSequentialSolver().Run(run, order)
	if points != res.TotalPoints {
		t.Errorf("Evaluate() = %s, Run() = %s", points, res.TotalPoints)
	}
	for _, id := range res.Selected {
		i, _ := run.CandidateIndex(id)
		if !f.IsSelected(i) {
			t.Errorf("candidate %d selected by Run() but not by Evaluate()", id)
		}
	}
	if f.Evaluations() != 1 {
		t.Errorf("Evaluations() = %d, want 1", f.Evaluations())
	}
}
