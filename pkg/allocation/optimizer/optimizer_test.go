package optimizer

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/allocation/fixture"
	"github.com/bpp/sloty/pkg/allocation/solver"
	"github.com/bpp/sloty/pkg/model"
)

var fx = fixture.Fx

// trapContext 分值降序时先选 50 会挤掉两个 40，最优为 80
func trapContext(t *testing.T) *constraint.Context {
	return fixture.New().
		Author(1, "4", "2").
		Candidate(1, "3", "50", false).
		Candidate(1, "2", "40", false).
		Candidate(1, "2", "40", false).
		MustContext()
}

func TestTrialGrid_Exhausts(t *testing.T) {
	g := NewTrialGrid(5, ReorderConfig{MinWindow: 2, MaxWindow: 3, WindowStep: 1, StartStep: 1, Repeats: 2})
	if g.Size() != 14 {
		t.Fatalf("Size() = %d, want 14", g.Size())
	}

	count := 0
	for {
		trial, err := g.Next()
		if errors.Is(err, ErrIterationExhausted) {
			break
		}
		if trial.Start+trial.Width > 5 {
			t.Fatalf("trial out of range: %+v", trial)
		}
		count++
	}
	if count != 14 || g.Generated() != 14 {
		t.Errorf("trials = %d, Generated() = %d, want 14", count, g.Generated())
	}
	if _, err := g.Next(); !errors.Is(err, ErrIterationExhausted) {
		t.Error("exhausted grid should stay exhausted")
	}
}

func TestTrialGrid_TooFewCandidates(t *testing.T) {
	for _, n := range []int{0, 1} {
		g := NewTrialGrid(n, DefaultReorderConfig())
		if _, err := g.Next(); !errors.Is(err, ErrIterationExhausted) {
			t.Errorf("n=%d: Next() error = %v, want ErrIterationExhausted", n, err)
		}
		if g.Size() != 0 {
			t.Errorf("n=%d: Size() = %d, want 0", n, g.Size())
		}
	}
}

func TestReorderOptimizer_EscapesValueOrder(t *testing.T) {
	run := trapContext(t)
	o := NewReorderOptimizer(ReorderConfig{MinWindow: 2, MaxWindow: 3, WindowStep: 1, StartStep: 1, Repeats: 5})
	o.SetRand(rand.New(rand.NewSource(1)))

	improvements := 0
	o.OnImprove(func(order []int, points model.Fixed, step int) { improvements++ })

	res, err := o.Solve(context.Background(), run)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if res.TotalPoints != fx("80") {
		t.Errorf("TotalPoints = %s, want 80", res.TotalPoints)
	}
	if !res.Statistics.Exhausted || res.Statistics.ReachedMaximum {
		t.Errorf("Statistics = %+v, want exhausted without maximum", res.Statistics)
	}
	if improvements == 0 {
		t.Error("OnImprove should be called")
	}
	if res.Strategy != NameReorder {
		t.Errorf("Strategy = %q", res.Strategy)
	}
}

func TestReorderOptimizer_InitialOrder(t *testing.T) {
	run := trapContext(t)
	o := NewReorderOptimizer(DefaultReorderConfig())
	o.SetRand(rand.New(rand.NewSource(1)))
	o.SetInitialOrder([]model.CandidateID{2, 3, 1})

	improvements := 0
	o.OnImprove(func([]int, model.Fixed, int) { improvements++ })

	best, err := o.Optimize(context.Background(), run, solver.ResolveOrder(run, []model.CandidateID{2, 3, 1}))
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if best.Points != fx("80") || improvements != 0 {
		t.Errorf("Points = %s, improvements = %d; want 80 and none", best.Points, improvements)
	}
}

func TestReorderOptimizer_StopsAtMaximum(t *testing.T) {
	run := fixture.New().
		Author(1, "10", "2").
		Candidate(1, "1", "10", false).
		Candidate(1, "1", "20", false).
		MustContext()

	best, err := NewReorderOptimizer(DefaultReorderConfig()).Optimize(context.Background(), run, nil)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if !best.Stats.ReachedMaximum || best.Stats.Iterations != 0 {
		t.Errorf("Stats = %+v, want maximum before any trial", best.Stats)
	}
}

func TestReorderOptimizer_Deterministic(t *testing.T) {
	run := fixture.Random(rand.New(rand.NewSource(9)), 6, 40).MustContext()
	cfg := DefaultReorderConfig()
	cfg.Seed = 99

	a, err := NewReorderOptimizer(cfg).Optimize(context.Background(), run, nil)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	b, err := NewReorderOptimizer(cfg).Optimize(context.Background(), run, nil)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if a.Points != b.Points {
		t.Fatalf("Points = %s vs %s", a.Points, b.Points)
	}
	for i := range a.Order {
		if a.Order[i] != b.Order[i] {
			t.Fatalf("orders differ at %d", i)
		}
	}
}

func TestReorderOptimizer_Cancelled(t *testing.T) {
	run := fixture.Random(rand.New(rand.NewSource(2)), 4, 20).MustContext()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewReorderOptimizer(DefaultReorderConfig()).Optimize(ctx, run, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Optimize() error = %v, want context.Canceled", err)
	}
}

func TestDensityOrder(t *testing.T) {
	run := fixture.New().
		Author(1, "10", "2").
		Candidate(1, "2", "20", false).  // 10
		Candidate(1, "1", "15", false).  // 15
		Candidate(1, "0", "1", false).   // 零成本
		Candidate(1, "4", "40", false).  // 10，分值更高
		Candidate(1, "0.5", "0", false). // 0
		MustContext()

	got := DensityOrder(run)
	want := []int{2, 1, 3, 0, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("DensityOrder() = %v, want %v", got, want)
		}
	}

	got = ValueOrder(run)
	want = []int{3, 0, 1, 2, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ValueOrder() = %v, want %v", got, want)
		}
	}
}

func TestParallelEvaluator_MatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	run := fixture.Random(rng, 10, 80).MustContext()

	orders := make([][]int, 32)
	for i := range orders {
		orders[i] = rng.Perm(run.Len())
	}

	p := NewParallelEvaluator(run, 4)
	got, err := p.EvaluateBatch(context.Background(), orders)
	if err != nil {
		t.Fatalf("EvaluateBatch() error = %v", err)
	}

	f := solver.NewFitness(run)
	for i, order := range orders {
		if want := f.Evaluate(order); got[i] != want {
			t.Errorf("order %d: parallel = %s, serial = %s", i, got[i], want)
		}
	}
	if p.Evaluations() != len(orders) {
		t.Errorf("Evaluations() = %d, want %d", p.Evaluations(), len(orders))
	}
}
