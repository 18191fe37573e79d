package optimizer

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/bpp/sloty/pkg/allocation/fixture"
	"github.com/bpp/sloty/pkg/allocation/solver"
)

func TestBubble(t *testing.T) {
	run := trapContext(t)
	f := solver.NewFitness(run)

	order, points, err := Bubble(context.Background(), f, ValueOrder(run))
	if err != nil {
		t.Fatalf("Bubble() error = %v", err)
	}
	if points != fx("80") {
		t.Errorf("points = %s, want 80 (order %v)", points, order)
	}
	if got := f.Evaluate(order); got != points {
		t.Errorf("replayed %s, reported %s", got, points)
	}
}

func TestBubble_NeverWorse(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	for round := 0; round < 10; round++ {
		run := fixture.Random(rng, 5, 30).MustContext()
		f := solver.NewFitness(run)
		start := rng.Perm(run.Len())
		before := f.Evaluate(start)

		_, after, err := Bubble(context.Background(), f, start)
		if err != nil {
			t.Fatalf("Bubble() error = %v", err)
		}
		if after < before {
			t.Errorf("round %d: %s < %s", round, after, before)
		}
	}
}

func TestSwapPass(t *testing.T) {
	run := trapContext(t)
	f := solver.NewFitness(run)

	_, points, err := SwapPass(context.Background(), f, ValueOrder(run))
	if err != nil {
		t.Fatalf("SwapPass() error = %v", err)
	}
	if points != fx("80") {
		t.Errorf("points = %s, want 80", points)
	}
}

func TestRandomWindow_AttemptCap(t *testing.T) {
	run := fixture.Random(rand.New(rand.NewSource(3)), 4, 25).MustContext()
	f := solver.NewFitness(run)
	start := ValueOrder(run)
	before := f.Evaluate(start)
	used := f.Evaluations()

	_, after, err := RandomWindow(context.Background(), f, rand.New(rand.NewSource(1)), start, WindowBudget{
		Width:    6,
		Duration: time.Minute,
		Attempts: 50,
	})
	if err != nil {
		t.Fatalf("RandomWindow() error = %v", err)
	}
	if got := f.Evaluations() - used; got != 51 {
		t.Errorf("evaluations = %d, want 51", got)
	}
	if after < before {
		t.Errorf("points decreased: %s < %s", after, before)
	}
}

func TestRandomWindow_NoBudget(t *testing.T) {
	run := trapContext(t)
	f := solver.NewFitness(run)

	_, points, err := RandomWindow(context.Background(), f, rand.New(rand.NewSource(1)), ValueOrder(run), WindowBudget{Width: 3})
	if err != nil {
		t.Fatalf("RandomWindow() error = %v", err)
	}
	if points != fx("50") || f.Evaluations() != 1 {
		t.Errorf("points = %s, evaluations = %d; want untouched order", points, f.Evaluations())
	}
}
