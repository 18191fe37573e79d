package stats

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/bpp/sloty/pkg/allocation/fixture"
	"github.com/bpp/sloty/pkg/allocation/solver"
	"github.com/bpp/sloty/pkg/model"
)

func TestCeiling(t *testing.T) {
	// 作者1：场景B，忽略专著配额时最优为 55；作者2：容量 1，最优 8
	run := fixture.New().
		Author(1, "4.0", "2.0").
		Author(2, "1", "0").
		Candidate(1, "2.0", "30", true).
		Candidate(1, "3.0", "50", false).
		Candidate(1, "1.0", "5", false).
		Candidate(2, "1", "8", false).
		Candidate(2, "1", "7", false).
		MustContext()

	got, err := Ceiling(run)
	if err != nil {
		t.Fatalf("Ceiling() error = %v", err)
	}
	if got != fixture.Fx("63") {
		t.Errorf("Ceiling() = %s, want 63", got)
	}
}

func TestCeiling_BoundsStrategies(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	for round := 0; round < 10; round++ {
		run := fixture.Random(rng, 6, 50).Institution(model.SchemeSinglePeriod, "4", 0).MustContext()
		ceiling, err := Ceiling(run)
		if err != nil {
			t.Fatalf("Ceiling() error = %v", err)
		}
		res, err := solver.NewGreedySolver().Solve(context.Background(), run)
		if err != nil {
			t.Fatalf("Solve() error = %v", err)
		}
		if res.TotalPoints > ceiling {
			t.Errorf("round %d: greedy %s exceeds ceiling %s", round, res.TotalPoints, ceiling)
		}
	}
}

func TestQualityAnalyzer_Analyze(t *testing.T) {
	run := fixture.New().
		Author(1, "4", "2").
		Author(2, "2", "1").
		Candidate(1, "3", "50", false).
		Candidate(1, "2", "40", false).
		Candidate(1, "2", "40", false).
		Candidate(2, "1", "10", false).
		MustContext()

	res := solver.NewSequentialSolver().Run(run, run.IdentityOrder())
	report, err := NewQualityAnalyzer().Analyze(run, res)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if report.Ceiling != fixture.Fx("90") || report.TotalPoints != fixture.Fx("60") {
		t.Errorf("Ceiling/TotalPoints = %s/%s, want 90/60", report.Ceiling, report.TotalPoints)
	}
	if report.QualityGap != fixture.Fx("30") {
		t.Errorf("QualityGap = %s, want 30", report.QualityGap)
	}
	if math.Abs(report.QualityRatio-60.0/90.0) > 1e-9 {
		t.Errorf("QualityRatio = %f", report.QualityRatio)
	}
	if math.Abs(report.SlotUtilization-4.0/6.0) > 1e-9 {
		t.Errorf("SlotUtilization = %f, want %f", report.SlotUtilization, 4.0/6.0)
	}
	if len(report.Authors) != 2 || report.Authors[0].AuthorID != 1 || report.Authors[0].Gap != fixture.Fx("30") {
		t.Errorf("Authors = %+v, want author 1 first with gap 30", report.Authors)
	}
}

func TestGini(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"空", nil, 0},
		{"完全均衡", []float64{5, 5, 5, 5}, 0},
		{"全为零", []float64{0, 0}, 0},
		{"完全集中", []float64{0, 0, 0, 12}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gini(tt.values); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("gini(%v) = %f, want %f", tt.values, got, tt.want)
			}
		})
	}
}
