package validator

import (
	"context"
	"math/rand"
	"testing"

	"github.com/bpp/sloty/pkg/allocation/budget"
	"github.com/bpp/sloty/pkg/allocation/fixture"
	"github.com/bpp/sloty/pkg/allocation/solver"
	"github.com/bpp/sloty/pkg/model"
)

func TestValidate_StrategiesProduceValidResults(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	for round := 0; round < 10; round++ {
		run := fixture.Random(rng, 6, 50).Institution(model.SchemeSinglePeriod, "3", 0).MustContext()

		res, err := solver.NewGreedySolver().Solve(context.Background(), run)
		if err != nil {
			t.Fatalf("Solve() error = %v", err)
		}
		if conflicts := Validate(run, res); len(conflicts) > 0 {
			t.Fatalf("round %d: greedy conflicts = %+v", round, conflicts)
		}

		res = solver.NewSequentialSolver().Run(run, rng.Perm(run.Len()))
		if conflicts := Validate(run, res); len(conflicts) > 0 {
			t.Fatalf("round %d: sequential conflicts = %+v", round, conflicts)
		}
	}
}

func TestValidate_DetectsConflicts(t *testing.T) {
	run := fixture.New().
		Author(1, "2", "1").
		Candidate(1, "1", "10", true).
		Candidate(1, "1", "10", true).
		Candidate(1, "1", "10", false).
		MustContext()

	res := &model.SelectionResult{
		Selected:    []model.CandidateID{1, 2, 3, 3, 99},
		TotalPoints: fixture.Fx("30"),
		TotalSlots:  fixture.Fx("2"),
	}

	got := map[ConflictType]int{}
	for _, c := range Validate(run, res) {
		got[c.Type]++
	}
	want := map[ConflictType]int{
		ConflictDuplicate:     1,
		ConflictUnknown:       1,
		ConflictAuthorCap:     1,
		ConflictMonographCap:  1,
		ConflictTotalMismatch: 1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("conflicts[%s] = %d, want %d (all: %v)", k, got[k], v, got)
		}
	}
}

func TestValidate_PoolSeverity(t *testing.T) {
	tests := []struct {
		name     string
		lenient  bool
		severity string
	}{
		{"宽松池超出为提示", true, "warning"},
		{"严格池超出为错误", false, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := fixture.New().
				Author(1, "10", "0").
				Candidate(1, "3", "10", false).
				MustContext()
			run.SetInstitution(&budget.Institution{
				Pools: []budget.Pool{{Name: "p", Cap: fixture.Fx("2"), Slack: fixture.Fx("2"), Lenient: tt.lenient}},
			})

			res := &model.SelectionResult{
				Selected:    []model.CandidateID{1},
				TotalPoints: fixture.Fx("10"),
				TotalSlots:  fixture.Fx("3"),
			}
			conflicts := Validate(run, res)
			if len(conflicts) != 1 || conflicts[0].Type != ConflictPoolCap || conflicts[0].Severity != tt.severity {
				t.Fatalf("conflicts = %+v", conflicts)
			}
			if HasErrors(conflicts) != !tt.lenient {
				t.Errorf("HasErrors() = %v", HasErrors(conflicts))
			}
		})
	}
}
