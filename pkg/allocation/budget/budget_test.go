package budget

import (
	"testing"

	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/model"
)

func TestLegacy(t *testing.T) {
	inst, err := Legacy(model.MustFixed("10"), 2019)
	if err != nil {
		t.Fatalf("Legacy() error = %v", err)
	}
	if len(inst.Pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(inst.Pools))
	}
	recent, earlier := inst.Pools[0], inst.Pools[1]
	if recent.Cap != model.MustFixed("22") {
		t.Errorf("recent cap = %s, want 22", recent.Cap)
	}
	if earlier.Cap != model.MustFixed("8") {
		t.Errorf("earlier cap = %s, want 8", earlier.Cap)
	}
	if !recent.Lenient || recent.Threshold() != model.MustFixed("20") {
		t.Errorf("recent threshold = %s, want 20 (lenient)", recent.Threshold())
	}

	c2020 := &model.Candidate{Year: 2020}
	c2018 := &model.Candidate{Year: 2018}
	if !recent.Covers(c2020) || recent.Covers(c2018) {
		t.Error("recent pool should cover only years >= 2019")
	}
	if !earlier.Covers(c2018) || earlier.Covers(c2020) {
		t.Error("earlier pool should cover only years < 2019")
	}
}

func TestSinglePeriod(t *testing.T) {
	tests := []struct {
		name          string
		n             string
		hst           bool
		wantTotal     string
		wantMonograph string
	}{
		{name: "HST学科，专著20%", n: "12.5", hst: true, wantTotal: "37.5", wantMonograph: "7.5"},
		{name: "其他学科，专著5%", n: "12.5", hst: false, wantTotal: "37.5", wantMonograph: "1.875"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := SinglePeriod(model.MustFixed(tt.n), tt.hst)
			if err != nil {
				t.Fatalf("SinglePeriod() error = %v", err)
			}
			if inst.Pools[0].Cap != model.MustFixed(tt.wantTotal) {
				t.Errorf("total cap = %s, want %s", inst.Pools[0].Cap, tt.wantTotal)
			}
			if inst.Pools[1].Cap != model.MustFixed(tt.wantMonograph) {
				t.Errorf("monograph cap = %s, want %s", inst.Pools[1].Cap, tt.wantMonograph)
			}
			if inst.Pools[0].Lenient || inst.Pools[1].Lenient {
				t.Error("single period pools must be strict")
			}
			if inst.Pools[1].Covers(&model.Candidate{Year: 2022}) {
				t.Error("monograph pool must not cover articles")
			}
		})
	}
}

func TestFromSpec(t *testing.T) {
	inst, err := FromSpec(nil, false)
	if err != nil || inst != nil {
		t.Errorf("nil spec should yield nil budget, got %v, %v", inst, err)
	}

	_, err = FromSpec(&model.InstitutionSpec{Scheme: "unknown", N: model.MustFixed("1")}, false)
	if !errors.Is(err, errors.CodeConfiguration) {
		t.Errorf("unknown scheme should be CONFIGURATION_ERROR, got %v", err)
	}

	inst, err = FromSpec(&model.InstitutionSpec{Scheme: model.SchemeLegacy, N: model.MustFixed("5")}, false)
	if err != nil {
		t.Fatalf("FromSpec() error = %v", err)
	}
	if inst.Pools[0].YearFrom != DefaultSplitYear {
		t.Errorf("default split year = %d, want %d", inst.Pools[0].YearFrom, DefaultSplitYear)
	}
}
