package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/goccy/go-json"

	"github.com/bpp/sloty/internal/batch"
	"github.com/bpp/sloty/internal/config"
	"github.com/bpp/sloty/internal/constraints"
	"github.com/bpp/sloty/internal/metrics"
	"github.com/bpp/sloty/pkg/allocation/fixture"
	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/model"
)

type mapLoader map[model.DisciplineID]*model.Snapshot

func (m mapLoader) Load(_ context.Context, id model.DisciplineID, _ model.Window) (*model.Snapshot, error) {
	snap, ok := m[id]
	if !ok {
		return nil, errors.NotFound("学科", strconv.FormatInt(int64(id), 10))
	}
	return snap, nil
}

func trapSnapshot() *model.Snapshot {
	return fixture.New().
		Author(1, "4", "2").
		Candidate(1, "3", "50", false).
		Candidate(1, "2", "40", false).
		Candidate(1, "2", "40", false).
		Snapshot()
}

func newTestHandler(loader SnapshotLoader) *AllocationHandler {
	engine := config.Default().Engine
	engine.Workers = 2
	runner := batch.NewRunner(engine, config.CheckpointConfig{}, nil, metrics.NewRegistry("handler_test"))
	return NewAllocationHandler(runner, loader)
}

func doJSON(t *testing.T, h http.HandlerFunc, method string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, "/", &buf))
	return rec
}

func TestAllocationHandler_Run(t *testing.T) {
	h := newTestHandler(nil)

	rec := doJSON(t, h.Run, http.MethodPost, RunRequest{Snapshot: *trapSnapshot()})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Strategy != "greedy" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Result == nil || resp.Result.TotalPoints != fixture.Fx("80") {
		t.Errorf("Result = %+v", resp.Result)
	}
	if resp.Report == nil || resp.Report.Ceiling != fixture.Fx("80") {
		t.Errorf("Report = %+v", resp.Report)
	}
}

func TestAllocationHandler_RunErrors(t *testing.T) {
	h := newTestHandler(nil)

	noBudget := trapSnapshot()
	noBudget.Budgets = nil

	noCandidateID := trapSnapshot()
	noCandidateID.Candidates[0].ID = 0

	noYear := trapSnapshot()
	noYear.Candidates[1].Year = 0

	noBudgetAuthor := trapSnapshot()
	noBudgetAuthor.Budgets[0].AuthorID = 0

	tests := []struct {
		name   string
		method string
		body   interface{}
		status int
		code   errors.Code
	}{
		{"方法不支持", http.MethodGet, nil, http.StatusBadRequest, errors.CodeInvalidInput},
		{"未知策略", http.MethodPost, RunRequest{Snapshot: *trapSnapshot(), Strategy: "annealing"}, http.StatusBadRequest, errors.CodeValidationFail},
		{"缺少学科", http.MethodPost, RunRequest{}, http.StatusBadRequest, errors.CodeValidationFail},
		{"候选缺少编号", http.MethodPost, RunRequest{Snapshot: *noCandidateID}, http.StatusBadRequest, errors.CodeValidationFail},
		{"候选缺少年份", http.MethodPost, RunRequest{Snapshot: *noYear}, http.StatusBadRequest, errors.CodeValidationFail},
		{"配额缺少作者", http.MethodPost, RunRequest{Snapshot: *noBudgetAuthor}, http.StatusBadRequest, errors.CodeValidationFail},
		{"作者缺少配额", http.MethodPost, RunRequest{Snapshot: *noBudget}, http.StatusUnprocessableEntity, errors.CodeConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h.Run, tt.method, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.status, rec.Body.String())
			}
			var resp struct {
				Success bool            `json:"success"`
				Error   errors.AppError `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Success || resp.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", resp.Error, tt.code)
			}
		})
	}
}

func TestAllocationHandler_RunMalformed(t *testing.T) {
	h := newTestHandler(nil)
	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAllocationHandler_Batch(t *testing.T) {
	broken := trapSnapshot()
	broken.Discipline.ID = 8
	for i := range broken.Candidates {
		broken.Candidates[i].DisciplineID = 8
	}
	broken.Budgets = nil

	h := newTestHandler(mapLoader{
		fixture.DisciplineID: trapSnapshot(),
		8:                    broken,
	})

	rec := doJSON(t, h.Batch, http.MethodPost, BatchRequest{
		DisciplineIDs: []model.DisciplineID{fixture.DisciplineID, 8, 9},
		Strategy:      "sequential",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 || resp.Succeeded != 1 || resp.Failed != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Outcomes[0].Strategy != "sequential" || resp.Outcomes[0].Result.TotalPoints != fixture.Fx("50") {
		t.Errorf("outcome[0] = %+v", resp.Outcomes[0])
	}
	if resp.Outcomes[1].Error == nil || resp.Outcomes[1].Error.Code != errors.CodeConfiguration {
		t.Errorf("outcome[1] = %+v", resp.Outcomes[1])
	}
	if resp.Outcomes[2].Error == nil || resp.Outcomes[2].Error.Code != errors.CodeNotFound {
		t.Errorf("outcome[2] = %+v", resp.Outcomes[2])
	}
}

func TestAllocationHandler_BatchWithoutDatabase(t *testing.T) {
	h := newTestHandler(nil)
	rec := doJSON(t, h.Batch, http.MethodPost, BatchRequest{DisciplineIDs: []model.DisciplineID{1}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAllocationHandler_BatchValidation(t *testing.T) {
	h := newTestHandler(mapLoader{})
	rec := doJSON(t, h.Batch, http.MethodPost, BatchRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAllocationHandler_Strategies(t *testing.T) {
	h := newTestHandler(nil)
	rec := doJSON(t, h.Strategies, http.MethodGet, nil)

	var resp struct {
		Strategies []string `json:"strategies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Strategies) != 4 {
		t.Errorf("strategies = %v", resp.Strategies)
	}
}

func TestAllocationHandler_Rules(t *testing.T) {
	h := newTestHandler(nil)

	rec := doJSON(t, h.Rules, http.MethodGet, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp constraints.LibraryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Rules) != 4 || resp.Rules[0].Name != "duplicate" {
		t.Errorf("rules = %+v", resp.Rules)
	}

	rec = doJSON(t, h.Rules, http.MethodPost, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST status = %d", rec.Code)
	}
}
