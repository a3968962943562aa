package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/roundtable/config"
	"github.com/mohammad-safakhou/roundtable/internal/orchestration"
)

type stubRunner struct {
	result orchestration.RunResult
	err    error
}

func (s *stubRunner) Run(ctx context.Context, task string, team []orchestration.Participant, opts orchestration.RunOptions) (orchestration.RunResult, error) {
	return s.result, s.err
}

type nullProvider struct{}

func (nullProvider) Generate(ctx context.Context, prompt, system, model string) (string, error) {
	return "", nil
}

func (nullProvider) GenerateWithTokens(ctx context.Context, prompt, system, model string) (string, int64, int64, error) {
	return "", 0, 0, nil
}

func (nullProvider) GetModelInfo(model string) (orchestration.ModelInfo, error) {
	return orchestration.ModelInfo{Name: model}, nil
}

func (nullProvider) CalculateCost(inputTokens, outputTokens int64, model string) float64 { return 0 }

func serverConfig() *config.Config {
	return &config.Config{
		General: config.GeneralConfig{DefaultTimeout: time.Minute},
		LLM: config.LLMConfig{
			Routing: config.LLMRoutingConfig{Participant: "gpt-4"},
		},
	}
}

func setupRunsAPI(t *testing.T, runner Runner) (*echo.Echo, *Journal) {
	t.Helper()
	e := echo.New()
	journal := NewJournal()
	h := NewRunsHandler(serverConfig(), runner, nullProvider{}, journal)
	h.Register(e.Group("/api/runs"))
	return e, journal
}

func postRun(t *testing.T, e *echo.Echo, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/runs", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateRunAndPollResult(t *testing.T) {
	runner := &stubRunner{result: orchestration.RunResult{
		RunID:  "inner",
		Task:   "t",
		State:  orchestration.StateCompleted,
		Answer: "done",
		Rounds: 2,
	}}
	e, journal := setupRunsAPI(t, runner)

	rec := postRun(t, e, map[string]any{
		"task": "t",
		"team": []map[string]string{{"name": "Analyst", "description": "d"}},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var created createRunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected a run id")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		record, ok := journal.Get(created.ID)
		if ok && record.Status == "finished" {
			if record.Result == nil || record.Result.Answer != "done" {
				t.Fatalf("unexpected stored result: %+v", record.Result)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never finished, journal: %+v", record)
		}
		time.Sleep(5 * time.Millisecond)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	e.ServeHTTP(getRec, req)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getRec.Code)
	}
	var fetched RunRecord
	if err := json.Unmarshal(getRec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode run record: %v", err)
	}
	if fetched.Status != "finished" || fetched.Result.State != orchestration.StateCompleted {
		t.Fatalf("unexpected record: %+v", fetched)
	}
}

func TestCreateRunValidation(t *testing.T) {
	e, _ := setupRunsAPI(t, &stubRunner{})

	rec := postRun(t, e, map[string]any{"team": []map[string]string{{"name": "A", "description": "d"}}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing task, got %d", rec.Code)
	}

	rec = postRun(t, e, map[string]any{"task": "t"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing team, got %d", rec.Code)
	}

	rec = postRun(t, e, map[string]any{
		"task": "t",
		"team": []map[string]string{{"name": "A", "description": "x"}, {"name": "A", "description": "y"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate names, got %d", rec.Code)
	}
}

func TestGetRunNotFound(t *testing.T) {
	e, _ := setupRunsAPI(t, &stubRunner{})
	req := httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	journal := NewJournal()
	journal.Add(&RunRecord{ID: "old", SubmittedAt: time.Now().Add(-time.Hour), Status: "finished"})
	journal.Add(&RunRecord{ID: "new", SubmittedAt: time.Now(), Status: "pending"})

	records := journal.List()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "new" {
		t.Fatalf("expected newest first, got %s", records[0].ID)
	}
}
