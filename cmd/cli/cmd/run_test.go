package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shiftplane/pkg/api"

	"github.com/spf13/viper"
)

func TestRunStart_Success(t *testing.T) {
	resetViper()

	started := time.Now().Add(-2 * time.Minute)
	finished := started.Add(90 * time.Second)
	wall := 88.4

	var got api.CreateRunRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/solver-runs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(api.SolverRunResponse{
			ID:          7,
			ScenarioID:  10,
			PolicySetID: 2,
			Status:      "succeeded",
			Phase:       "done",
			Attempt:     1,
			Seed:        got.Seed,
			WallTimeSec: &wall,
			StartedAt:   &started,
			FinishedAt:  &finished,
			IngestURL:   "http://127.0.0.1:8080/api/v1/solver-runs/7/ingest-result",
		})
	}))
	defer server.Close()
	viper.Set("url", server.URL)

	output, err := execute(t, "run", "start", "--scenario", "10", "--policy-set", "2", "--seed", "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ScenarioID != 10 || got.PolicySetID != 2 {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.Seed == nil || *got.Seed != 42 {
		t.Errorf("expected seed 42, got %v", got.Seed)
	}
	for _, want := range []string{"Solver Run Details", "succeeded", "done", "1m 30s", "ingest-result"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestRunStart_SolverFailure(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(api.ErrorResponse{
			Error:   "Solver invocation failed",
			Code:    "502",
			Details: "solver invocation failed: request failed: connection refused",
		})
	}))
	defer server.Close()
	viper.Set("url", server.URL)

	_, err := execute(t, "run", "start", "--scenario", "10", "--policy-set", "2")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunStatus_FailedRun(t *testing.T) {
	resetViper()

	msg := "unknown nurse identifier from solver: 'Carol'"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/solver-runs/7" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(api.SolverRunResponse{ID: 7, Status: "failed", Phase: "resolving", Attempt: 1, Error: &msg})
	}))
	defer server.Close()
	viper.Set("url", server.URL)

	output, err := execute(t, "run", "status", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, msg) {
		t.Errorf("expected error message in output, got: %s", output)
	}
	if !strings.Contains(output, "resolving") {
		t.Errorf("expected phase in output, got: %s", output)
	}
}

func TestRunStatus_InvalidID(t *testing.T) {
	resetViper()

	_, err := execute(t, "run", "status", "seven")
	if err == nil || !strings.Contains(err.Error(), "invalid run id") {
		t.Errorf("expected invalid id error, got %v", err)
	}
}

func TestRunList(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("scenario_id") != "10" {
			t.Errorf("expected scenario_id=10, got %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]api.SolverRunResponse{
			{ID: 8, ScenarioID: 10, Status: "queued", Phase: "created", Attempt: 0},
			{ID: 7, ScenarioID: 10, Status: "succeeded", Phase: "done", Attempt: 1},
		})
	}))
	defer server.Close()
	viper.Set("url", server.URL)

	output, err := execute(t, "run", "list", "--scenario", "10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Index(output, "queued") > strings.Index(output, "succeeded") {
		t.Errorf("expected server order to be kept, got: %s", output)
	}
}

func TestRunIngest_SendsToken(t *testing.T) {
	resetViper()

	var got api.IngestRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/solver-runs/7/ingest-result" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer callback-secret" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(api.IngestResponse{OK: true, SolverRunID: 7, Updated: true, AssignmentsInserted: 2, KpiUpserted: true})
	}))
	defer server.Close()
	viper.Set("url", server.URL)
	viper.Set("token", "callback-secret")

	result := filepath.Join(t.TempDir(), "result.json")
	os.WriteFile(result, []byte(`{
		"status": "succeeded",
		"assignments": [
			{"day": "2025-01-06", "shift_id": 1, "staff_id": 100, "is_overtime": false},
			{"day": "2025-01-07", "shift_id": 3, "staff_id": 101, "is_overtime": true}
		],
		"kpi": {"avg_satisfaction": 86, "understaff_total": 0, "overtime_total": 1, "night_violations": 0, "senior_coverage_ok": true}
	}`), 0o600)

	output, err := execute(t, "run", "ingest", "7", "--file", result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Assignments) != 2 || got.Kpi == nil || got.Kpi.AvgSatisfaction != 86 {
		t.Errorf("unexpected request: %+v", got)
	}
	if !strings.Contains(output, "Result ingested for run 7") {
		t.Errorf("unexpected output: %s", output)
	}
}
