package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shiftplane/pkg/api"

	"github.com/spf13/viper"
)

func TestKpiCommand(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/kpi/7" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(api.KpiResponse{
			SolverRunID:      7,
			AvgSatisfaction:  86,
			UnderstaffTotal:  2,
			OvertimeTotal:    1,
			SeniorCoverageOK: false,
		})
	}))
	defer server.Close()
	viper.Set("url", server.URL)

	output, err := execute(t, "kpi", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"KPI of run 7", "86%", "missing"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestKpiCommand_YAML(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.KpiResponse{SolverRunID: 7, AvgSatisfaction: 90, SeniorCoverageOK: true})
	}))
	defer server.Close()
	viper.Set("url", server.URL)
	viper.Set("output", "yaml")

	output, err := execute(t, "kpi", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "avg_satisfaction: 90") || !strings.Contains(output, "senior_coverage_ok: true") {
		t.Errorf("unexpected yaml: %s", output)
	}
}

func TestAssignmentsCommand(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("solver_run_id") != "7" {
			t.Errorf("expected solver_run_id=7, got %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]api.AssignmentResponse{
			{ID: 1, SolverRunID: 7, Day: "2025-01-06", ShiftID: 1, StaffID: 100, Source: "MODEL"},
			{ID: 2, SolverRunID: 7, Day: "2025-01-07", ShiftID: 3, StaffID: 101, IsOvertime: true, Source: "MODEL"},
		})
	}))
	defer server.Close()
	viper.Set("url", server.URL)

	output, err := execute(t, "assignments", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"2025-01-06", "2025-01-07", "2 assignments", "yes"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestAssignmentsCommand_UnsupportedOutput(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()
	viper.Set("url", server.URL)
	viper.Set("output", "xml")

	_, err := execute(t, "assignments", "7")
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Errorf("expected output format error, got %v", err)
	}
}
