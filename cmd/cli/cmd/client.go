package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shiftplane/pkg/api"
)

// Client handles API calls to the shiftplane controller.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new client with the given base URL and token.
// The timeout covers synchronous solver runs, so it is generous.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.Token != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var e api.ErrorResponse
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.Details = e.Details
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func withID(path, key string, id int64) string {
	if id <= 0 {
		return path
	}
	return path + "?" + url.Values{key: []string{strconv.FormatInt(id, 10)}}.Encode()
}

// CreateScenario sends POST /api/v1/scenarios.
func (c *Client) CreateScenario(ctx context.Context, req api.CreateScenarioRequest) (*api.ScenarioResponse, error) {
	var out api.ScenarioResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/scenarios", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListScenarios sends GET /api/v1/scenarios, filtered by unit when unitID > 0.
func (c *Client) ListScenarios(ctx context.Context, unitID int64) ([]api.ScenarioResponse, error) {
	var out []api.ScenarioResponse
	if err := c.do(ctx, http.MethodGet, withID("/api/v1/scenarios", "unit_id", unitID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetScenario sends GET /api/v1/scenarios/{id}.
func (c *Client) GetScenario(ctx context.Context, id int64) (*api.ScenarioResponse, error) {
	var out api.ScenarioResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/scenarios/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteScenario sends DELETE /api/v1/scenarios/{id}.
func (c *Client) DeleteScenario(ctx context.Context, id int64) (bool, error) {
	var out api.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/scenarios/%d", id), nil, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

// StartRun sends POST /api/v1/solver-runs and waits for the run to finish.
func (c *Client) StartRun(ctx context.Context, req api.CreateRunRequest) (*api.SolverRunResponse, error) {
	var out api.SolverRunResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/solver-runs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRun sends GET /api/v1/solver-runs/{id}.
func (c *Client) GetRun(ctx context.Context, id int64) (*api.SolverRunResponse, error) {
	var out api.SolverRunResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/solver-runs/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns sends GET /api/v1/solver-runs, filtered by scenario when scenarioID > 0.
func (c *Client) ListRuns(ctx context.Context, scenarioID int64) ([]api.SolverRunResponse, error) {
	var out []api.SolverRunResponse
	if err := c.do(ctx, http.MethodGet, withID("/api/v1/solver-runs", "scenario_id", scenarioID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IngestResult sends POST /api/v1/solver-runs/{id}/ingest-result.
func (c *Client) IngestResult(ctx context.Context, runID int64, req api.IngestRequest) (*api.IngestResponse, error) {
	var out api.IngestResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/solver-runs/%d/ingest-result", runID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetKpi sends GET /api/v1/kpi/{run_id}.
func (c *Client) GetKpi(ctx context.Context, runID int64) (*api.KpiResponse, error) {
	var out api.KpiResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/kpi/%d", runID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAssignments sends GET /api/v1/assignments?solver_run_id=.
func (c *Client) ListAssignments(ctx context.Context, runID int64) ([]api.AssignmentResponse, error) {
	var out []api.AssignmentResponse
	if err := c.do(ctx, http.MethodGet, withID("/api/v1/assignments", "solver_run_id", runID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
