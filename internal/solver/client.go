// Package solver is the HTTP client of the external optimization service.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds a single solve call.
const DefaultTimeout = 120 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 64 << 20

// ErrInvocation is matched by every failure of a solve call: connection
// errors, timeouts, non-2xx statuses and unusable bodies alike.
var ErrInvocation = errors.New("solver invocation failed")

// InvocationError describes a failed solve call.
type InvocationError struct {
	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int
	Reason     string
	Err        error
}

func (e *InvocationError) Error() string {
	msg := "solver invocation failed: " + e.Reason
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvocationError) Unwrap() error { return e.Err }

func (e *InvocationError) Is(target error) bool { return target == ErrInvocation }

// Client calls POST {baseURL}/solve.
type Client struct {
	baseURL    string
	httpClient *http.Client
	schema     *schema
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a solver client. A non-positive timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("solver base url is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	sch, err := newSchema()
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		schema:     sch,
		tracer:     otel.Tracer("shiftplane/solver"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Solve sends payload verbatim and returns the validated response.
// No retries happen here; callers own the retry policy.
func (c *Client) Solve(ctx context.Context, payload []byte) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "solver.solve", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	res, err := c.solve(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("solver.status", res.Status),
		attribute.Int("solver.assignments", len(res.Assignments)),
		attribute.Float64("solver.elapsed_sec", res.Elapsed.Seconds()),
	)
	return res, nil
}

func (c *Client) solve(ctx context.Context, payload []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/solve", bytes.NewReader(payload))
	if err != nil {
		return nil, &InvocationError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &InvocationError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	if err != nil {
		return nil, &InvocationError{StatusCode: resp.StatusCode, Reason: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &InvocationError{
			StatusCode: resp.StatusCode,
			Reason:     "unexpected status",
			Err:        errors.New(truncate(string(body), 512)),
		}
	}

	if err := c.schema.validate(body); err != nil {
		return nil, &InvocationError{StatusCode: resp.StatusCode, Reason: "invalid response", Err: err}
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &InvocationError{StatusCode: resp.StatusCode, Reason: "decode response", Err: err}
	}
	if res.Status == "" {
		return nil, &InvocationError{StatusCode: resp.StatusCode, Reason: "invalid response", Err: errors.New("empty status")}
	}
	res.Raw = body
	res.Elapsed = elapsed
	return &res, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
