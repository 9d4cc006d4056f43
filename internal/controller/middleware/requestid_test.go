package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"shiftplane/internal/logger"
)

func TestRequestID_GeneratesID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	handler := RequestID(logger.NewWithWriter(&buf, nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/scenarios", nil))

	if seen == "" {
		t.Fatal("expected a request id in the handler context")
	}
	if got := rr.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header %q does not match context id %q", got, seen)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("access log is not JSON: %v (%s)", err, buf.String())
	}
	if entry["request_id"] != seen {
		t.Errorf("expected request_id %q in log, got %v", seen, entry["request_id"])
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Errorf("expected status 201 in log, got %v", entry["status"])
	}
	if entry["path"] != "/api/v1/scenarios" {
		t.Errorf("unexpected path in log: %v", entry["path"])
	}
}

func TestRequestID_PropagatesIncomingID(t *testing.T) {
	var seen string
	handler := RequestID(logger.NewWithWriter(&bytes.Buffer{}, nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen != "trace-abc" {
		t.Errorf("expected incoming id to be reused, got %q", seen)
	}
	if got := rr.Header().Get(RequestIDHeader); got != "trace-abc" {
		t.Errorf("expected response header trace-abc, got %q", got)
	}
}
