package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthHandlers(t *testing.T) {
	tests := []struct {
		name           string
		endpoint       string
		mockSetup      func(*mockStore)
		expectedStatus int
		expectedInBody string
	}{
		{
			name:           "Healthz always OK",
			endpoint:       "/healthz",
			mockSetup:      func(m *mockStore) {},
			expectedStatus: http.StatusOK,
			expectedInBody: `"ok"`,
		},
		{
			name:           "Readyz OK when DB is up",
			endpoint:       "/readyz",
			mockSetup:      func(m *mockStore) {},
			expectedStatus: http.StatusOK,
			expectedInBody: `"ready"`,
		},
		{
			name:     "Readyz Fails when DB is down",
			endpoint: "/readyz",
			mockSetup: func(m *mockStore) {
				m.pingErr = errors.New("connection refused")
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedInBody: "Database unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockStore{}
			tt.mockSetup(mock)
			h := New(mock, &mockRunner{})

			req := httptest.NewRequest(http.MethodGet, tt.endpoint, nil)
			rr := httptest.NewRecorder()

			if tt.endpoint == "/healthz" {
				h.Healthz(rr, req)
			} else {
				h.Readyz(rr, req)
			}

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
			if !strings.Contains(rr.Body.String(), tt.expectedInBody) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedInBody, rr.Body.String())
			}
		})
	}
}
