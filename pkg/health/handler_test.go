package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler_StatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		checker  *stubChecker
		wantCode int
		want     Status
	}{
		{
			name:     "healthy returns 200",
			checker:  &stubChecker{name: "a", status: StatusHealthy},
			wantCode: http.StatusOK,
			want:     StatusHealthy,
		},
		{
			name:     "degraded still returns 200",
			checker:  &stubChecker{name: "a", status: StatusDegraded},
			wantCode: http.StatusOK,
			want:     StatusDegraded,
		},
		{
			name:     "unhealthy returns 503",
			checker:  &stubChecker{name: "a", status: StatusUnhealthy, err: "down"},
			wantCode: http.StatusServiceUnavailable,
			want:     StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			registry.Register(tt.checker)

			rec := httptest.NewRecorder()
			registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}

			var result AggregatedResult
			if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if result.Status != tt.want {
				t.Errorf("expected status %s, got %s", tt.want, result.Status)
			}
			if len(result.Checks) != 1 {
				t.Errorf("expected 1 check in body, got %d", len(result.Checks))
			}
		})
	}
}
