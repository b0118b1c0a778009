package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantMethods string
		wantVary    string
	}{
		{
			name:        "configured origin",
			allowed:     []string{" https://stats.example.com ", ""},
			method:      http.MethodGet,
			origin:      "https://stats.example.com",
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://stats.example.com",
			wantMethods: "GET,OPTIONS",
			wantVary:    "Origin",
		},
		{
			name:        "wildcard preflight",
			allowed:     []string{"*"},
			method:      http.MethodOptions,
			origin:      "https://stats.example.com",
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "*",
			wantMethods: "GET,OPTIONS",
		},
		{
			name:       "unconfigured origin",
			allowed:    []string{"https://allowed.example.com"},
			method:     http.MethodGet,
			origin:     "https://not-allowed.example.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "no origin skips headers",
			allowed:    []string{"*"},
			method:     http.MethodOptions,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(tt.method, "/v1/series-stats", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed, next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			h := rec.Header()
			if got := h.Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("Access-Control-Allow-Origin: want %q, got %q", tt.wantOrigin, got)
			}
			if got := h.Get("Access-Control-Allow-Methods"); got != tt.wantMethods {
				t.Fatalf("Access-Control-Allow-Methods: want %q, got %q", tt.wantMethods, got)
			}
			if got := h.Get("Vary"); got != tt.wantVary {
				t.Fatalf("Vary: want %q, got %q", tt.wantVary, got)
			}
		})
	}
}
