package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth(t *testing.T) {
	s := New()
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("health = %d %q", w.Code, w.Body.String())
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "https://x.example", "*"},
		{"listed origin", []string{"https://app.example/"}, "https://app.example", "https://app.example"},
		{"unlisted origin", []string{"https://app.example"}, "https://evil.example", ""},
		{"disabled", nil, "https://app.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.allowed...)
			s.Router.Get("/api/ping", func(w http.ResponseWriter, _ *http.Request) {})

			req := httptest.NewRequest(http.MethodOptions, "/api/ping", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			s.Router.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
