package endpoint

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIHeadersDefaults(t *testing.T) {
	p := NewAPIHeaders()

	tests := []struct {
		name     string
		tls      bool
		wantHSTS string
	}{
		{"plain", false, ""},
		{"tls", true, "max-age=31536000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.tls {
				r.TLS = &tls.ConnectionState{}
			}
			nextCalled := false
			err := p.Process(w, r, func(http.ResponseWriter, *http.Request) error {
				nextCalled = true
				return nil
			})
			if err != nil || !nextCalled {
				t.Fatalf("got err %v, next called %v", err, nextCalled)
			}
			if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
				t.Errorf("X-Content-Type-Options: got %q", got)
			}
			if got := w.Header().Get("Cache-Control"); got != "no-store" {
				t.Errorf("Cache-Control: got %q", got)
			}
			if got := w.Header().Get("Strict-Transport-Security"); got != tt.wantHSTS {
				t.Errorf("Strict-Transport-Security: got %q, want %q", got, tt.wantHSTS)
			}
			if w.Header().Get("Access-Control-Allow-Origin") != "" {
				t.Error("CORS headers set without CORS config")
			}
		})
	}
}

func TestAPIHeadersCORS(t *testing.T) {
	tests := []struct {
		name       string
		cors       *CORSConfig
		origin     string
		wantOrigin string
		wantCreds  bool
	}{
		{"listed origin", &CORSConfig{AllowedOrigins: []string{"https://app.example"}}, "https://app.example", "https://app.example", false},
		{"unlisted origin", &CORSConfig{AllowedOrigins: []string{"https://app.example"}}, "https://evil.example", "", false},
		{"wildcard", &CORSConfig{AllowedOrigins: []string{"*"}}, "https://any.example", "*", false},
		{"wildcard ignored with credentials", &CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, "https://any.example", "", false},
		{"credentials", &CORSConfig{AllowedOrigins: []string{"https://app.example"}, AllowCredentials: true}, "https://app.example", "https://app.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewAPIHeaders(WithCORS(tt.cors))
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.Header.Set("Origin", tt.origin)
			if err := p.Process(w, r, func(http.ResponseWriter, *http.Request) error { return nil }); err != nil {
				t.Fatalf("Process: %v", err)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin: got %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("Access-Control-Allow-Credentials: got %v, want %v", got, tt.wantCreds)
			}
		})
	}
}

func TestAPIHeadersPreflight(t *testing.T) {
	reached := false
	h := Handler(func(_ http.ResponseWriter, r *http.Request, _ struct{}) (Renderer, error) {
		reached = true
		return &NoContentRenderer{Status: http.StatusOK}, nil
	}, NewAPIHeaders(WithCORS(&CORSConfig{AllowedOrigins: []string{"https://app.example"}, MaxAge: 600}), WithHSTS(0)))

	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "https://app.example")
	r.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if reached {
		t.Error("preflight reached the endpoint")
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("got status %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods: got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Errorf("Access-Control-Allow-Headers: got %q", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("Access-Control-Max-Age: got %q", got)
	}
}
