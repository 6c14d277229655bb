package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"golang.org/x/time/rate"
)

func TestIsValidBearerToken(t *testing.T) {
	log := logger_i.NewLogger("test")
	auth := config.AuthConfig{Token: "s3cret"}

	tests := []struct {
		name   string
		header string
		auth   config.AuthConfig
		want   bool
	}{
		{"valid", "Bearer s3cret", auth, true},
		{"wrong token", "Bearer nope", auth, false},
		{"no scheme", "s3cret", auth, false},
		{"empty", "", auth, false},
		{"unset token never matches", "Bearer ", config.AuthConfig{}, false},
		{"bypass", "", config.AuthConfig{Bypass: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidBearerToken(tt.header, tt.auth, log); got != tt.want {
				t.Errorf("IsValidBearerToken(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestIPRateLimiter_PerAddress(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(0.001), 1)
	if !limiter.GetLimiter("10.0.0.1").Allow() {
		t.Fatal("first request from an address must pass")
	}
	if limiter.GetLimiter("10.0.0.1").Allow() {
		t.Error("second request from the same address must be limited")
	}
	if !limiter.GetLimiter("10.0.0.2").Allow() {
		t.Error("other addresses have their own budget")
	}
}

func TestIPRateLimiter_Prune(t *testing.T) {
	now := time.Unix(1000, 0)
	limiter := NewIPRateLimiter(rate.Limit(1), 1)
	limiter.now = func() time.Time { return now }

	limiter.GetLimiter("old")
	now = now.Add(time.Hour)
	limiter.GetLimiter("fresh")

	if left := limiter.Prune(time.Minute); left != 1 {
		t.Errorf("expected only the fresh address to survive, %d left", left)
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin must not be allowed, got %q", got)
	}
}
