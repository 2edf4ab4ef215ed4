package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testRateLimiter(t *testing.T, general, auth int) *RateLimiter {
	t.Helper()
	cfg := RateLimiterConfig{
		GeneralRate:  rate.Limit(0.001),
		GeneralBurst: general,
		AuthRate:     rate.Limit(0.001),
		AuthBurst:    auth,
	}
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 10)

	if cfg.GeneralRate != rate.Limit(2) || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d, want 2/120", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.AuthBurst != 10 {
		t.Errorf("AuthBurst = %d, want 10", cfg.AuthBurst)
	}
}

func TestGeneralMiddleware_LimitsPerUser(t *testing.T) {
	rl := testRateLimiter(t, 2, 1)
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs("user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}

	// 別ユーザーは独立したバケットを持つ
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-2"))
	if w.Code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestGeneralMiddleware_NoUser_Returns401(t *testing.T) {
	rl := testRateLimiter(t, 1, 1)

	w := httptest.NewRecorder()
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/todos", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_LimitsPostsPerIP(t *testing.T) {
	rl := testRateLimiter(t, 10, 1)
	handler := rl.AuthMiddleware()(okHandler())

	post := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if got := post("203.0.113.1:5000"); got != http.StatusOK {
		t.Fatalf("first attempt status = %d, want 200", got)
	}
	if got := post("203.0.113.1:5001"); got != http.StatusTooManyRequests {
		t.Errorf("second attempt from same IP status = %d, want 429", got)
	}
	if got := post("203.0.113.2:5000"); got != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", got)
	}

	// フォームの表示は制限しない
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = "203.0.113.1:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET status = %d, want 200", w.Code)
		}
	}
	if rl.AuthLimiterCount() != 2 {
		t.Errorf("AuthLimiterCount = %d, want 2", rl.AuthLimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesIdleEntries(t *testing.T) {
	rl := testRateLimiter(t, 5, 5)
	rl.config.CleanupInterval = time.Minute
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	handler := rl.GeneralMiddleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), requestAs("idle-user"))

	now = now.Add(90 * time.Second)
	handler.ServeHTTP(httptest.NewRecorder(), requestAs("active-user"))

	now = now.Add(60 * time.Second)
	rl.cleanup()

	if got := rl.GeneralLimiterCount(); got != 1 {
		t.Errorf("GeneralLimiterCount = %d, want 1", got)
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 1, GeneralBurst: 1, AuthRate: 1, AuthBurst: 1, CleanupInterval: time.Minute})
	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:1234"
	if got := clientIP(req); got != "198.51.100.7" {
		t.Errorf("clientIP = %q", got)
	}
	req.RemoteAddr = "198.51.100.7"
	if got := clientIP(req); got != "198.51.100.7" {
		t.Errorf("clientIP without port = %q", got)
	}
}
