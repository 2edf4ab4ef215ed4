package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/timeless/internal/auth"
)

// TestRouterIntegration_APIChain は Logging -> Session -> RateLimit -> CSRF の順に
// 組み立てたチェーンがchi.Routerで期待どおりに動くことを検証する。
func TestRouterIntegration_APIChain(t *testing.T) {
	var logBuf bytes.Buffer
	rl := testRateLimiter(t, 100, 1)
	csrfConfig := CSRFConfig{}

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(newJSONLogger(&logBuf), nil))
	r.Get("/api/csrf-token", NewCSRFTokenHandler(csrfConfig).ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(NewSessionMiddleware(sessionRepoFor("router-session", "user-router")))
		r.Use(rl.GeneralMiddleware())
		r.Use(NewCSRFMiddleware(csrfConfig))

		r.Get("/api/todos", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
		})
		r.Post("/api/todos", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
	})

	do := func(method, path string, session, csrf bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if session {
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "router-session"})
		}
		if csrf {
			req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "csrf"})
			req.Header.Set(CSRFHeaderName, "csrf")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	tests := []struct {
		name    string
		method  string
		path    string
		session bool
		csrf    bool
		want    int
	}{
		{"GET_with_session", http.MethodGet, "/api/todos", true, false, http.StatusOK},
		{"GET_without_session", http.MethodGet, "/api/todos", false, false, http.StatusUnauthorized},
		{"POST_with_session_and_csrf", http.MethodPost, "/api/todos", true, true, http.StatusCreated},
		{"POST_without_csrf", http.MethodPost, "/api/todos", true, false, http.StatusForbidden},
		{"POST_without_session", http.MethodPost, "/api/todos", false, true, http.StatusUnauthorized},
		{"CSRF_token_without_session", http.MethodGet, "/api/csrf-token", false, false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(tt.method, tt.path, tt.session, tt.csrf); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	if !bytes.Contains(logBuf.Bytes(), []byte(`"user_id":"user-router"`)) {
		t.Errorf("access log should include user_id, got %s", logBuf.String())
	}
}

// TestRouterIntegration_PageGuards はページルートのガードとCSRFの組み合わせを検証する。
func TestRouterIntegration_PageGuards(t *testing.T) {
	users := &mockCurrentUserGetter{}

	r := chi.NewRouter()
	r.Use(NewCSRFMiddleware(CSRFConfig{}))
	r.With(NewGuardMiddleware(auth.RequireUnauthenticated("/dashboard"), users)).Get("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(CSRFTokenFromContext(r.Context())))
	})
	r.With(NewGuardMiddleware(auth.RequireAuthenticated("/login"), users)).Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Errorf("login page status = %d, token = %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Errorf("dashboard status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
}
