package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/timeless/internal/auth"
	"github.com/hitoshi/timeless/internal/model"
)

type mockCurrentUserGetter struct {
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockCurrentUserGetter) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

var _ auth.CurrentUserGetter = (*mockCurrentUserGetter)(nil)

func loggedInAs(user *model.User) *mockCurrentUserGetter {
	return &mockCurrentUserGetter{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID == "valid" {
				return user, nil
			}
			return nil, nil
		},
	}
}

func serveGuarded(t *testing.T, guard auth.Guard, users auth.CurrentUserGetter, sessionID string) (*httptest.ResponseRecorder, bool, *model.User) {
	t.Helper()
	called := false
	var seen *model.User
	handler := NewGuardMiddleware(guard, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sessionID})
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, called, seen
}

func TestGuardMiddleware_Authenticated_Allows(t *testing.T) {
	alice := &model.User{ID: "user-1"}

	w, called, seen := serveGuarded(t, auth.RequireAuthenticated("/login"), loggedInAs(alice), "valid")

	if !called || w.Code != http.StatusOK {
		t.Fatalf("called = %v, status = %d", called, w.Code)
	}
	if seen != alice {
		t.Errorf("user in context = %+v, want %+v", seen, alice)
	}
}

func TestGuardMiddleware_Unauthenticated_RedirectsToLogin(t *testing.T) {
	w, called, _ := serveGuarded(t, auth.RequireAuthenticated("/login"), loggedInAs(nil), "")

	if called {
		t.Error("page handler should not run when redirected")
	}
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Errorf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
}

func TestGuardMiddleware_LoggedInVisitor_RedirectsToDashboard(t *testing.T) {
	w, called, _ := serveGuarded(t, auth.RequireUnauthenticated("/dashboard"), loggedInAs(&model.User{ID: "u"}), "valid")

	if called {
		t.Error("page handler should not run when redirected")
	}
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/dashboard" {
		t.Errorf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
}

func TestGuardMiddleware_Anonymous_SeesPublicPage(t *testing.T) {
	w, called, seen := serveGuarded(t, auth.RequireUnauthenticated("/dashboard"), loggedInAs(nil), "")

	if !called || w.Code != http.StatusOK {
		t.Fatalf("called = %v, status = %d", called, w.Code)
	}
	if seen != nil {
		t.Errorf("user in context = %+v, want nil", seen)
	}
}

func TestGuardMiddleware_LookupError_Returns500(t *testing.T) {
	users := &mockCurrentUserGetter{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	}

	w, called, _ := serveGuarded(t, auth.RequireAuthenticated("/login"), users, "valid")

	if called {
		t.Error("page handler should not run on guard error")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
