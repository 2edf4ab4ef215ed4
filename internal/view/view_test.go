package view

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/timeless/internal/model"
	"github.com/hitoshi/timeless/internal/pomodoro"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return r
}

func TestRenderer_Home(t *testing.T) {
	r := newRenderer(t)
	rec := httptest.NewRecorder()

	if err := r.Render(rec, http.StatusOK, PageHome, Page{}); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"Master your time, achieve your goals.", `href="/login"`, `href="/signup"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body does not contain %q", want)
		}
	}
}

func TestRenderer_Login_EscapesError(t *testing.T) {
	r := newRenderer(t)
	rec := httptest.NewRecorder()

	data := AuthPage{
		Page:  Page{Title: "Log In", CSRFToken: "tok123"},
		Error: "<script>alert(1)</script>",
	}
	if err := r.Render(rec, http.StatusOK, PageLogin, data); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	body := rec.Body.String()
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("error message must be escaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("escaped error message not rendered")
	}
	if !strings.Contains(body, `name="csrf_token" value="tok123"`) {
		t.Error("csrf hidden field not rendered")
	}
	if strings.Contains(body, "/auth/google/login") {
		t.Error("google button must be hidden when disabled")
	}
}

func TestRenderer_Signup_GoogleEnabled(t *testing.T) {
	r := newRenderer(t)
	rec := httptest.NewRecorder()

	if err := r.Render(rec, http.StatusOK, PageSignup, AuthPage{GoogleEnabled: true}); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "/auth/google/login") {
		t.Error("google button should be rendered")
	}
	if strings.Contains(body, `class="error"`) {
		t.Error("error box should not be rendered without an error")
	}
}

func TestRenderer_Dashboard(t *testing.T) {
	r := newRenderer(t)
	rec := httptest.NewRecorder()

	snap := pomodoro.NewTimer().Snapshot()
	data := DashboardPage{
		Page:  Page{Title: "Dashboard", CSRFToken: "tok"},
		User:  &model.User{Username: "alice"},
		Timer: NewTimer("timer-1", snap),
		Tasks: []model.Task{
			{ID: "t2", Text: "write <b>tests</b>", Completed: true, CreatedAt: time.Now()},
			{ID: "t1", Text: "plan", CreatedAt: time.Now()},
		},
		Completed: 1,
		Total:     2,
	}
	if err := r.Render(rec, http.StatusOK, PageDashboard, data); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`data-timer-id="timer-1"`,
		">25:00<",
		"Focus",
		"Short Break",
		"Long Break",
		`data-id="t2"`,
		"write &lt;b&gt;tests&lt;/b&gt;",
		`<span id="todo-completed">1</span>/<span id="todo-total">2</span> done`,
		"alice",
		`src="/static/dashboard.js"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body does not contain %q", want)
		}
	}
	if strings.Index(body, `data-id="t2"`) > strings.Index(body, `data-id="t1"`) {
		t.Error("tasks must keep the given order")
	}
}

func TestRenderer_UnknownPage(t *testing.T) {
	r := newRenderer(t)
	if err := r.Render(httptest.NewRecorder(), http.StatusOK, "missing", nil); err == nil {
		t.Error("expected error for unknown page")
	}
}

func TestNewTimer(t *testing.T) {
	timer := pomodoro.NewTimer()
	timer.SwitchMode(pomodoro.ModeShortBreak)
	timer.FastForward(150)

	got := NewTimer("id", timer.Snapshot())

	if got.Mode != "short_break" || got.Label != "Short Break" {
		t.Errorf("mode = %q/%q", got.Mode, got.Label)
	}
	if got.Display != "02:30" {
		t.Errorf("Display = %q, want 02:30", got.Display)
	}
	if got.Percent != 50 {
		t.Errorf("Percent = %d, want 50", got.Percent)
	}
	if got.Minutes != 5 {
		t.Errorf("Minutes = %d, want 5", got.Minutes)
	}
	active := 0
	for _, tab := range got.Modes {
		if tab.Active {
			active++
			if tab.Mode != "short_break" {
				t.Errorf("active tab = %q", tab.Mode)
			}
		}
	}
	if active != 1 {
		t.Errorf("active tabs = %d, want 1", active)
	}
}

func TestStaticHandler(t *testing.T) {
	h := StaticHandler()

	for _, path := range []string{"/static/dashboard.js", "/static/style.css"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
