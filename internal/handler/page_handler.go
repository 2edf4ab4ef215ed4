package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/timeless/internal/middleware"
	"github.com/hitoshi/timeless/internal/model"
	"github.com/hitoshi/timeless/internal/view"
)

// PageRenderer はHTMLページを描画する。view.Rendererが満たす。
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, name string, data any) error
}

// OAuthStatus はGoogleサインインの有効・無効を返す。
type OAuthStatus interface {
	OAuthEnabled() bool
}

// PageHandler はHTMLページのハンドラー。
// アクセス可否はルーターでガードミドルウェアが判定済みである前提で動作する。
type PageHandler struct {
	renderer PageRenderer
	oauth    OAuthStatus
	todos    TodoServiceInterface
	timers   TimerServiceInterface
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer PageRenderer, oauth OAuthStatus, todos TodoServiceInterface, timers TimerServiceInterface) *PageHandler {
	return &PageHandler{
		renderer: renderer,
		oauth:    oauth,
		todos:    todos,
		timers:   timers,
	}
}

// Home はランディングページを表示する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, view.PageHome, view.Page{
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
	})
}

// Login はログインページを表示する。
// GET /login?error=...
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, view.PageLogin, h.authPage(r, "Log In"))
}

// Signup はサインアップページを表示する。
// GET /signup?error=...
func (h *PageHandler) Signup(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, view.PageSignup, h.authPage(r, "Sign Up"))
}

// Dashboard はタイマーとTo-Doリストを表示する。
// 表示ごとに新しいタイマーインスタンスを作成する。
// GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	// 読み込みに失敗した場合は空の一覧で表示する
	list, err := h.todos.ListTasks(r.Context(), user.ID)
	if err != nil {
		slog.Warn("failed to load tasks for dashboard",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		list = &taskList{Tasks: []model.Task{}}
	}

	timerID, snap := h.timers.Create(user.ID)

	h.render(w, r, view.PageDashboard, view.DashboardPage{
		Page: view.Page{
			Title:     "Dashboard",
			CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		},
		User:      user,
		Timer:     view.NewTimer(timerID, snap),
		Tasks:     list.Tasks,
		Completed: list.Completed,
		Total:     list.Total,
	})
}

func (h *PageHandler) authPage(r *http.Request, title string) view.AuthPage {
	return view.AuthPage{
		Page: view.Page{
			Title:     title,
			CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		},
		Error:         r.URL.Query().Get("error"),
		GoogleEnabled: h.oauth.OAuthEnabled(),
	}
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if err := h.renderer.Render(w, http.StatusOK, name, data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
