package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/timeless/internal/auth"
	"github.com/hitoshi/timeless/internal/middleware"
	"github.com/hitoshi/timeless/internal/view"
)

// HealthChecker はデータベースの疎通確認に使用する。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HTTPObserver      middleware.StatusObserver
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService  AuthServiceInterface
	AuthRecorder AuthRecorder
	AuthConfig   AuthHandlerConfig

	// 画面とAPI
	Renderer     PageRenderer
	TodoService  TodoServiceInterface
	TimerService TimerServiceInterface
	UserService  UserServiceInterface
}

// NewRouter はページ、JSON API、運用エンドポイントのルーティングを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → CORS
//	  ページ:   CSRF → (POSTのみ)RateLimit(Auth) → Guard
//	  JSON API: Session → RateLimit(General) → CSRF
//
// /health、/metrics、/static/* はCSRFの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPObserver))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthRecorder, deps.AuthConfig)
	pageHandler := NewPageHandler(deps.Renderer, deps.AuthService, deps.TodoService, deps.TimerService)
	todoHandler := NewTodoHandler(deps.TodoService)
	timerHandler := NewTimerHandler(deps.TimerService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)
	guestOnly := middleware.NewGuardMiddleware(auth.RequireUnauthenticated("/dashboard"), deps.AuthService)
	membersOnly := middleware.NewGuardMiddleware(auth.RequireAuthenticated("/login"), deps.AuthService)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/static/*", view.StaticHandler())

	// --- ページ ---
	r.Group(func(r chi.Router) {
		r.Use(csrf)

		r.With(guestOnly).Get("/", pageHandler.Home)
		r.With(membersOnly).Get("/dashboard", pageHandler.Dashboard)

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())

			r.With(guestOnly).Get("/login", pageHandler.Login)
			r.Post("/login", authHandler.SignIn)
			r.With(guestOnly).Get("/signup", pageHandler.Signup)
			r.Post("/signup", authHandler.SignUp)
		})
		r.Post("/logout", authHandler.SignOut)
	})

	// --- 認証 ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/me", authHandler.Me)
		r.Get("/google/login", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)
	})

	r.With(csrf).Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// --- JSON API ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(csrf)

		r.Route("/api/todos", func(r chi.Router) {
			r.Get("/", todoHandler.ListTasks)
			r.Post("/", todoHandler.AddTask)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", todoHandler.UpdateTask)
				r.Delete("/", todoHandler.DeleteTask)
				r.Post("/toggle", todoHandler.ToggleTask)
			})
		})

		r.Route("/api/timers", func(r chi.Router) {
			r.Post("/", timerHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", timerHandler.Get)
				r.Delete("/", timerHandler.Delete)
				r.Post("/mode", timerHandler.SwitchMode)
				r.Post("/toggle", timerHandler.ToggleRun)
				r.Post("/reset", timerHandler.Reset)
				r.Post("/fast-forward", timerHandler.FastForward)
				r.Post("/edit", timerHandler.BeginEdit)
				r.Post("/edit/commit", timerHandler.CommitEdit)
				r.Post("/edit/cancel", timerHandler.CancelEdit)
				r.Post("/sessions/reset", timerHandler.ResetSessions)
			})
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}

// healthHandler はデータベースに疎通できれば200を返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
