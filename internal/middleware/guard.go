package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/timeless/internal/auth"
)

// NewGuardMiddleware はページを描画する前にガードを評価するミドルウェアを返す。
// 許可されない場合はガードが示すパスへ302でリダイレクトし、ページハンドラーは呼ばない。
// 許可された場合、ログイン済みであればユーザーをコンテキストに注入する。
func NewGuardMiddleware(guard auth.Guard, users auth.CurrentUserGetter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := guard(r.Context(), users, SessionIDFromRequest(r))
			if err != nil {
				slog.Error("page guard failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if !decision.Allowed() {
				http.Redirect(w, r, decision.Redirect, http.StatusFound)
				return
			}

			ctx := r.Context()
			if decision.User != nil {
				ctx = ContextWithUser(ctx, decision.User)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
