// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/timeless/internal/metrics"
	"github.com/hitoshi/timeless/internal/middleware"
	"github.com/hitoshi/timeless/internal/model"
)

const (
	oauthStateCookie = "oauth_state"

	// genericAuthError は内部エラー時にフォームへ表示するメッセージ。
	genericAuthError = "Something went wrong. Please try again."
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, username, email, password string) (*model.Session, error)
	SignIn(ctx context.Context, username, password string) (*model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
	LinkedProviders(ctx context.Context, userID string) ([]string, error)
	OAuthEnabled() bool
	GetLoginURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
}

// AuthRecorder は認証試行の結果を記録する。
type AuthRecorder interface {
	RecordAuthAttempt(method string, ok bool)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインイン・サインアップ・サインアウトとGoogleサインインのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	recorder AuthRecorder
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。recorderがnilの場合は記録しない。
func NewAuthHandler(service AuthServiceInterface, recorder AuthRecorder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		recorder: recorder,
		config:   config,
	}
}

// SignIn はログインフォームを処理する。
// POST /login
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.SignIn(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	h.record(metrics.AuthMethodPassword, err == nil)
	if err != nil {
		h.redirectWithError(w, r, "/login", err)
		return
	}

	h.setSessionCookie(w, session)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// SignUp はサインアップフォームを処理する。成功時はログイン済みになる。
// POST /signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.SignUp(r.Context(),
		r.PostFormValue("username"),
		r.PostFormValue("email"),
		r.PostFormValue("password"),
	)
	h.record(metrics.AuthMethodSignup, err == nil)
	if err != nil {
		h.redirectWithError(w, r, "/signup", err)
		return
	}

	h.setSessionCookie(w, session)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// SignOut はセッションを破棄してランディングページへ戻す。
// POST /logout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.SessionIDFromRequest(r); sessionID != "" {
		if err := h.service.SignOut(r.Context(), sessionID); err != nil {
			// 失敗してもCookieはクリアする
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		}
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetCurrentUser(r.Context(), middleware.SessionIDFromRequest(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	providers, err := h.service.LinkedProviders(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		HasPassword: user.HasPassword(),
		Providers:   providers,
	})
}

// GoogleLogin はGoogleサインインを開始する。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		http.NotFound(w, r)
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	loginURL, err := h.service.GetLoginURL(state)
	if err != nil {
		slog.Error("failed to build oauth login url", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存し、コールバックで照合する
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, loginURL, http.StatusFound)
}

// GoogleCallback はGoogleサインインのコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		h.record(metrics.AuthMethodGoogle, false)
		redirectToForm(w, r, "/login", "Google sign-in could not be verified. Please try again.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if query.Get("error") != "" || query.Get("code") == "" {
		h.record(metrics.AuthMethodGoogle, false)
		redirectToForm(w, r, "/login", "Google sign-in was cancelled.")
		return
	}

	session, err := h.service.HandleCallback(r.Context(), query.Get("code"))
	h.record(metrics.AuthMethodGoogle, err == nil)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		redirectToForm(w, r, "/login", "Google sign-in failed. Please try again.")
		return
	}

	h.setSessionCookie(w, session)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

type meResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	HasPassword bool     `json:"has_password"`
	Providers   []string `json:"providers"`
}

func (h *AuthHandler) record(method string, ok bool) {
	if h.recorder != nil {
		h.recorder.RecordAuthAttempt(method, ok)
	}
}

// redirectWithError はフォームのエラーをクエリ文字列に載せて元のページへ戻す。
// APIError以外の詳細は利用者に見せない。
func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, path string, err error) {
	message := genericAuthError
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		message = apiErr.Message
	} else {
		slog.Error("auth form failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	redirectToForm(w, r, path, message)
}

func redirectToForm(w http.ResponseWriter, r *http.Request, path, message string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(message), http.StatusSeeOther)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はOAuthのstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
