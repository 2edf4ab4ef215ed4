// Package auth はユーザー名・パスワード認証、Googleサインイン、セッション管理、
// ページガードを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/timeless/internal/model"
	"github.com/hitoshi/timeless/internal/repository"
)

// googleUsernameAttempts はGoogleサインインで自動作成するユーザー名の衝突時の再試行回数。
const googleUsernameAttempts = 5

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ErrOAuthDisabled はGoogleサインインが設定されていない場合に返される。
var ErrOAuthDisabled = errors.New("auth: oauth provider is not configured")

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	hasher      PasswordHasher
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。oauthがnilの場合Googleサインインは無効になる。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	hasher PasswordHasher,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		config:      config,
		now:         time.Now,
	}
}

// SignUp はユーザーを登録し、ログイン済みのセッションを発行する。
// 入力が不正な場合とユーザー名が使用済みの場合は*model.APIErrorを返す。
func (s *Service) SignUp(ctx context.Context, username, email, password string) (*model.Session, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if !ValidUsername(username) {
		return nil, model.NewInvalidUsernameError()
	}
	if !ValidEmail(email) {
		return nil, model.NewInvalidEmailError()
	}
	if !ValidPassword(password) {
		return nil, model.NewInvalidPasswordError(MinPasswordLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, model.NewUsernameTakenError(username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("username", username),
	)

	return s.createSession(ctx, user.ID)
}

// SignIn はユーザー名とパスワードを照合し、セッションを発行する。
// ユーザーが存在しない場合とパスワードが一致しない場合は同じエラーを返す。
func (s *Service) SignIn(ctx context.Context, username, password string) (*model.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.HasPassword() {
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Info("sign in rejected", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	return s.createSession(ctx, user.ID)
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("session_id", maskSessionID(sessionID)))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// セッションが空・期限切れ・ユーザー削除済みの場合はnilとnilを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// LinkedProviders はユーザーに紐付く外部プロバイダー名を返す。
func (s *Service) LinkedProviders(ctx context.Context, userID string) ([]string, error) {
	identities, err := s.identRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	providers := make([]string, 0, len(identities))
	for _, identity := range identities {
		providers = append(providers, identity.Provider)
	}
	return providers, nil
}

// OAuthEnabled はGoogleサインインが利用可能かどうかを返す。
func (s *Service) OAuthEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrOAuthDisabled
	}
	return s.oauth.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に自動作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if s.oauth == nil {
		return nil, ErrOAuthDisabled
	}

	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string
	if identity != nil {
		userID = identity.UserID
		slog.Info("existing user logged in",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		userID, err = s.createOAuthUser(ctx, userInfo)
		if err != nil {
			return nil, err
		}
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// createOAuthUser はOAuthユーザーを作成する。
// ユーザー名が衝突した場合はランダムな接尾辞を付けて再試行する。
func (s *Service) createOAuthUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	base := usernameFromEmail(info.Email)
	username := base
	now := s.now()

	for attempt := 0; attempt < googleUsernameAttempts; attempt++ {
		if attempt > 0 {
			var err error
			if username, err = withRandomSuffix(base); err != nil {
				return "", fmt.Errorf("failed to generate username: %w", err)
			}
		}

		user := &model.User{
			ID:        uuid.New().String(),
			Username:  username,
			Email:     info.Email,
			CreatedAt: now,
			UpdatedAt: now,
		}
		identity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         user.ID,
			Provider:       info.Provider,
			ProviderUserID: info.ProviderUserID,
			CreatedAt:      now,
		}

		err := s.userRepo.CreateWithIdentity(ctx, user, identity)
		if errors.Is(err, repository.ErrDuplicateUsername) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create user and identity: %w", err)
		}

		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("username", username),
			slog.String("provider", info.Provider),
		)
		return user.ID, nil
	}

	return "", fmt.Errorf("failed to allocate username for %q", base)
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// maskSessionID はログ出力用にセッションIDの先頭のみを残す。
func maskSessionID(id string) string {
	if len(id) <= 8 {
		return "****"
	}
	return id[:8] + "..."
}
