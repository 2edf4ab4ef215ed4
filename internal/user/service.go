// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/timeless/internal/model"
	"github.com/hitoshi/timeless/internal/repository"
)

// TaskDeleter はタスクの一括削除インターフェース。
type TaskDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// TimerReleaser はユーザーが保持するタイマーインスタンスを破棄する。
type TimerReleaser interface {
	RemoveUser(userID string) int
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tasks       TaskDeleter
	timers      TimerReleaser
}

// NewService はServiceの新しいインスタンスを生成する。timersはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tasks TaskDeleter,
	timers TimerReleaser,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tasks:       tasks,
		timers:      timers,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: tasks → sessions → user（identitiesはCASCADE削除）
// DBの削除が完了した後、稼働中のタイマーインスタンスも破棄する。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します", slog.String("user_id", userID))

	if err := s.tasks.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	released := 0
	if s.timers != nil {
		released = s.timers.RemoveUser(userID)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
		slog.Int("released_timers", released),
	)

	return nil
}
