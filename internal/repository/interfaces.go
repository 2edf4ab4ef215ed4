// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/timeless/internal/model"
)

// ErrDuplicateUsername はユーザー名が既に使われている場合に返される。
var ErrDuplicateUsername = errors.New("repository: username already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// ユーザー名が重複する場合はErrDuplicateUsernameを返す。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、tasksはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// ListByUserID はユーザーに紐付くidentityを返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// TaskRepository はタスクの永続化インターフェース。
// すべての操作は所有ユーザーで絞り込まれる。
type TaskRepository interface {
	// ListByUserID はユーザーのタスクを作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Task, error)

	// FindByID はユーザーのタスクを1件返す。存在しない場合はnilを返す。
	FindByID(ctx context.Context, userID, taskID string) (*model.Task, error)

	// CountByUserID は完了済みタスク数と全タスク数を返す。
	CountByUserID(ctx context.Context, userID string) (completed, total int, err error)

	// Create はタスクを作成し、採番されたIDと作成日時をtaskに設定する。
	Create(ctx context.Context, task *model.Task) error

	// Update はnilでないフィールドのみを更新し、更新後のタスクを返す。
	// 対象が存在しない場合はnilを返す。
	Update(ctx context.Context, userID, taskID string, patch model.TaskPatch) (*model.Task, error)

	// Delete はタスクを削除し、削除できたかどうかを返す。
	Delete(ctx context.Context, userID, taskID string) (bool, error)

	// DeleteByUserID はユーザーの全タスクを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
