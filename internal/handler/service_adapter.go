package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/timeless/internal/model"
	"github.com/hitoshi/timeless/internal/todo"
	"github.com/hitoshi/timeless/internal/user"
)

// TodoServiceAdapter は todo.Service を TodoServiceInterface に適合させるアダプタ。
// 既存タスクの変更では対象の1件だけを読み込み、件数は変更後にストアから集計する。
type TodoServiceAdapter struct {
	svc    *todo.Service
	logger *slog.Logger
}

// NewTodoServiceAdapter はTodoServiceAdapterを生成する。
func NewTodoServiceAdapter(svc *todo.Service, logger *slog.Logger) *TodoServiceAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TodoServiceAdapter{svc: svc, logger: logger}
}

// ListTasks はユーザーのタスク一覧を返す。
func (a *TodoServiceAdapter) ListTasks(ctx context.Context, userID string) (*taskList, error) {
	list := a.svc.ForUser(userID)
	if res := list.Load(ctx); !res.IsOk() {
		return nil, res.Err()
	}
	completed, total := list.Counts()
	return &taskList{Tasks: list.Tasks(), Completed: completed, Total: total}, nil
}

// AddTask はタスクを追加する。
func (a *TodoServiceAdapter) AddTask(ctx context.Context, userID, text string) (*taskMutation, error) {
	list := a.svc.ForUser(userID)
	return a.toTaskMutation(ctx, userID, "", list.Add(ctx, text))
}

// ToggleTask は完了状態を反転する。
func (a *TodoServiceAdapter) ToggleTask(ctx context.Context, userID, taskID string) (*taskMutation, error) {
	return a.mutate(ctx, userID, taskID, func(list *todo.List) todo.Result[todo.Mutation] {
		return list.ToggleComplete(ctx, taskID)
	})
}

// UpdateTask は本文と完了状態を1回のストア呼び出しでまとめて更新する。
// 本文が空白のみの場合は更新の代わりにタスクを削除する。
func (a *TodoServiceAdapter) UpdateTask(ctx context.Context, userID, taskID string, text *string, completed *bool) (*taskMutation, error) {
	return a.mutate(ctx, userID, taskID, func(list *todo.List) todo.Result[todo.Mutation] {
		return list.Update(ctx, taskID, model.TaskPatch{Text: text, Completed: completed})
	})
}

// DeleteTask はタスクを削除する。
func (a *TodoServiceAdapter) DeleteTask(ctx context.Context, userID, taskID string) (*taskMutation, error) {
	return a.mutate(ctx, userID, taskID, func(list *todo.List) todo.Result[todo.Mutation] {
		return list.Delete(ctx, taskID)
	})
}

// mutate は対象タスク1件だけを読み込んだListに対してfnを実行する。
func (a *TodoServiceAdapter) mutate(ctx context.Context, userID, taskID string, fn func(*todo.List) todo.Result[todo.Mutation]) (*taskMutation, error) {
	list := a.svc.ForUser(userID)
	if res := list.LoadTask(ctx, taskID); !res.IsOk() {
		return nil, toAPIError(res.Err(), taskID)
	}
	return a.toTaskMutation(ctx, userID, taskID, fn(list))
}

// toTaskMutation は変更結果をhandlerの型に変換する。
// 変更はすでに確定しているため、件数の集計に失敗してもエラーにはせずCountsUnavailableを立てる。
func (a *TodoServiceAdapter) toTaskMutation(ctx context.Context, userID, taskID string, res todo.Result[todo.Mutation]) (*taskMutation, error) {
	if !res.IsOk() {
		return nil, toAPIError(res.Err(), taskID)
	}

	m := &taskMutation{Op: string(res.Value().Op), Task: res.Value().Task}
	completed, total, err := a.svc.Summary(ctx, userID)
	if err != nil {
		a.logger.Warn("failed to count tasks after mutation",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		m.CountsUnavailable = true
		return m, nil
	}
	m.Completed, m.Total = completed, total
	return m, nil
}

// toAPIError は一覧のドメインエラーをAPIErrorに置き換える。
func toAPIError(err error, taskID string) error {
	switch {
	case errors.Is(err, todo.ErrBlankText):
		return model.NewInvalidTaskTextError()
	case errors.Is(err, todo.ErrTaskNotFound):
		return model.NewTaskNotFoundError(taskID)
	case errors.Is(err, todo.ErrEmptyPatch):
		return model.NewInvalidRequestError("text or completed is required")
	default:
		return err
	}
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}

// --- compile-time interface checks ---

var _ TodoServiceInterface = (*TodoServiceAdapter)(nil)
var _ UserServiceInterface = (*UserServiceAdapter)(nil)
