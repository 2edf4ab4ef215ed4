// Package todo はユーザーごとのTo-Doリストを提供する。
//
// Listはストアに対するビューを保持し、ストアが成功を返した場合にのみビューを更新する。
// すべての変更操作はResultを返し、失敗時もビューは変更されない。
package todo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/timeless/internal/model"
)

var (
	// ErrBlankText は空白のみのタスク本文が渡された場合に返される。
	ErrBlankText = errors.New("todo: task text is blank")
	// ErrTaskNotFound は対象タスクがビューまたはストアに存在しない場合に返される。
	ErrTaskNotFound = errors.New("todo: task not found")
	// ErrEmptyPatch は更新項目が1つも指定されていない場合に返される。
	ErrEmptyPatch = errors.New("todo: nothing to update")
)

// Store はタスクの永続化先。repository.TaskRepositoryが実装する。
type Store interface {
	ListByUserID(ctx context.Context, userID string) ([]*model.Task, error)
	// FindByID はユーザーのタスクを1件返す。存在しない場合はnilを返す。
	FindByID(ctx context.Context, userID, taskID string) (*model.Task, error)
	// CountByUserID は完了済みの件数と全件数を返す。
	CountByUserID(ctx context.Context, userID string) (completed, total int, err error)
	Create(ctx context.Context, task *model.Task) error
	// Update は部分更新を行う。対象が存在しない場合はnilを返す。
	Update(ctx context.Context, userID, taskID string, patch model.TaskPatch) (*model.Task, error)
	// Delete は削除を行い、削除できたかどうかを返す。
	Delete(ctx context.Context, userID, taskID string) (bool, error)
}

// Sanitizer は保存前のタスク本文を無害化する。
type Sanitizer interface {
	SanitizeText(text string) string
}

// Observer は変更操作の結果の通知先。
type Observer interface {
	TaskMutated(op Op, ok bool)
}

// Op は変更操作の種類。
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Mutation は成功した変更操作の内容。
// OpDeletedの場合Taskは削除前の内容を保持する。
type Mutation struct {
	Op   Op
	Task model.Task
}

// Service はユーザーごとのListを生成する。
type Service struct {
	store     Store
	sanitizer Sanitizer
	observer  Observer
	logger    *slog.Logger
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithSanitizer は本文の無害化処理を設定する。
func WithSanitizer(s Sanitizer) Option {
	return func(svc *Service) {
		svc.sanitizer = s
	}
}

// WithObserver は変更操作の通知先を設定する。
func WithObserver(o Observer) Option {
	return func(svc *Service) {
		svc.observer = o
	}
}

// NewService はServiceを生成する。
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForUser はユーザーの空のListを返す。ビューはLoadで読み込む。
func (s *Service) ForUser(userID string) *List {
	return &List{svc: s, userID: userID}
}

// Summary はユーザーの完了済み件数と全件数をストアから取得する。
func (s *Service) Summary(ctx context.Context, userID string) (completed, total int, err error) {
	completed, total, err = s.store.CountByUserID(ctx, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("タスク件数の取得に失敗しました: %w", err)
	}
	return completed, total, nil
}

// List は1人のユーザーのタスク一覧のビュー。新しいタスクが先頭に並ぶ。
// 1つのListを複数のgoroutineから同時に使用してはならない。
type List struct {
	svc    *Service
	userID string
	tasks  []model.Task
	loaded bool
}

// Load はストアからタスク一覧を読み込み、ビューを置き換える。
func (l *List) Load(ctx context.Context) Result[[]model.Task] {
	rows, err := l.svc.store.ListByUserID(ctx, l.userID)
	if err != nil {
		l.svc.logger.Warn("failed to load tasks",
			slog.String("user_id", l.userID),
			slog.String("error", err.Error()),
		)
		return Fail[[]model.Task](fmt.Errorf("タスク一覧の取得に失敗しました: %w", err))
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, *row)
	}
	l.tasks = tasks
	l.loaded = true
	return Ok(l.Tasks())
}

// LoadTask はビューを指定したタスク1件だけに置き換える。
// 一覧全体を読まずに1件を変更する場合に使う。存在しない場合はErrTaskNotFoundを返す。
func (l *List) LoadTask(ctx context.Context, taskID string) Result[model.Task] {
	task, err := l.svc.store.FindByID(ctx, l.userID, taskID)
	if err != nil {
		l.svc.logger.Warn("failed to load task",
			slog.String("user_id", l.userID),
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		return Fail[model.Task](fmt.Errorf("タスクの取得に失敗しました: %w", err))
	}
	if task == nil {
		return Fail[model.Task](ErrTaskNotFound)
	}

	l.tasks = []model.Task{*task}
	l.loaded = false
	return Ok(*task)
}

// Loaded はLoadが一度でも成功したかどうかを返す。
func (l *List) Loaded() bool {
	return l.loaded
}

// Tasks はビューのコピーを返す。
func (l *List) Tasks() []model.Task {
	out := make([]model.Task, len(l.tasks))
	copy(out, l.tasks)
	return out
}

// Counts は完了済みタスク数と総数を返す。
func (l *List) Counts() (completed, total int) {
	for _, t := range l.tasks {
		if t.Completed {
			completed++
		}
	}
	return completed, len(l.tasks)
}

// Find はビューからタスクを探す。
func (l *List) Find(taskID string) (model.Task, bool) {
	i := l.indexOf(taskID)
	if i < 0 {
		return model.Task{}, false
	}
	return l.tasks[i], true
}

// Add は本文を整えてタスクを作成し、成功した場合はビューの先頭に追加する。
// 整えた結果が空の場合はストアを呼ばずにErrBlankTextを返す。
func (l *List) Add(ctx context.Context, text string) Result[Mutation] {
	text = l.normalize(text)
	if text == "" {
		return l.fail(OpCreated, ErrBlankText)
	}

	task := &model.Task{UserID: l.userID, Text: text}
	if err := l.svc.store.Create(ctx, task); err != nil {
		return l.storeFailed(OpCreated, "", fmt.Errorf("タスクの作成に失敗しました: %w", err))
	}

	l.tasks = append([]model.Task{*task}, l.tasks...)
	return l.ok(OpCreated, *task)
}

// ToggleComplete は完了状態を反転する。
func (l *List) ToggleComplete(ctx context.Context, taskID string) Result[Mutation] {
	current, ok := l.Find(taskID)
	if !ok {
		return l.fail(OpUpdated, ErrTaskNotFound)
	}
	return l.SetCompleted(ctx, taskID, !current.Completed)
}

// SetCompleted は完了状態を指定値にする。
func (l *List) SetCompleted(ctx context.Context, taskID string, completed bool) Result[Mutation] {
	return l.Update(ctx, taskID, model.TaskPatch{Completed: &completed})
}

// EditText は本文を更新する。整えた結果が空の場合は更新の代わりに削除する。
func (l *List) EditText(ctx context.Context, taskID, text string) Result[Mutation] {
	return l.Update(ctx, taskID, model.TaskPatch{Text: &text})
}

// Update はパッチをまとめて1回のストア呼び出しで適用する。
// 本文を整えた結果が空の場合は更新の代わりに削除し、完了状態は適用しない。
func (l *List) Update(ctx context.Context, taskID string, patch model.TaskPatch) Result[Mutation] {
	if patch.Text == nil && patch.Completed == nil {
		return l.fail(OpUpdated, ErrEmptyPatch)
	}
	if patch.Text != nil {
		text := l.normalize(*patch.Text)
		if text == "" {
			return l.Delete(ctx, taskID)
		}
		patch.Text = &text
	}
	return l.update(ctx, taskID, patch)
}

// Delete はタスクを削除し、成功した場合はビューから取り除く。
func (l *List) Delete(ctx context.Context, taskID string) Result[Mutation] {
	i := l.indexOf(taskID)
	if i < 0 {
		return l.fail(OpDeleted, ErrTaskNotFound)
	}

	deleted, err := l.svc.store.Delete(ctx, l.userID, taskID)
	if err != nil {
		return l.storeFailed(OpDeleted, taskID, fmt.Errorf("タスクの削除に失敗しました: %w", err))
	}
	if !deleted {
		return l.fail(OpDeleted, ErrTaskNotFound)
	}

	removed := l.tasks[i]
	l.tasks = append(l.tasks[:i:i], l.tasks[i+1:]...)
	return l.ok(OpDeleted, removed)
}

func (l *List) update(ctx context.Context, taskID string, patch model.TaskPatch) Result[Mutation] {
	i := l.indexOf(taskID)
	if i < 0 {
		return l.fail(OpUpdated, ErrTaskNotFound)
	}

	updated, err := l.svc.store.Update(ctx, l.userID, taskID, patch)
	if err != nil {
		return l.storeFailed(OpUpdated, taskID, fmt.Errorf("タスクの更新に失敗しました: %w", err))
	}
	if updated == nil {
		return l.fail(OpUpdated, ErrTaskNotFound)
	}

	l.tasks[i] = *updated
	return l.ok(OpUpdated, *updated)
}

func (l *List) normalize(text string) string {
	if l.svc.sanitizer != nil {
		text = l.svc.sanitizer.SanitizeText(text)
	}
	return strings.TrimSpace(text)
}

func (l *List) indexOf(taskID string) int {
	for i, t := range l.tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

func (l *List) ok(op Op, task model.Task) Result[Mutation] {
	l.notify(op, true)
	l.svc.logger.Debug("task mutated",
		slog.String("user_id", l.userID),
		slog.String("task_id", task.ID),
		slog.String("op", string(op)),
	)
	return Ok(Mutation{Op: op, Task: task})
}

func (l *List) fail(op Op, err error) Result[Mutation] {
	l.notify(op, false)
	return Fail[Mutation](err)
}

// storeFailed はストアのエラーをログに残して失敗結果を返す。ビューは変更しない。
func (l *List) storeFailed(op Op, taskID string, err error) Result[Mutation] {
	l.svc.logger.Warn("task store operation failed",
		slog.String("user_id", l.userID),
		slog.String("task_id", taskID),
		slog.String("op", string(op)),
		slog.String("error", err.Error()),
	)
	return l.fail(op, err)
}

func (l *List) notify(op Op, ok bool) {
	if l.svc.observer != nil {
		l.svc.observer.TaskMutated(op, ok)
	}
}
