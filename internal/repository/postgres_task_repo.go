package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/timeless/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db, now: time.Now}
}

// ListByUserID はユーザーのタスクを作成日時の降順で返す。
func (r *PostgresTaskRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, text, completed, created_at
		 FROM tasks
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task := &model.Task{}
		if err := rows.Scan(&task.ID, &task.UserID, &task.Text, &task.Completed, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// FindByID はユーザーのタスクを1件返す。存在しないか他のユーザーのタスクの場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, text, completed, created_at
		 FROM tasks
		 WHERE id = $1 AND user_id = $2`,
		taskID, userID,
	).Scan(&task.ID, &task.UserID, &task.Text, &task.Completed, &task.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// CountByUserID はユーザーの完了済みタスク数と全タスク数を返す。
func (r *PostgresTaskRepo) CountByUserID(ctx context.Context, userID string) (completed, total int, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FILTER (WHERE completed), COUNT(*)
		 FROM tasks
		 WHERE user_id = $1`,
		userID,
	).Scan(&completed, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return completed, total, nil
}

// Create はタスクを作成し、採番されたIDと作成日時をtaskに設定する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, text, completed, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		task.ID, task.UserID, task.Text, task.Completed, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Update はnilでないフィールドのみを更新し、更新後のタスクを返す。
// 対象が存在しないか他のユーザーのタスクの場合はnilを返す。
func (r *PostgresTaskRepo) Update(ctx context.Context, userID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	var text sql.NullString
	if patch.Text != nil {
		text = sql.NullString{String: *patch.Text, Valid: true}
	}
	var completed sql.NullBool
	if patch.Completed != nil {
		completed = sql.NullBool{Bool: *patch.Completed, Valid: true}
	}

	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE tasks
		 SET text = COALESCE($3, text),
		     completed = COALESCE($4, completed)
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, text, completed, created_at`,
		taskID, userID, text, completed,
	).Scan(&task.ID, &task.UserID, &task.Text, &task.Completed, &task.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// Delete はタスクを削除し、削除できたかどうかを返す。
func (r *PostgresTaskRepo) Delete(ctx context.Context, userID, taskID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteByUserID はユーザーの全タスクを削除する。
func (r *PostgresTaskRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user tasks: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
