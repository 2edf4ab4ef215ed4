package model

import "time"

// Task はユーザーが所有するTo-Doを表す。
// 保存済みのTextは空文字列にならない。
type Task struct {
	ID        string
	UserID    string
	Text      string
	Completed bool
	CreatedAt time.Time
}

// TaskPatch はタスクの部分更新内容を表す。
// nilフィールドは変更しない。
type TaskPatch struct {
	Text      *string
	Completed *bool
}

// IsEmpty は更新対象のフィールドが1つもないかどうかを返す。
func (p TaskPatch) IsEmpty() bool {
	return p.Text == nil && p.Completed == nil
}
