package model

import "time"

// TaskStatus はタスクの進捗状態を表す。
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid は定義済みのステータス値かどうかを返す。
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Task はユーザーが所有するタスクを表す。
// UserIDは作成時に一度だけ設定され、以後変更されない。
type Task struct {
	ID          int64
	UserID      int64
	Title       string
	Description *string
	Status      TaskStatus
	StartsAt    *time.Time
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Tags        []Tag
}

// Tag はタスクの分類に使うタグを表す。ユーザーに依存しないグローバルな存在。
type Tag struct {
	ID        int64
	Name      string
	Color     string // #RRGGBB
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskFilter はタスク一覧取得の絞り込み条件。
// TagIDsは指定タグのいずれかを持つタスクに一致する（OR条件）。
type TaskFilter struct {
	UserID int64
	Status *TaskStatus
	TagIDs []int64
	Limit  int
	Offset int
}

// NewTask はタスク作成時の入力値。
type NewTask struct {
	Title       string
	Description *string
	Status      TaskStatus
	StartsAt    *time.Time
	ExpiresAt   *time.Time
	TagIDs      []int64
}

// TaskPatch はタスクの部分更新内容。
// nilのフィールドは変更しない。ReplaceTagsがtrueの場合のみTagIDsでタグを全置換する
// （空のTagIDsは全タグの解除を意味する）。
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	StartsAt    *time.Time
	ExpiresAt   *time.Time
	TagIDs      []int64
	ReplaceTags bool
}

// IsEmpty は更新対象のフィールドが1つもないかどうかを返す。
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.StartsAt == nil && p.ExpiresAt == nil && !p.ReplaceTags
}
