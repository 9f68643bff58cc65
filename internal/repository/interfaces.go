// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/todoman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが既に登録済みの場合は model.ErrDuplicateIdentity を返す。
	Create(ctx context.Context, email, name, passwordHash string) (*model.User, error)

	// EmailExists はメールアドレスが登録済みかどうかを返す。
	EmailExists(ctx context.Context, email string) (bool, error)

	// UpdatePasswordHash はパスワードハッシュを置き換える。
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。有効期限は現在時刻 + セッション有効期間。
	Create(ctx context.Context, userID int64, token string) (*model.Session, error)

	// FindByToken はトークンに一致するアクティブなセッションを取得する。
	// 非アクティブなセッションは存在しないものとして扱い、nilを返す。
	FindByToken(ctx context.Context, token string) (*model.Session, error)

	// Deactivate はトークンに一致するアクティブなセッションを無効化する。
	// 無効化したセッションがあった場合にtrueを返す。
	Deactivate(ctx context.Context, token string) (bool, error)

	// IsExpired はセッションが期限切れかどうかを返す。is_activeは見ない。
	IsExpired(session *model.Session) bool

	// SweepExpired は期限切れのアクティブなセッションを一括で無効化し、件数を返す。
	SweepExpired(ctx context.Context) (int64, error)
}

// TaskRepository はタスクとタグ紐付けの永続化インターフェース。
// 返却するタスクにはタグが読み込まれている。
type TaskRepository interface {
	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Task, error)

	// List はフィルタ条件に一致するユーザーのタスクを作成日時の降順で返す。
	// 作成日時が同じ場合はIDの降順。
	List(ctx context.Context, filter model.TaskFilter) ([]*model.Task, error)

	// Create はタスクを作成する。存在しないタグIDは無視する。
	Create(ctx context.Context, userID int64, in model.NewTask) (*model.Task, error)

	// Update はタスクを部分更新する。タスクが存在しない場合はnilを返す。
	// patch.ReplaceTags がtrueの場合、タグの紐付けを同一トランザクションで全置換する。
	Update(ctx context.Context, id int64, patch model.TaskPatch) (*model.Task, error)

	// Delete はタスクを削除する。タグの紐付けはCASCADE削除される。
	// 削除対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id int64) (bool, error)
}

// TagRepository はタグの永続化インターフェース。
type TagRepository interface {
	// List は全タグをID昇順で返す。
	List(ctx context.Context) ([]model.Tag, error)

	// Create はタグを作成する。
	Create(ctx context.Context, name, color string) (*model.Tag, error)
}
