// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeIdentityAlreadyExists = "IDENTITY_ALREADY_EXISTS"
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeSessionNotFound       = "SESSION_NOT_FOUND"
	ErrCodeSessionExpired        = "SESSION_EXPIRED"
	ErrCodeInvalidFilter         = "INVALID_FILTER"
	ErrCodeTaskNotFound          = "TASK_NOT_FOUND"
	ErrCodeUnauthorizedAccess    = "UNAUTHORIZED_ACCESS"
	ErrCodeInvalidTask           = "INVALID_TASK"
	ErrCodeInvalidTag            = "INVALID_TAG"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
)

// ErrDuplicateIdentity は永続化層でメールアドレスの一意制約違反を検出した場合に返される。
// 認証サービスはこれをIdentityAlreadyExistsに変換する。
var ErrDuplicateIdentity = errors.New("duplicate identity")

// ErrorCode はerrがAPIErrorであればそのコードを返す。それ以外は空文字を返す。
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// NewIdentityAlreadyExistsError はメールアドレス重複エラーを生成する。
func NewIdentityAlreadyExistsError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeIdentityAlreadyExists,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、サインインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレスの未登録とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  "セッションが無効です。",
		Category: "auth",
		Action:   "サインインしてください。",
	}
}

// NewSessionExpiredError はセッション期限切れエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れました。",
		Category: "auth",
		Action:   "再度サインインしてください。",
	}
}

// NewInvalidFilterError は無効な一覧取得条件のエラーを生成する。
func NewInvalidFilterError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタです: %s", reason),
		Category: "validation",
		Action:   "statusには pending、in_progress、completed のいずれかを指定してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(taskID int64) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %d", taskID),
		Category: "task",
		Action:   "タスクIDを確認してください。",
	}
}

// NewUnauthorizedAccessError は他ユーザーのタスクへのアクセスエラーを生成する。
func NewUnauthorizedAccessError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorizedAccess,
		Message:  "このタスクへのアクセス権限がありません。",
		Category: "task",
		Action:   "自分が作成したタスクのみ操作できます。",
	}
}

// NewInvalidTaskError はタスク入力値のバリデーションエラーを生成する。
func NewInvalidTaskError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTask,
		Message:  fmt.Sprintf("タスクの入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidTagError はタグ入力値のバリデーションエラーを生成する。
func NewInvalidTagError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTag,
		Message:  fmt.Sprintf("タグの入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "タグ名は1〜50文字、カラーは #RRGGBB 形式で指定してください。",
	}
}

// NewInvalidRequestError はリクエスト形式のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "正しい形式でリクエストしてください。",
	}
}
