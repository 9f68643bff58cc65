// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはレスポンスに含めてはならない。
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// IsActive が true かつ現在時刻が ExpiresAt 以前の場合のみ有効。
type Session struct {
	ID        string
	UserID    int64
	Token     string
	ExpiresAt time.Time
	IsActive  bool
	CreatedAt time.Time
}

// IsLive はセッションが指定時刻において有効かどうかを返す。
func (s *Session) IsLive(now time.Time) bool {
	return s.IsActive && !now.After(s.ExpiresAt)
}
