package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/todoman/internal/model"
)

// SessionConfig はセッションリポジトリの設定。
type SessionConfig struct {
	// Lifetime はセッションの有効期間。
	Lifetime time.Duration
}

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db       *sql.DB
	lifetime time.Duration
	now      func() time.Time
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB, cfg SessionConfig) *PostgresSessionRepo {
	return &PostgresSessionRepo{
		db:       db,
		lifetime: cfg.Lifetime,
		now:      time.Now,
	}
}

// SetClock はテスト用に現在時刻の取得関数を差し替える。
func (r *PostgresSessionRepo) SetClock(now func() time.Time) {
	r.now = now
}

// Create はセッションを作成する。有効期限は現在時刻 + 有効期間。
func (r *PostgresSessionRepo) Create(ctx context.Context, userID int64, token string) (*model.Session, error) {
	now := r.now()
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(r.lifetime),
		IsActive:  true,
		CreatedAt: now,
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token, expires_at, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UserID, session.Token, session.ExpiresAt, session.IsActive, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// FindByToken はトークンに一致するアクティブなセッションを取得する。
// 期限切れかどうかは判定しない。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, expires_at, is_active, created_at
		 FROM sessions
		 WHERE token = $1 AND is_active = TRUE`,
		token,
	).Scan(&session.ID, &session.UserID, &session.Token, &session.ExpiresAt, &session.IsActive, &session.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// Deactivate はトークンに一致するアクティブなセッションを無効化する。
// 既に無効化済みの場合はfalseを返す。
func (r *PostgresSessionRepo) Deactivate(ctx context.Context, token string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE token = $1 AND is_active = TRUE`,
		token,
	)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// IsExpired は現在時刻がセッションの有効期限を過ぎているかどうかを返す。
func (r *PostgresSessionRepo) IsExpired(session *model.Session) bool {
	return r.now().After(session.ExpiresAt)
}

// SweepExpired は期限切れのアクティブなセッションを一括で無効化する。
func (r *PostgresSessionRepo) SweepExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE is_active = TRUE AND expires_at < $1`,
		r.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
