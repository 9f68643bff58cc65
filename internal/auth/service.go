// Package auth はユーザー登録、サインイン、セッション管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/todoman/internal/metrics"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// CredentialCodec はパスワードハッシュとトークン生成のインターフェース。
type CredentialCodec interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	NeedsRehash(hash string) bool
	GenerateToken() (string, error)
}

// Service は認証に関するビジネスロジックを提供する。
// セッションのライフサイクルはこのサービスだけが扱う。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	codec       CredentialCodec
	metrics     metrics.MetricsCollector

	dummyOnce sync.Once
	dummyHash string
}

// dummyPassword は未登録メールアドレスでのサインイン時に照合するダミーのパスワード。
const dummyPassword = "todoman-dummy-password"

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	codec CredentialCodec,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		codec:       codec,
		metrics:     collector,
	}
}

// Signup はユーザーを登録する。セッションは作成しない。
// メールアドレスが登録済みの場合はIDENTITY_ALREADY_EXISTSを返す。
func (s *Service) Signup(ctx context.Context, email, name, password string) (*model.User, error) {
	exists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, model.NewIdentityAlreadyExistsError(email)
	}

	hash, err := s.codec.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// 同時登録で事前チェックをすり抜けた場合は一意制約で検出される
	user, err := s.userRepo.Create(ctx, email, name, hash)
	if errors.Is(err, model.ErrDuplicateIdentity) {
		return nil, model.NewIdentityAlreadyExistsError(email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordSignup()
	slog.Info("user signed up", slog.Int64("user_id", user.ID))
	return user, nil
}

// Signin は認証情報を検証し、新しいセッションを発行してトークンを返す。
// 未登録のメールアドレスとパスワード不一致は同一のエラーを返す。
func (s *Service) Signin(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 登録済みの場合と同じくハッシュ照合のコストを払う
		s.codec.Verify(password, s.dummyPasswordHash())
		s.metrics.RecordSignin(metrics.SigninResultInvalidCredentials)
		return nil, "", model.NewInvalidCredentialsError()
	}
	if !s.codec.Verify(password, user.PasswordHash) {
		s.metrics.RecordSignin(metrics.SigninResultInvalidCredentials)
		return nil, "", model.NewInvalidCredentialsError()
	}

	if s.codec.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	token, err := s.codec.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	if _, err := s.sessionRepo.Create(ctx, user.ID, token); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	s.metrics.RecordSignin(metrics.SigninResultSuccess)
	slog.Info("user signed in", slog.Int64("user_id", user.ID))
	return user, token, nil
}

// rehash は現在のコスト係数でパスワードを再ハッシュする。
// 失敗してもサインインは継続する。
func (s *Service) rehash(ctx context.Context, user *model.User, password string) {
	hash, err := s.codec.Hash(password)
	if err != nil {
		slog.Warn("failed to rehash password",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		slog.Warn("failed to store rehashed password",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	user.PasswordHash = hash
}

// dummyPasswordHash は現在のコスト係数で生成したダミーハッシュを返す。初回呼び出し時に生成する。
func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.codec.Hash(dummyPassword)
		if err != nil {
			slog.Error("failed to build dummy password hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Signout はトークンのセッションを無効化する。
// アクティブなセッションがない場合はSESSION_NOT_FOUNDを返す。
func (s *Service) Signout(ctx context.Context, token string) error {
	if token == "" {
		return model.NewSessionNotFoundError()
	}

	ok, err := s.sessionRepo.Deactivate(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	if !ok {
		return model.NewSessionNotFoundError()
	}

	s.metrics.RecordSignout()
	return nil
}

// Resolve はトークンから現在のユーザーを取得する。
// 期限切れのセッションは無効化してからSESSION_EXPIREDを返すため、
// 同じトークンでの次回呼び出しはSESSION_NOT_FOUNDになる。
func (s *Service) Resolve(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, model.NewSessionNotFoundError()
	}

	session, err := s.sessionRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError()
	}

	if s.sessionRepo.IsExpired(session) {
		if _, err := s.sessionRepo.Deactivate(ctx, token); err != nil {
			return nil, fmt.Errorf("failed to deactivate expired session: %w", err)
		}
		s.metrics.RecordSessionExpired()
		return nil, model.NewSessionExpiredError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Warn("session references missing user",
			slog.String("session_id", session.ID),
			slog.Int64("user_id", session.UserID),
		)
		return nil, model.NewSessionNotFoundError()
	}

	return user, nil
}

// SweepExpiredSessions は期限切れのアクティブなセッションを一括で無効化する。
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessionRepo.SweepExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	s.metrics.RecordSessionsSwept(n)
	return n, nil
}
