// Package credential はパスワードのハッシュ化・検証とセッショントークンの生成を提供する。
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// tokenBytes はセッショントークンの乱数バイト数（256ビット）。
const tokenBytes = 32

// Config はCodecの設定。
type Config struct {
	Cost int // bcryptのコスト係数
}

// Codec はbcryptによるパスワードハッシュと、URLセーフなトークン生成を行う。
type Codec struct {
	cost int
}

// NewCodec はCodecを生成する。
// コスト係数がbcryptの許容範囲外の場合はエラーを返す。
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d: %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.Cost)
	}
	return &Codec{cost: cfg.Cost}, nil
}

// Hash はパスワードをソルト付きでハッシュ化する。
// 同じパスワードでも呼び出しごとに異なる値を返す。
func (c *Codec) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ErrPasswordTooLong はbcryptが扱えない長さ（72バイト超）のパスワードを表す。
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// Verify はパスワードがハッシュに一致するかを返す。
// コスト係数はハッシュ自体に埋め込まれているため、過去の設定で生成したハッシュも検証できる。
func (c *Codec) Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// NeedsRehash はハッシュが現在のコスト係数と異なる設定で生成されたかを返す。
func (c *Codec) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != c.cost
}

// GenerateToken は暗号的に安全なURLセーフのセッショントークンを生成する。
func (c *Codec) GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
