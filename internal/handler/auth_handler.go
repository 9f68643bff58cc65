package handler

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
)

const (
	maxNameLength     = 255
	minPasswordLength = 8
	// bcryptが扱える上限のバイト数
	maxPasswordBytes = 72
	passwordSpecials = `!@#$%^&*(),.?":{}|<>`
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, email, name, password string) (*model.User, error)
	Signin(ctx context.Context, email, password string) (*model.User, string, error)
	Signout(ctx context.Context, token string) error
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// signupRequest はユーザー登録リクエストのボディ。
type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// signinRequest はサインインリクエストのボディ。
type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signinResponse はサインイン成功時のレスポンス。
// tokenはそのままAuthorization: Bearerヘッダーに使用する。
type signinResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// Signup はユーザー登録を処理する。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := validateSignup(req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	user, err := h.service.Signup(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Signin はサインインを処理し、セッショントークンを返す。
// POST /api/auth/signin
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, model.NewInvalidRequestError("emailとpasswordは必須です。"))
		return
	}

	user, token, err := h.service.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, signinResponse{
		User:  toUserResponse(user),
		Token: token,
	})
}

// Signout はリクエストのセッションを無効化する。
// POST /api/auth/signout
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		middleware.WriteError(w, model.NewSessionNotFoundError())
		return
	}

	if err := h.service.Signout(r.Context(), token); err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "サインアウトしました。"})
}

// Me は現在のログインユーザー情報を返す。認証ミドルウェアの内側で使用する。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewSessionNotFoundError())
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// validateSignup は登録リクエストの形式を検証する。
func validateSignup(req signupRequest) error {
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		return model.NewInvalidRequestError("メールアドレスの形式が正しくありません。")
	}

	if strings.TrimSpace(req.Name) == "" || utf8.RuneCountInString(req.Name) > maxNameLength {
		return model.NewInvalidRequestError("nameは1〜255文字で指定してください。")
	}

	return validatePassword(req.Password)
}

// validatePassword はパスワードの強度要件を検証する。
// 8〜72バイトで、英大文字・英小文字・数字・記号をそれぞれ1文字以上含むこと。
func validatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordBytes {
		return model.NewInvalidRequestError("passwordは8〜72バイトで指定してください。")
	}

	var upper, lower, digit, special bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c) && c < unicode.MaxASCII:
			upper = true
		case unicode.IsLower(c) && c < unicode.MaxASCII:
			lower = true
		case unicode.IsDigit(c) && c < unicode.MaxASCII:
			digit = true
		case strings.ContainsRune(passwordSpecials, c):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return model.NewInvalidRequestError("passwordには英大文字・英小文字・数字・記号をそれぞれ1文字以上含めてください。")
	}
	return nil
}
