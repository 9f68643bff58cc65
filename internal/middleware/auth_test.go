package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/todoman/internal/model"
)

// mockResolver はSessionResolverのテスト用モック。
type mockResolver struct {
	resolveFn func(ctx context.Context, token string) (*model.User, error)
	calls     int
}

func (m *mockResolver) Resolve(ctx context.Context, token string) (*model.User, error) {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, token)
	}
	return nil, model.NewSessionNotFoundError()
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body.Code
}

func TestAuthMiddleware_ValidToken_InjectsUser(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, token string) (*model.User, error) {
			if token != "tok-abc" {
				t.Errorf("token = %q, want %q", token, "tok-abc")
			}
			return &model.User{ID: 42, Email: "a@example.com"}, nil
		},
	}

	var gotUserID int64
	var gotToken string
	handler := NewAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		gotToken, _ = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer tok-abc")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUserID != 42 {
		t.Errorf("userID = %d, want 42", gotUserID)
	}
	if gotToken != "tok-abc" {
		t.Errorf("token = %q, want %q", gotToken, "tok-abc")
	}
}

// 形式不正なヘッダーではストアを参照しない
func TestAuthMiddleware_MalformedHeader_Returns401WithoutLookup(t *testing.T) {
	headers := []struct {
		name  string
		value string
	}{
		{"ヘッダーなし", ""},
		{"スキームなし", "tok-abc"},
		{"小文字のスキーム", "bearer tok-abc"},
		{"Basic認証", "Basic dXNlcjpwYXNz"},
		{"トークンが空", "Bearer "},
		{"余分な空白", "Bearer  tok-abc"},
		{"トークンが2つ", "Bearer tok-abc tok-def"},
	}

	for _, tt := range headers {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockResolver{}
			handler := NewAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tt.value != "" {
				req.Header.Set("Authorization", tt.value)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if code := decodeErrorCode(t, w); code != model.ErrCodeSessionNotFound {
				t.Errorf("code = %q, want %q", code, model.ErrCodeSessionNotFound)
			}
			if resolver.calls != 0 {
				t.Errorf("resolver calls = %d, want 0", resolver.calls)
			}
		})
	}
}

func TestAuthMiddleware_ResolverErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"未検出", model.NewSessionNotFoundError(), http.StatusUnauthorized, model.ErrCodeSessionNotFound},
		{"期限切れ", model.NewSessionExpiredError(), http.StatusUnauthorized, model.ErrCodeSessionExpired},
		{"ストア障害", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockResolver{
				resolveFn: func(ctx context.Context, token string) (*model.User, error) {
					return nil, tt.err
				},
			}
			handler := NewAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			req.Header.Set("Authorization", "Bearer tok-abc")
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := decodeErrorCode(t, w); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for context without user")
	}
	if _, err := TokenFromContext(context.Background()); err == nil {
		t.Error("expected error for context without token")
	}
}

func TestUserIDFromContext_ValidValue_ReturnsUserID(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &model.User{ID: 7})

	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != 7 {
		t.Errorf("userID = %d, want 7", userID)
	}
}
