package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/task"
)

// --- モック定義 ---

type mockTaskService struct {
	listFn   func(ctx context.Context, userID int64, params task.ListParams) ([]*model.Task, error)
	getFn    func(ctx context.Context, taskID, userID int64) (*model.Task, error)
	createFn func(ctx context.Context, userID int64, in model.NewTask) (*model.Task, error)
	updateFn func(ctx context.Context, taskID, userID int64, patch model.TaskPatch) (*model.Task, error)
	deleteFn func(ctx context.Context, taskID, userID int64) error
}

func (m *mockTaskService) List(ctx context.Context, userID int64, params task.ListParams) ([]*model.Task, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, params)
	}
	return []*model.Task{}, nil
}

func (m *mockTaskService) Get(ctx context.Context, taskID, userID int64) (*model.Task, error) {
	if m.getFn != nil {
		return m.getFn(ctx, taskID, userID)
	}
	return nil, model.NewTaskNotFoundError(taskID)
}

func (m *mockTaskService) Create(ctx context.Context, userID int64, in model.NewTask) (*model.Task, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return &model.Task{ID: 1, UserID: userID, Title: in.Title, Status: in.Status}, nil
}

func (m *mockTaskService) Update(ctx context.Context, taskID, userID int64, patch model.TaskPatch) (*model.Task, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, taskID, userID, patch)
	}
	return &model.Task{ID: taskID, UserID: userID}, nil
}

func (m *mockTaskService) Delete(ctx context.Context, taskID, userID int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, taskID, userID)
	}
	return nil
}

var _ TaskServiceInterface = (*mockTaskService)(nil)

// newTaskRouter はユーザーを擬似的に注入したタスクルーターを返す。
func newTaskRouter(svc TaskServiceInterface, userID int64) http.Handler {
	h := NewTaskHandler(svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.ContextWithUser(r.Context(), &model.User{ID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Get("/api/tasks", h.ListTasks)
	r.Post("/api/tasks", h.CreateTask)
	r.Get("/api/tasks/{id}", h.GetTask)
	r.Patch("/api/tasks/{id}", h.UpdateTask)
	r.Delete("/api/tasks/{id}", h.DeleteTask)
	return r
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// --- テスト ---

func TestParseListParams(t *testing.T) {
	pending := "pending"
	tests := []struct {
		name  string
		query string
		want  task.ListParams
	}{
		{"既定値", "", task.ListParams{Limit: task.DefaultListLimit}},
		{"ステータス", "status=pending", task.ListParams{Status: &pending, Limit: task.DefaultListLimit}},
		{"タグID", "tag_ids=1,2,3", task.ListParams{TagIDs: []int64{1, 2, 3}, Limit: task.DefaultListLimit}},
		{"空白と空要素", "tag_ids=1,%202,,", task.ListParams{TagIDs: []int64{1, 2}, Limit: task.DefaultListLimit}},
		{"ページング", "limit=10&offset=20", task.ListParams{Limit: 10, Offset: 20}},
		{"範囲外はサービスで検証", "limit=0&offset=-1", task.ListParams{Limit: 0, Offset: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks?"+tt.query, nil)
			got, err := parseListParams(req)
			if err != nil {
				t.Fatalf("parseListParams() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseListParams() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseListParams_Malformed_ReturnsInvalidFilter(t *testing.T) {
	queries := []string{"tag_ids=1,a", "tag_ids=1.5", "limit=ten", "offset=x"}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks?"+q, nil)
			_, err := parseListParams(req)
			if code := model.ErrorCode(err); code != model.ErrCodeInvalidFilter {
				t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidFilter)
			}
		})
	}
}

func TestTaskHandler_ListTasks_PassesUserAndParams(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var gotUserID int64
	var gotParams task.ListParams
	svc := &mockTaskService{
		listFn: func(ctx context.Context, userID int64, params task.ListParams) ([]*model.Task, error) {
			gotUserID, gotParams = userID, params
			return []*model.Task{
				{ID: 2, UserID: userID, Title: "Y", Status: model.TaskStatusPending, CreatedAt: created, Tags: []model.Tag{{ID: 1, Name: "work", Color: "#3B82F6"}}},
				{ID: 1, UserID: userID, Title: "X", Status: model.TaskStatusPending, CreatedAt: created},
			}, nil
		},
	}

	w := doRequest(newTaskRouter(svc, 7), http.MethodGet, "/api/tasks?tag_ids=1,2&limit=5", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUserID != 7 {
		t.Errorf("userID = %d, want 7", gotUserID)
	}
	if !reflect.DeepEqual(gotParams.TagIDs, []int64{1, 2}) || gotParams.Limit != 5 {
		t.Errorf("params = %+v", gotParams)
	}

	var resp []taskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp) != 2 || resp[0].Title != "Y" || resp[1].Title != "X" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp[0].Tags) != 1 || resp[0].Tags[0].Color != "#3B82F6" {
		t.Errorf("tags = %+v", resp[0].Tags)
	}
	if resp[1].Tags == nil {
		t.Error("tags should be an empty array, not null")
	}
}

func TestTaskHandler_ListTasks_MalformedTagIDs_Returns400(t *testing.T) {
	called := false
	svc := &mockTaskService{
		listFn: func(ctx context.Context, userID int64, params task.ListParams) ([]*model.Task, error) {
			called = true
			return nil, nil
		},
	}

	w := doRequest(newTaskRouter(svc, 1), http.MethodGet, "/api/tasks?tag_ids=abc", "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInvalidFilter {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidFilter)
	}
	if called {
		t.Error("service should not be called")
	}
}

func TestTaskHandler_CreateTask(t *testing.T) {
	var got model.NewTask
	svc := &mockTaskService{
		createFn: func(ctx context.Context, userID int64, in model.NewTask) (*model.Task, error) {
			got = in
			return &model.Task{ID: 11, UserID: userID, Title: in.Title, Status: model.TaskStatusPending}, nil
		},
	}

	body := `{"title":"Write report","starts_at":"2026-01-01T09:00:00Z","expires_at":"2026-01-02T09:00:00+09:00","tag_ids":[1,3]}`
	w := doRequest(newTaskRouter(svc, 4), http.MethodPost, "/api/tasks", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", w.Code, http.StatusCreated, w.Body.String())
	}
	if got.Title != "Write report" || !reflect.DeepEqual(got.TagIDs, []int64{1, 3}) {
		t.Errorf("unexpected input %+v", got)
	}
	if got.Status != "" {
		t.Errorf("status = %q, want empty (defaulted by service)", got.Status)
	}
	if got.StartsAt == nil || !got.StartsAt.Equal(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("starts_at = %v", got.StartsAt)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expires_at = %v", got.ExpiresAt)
	}

	var resp taskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.ID != 11 || resp.UserID != 4 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestTaskHandler_CreateTask_InvalidJSON_Returns400(t *testing.T) {
	w := doRequest(newTaskRouter(&mockTaskService{}, 1), http.MethodPost, "/api/tasks", `{"title":`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidRequest)
	}
}

// tag_idsの省略、null、空配列を区別すること
func TestTaskHandler_UpdateTask_TagIDsPresence(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantReplace bool
		wantTagIDs  []int64
	}{
		{"省略", `{"title":"new"}`, false, nil},
		{"null", `{"tag_ids":null}`, false, nil},
		{"空配列", `{"tag_ids":[]}`, true, []int64{}},
		{"指定", `{"tag_ids":[2]}`, true, []int64{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.TaskPatch
			svc := &mockTaskService{
				updateFn: func(ctx context.Context, taskID, userID int64, patch model.TaskPatch) (*model.Task, error) {
					got = patch
					return &model.Task{ID: taskID, UserID: userID}, nil
				},
			}

			w := doRequest(newTaskRouter(svc, 1), http.MethodPatch, "/api/tasks/5", tt.body)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if got.ReplaceTags != tt.wantReplace {
				t.Errorf("ReplaceTags = %v, want %v", got.ReplaceTags, tt.wantReplace)
			}
			if !reflect.DeepEqual(got.TagIDs, tt.wantTagIDs) {
				t.Errorf("TagIDs = %#v, want %#v", got.TagIDs, tt.wantTagIDs)
			}
		})
	}
}

func TestTaskHandler_UpdateTask_SparseFields(t *testing.T) {
	var got model.TaskPatch
	svc := &mockTaskService{
		updateFn: func(ctx context.Context, taskID, userID int64, patch model.TaskPatch) (*model.Task, error) {
			got = patch
			return &model.Task{ID: taskID, UserID: userID}, nil
		},
	}

	w := doRequest(newTaskRouter(svc, 1), http.MethodPatch, "/api/tasks/5", `{"status":"completed"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Status == nil || *got.Status != model.TaskStatusCompleted {
		t.Errorf("status = %v, want completed", got.Status)
	}
	if got.Title != nil || got.Description != nil || got.StartsAt != nil || got.ExpiresAt != nil {
		t.Errorf("unexpected fields set: %+v", got)
	}
}

func TestTaskHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		err        error
		wantStatus int
	}{
		{"他ユーザーのタスク取得", http.MethodGet, "/api/tasks/3", model.NewUnauthorizedAccessError(), http.StatusForbidden},
		{"存在しないタスク取得", http.MethodGet, "/api/tasks/3", model.NewTaskNotFoundError(3), http.StatusNotFound},
		{"他ユーザーのタスク削除", http.MethodDelete, "/api/tasks/3", model.NewUnauthorizedAccessError(), http.StatusForbidden},
		{"存在しないタスク削除", http.MethodDelete, "/api/tasks/3", model.NewTaskNotFoundError(3), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTaskService{
				getFn: func(ctx context.Context, taskID, userID int64) (*model.Task, error) {
					return nil, tt.err
				},
				deleteFn: func(ctx context.Context, taskID, userID int64) error {
					return tt.err
				},
			}

			w := doRequest(newTaskRouter(svc, 1), tt.method, tt.path, "")

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestTaskHandler_DeleteTask_Returns204(t *testing.T) {
	var gotTaskID, gotUserID int64
	svc := &mockTaskService{
		deleteFn: func(ctx context.Context, taskID, userID int64) error {
			gotTaskID, gotUserID = taskID, userID
			return nil
		},
	}

	w := doRequest(newTaskRouter(svc, 9), http.MethodDelete, "/api/tasks/42", "")

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotTaskID != 42 || gotUserID != 9 {
		t.Errorf("taskID = %d, userID = %d", gotTaskID, gotUserID)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body should be empty, got %q", w.Body.String())
	}
}

func TestTaskHandler_InvalidTaskID_Returns400(t *testing.T) {
	for _, id := range []string{"abc", "0", "-1"} {
		t.Run(id, func(t *testing.T) {
			w := doRequest(newTaskRouter(&mockTaskService{}, 1), http.MethodGet, "/api/tasks/"+id, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestTaskHandler_NoUserInContext_Returns401(t *testing.T) {
	h := NewTaskHandler(&mockTaskService{})
	w := httptest.NewRecorder()
	h.ListTasks(w, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
