package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/task"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	List(ctx context.Context, userID int64, params task.ListParams) ([]*model.Task, error)
	Get(ctx context.Context, taskID, userID int64) (*model.Task, error)
	Create(ctx context.Context, userID int64, in model.NewTask) (*model.Task, error)
	Update(ctx context.Context, taskID, userID int64, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, taskID, userID int64) error
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

// createTaskRequest はタスク作成リクエストのボディ。
type createTaskRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	StartsAt    *time.Time `json:"starts_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	TagIDs      []int64    `json:"tag_ids"`
}

// updateTaskRequest はタスク部分更新リクエストのボディ。
// 省略またはnullのフィールドは変更しない。tag_idsに空配列を指定すると全タグを解除する。
type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	StartsAt    *time.Time `json:"starts_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	TagIDs      *[]int64   `json:"tag_ids"`
}

func (req updateTaskRequest) toPatch() model.TaskPatch {
	patch := model.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		ExpiresAt:   req.ExpiresAt,
	}
	if req.Status != nil {
		status := model.TaskStatus(*req.Status)
		patch.Status = &status
	}
	if req.TagIDs != nil {
		patch.ReplaceTags = true
		patch.TagIDs = *req.TagIDs
	}
	return patch
}

// ListTasks はユーザーのタスク一覧を返す。
// GET /api/tasks?status=&tag_ids=1,2&limit=&offset=
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	tasks, err := h.service.List(r.Context(), userID, params)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, toTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTask はタスク詳細を返す。
// GET /api/tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), taskID, userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// CreateTask はタスクを作成する。
// POST /api/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	t, err := h.service.Create(r.Context(), userID, model.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Status:      model.TaskStatus(req.Status),
		StartsAt:    req.StartsAt,
		ExpiresAt:   req.ExpiresAt,
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(t))
}

// UpdateTask はタスクを部分更新する。
// PATCH /api/tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	t, err := h.service.Update(r.Context(), taskID, userID, req.toPatch())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// DeleteTask はタスクを削除する。
// DELETE /api/tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), taskID, userID); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireUserID は認証ミドルウェアが注入したユーザーIDを取り出す。
// 取り出せない場合は401を書き込んでfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewSessionNotFoundError())
		return 0, false
	}
	return userID, true
}

// parseTaskID はURLパスの{id}を正の整数として解釈する。
// 整数でない場合はINVALID_REQUESTを返す。
func parseTaskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		middleware.WriteError(w, model.NewInvalidRequestError("タスクIDは正の整数で指定してください。"))
		return 0, false
	}
	return id, true
}

// parseListParams は一覧取得のクエリパラメータを解釈する。
// 数値として解釈できない値はINVALID_FILTERとする。値の範囲はサービス層で検証する。
func parseListParams(r *http.Request) (task.ListParams, error) {
	q := r.URL.Query()
	params := task.ListParams{
		Limit:  task.DefaultListLimit,
		Offset: 0,
	}

	if q.Has("status") {
		status := q.Get("status")
		params.Status = &status
	}

	if raw := q.Get("tag_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return params, model.NewInvalidFilterError("tag_idsはカンマ区切りの整数で指定してください（例: 1,2,3）")
			}
			params.TagIDs = append(params.TagIDs, id)
		}
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return params, model.NewInvalidFilterError("limitは整数で指定してください")
		}
		params.Limit = limit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return params, model.NewInvalidFilterError("offsetは整数で指定してください")
		}
		params.Offset = offset
	}

	return params, nil
}
