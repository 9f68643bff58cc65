// Package task はタスク管理のドメインロジックを提供する。
package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/todoman/internal/metrics"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

const (
	// DefaultListLimit は一覧取得件数の既定値。
	DefaultListLimit = 50
	// MaxListLimit は一覧取得件数の上限。超過分は黙って切り詰める。
	MaxListLimit = 100

	maxTitleLength       = 200
	maxDescriptionLength = 2000
)

// ListParams はタスク一覧取得の入力パラメータ。
// Statusは未検証の文字列で受け取る。
type ListParams struct {
	Status *string
	TagIDs []int64
	Limit  int
	Offset int
}

// Service はタスク管理のサービス層。
// すべての操作は所有者の一致を確認してからリポジトリに委譲する。
type Service struct {
	taskRepo repository.TaskRepository
	metrics  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(taskRepo repository.TaskRepository, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{taskRepo: taskRepo, metrics: collector}
}

// List はユーザーのタスク一覧を作成日時の降順で返す。
// TagIDsはいずれかのタグを持つタスクに一致する。
func (s *Service) List(ctx context.Context, userID int64, params ListParams) ([]*model.Task, error) {
	filter := model.TaskFilter{
		UserID: userID,
		Limit:  params.Limit,
		Offset: params.Offset,
	}

	if params.Status != nil {
		status := model.TaskStatus(*params.Status)
		if !status.Valid() {
			return nil, model.NewInvalidFilterError(
				fmt.Sprintf("statusは pending, in_progress, completed のいずれかを指定してください: %s", *params.Status))
		}
		filter.Status = &status
	}
	if filter.Limit < 1 {
		return nil, model.NewInvalidFilterError("limitは1以上を指定してください")
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		return nil, model.NewInvalidFilterError("offsetは0以上を指定してください")
	}
	seen := make(map[int64]struct{}, len(params.TagIDs))
	for _, id := range params.TagIDs {
		if id < 1 {
			return nil, model.NewInvalidFilterError(fmt.Sprintf("tag_idsは正の整数で指定してください: %d", id))
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		filter.TagIDs = append(filter.TagIDs, id)
	}

	tasks, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	return tasks, nil
}

// Get は指定タスクを返す。
// 存在しない場合はTASK_NOT_FOUND、所有者が異なる場合はUNAUTHORIZED_ACCESSを返す。
func (s *Service) Get(ctx context.Context, taskID, userID int64) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	if task.UserID != userID {
		return nil, model.NewUnauthorizedAccessError()
	}
	return task, nil
}

// Create はタスクを作成する。存在しないタグIDは無視される。
func (s *Service) Create(ctx context.Context, userID int64, in model.NewTask) (*model.Task, error) {
	if in.Status == "" {
		in.Status = model.TaskStatusPending
	}
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}
	if !in.Status.Valid() {
		return nil, model.NewInvalidTaskError(fmt.Sprintf("不正なステータスです: %s", in.Status))
	}
	if err := validatePeriod(in.StartsAt, in.ExpiresAt); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.Create(ctx, userID, in)
	if err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	s.metrics.RecordTaskCreated()
	slog.Info("task created",
		slog.Int64("task_id", task.ID),
		slog.Int64("user_id", userID),
	)
	return task, nil
}

// Update は指定されたフィールドのみを更新する。
// 期間の検証は既存の値にpatchを重ねた結果に対して行う。
func (s *Service) Update(ctx context.Context, taskID, userID int64, patch model.TaskPatch) (*model.Task, error) {
	current, err := s.Get(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return nil, err
		}
	}
	if err := validateDescription(patch.Description); err != nil {
		return nil, err
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, model.NewInvalidTaskError(fmt.Sprintf("不正なステータスです: %s", *patch.Status))
	}

	startsAt, expiresAt := current.StartsAt, current.ExpiresAt
	if patch.StartsAt != nil {
		startsAt = patch.StartsAt
	}
	if patch.ExpiresAt != nil {
		expiresAt = patch.ExpiresAt
	}
	if err := validatePeriod(startsAt, expiresAt); err != nil {
		return nil, err
	}

	if patch.IsEmpty() {
		return current, nil
	}

	updated, err := s.taskRepo.Update(ctx, taskID, patch)
	if err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	if updated == nil {
		// 所有者確認の後に別リクエストで削除された
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return updated, nil
}

// Delete はタスクとタグの紐付けを削除する。
func (s *Service) Delete(ctx context.Context, taskID, userID int64) error {
	if _, err := s.Get(ctx, taskID, userID); err != nil {
		return err
	}

	deleted, err := s.taskRepo.Delete(ctx, taskID)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewTaskNotFoundError(taskID)
	}

	s.metrics.RecordTaskDeleted()
	slog.Info("task deleted",
		slog.Int64("task_id", taskID),
		slog.Int64("user_id", userID),
	)
	return nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if strings.TrimSpace(title) == "" || n > maxTitleLength {
		return model.NewInvalidTaskError(fmt.Sprintf("titleは1〜%d文字で指定してください", maxTitleLength))
	}
	return nil
}

func validateDescription(description *string) error {
	if description != nil && utf8.RuneCountInString(*description) > maxDescriptionLength {
		return model.NewInvalidTaskError(fmt.Sprintf("descriptionは%d文字以内で指定してください", maxDescriptionLength))
	}
	return nil
}

// validatePeriod は開始日時と期限がともに指定されている場合に順序を検証する。
func validatePeriod(startsAt, expiresAt *time.Time) error {
	if startsAt != nil && expiresAt != nil && expiresAt.Before(*startsAt) {
		return model.NewInvalidTaskError("expires_atはstarts_at以降の日時を指定してください")
	}
	return nil
}
