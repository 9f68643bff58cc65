package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/todoman/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// タグは対象タスクIDでまとめて取得し、メモリ上で組み立てる。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

const taskColumns = `id, user_id, title, description, status, starts_at, expires_at, created_at, updated_at`

// rowScanner は *sql.Row と *sql.Rows の共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (*model.Task, error) {
	var (
		task        model.Task
		description sql.NullString
		startsAt    sql.NullTime
		expiresAt   sql.NullTime
	)
	err := s.Scan(
		&task.ID, &task.UserID, &task.Title, &description, &task.Status,
		&startsAt, &expiresAt, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		task.Description = &description.String
	}
	if startsAt.Valid {
		t := startsAt.Time
		task.StartsAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		task.ExpiresAt = &t
	}
	task.Tags = []model.Tag{}
	return &task, nil
}

// FindByID は指定IDのタスクをタグ付きで取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id int64) (*model.Task, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task by ID: %w", err)
	}

	if err := r.loadTags(ctx, []*model.Task{task}); err != nil {
		return nil, err
	}
	return task, nil
}

// List はフィルタ条件に一致するユーザーのタスクを返す。
// TagIDsはいずれかのタグを持つタスクに一致する（OR条件）。
func (r *PostgresTaskRepo) List(ctx context.Context, filter model.TaskFilter) ([]*model.Task, error) {
	var (
		conds = []string{"user_id = $1"}
		args  = []any{filter.UserID}
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(filter.TagIDs) > 0 {
		args = append(args, pq.Array(filter.TagIDs))
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM task_tags tt WHERE tt.task_id = tasks.id AND tt.tag_id = ANY($%d))", len(args)))
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(
		`SELECT %s FROM tasks WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		taskColumns, strings.Join(conds, " AND "), len(args)-1, len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*model.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	if err := r.loadTags(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// loadTags はタスク群のタグを1クエリで取得して各タスクに割り当てる。
func (r *PostgresTaskRepo) loadTags(ctx context.Context, tasks []*model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	ids := make([]int64, len(tasks))
	byID := make(map[int64]*model.Task, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
		byID[task.ID] = task
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT tt.task_id, t.id, t.name, t.color, t.created_at, t.updated_at
		 FROM task_tags tt
		 JOIN tags t ON t.id = tt.tag_id
		 WHERE tt.task_id = ANY($1)
		 ORDER BY t.id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to load task tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			taskID int64
			tag    model.Tag
		)
		if err := rows.Scan(&taskID, &tag.ID, &tag.Name, &tag.Color, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan task tag: %w", err)
		}
		if task, ok := byID[taskID]; ok {
			task.Tags = append(task.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate task tags: %w", err)
	}
	return nil
}

// Create はタスクとタグの紐付けを同一トランザクションで作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, userID int64, in model.NewTask) (*model.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO tasks (user_id, title, description, status, starts_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		userID, in.Title, nullString(in.Description), string(in.Status), nullTime(in.StartsAt), nullTime(in.ExpiresAt),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	if err := linkTags(ctx, tx, id, in.TagIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return r.FindByID(ctx, id)
}

// Update はpatchで指定されたフィールドのみ更新する。
// タグの置換はタスク更新と同一トランザクションで行う。
func (r *PostgresTaskRepo) Update(ctx context.Context, id int64, patch model.TaskPatch) (*model.Task, error) {
	sets := []string{"updated_at = now()"}
	args := []any{}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.StartsAt != nil {
		set("starts_at", *patch.StartsAt)
	}
	if patch.ExpiresAt != nil {
		set("expires_at", *patch.ExpiresAt)
	}
	args = append(args, id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	if patch.ReplaceTags {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = $1`, id); err != nil {
			return nil, fmt.Errorf("failed to clear task tags: %w", err)
		}
		if err := linkTags(ctx, tx, id, patch.TagIDs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return r.FindByID(ctx, id)
}

// Delete はタスクを削除する。task_tagsはCASCADE削除される。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// linkTags はタスクにタグを紐付ける。tagsに存在しないIDは無視される。
func linkTags(ctx context.Context, tx *sql.Tx, taskID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO task_tags (task_id, tag_id)
		 SELECT $1, id FROM tags WHERE id = ANY($2)
		 ON CONFLICT DO NOTHING`,
		taskID, pq.Array(tagIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to link task tags: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
