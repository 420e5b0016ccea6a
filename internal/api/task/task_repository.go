package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lmoreira/go-task-tracker/app/observability/metrics"
	"github.com/lmoreira/go-task-tracker/internal/types"
)

// PgxPool is the subset of pgxpool.Pool the repository needs.
// Satisfied by *pgxpool.Pool and by pgxmock in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ensure RepositoryImpl implements the Repository interface
var _ Repository = (*RepositoryImpl)(nil)

// Repository defines the persistence operations for tasks. Every read and
// write is scoped by owner; a task belonging to another user behaves exactly
// like a task that does not exist.
type Repository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.Task, error)
	Create(ctx context.Context, task *types.Task) error
	GetByIDAndUser(ctx context.Context, taskID, userID uuid.UUID) (*types.Task, error)
	Update(ctx context.Context, task *types.Task) error
	Delete(ctx context.Context, taskID, userID uuid.UUID) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool PgxPool
}

func NewRepository(pgpool PgxPool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

// ListByUser returns all tasks owned by the user, newest first.
func (r *RepositoryImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.Task, error) {
	query := `
        SELECT id, user_id, title, description, completed, created_at, updated_at
        FROM tasks
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list tasks", slog.Any("error", err))
		metrics.RecordDBError(ctx, "tasks.list")
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*types.Task{}
	for rows.Next() {
		var t types.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan task row", slog.Any("error", err))
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, task *types.Task) error {
	query := `
        INSERT INTO tasks (id, user_id, title, description, completed, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.pgpool.Exec(ctx, query,
		task.ID, task.UserID, task.Title, task.Description, task.Completed, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create task", slog.Any("error", err))
		metrics.RecordDBError(ctx, "tasks.create")
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByIDAndUser fetches a task by id AND owner. Zero rows means
// types.ErrNotFound, whether the task is missing or owned by someone else.
func (r *RepositoryImpl) GetByIDAndUser(ctx context.Context, taskID, userID uuid.UUID) (*types.Task, error) {
	query := `
        SELECT id, user_id, title, description, completed, created_at, updated_at
        FROM tasks
        WHERE id = $1 AND user_id = $2
    `
	var t types.Task
	err := r.pgpool.QueryRow(ctx, query, taskID, userID).
		Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get task", slog.Any("error", err))
		metrics.RecordDBError(ctx, "tasks.get")
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &t, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, task *types.Task) error {
	query := `
        UPDATE tasks
        SET title = $1, description = $2, completed = $3, updated_at = $4
        WHERE id = $5 AND user_id = $6
    `
	tag, err := r.pgpool.Exec(ctx, query,
		task.Title, task.Description, task.Completed, task.UpdatedAt, task.ID, task.UserID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update task", slog.Any("error", err))
		metrics.RecordDBError(ctx, "tasks.update")
		return fmt.Errorf("failed to update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, taskID, userID uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete task", slog.Any("error", err))
		metrics.RecordDBError(ctx, "tasks.delete")
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
