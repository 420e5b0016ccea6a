package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lmoreira/go-task-tracker/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service defines the ownership-scoped task operations. The user id always
// comes from the authenticated request context, never from client input.
type Service interface {
	ListTasks(ctx context.Context, userID uuid.UUID) ([]*types.Task, error)
	CreateTask(ctx context.Context, userID uuid.UUID, req types.CreateTaskRequest) (*types.Task, error)
	UpdateTask(ctx context.Context, userID, taskID uuid.UUID, req types.UpdateTaskRequest) (*types.Task, error)
	DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
}

func NewService(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *ServiceImpl) ListTasks(ctx context.Context, userID uuid.UUID) ([]*types.Task, error) {
	tasks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error fetching tasks: %w", err)
	}
	return tasks, nil
}

func (s *ServiceImpl) CreateTask(ctx context.Context, userID uuid.UUID, req types.CreateTaskRequest) (*types.Task, error) {
	if err := validateTaskFields(&req.Title, &req.Description); err != nil {
		return nil, err
	}

	now := time.Now()
	task := &types.Task{
		ID:          uuid.New(),
		UserID:      userID, // owner forced from context regardless of input
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("error creating task: %w", err)
	}

	s.logger.InfoContext(ctx, "Task created", slog.String("task_id", task.ID.String()))
	return task, nil
}

// UpdateTask applies only the fields supplied in the request and re-validates
// what changed. Locating by id AND owner means a task owned by someone else
// surfaces as types.ErrNotFound, same as a nonexistent one.
func (s *ServiceImpl) UpdateTask(ctx context.Context, userID, taskID uuid.UUID, req types.UpdateTaskRequest) (*types.Task, error) {
	task, err := s.repo.GetByIDAndUser(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	if err := validateTaskFields(req.Title, req.Description); err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}
	task.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *ServiceImpl) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	return s.repo.Delete(ctx, taskID, userID)
}

// validateTaskFields checks the length constraints on whichever fields are
// present. Nil pointers mean "not supplied" and are skipped. Lengths count
// characters, not bytes, so multi-byte input is measured as users see it.
func validateTaskFields(title, description *string) error {
	fields := map[string]string{}
	if title != nil {
		if n := utf8.RuneCountInString(*title); n < types.TaskTitleMinLen {
			fields["title"] = "title must be at least 3 characters long"
		} else if n > types.TaskTitleMaxLen {
			fields["title"] = "title cannot exceed 100 characters"
		}
	}
	if description != nil && utf8.RuneCountInString(*description) > types.TaskDescriptionMaxLen {
		fields["description"] = "description cannot exceed 500 characters"
	}
	if len(fields) > 0 {
		return &types.ValidationError{Fields: fields}
	}
	return nil
}
