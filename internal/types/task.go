package types

import (
	"time"

	"github.com/google/uuid"
)

// Task title/description length constraints.
const (
	TaskTitleMinLen       = 3
	TaskTitleMaxLen       = 100
	TaskDescriptionMaxLen = 500
)

// Task represents a single to-do item owned by exactly one user.
// Ownership is immutable after creation; every query against tasks
// filters on UserID.
type Task struct {
	ID          uuid.UUID `json:"id" example:"7a5f8c1e-0b9d-4c3a-8e2f-1d6b7a9c0e4f"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title" example:"Buy milk"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateTaskRequest represents the create task request body.
// Any owner field sent by the client is ignored; the owner always
// comes from the authenticated context.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateTaskRequest represents the update task request body.
// Pointer fields distinguish "not supplied" from zero values so
// partial updates only touch what the client sent.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}
